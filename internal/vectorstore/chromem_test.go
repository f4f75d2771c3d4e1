package vectorstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"form-rag/internal/models"
)

// unit embedding pointing along one axis, far from the others
func axisVec(axis int) []float32 {
	v := make([]float32, 4)
	v[axis] = 1
	return v
}

func testChunks(userID string, axis, n int) []models.Chunk {
	chunks := make([]models.Chunk, n)
	for i := range chunks {
		chunks[i] = models.Chunk{
			ID:        fmt.Sprintf("%s-%d", userID, i),
			UserID:    userID,
			Text:      fmt.Sprintf("%s text %d", userID, i),
			Metadata:  map[string]string{"source": "test"},
			Embedding: axisVec(axis),
		}
	}
	return chunks
}

func newTestStore(t *testing.T) (*ChromemStore, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := NewChromem(dir, "form_data", false)
	require.NoError(t, err)
	return s, dir
}

func userFilter(uid string) map[string]string {
	return map[string]string{models.MetaUserID: uid}
}

func TestChromemTenantIsolation(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, testChunks("alice", 0, 3)))
	require.NoError(t, s.Upsert(ctx, testChunks("bob", 0, 2)))

	// same embeddings on purpose: only the filter separates the tenants
	got, err := s.Query(ctx, axisVec(0), 5, userFilter("alice"))
	require.NoError(t, err)
	require.Len(t, got, 3)
	for _, c := range got {
		assert.Equal(t, "alice", c.UserID)
	}

	got, err = s.Query(ctx, axisVec(0), 5, userFilter("bob"))
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestChromemQueryEmptyNamespace(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, testChunks("alice", 0, 1)))

	got, err := s.Query(ctx, axisVec(0), 1, userFilter("nobody"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestChromemCount(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	n, err := s.Count(ctx, userFilter("alice"))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, s.Upsert(ctx, testChunks("alice", 0, 4)))
	require.NoError(t, s.Upsert(ctx, testChunks("bob", 1, 1)))

	n, err = s.Count(ctx, userFilter("alice"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	total, err := s.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
}

func TestChromemDeleteRemovesOnlyTenant(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, testChunks("alice", 0, 3)))
	require.NoError(t, s.Upsert(ctx, testChunks("bob", 1, 2)))

	require.NoError(t, s.Delete(ctx, userFilter("alice")))

	n, err := s.Count(ctx, userFilter("alice"))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	got, err := s.Query(ctx, axisVec(0), 3, userFilter("alice"))
	require.NoError(t, err)
	assert.Empty(t, got)

	n, err = s.Count(ctx, userFilter("bob"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestChromemDeleteWithoutFilterRefused(t *testing.T) {
	s, _ := newTestStore(t)
	assert.Error(t, s.Delete(context.Background(), nil))
}

func TestChromemUpsertIgnoresSpoofedTenantTag(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, testChunks("victim", 0, 1)))
	require.NoError(t, s.Upsert(ctx, []models.Chunk{{
		ID:        "evil-1",
		UserID:    "attacker",
		Text:      "poisoned fact",
		Metadata:  map[string]string{models.MetaUserID: "victim"},
		Embedding: axisVec(0),
	}}))

	// the chunk stays in the attacker's namespace, filter and all
	got, err := s.Query(ctx, axisVec(0), 5, userFilter("victim"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "victim", got[0].UserID)

	got, err = s.Query(ctx, axisVec(0), 5, userFilter("attacker"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "attacker", got[0].Metadata[models.MetaUserID])

	n, err := s.Count(ctx, userFilter("victim"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestChromemUpsertRejectsMissingUserID(t *testing.T) {
	s, _ := newTestStore(t)
	err := s.Upsert(context.Background(), []models.Chunk{{ID: "x", Text: "y", Embedding: axisVec(0)}})
	assert.ErrorIs(t, err, models.ErrMissingUserID)
}

func TestChromemReopenReproducesState(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, testChunks("alice", 0, 3)))
	require.NoError(t, s.Persist(ctx))
	require.NoError(t, s.Close())

	reopened, err := NewChromem(dir, "form_data", false)
	require.NoError(t, err)
	assert.True(t, reopened.Materialized())

	n, err := reopened.Count(ctx, userFilter("alice"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := reopened.Query(ctx, axisVec(0), 3, userFilter("alice"))
	require.NoError(t, err)
	assert.Len(t, got, 3)

	tenants, err := reopened.Tenants(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, tenants)
}

func TestChromemMaterialized(t *testing.T) {
	s, _ := newTestStore(t)
	assert.False(t, s.Materialized())

	require.NoError(t, s.Upsert(context.Background(), testChunks("alice", 0, 1)))
	assert.True(t, s.Materialized())

	// clearing the only tenant does not un-materialize the index
	require.NoError(t, s.Delete(context.Background(), userFilter("alice")))
	assert.True(t, s.Materialized())
}

func TestChromemPersistIdempotent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Persist(ctx))
	require.NoError(t, s.Persist(ctx))
}

func TestChromemStaleManifestOvercount(t *testing.T) {
	// a crash between Delete and Persist leaves the manifest counting
	// chunks the collection no longer holds; queries must still work
	s, dir := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, testChunks("alice", 0, 1)))
	require.NoError(t, s.Persist(ctx))
	require.NoError(t, s.Close())

	manifest := filepath.Join(dir, manifestFile)
	require.NoError(t, os.WriteFile(manifest, []byte(`{"alice": 5}`), 0o644))

	reopened, err := NewChromem(dir, "form_data", false)
	require.NoError(t, err)

	got, err := reopened.Query(ctx, axisVec(0), 3, userFilter("alice"))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
