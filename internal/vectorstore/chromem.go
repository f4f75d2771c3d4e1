package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"form-rag/internal/models"
)

const manifestFile = "tenants.json"

// ChromemStore backs the vector index with an embedded chromem-go
// database. Every mutation is durable on return in persistent mode.
//
// chromem has no filtered count, so the store keeps per-tenant chunk
// counts itself and flushes them to a manifest next to the index files
// on Persist. The manifest also seeds the tenant registry on startup.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	path       string
	inMemory   bool

	mu           sync.RWMutex
	counts       map[string]int
	materialized bool
}

// NewChromem opens or creates the index at path. With inMemory set,
// nothing touches the disk; that mode exists for tests.
func NewChromem(path, collectionName string, inMemory bool) (*ChromemStore, error) {
	var db *chromem.DB
	var err error
	if inMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
	}

	collection, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}

	s := &ChromemStore{
		db:         db,
		collection: collection,
		path:       path,
		inMemory:   inMemory,
		counts:     map[string]int{},
	}
	if !inMemory {
		if err := s.loadManifest(); err != nil {
			return nil, err
		}
	}
	s.materialized = len(s.counts) > 0 || collection.Count() > 0
	return s, nil
}

func (s *ChromemStore) loadManifest() error {
	data, err := os.ReadFile(filepath.Join(s.path, manifestFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read tenant manifest: %w", err)
	}
	if err := json.Unmarshal(data, &s.counts); err != nil {
		return fmt.Errorf("failed to parse tenant manifest: %w", err)
	}
	return nil
}

func (s *ChromemStore) Upsert(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		if c.UserID == "" {
			return models.ErrMissingUserID
		}
		meta := make(map[string]string, len(c.Metadata)+1)
		for k, v := range c.Metadata {
			meta[k] = v
		}
		// the tenant tag is written last so caller metadata can never
		// relabel a chunk into another namespace
		meta[models.MetaUserID] = c.UserID
		docs[i] = chromem.Document{
			ID:        c.ID,
			Content:   c.Text,
			Metadata:  meta,
			Embedding: c.Embedding,
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	for _, c := range chunks {
		s.counts[c.UserID]++
	}
	s.materialized = true
	return nil
}

func (s *ChromemStore) Query(ctx context.Context, embedding []float32, k int, filter map[string]string) ([]models.Chunk, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	// chromem rejects nResults above the matching document count, so an
	// empty namespace short-circuits to an empty result. The manifest
	// count can be stale after a crash, so the collection's own total
	// bounds k as well.
	matching := s.countLocked(filter)
	if total := s.collection.Count(); total < matching {
		matching = total
	}
	if matching == 0 {
		return nil, nil
	}
	if k > matching {
		k = matching
	}

	results, err := s.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: embedding,
		NResults:       k,
		Where:          filter,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	chunks := make([]models.Chunk, len(results))
	for i, r := range results {
		chunks[i] = models.Chunk{
			ID:        r.ID,
			UserID:    r.Metadata[models.MetaUserID],
			Text:      r.Content,
			Metadata:  r.Metadata,
			Embedding: r.Embedding,
		}
	}
	return chunks, nil
}

func (s *ChromemStore) Count(ctx context.Context, filter map[string]string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countLocked(filter), nil
}

func (s *ChromemStore) countLocked(filter map[string]string) int {
	uid := filter[models.MetaUserID]
	if uid == "" {
		return s.collection.Count()
	}
	return s.counts[uid]
}

func (s *ChromemStore) Delete(ctx context.Context, filter map[string]string) error {
	uid := filter[models.MetaUserID]
	if uid == "" {
		return fmt.Errorf("refusing delete without a %s filter", models.MetaUserID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.collection.Delete(ctx, filter, nil); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	delete(s.counts, uid)
	return nil
}

func (s *ChromemStore) Persist(ctx context.Context) error {
	if s.inMemory {
		return nil
	}

	s.mu.RLock()
	data, err := json.MarshalIndent(s.counts, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode tenant manifest: %w", err)
	}

	// write-then-rename so a crash never leaves a torn manifest
	target := filepath.Join(s.path, manifestFile)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write tenant manifest: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("failed to replace tenant manifest: %w", err)
	}
	return nil
}

func (s *ChromemStore) Tenants(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tenants := make([]string, 0, len(s.counts))
	for uid, n := range s.counts {
		if n > 0 {
			tenants = append(tenants, uid)
		}
	}
	return tenants, nil
}

func (s *ChromemStore) Materialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.materialized
}

// Close is a no-op: chromem persists documents as they are written.
func (s *ChromemStore) Close() error {
	log.Debug().Str("path", s.path).Msg("chromem store closed")
	return nil
}

var _ Store = (*ChromemStore)(nil)
