package vectorstore

import (
	"context"

	"form-rag/internal/models"
)

// Store is a persistent index of (vector, text, metadata) triples with
// filtered similarity search. Tenant isolation happens entirely through
// the equality filter, which in practice is always {user_id: X}.
type Store interface {
	// Upsert writes a batch of chunks. Every chunk must carry a
	// non-empty UserID; this is enforced here, at write time.
	Upsert(ctx context.Context, chunks []models.Chunk) error

	// Query returns at most k chunks matching the filter, closest
	// first. A filter matching nothing yields an empty result, not an
	// error.
	Query(ctx context.Context, embedding []float32, k int, filter map[string]string) ([]models.Chunk, error)

	// Count reports how many chunks match the filter. An empty filter
	// counts everything.
	Count(ctx context.Context, filter map[string]string) (int, error)

	// Delete removes every chunk matching the filter. Either all
	// matching chunks are gone on success, or the call fails and the
	// index is reported unchanged.
	Delete(ctx context.Context, filter map[string]string) error

	// Persist flushes index state to durable storage. Idempotent; safe
	// with no pending changes.
	Persist(ctx context.Context) error

	// Tenants lists the user ids that currently own at least one chunk.
	Tenants(ctx context.Context) ([]string, error)

	// Materialized reports whether any tenant has ever ingested data.
	Materialized() bool

	Close() error
}
