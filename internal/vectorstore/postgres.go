package vectorstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"form-rag/internal/config"
	"form-rag/internal/models"
)

type pgChunk struct {
	bun.BaseModel `bun:"table:form_chunks,alias:fc"`
	ID            string            `bun:"id,pk"`
	UserID        string            `bun:"user_id,notnull"`
	Content       string            `bun:"content,notnull"`
	Metadata      map[string]string `bun:"metadata,type:jsonb"`
	Embedding     []float32         `bun:"embedding,notnull"`
}

// PostgresStore keeps chunks in a pgvector table. Writes are durable as
// soon as the statement commits, so Persist is a no-op here.
type PostgresStore struct {
	db *bun.DB

	mu           sync.RWMutex
	materialized bool
}

func NewPostgres(ctx context.Context, cfg config.StoreConfig) (*PostgresStore, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(cfg.DSN),
		pgdriver.WithPassword(cfg.Password),
	))
	db := bun.NewDB(sqldb, pgdialect.New())
	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	// the vector dimension must match the embedding model, so the
	// column type comes from config and the table is created with
	// explicit DDL instead of the model tags
	size := cfg.VectorSize
	if size <= 0 {
		size = 768
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS form_chunks (
		id text PRIMARY KEY,
		user_id text NOT NULL,
		content text NOT NULL,
		metadata jsonb,
		embedding vector(%d) NOT NULL
	)`, size)
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("failed to initialize chunk table: %w", err)
	}

	total, err := db.NewSelect().Model((*pgChunk)(nil)).Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}

	return &PostgresStore{db: db, materialized: total > 0}, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	rows := make([]pgChunk, len(chunks))
	for i, c := range chunks {
		if c.UserID == "" {
			return models.ErrMissingUserID
		}
		rows[i] = pgChunk{
			ID:        c.ID,
			UserID:    c.UserID,
			Content:   c.Text,
			Metadata:  c.Metadata,
			Embedding: c.Embedding,
		}
	}

	if _, err := s.db.NewInsert().Model(&rows).Exec(ctx); err != nil {
		return fmt.Errorf("failed to store chunks: %w", err)
	}

	s.mu.Lock()
	s.materialized = true
	s.mu.Unlock()
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, embedding []float32, k int, filter map[string]string) ([]models.Chunk, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	var rows []pgChunk
	q := s.db.NewSelect().Model(&rows)
	if uid := filter[models.MetaUserID]; uid != "" {
		q = q.Where("user_id = ?", uid)
	}
	err := q.OrderExpr("embedding <-> ?", embedding).Limit(k).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	chunks := make([]models.Chunk, len(rows))
	for i, r := range rows {
		chunks[i] = models.Chunk{
			ID:        r.ID,
			UserID:    r.UserID,
			Text:      r.Content,
			Metadata:  r.Metadata,
			Embedding: r.Embedding,
		}
	}
	return chunks, nil
}

func (s *PostgresStore) Count(ctx context.Context, filter map[string]string) (int, error) {
	q := s.db.NewSelect().Model((*pgChunk)(nil))
	if uid := filter[models.MetaUserID]; uid != "" {
		q = q.Where("user_id = ?", uid)
	}
	n, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) Delete(ctx context.Context, filter map[string]string) error {
	uid := filter[models.MetaUserID]
	if uid == "" {
		return fmt.Errorf("refusing delete without a %s filter", models.MetaUserID)
	}
	// single statement, so the delete is all-or-nothing
	if _, err := s.db.NewDelete().Model((*pgChunk)(nil)).Where("user_id = ?", uid).Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

func (s *PostgresStore) Persist(ctx context.Context) error {
	return nil
}

func (s *PostgresStore) Tenants(ctx context.Context) ([]string, error) {
	var tenants []string
	err := s.db.NewSelect().
		Model((*pgChunk)(nil)).
		ColumnExpr("DISTINCT user_id").
		Scan(ctx, &tenants)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	return tenants, nil
}

func (s *PostgresStore) Materialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.materialized
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

var _ Store = (*PostgresStore)(nil)
