package rag

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"form-rag/internal/chunker"
	"form-rag/internal/config"
	"form-rag/internal/helper"
	"form-rag/internal/models"
	"form-rag/internal/parser"
	"form-rag/internal/vectorstore"
)

// Embedder maps text to a fixed-length vector. Satisfied by
// langchaingo's embeddings.EmbedderImpl.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Generator maps a prompt to a text completion.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Engine ties chunking, embedding, the vector store and generation into
// the ingest/answer/clear operations. All calls for one tenant
// serialize around the store mutation and persist steps; different
// tenants never block each other.
type Engine struct {
	store     vectorstore.Store
	embedder  Embedder
	generator Generator
	registry  *Registry
	cfg       config.RAGConfig

	confidence func(retrieved int) float64

	locks sync.Map // user_id -> *sync.RWMutex
}

func NewEngine(ctx context.Context, store vectorstore.Store, embedder Embedder, generator Generator, cfg config.RAGConfig) (*Engine, error) {
	registry := NewRegistry()
	tenants, err := store.Tenants(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	registry.Seed(tenants)

	return &Engine{
		store:      store,
		embedder:   embedder,
		generator:  generator,
		registry:   registry,
		cfg:        cfg,
		confidence: confidenceFromRetrieved,
	}, nil
}

// confidenceFromRetrieved is the default confidence policy: 0.5 base
// plus 0.1 per corroborating chunk, capped at 1.0, and exactly 0.0 when
// retrieval came back empty.
func confidenceFromRetrieved(retrieved int) float64 {
	if retrieved == 0 {
		return 0.0
	}
	c := 0.5 + 0.1*float64(retrieved)
	if c > 1.0 {
		c = 1.0
	}
	return c
}

func (e *Engine) tenantLock(userID string) *sync.RWMutex {
	l, _ := e.locks.LoadOrStore(userID, &sync.RWMutex{})
	return l.(*sync.RWMutex)
}

func userFilter(userID string) map[string]string {
	return map[string]string{models.MetaUserID: userID}
}

// IngestText chunks, embeds and stores raw text under the user's
// namespace. Ingestion is strictly additive: re-ingesting the same text
// appends new chunks rather than replacing the old ones, so repeated
// uploads accumulate duplicates until the caller clears the namespace.
func (e *Engine) IngestText(ctx context.Context, text, userID string, metadata map[string]string) (int, error) {
	mu := e.tenantLock(userID)
	mu.Lock()
	defer mu.Unlock()
	return e.ingest(ctx, models.Document{Text: text, UserID: userID, Metadata: metadata})
}

// IngestFile parses the file at path with the loader matching its
// extension, then runs the same pipeline as IngestText. Unknown
// extensions fail with models.ErrUnsupportedFormat before any state is
// touched.
func (e *Engine) IngestFile(ctx context.Context, path, userID string) (int, error) {
	text, err := parser.Parse(path)
	if err != nil {
		return 0, err
	}

	mu := e.tenantLock(userID)
	mu.Lock()
	defer mu.Unlock()
	return e.ingest(ctx, models.Document{
		Text:     text,
		UserID:   userID,
		Metadata: map[string]string{"source": filepath.Base(path)},
	})
}

func (e *Engine) ingest(ctx context.Context, doc models.Document) (int, error) {
	fragments := chunker.Split(doc.Text, e.cfg.ChunkSize, e.cfg.ChunkOverlap)
	if len(fragments) == 0 {
		return 0, nil
	}

	// the tenant tag in metadata is reserved; the owner comes from the
	// authenticated UserID, never from caller-supplied metadata
	var meta map[string]string
	if len(doc.Metadata) > 0 {
		meta = make(map[string]string, len(doc.Metadata))
		for k, v := range doc.Metadata {
			if k == models.MetaUserID {
				continue
			}
			meta[k] = v
		}
	}

	chunks := make([]models.Chunk, len(fragments))
	for i, text := range fragments {
		id, err := helper.GenerateUUID()
		if err != nil {
			return 0, err
		}
		chunks[i] = models.Chunk{
			ID:       id,
			UserID:   doc.UserID,
			Text:     text,
			Metadata: meta,
		}
		vec, err := e.embedder.EmbedQuery(ctx, text)
		if err != nil {
			return 0, fmt.Errorf("failed to embed chunk: %w", err)
		}
		chunks[i].Embedding = vec
	}

	if err := e.store.Upsert(ctx, chunks); err != nil {
		return 0, err
	}
	e.registry.Mark(doc.UserID)
	if err := e.store.Persist(ctx); err != nil {
		return 0, err
	}

	log.Debug().Str("user_id", doc.UserID).Int("chunks", len(chunks)).Msg("Ingested document")
	return len(chunks), nil
}

// Answer retrieves the user's closest chunks and asks the generation
// model to answer strictly from them. The result always reports a
// confidence in [0,1]; low confidence degrades trust via a warning, it
// never withholds the answer. A nil threshold means the configured one;
// an explicit 0 disables the low-confidence warning entirely.
func (e *Engine) Answer(ctx context.Context, question, userID, formContext string, threshold *float64) (*models.QueryResult, error) {
	th := e.cfg.ConfidenceThreshold
	if th == 0 {
		th = models.DefaultConfidenceThreshold
	}
	if threshold != nil {
		th = *threshold
	}

	if !e.store.Materialized() {
		return warningResult(models.WarnNoData), nil
	}

	mu := e.tenantLock(userID)
	mu.RLock()
	defer mu.RUnlock()

	filter := userFilter(userID)
	count, err := e.store.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	// never ask for more chunks than the tenant has, and never more
	// than 5; the floor of 1 keeps an empty namespace on the normal
	// path (the filtered query just comes back empty)
	k := count
	if k < 1 {
		k = 1
	}
	if k > 5 {
		k = 5
	}

	vec, err := e.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	retrieved, err := e.store.Query(ctx, vec, k, filter)
	if err != nil {
		return nil, err
	}

	answer, err := e.generator.Generate(ctx, buildPrompt(retrieved, question, formContext))
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}
	answer = strings.TrimSpace(answer)

	if strings.Contains(answer, models.InsufficientDataToken) {
		return warningResult(models.WarnInsufficient), nil
	}

	confidence := e.confidence(len(retrieved))
	result := &models.QueryResult{Answer: &answer, Confidence: confidence}
	if confidence < th {
		warning := models.WarnLowConfidence
		result.Warning = &warning
	}
	return result, nil
}

func buildPrompt(retrieved []models.Chunk, question, formContext string) string {
	texts := make([]string, len(retrieved))
	for i, c := range retrieved {
		texts[i] = c.Text
	}
	return fmt.Sprintf(models.FormPromptTemplate,
		strings.Join(texts, models.ContextSeparator), question, formContext)
}

func warningResult(warning string) *models.QueryResult {
	return &models.QueryResult{Answer: nil, Confidence: 0.0, Warning: &warning}
}

// Clear removes every chunk the user owns. Failures are reported as a
// false return with the cause logged, never propagated; clearing an
// empty or unknown namespace succeeds.
func (e *Engine) Clear(ctx context.Context, userID string) bool {
	mu := e.tenantLock(userID)
	mu.Lock()
	defer mu.Unlock()

	if err := e.store.Delete(ctx, userFilter(userID)); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to clear user data")
		return false
	}
	e.registry.Remove(userID)
	if err := e.store.Persist(ctx); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to persist after clear")
		return false
	}
	return true
}

// HasData reports whether the user's namespace is known to hold chunks.
// Cached; the store remains the source of truth.
func (e *Engine) HasData(userID string) bool {
	return e.registry.Has(userID)
}
