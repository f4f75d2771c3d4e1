package models

// Chunk is a bounded-size fragment of a user's source text together with
// its tenant-tagged metadata and embedding vector.
type Chunk struct {
	ID        string
	UserID    string
	Text      string
	Metadata  map[string]string
	Embedding []float32
}

// Document is the transient input to ingestion. It is never persisted as
// such; it exists only to produce chunks.
type Document struct {
	Text     string
	UserID   string
	Metadata map[string]string
}

// QueryResult is the outcome of answering a single form question.
// Answer is nil when the user's data cannot support one.
type QueryResult struct {
	Answer     *string `json:"answer"`
	Confidence float64 `json:"confidence"`
	Warning    *string `json:"warning"`
}
