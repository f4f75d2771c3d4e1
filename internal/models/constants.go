package models

import "errors"

const (
	// MetaUserID is the metadata key carrying the owning tenant. It is
	// the sole isolation mechanism; every stored chunk must have it.
	MetaUserID = "user_id"

	// InsufficientDataToken is the sentinel the generation model emits
	// when the retrieved context does not support an answer.
	InsufficientDataToken = "INSUFFICIENT_DATA"

	ContextSeparator = "\n\n"

	DefaultChunkSize           = 500
	DefaultChunkOverlap        = 50
	DefaultConfidenceThreshold = 0.7

	WarnNoData        = "No data has been processed yet."
	WarnInsufficient  = "Insufficient information to answer this question."
	WarnLowConfidence = "Low confidence in this answer. Please verify."
)

var (
	// ErrUnsupportedFormat is returned for file extensions the loader
	// dispatch does not recognize, before any core state is touched.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrMissingUserID is returned when a chunk reaches the store
	// without an owning tenant.
	ErrMissingUserID = errors.New("chunk has no user_id")
)

var (
	FormPromptTemplate = `You are a helpful AI assistant that fills out forms based on user data.
Answer the form question using ONLY the provided context. If the context doesn't contain
the necessary information, DO NOT make up an answer. Instead, respond with "INSUFFICIENT_DATA".

Be concise and direct in your answers. Format appropriately for the form context.

Context:
%s

Question: %s

Form Context: %s

Your Answer:`
)
