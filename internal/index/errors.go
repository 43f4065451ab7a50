package index

import "errors"

// Sentinel errors for index construction and search. Use errors.Is to check them;
// returned errors wrap these with the offending token, shape, row or dimension.
var (
	ErrInvalidDistance     = errors.New("index: invalid distance")
	ErrInvalidEmbedding    = errors.New("index: invalid embedding matrix")
	ErrDegenerateEmbedding = errors.New("index: degenerate embedding")
	ErrDimensionMismatch   = errors.New("index: query dimension mismatch")
	ErrInvalidK            = errors.New("index: invalid k")
	ErrInvalidQuery        = errors.New("index: invalid query")
	ErrUnknownBackend      = errors.New("index: unknown backend")
	ErrFAISSUnavailable    = errors.New("index: FAISS not available (build with -tags=faiss and install libfaiss_c)")
)
