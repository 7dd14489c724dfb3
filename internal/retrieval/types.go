package retrieval

import (
	"errors"
	"fmt"
	"time"

	"twin_corpus/internal/corpus"
)

var (
	ErrIndexNotReady = errors.New("retrieval index not built")
	ErrInvalidK      = errors.New("k must be >= 1")
)

// EmbeddingTimeoutError reports that the query could not be embedded within
// the configured timeout.
type EmbeddingTimeoutError struct {
	Timeout time.Duration
	Err     error
}

func (e *EmbeddingTimeoutError) Error() string {
	return fmt.Sprintf("query embedding timed out after %s: %v", e.Timeout, e.Err)
}

func (e *EmbeddingTimeoutError) Unwrap() error { return e.Err }

type Metadata struct {
	ThreadID  string       `json:"thread_id"`
	Timestamp time.Time    `json:"timestamp"`
	Split     corpus.Split `json:"split"`
	// Prompt is the context the exemplar reply answered.
	Prompt string `json:"prompt"`
}

// Entry is one indexed exemplar: a training response and its vector.
type Entry struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
	Metadata  Metadata  `json:"metadata"`
}

type Result struct {
	Entry Entry   `json:"entry"`
	Score float64 `json:"score"`
}
