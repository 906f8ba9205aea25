// Package oracle is the text-understanding layer: it sends statement text to
// a generative model and normalizes the strict-JSON reply into transactions.
package oracle

import (
	"context"
	"time"

	"github.com/jumuia/creditlens/internal/domain"
)

// Request is one chunk of statement text to understand.
type Request struct {
	Text         string
	DocumentType domain.DocumentType
	CustomerID   string
	DocumentID   string
	ChunkIndex   int // zero-based
	TotalChunks  int
}

// Result is the structured reply for one request.
type Result struct {
	Transactions []domain.NormalizedTransaction
	Metadata     map[string]any
	ModelName    string
	Elapsed      time.Duration
}

// Client submits statement text for structured extraction.
type Client interface {
	Submit(ctx context.Context, req Request) (*Result, error)
}
