// Package chunker splits oversized statement text into overlapping windows
// for the text-understanding oracle and merges the per-chunk results back
// together.
package chunker

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/jumuia/creditlens/internal/apperrors"
	"github.com/jumuia/creditlens/internal/domain"
)

// Default window geometry; overridable through config.ChunkingConfig.
const (
	DefaultChunkSize    = 4000
	DefaultChunkOverlap = 200
)

// ChunkResult is what one oracle call over one chunk yields.
type ChunkResult struct {
	Transactions []domain.NormalizedTransaction
	Metadata     map[string]any
}

// SubmitFunc sends a single chunk to the oracle. index is zero-based.
type SubmitFunc func(ctx context.Context, chunk string, index, total int) (*ChunkResult, error)

// Split cuts text into sequential windows of at most size characters with the
// given overlap. The split point inside the overlap region prefers the last
// newline, then the last sentence-ending period or space, else the hard
// boundary.
func Split(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
	}
	if len(text) <= size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			chunks = append(chunks, text[start:])
			break
		}
		window := text[start:end]
		cut := boundaryCut(window, overlap)
		// A hard cut can land inside a multi-byte rune; back up to its start.
		for cut > 0 && start+cut < len(text) && !utf8.RuneStart(text[start+cut]) {
			cut--
		}
		if cut == 0 {
			// Window narrower than one rune; take the whole rune anyway.
			_, cut = utf8.DecodeRuneInString(text[start:])
		}
		chunks = append(chunks, text[start:start+cut])

		next := start + cut - overlap
		if next <= start {
			// Overlap would stall the walk; advance past the cut instead.
			next = start + cut
		}
		// The overlap step-back must not start the next chunk mid-rune.
		for next < len(text) && !utf8.RuneStart(text[next]) {
			next++
		}
		start = next
	}
	return chunks
}

// boundaryCut picks the split offset within the window's trailing overlap
// region.
func boundaryCut(window string, overlap int) int {
	if overlap <= 0 || overlap >= len(window) {
		return len(window)
	}
	region := window[len(window)-overlap:]
	base := len(window) - overlap

	if idx := strings.LastIndex(region, "\n"); idx >= 0 {
		return base + idx + 1
	}
	if idx := strings.LastIndex(region, ". "); idx >= 0 {
		return base + idx + 1
	}
	if idx := strings.LastIndex(region, " "); idx >= 0 {
		return base + idx + 1
	}
	return len(window)
}

// MergeTransactions concatenates chunk transaction lists and drops later
// duplicates sharing the composite (date, amount, description) key.
func MergeTransactions(lists ...[]domain.NormalizedTransaction) []domain.NormalizedTransaction {
	var merged []domain.NormalizedTransaction
	seen := make(map[string]bool)
	for _, list := range lists {
		for _, txn := range list {
			key := txn.DedupKey()
			if seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, txn)
		}
	}
	return merged
}

// MergeMetadata shallow-merges chunk metadata maps; later chunks overwrite
// earlier keys on conflict.
func MergeMetadata(maps ...map[string]any) map[string]any {
	merged := make(map[string]any)
	for _, m := range maps {
		for k, v := range m {
			merged[k] = v
		}
	}
	if len(merged) == 0 {
		return nil
	}
	return merged
}

// Processor drives chunked submission with inter-chunk pacing.
type Processor struct {
	chunkSize   int
	overlap     int
	pacingDelay time.Duration
	log         zerolog.Logger
}

// NewProcessor creates a Processor. Zero values fall back to the defaults.
func NewProcessor(chunkSize, overlap int, pacingDelay time.Duration, log zerolog.Logger) *Processor {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap <= 0 {
		overlap = DefaultChunkOverlap
	}
	return &Processor{
		chunkSize:   chunkSize,
		overlap:     overlap,
		pacingDelay: pacingDelay,
		log:         log.With().Str("component", "chunker").Logger(),
	}
}

// NeedsChunking reports whether text exceeds the single-pass threshold.
func (p *Processor) NeedsChunking(text string) bool {
	return len(text) > p.chunkSize
}

// Process splits text, submits each chunk sequentially with pacing, and
// merges whatever chunks succeeded. A failed chunk is logged and skipped; if
// every chunk fails the document fails with ALL_CHUNKS_FAILED.
func (p *Processor) Process(ctx context.Context, text string, submit SubmitFunc) (*ChunkResult, error) {
	chunks := Split(text, p.chunkSize, p.overlap)
	total := len(chunks)

	var (
		txnLists  [][]domain.NormalizedTransaction
		metaMaps  []map[string]any
		succeeded int
		lastErr   error
	)

	for i, chunk := range chunks {
		if i > 0 && p.pacingDelay > 0 {
			select {
			case <-time.After(p.pacingDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, err := submit(ctx, chunk, i, total)
		if err != nil {
			lastErr = err
			p.log.Warn().Err(err).Int("chunk", i).Int("total", total).Msg("chunk failed, skipping")
			continue
		}
		succeeded++
		txnLists = append(txnLists, result.Transactions)
		if result.Metadata != nil {
			metaMaps = append(metaMaps, result.Metadata)
		}
	}

	if succeeded == 0 {
		return nil, apperrors.Wrap(lastErr, apperrors.CodeAllChunksFailed,
			"all %d chunks failed", total).WithStage("chunking")
	}

	p.log.Info().Int("chunks", total).Int("succeeded", succeeded).Msg("chunked processing merged")

	return &ChunkResult{
		Transactions: MergeTransactions(txnLists...),
		Metadata:     MergeMetadata(metaMaps...),
	}, nil
}
