package chunker

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/jumuia/creditlens/internal/apperrors"
	"github.com/jumuia/creditlens/internal/domain"
	"github.com/jumuia/creditlens/internal/logger"
)

func txn(date, desc string, amount int64) domain.NormalizedTransaction {
	d, _ := time.Parse("2006-01-02", date)
	return domain.NormalizedTransaction{
		Date:        d,
		Description: desc,
		Amount:      decimal.NewFromInt(amount),
	}
}

func TestSplit_ShortTextSingleChunk(t *testing.T) {
	chunks := Split("short statement", 4000, 200)
	if len(chunks) != 1 || chunks[0] != "short statement" {
		t.Fatalf("Split() = %v, want single verbatim chunk", chunks)
	}
}

func TestSplit_CoversAllText(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 300; i++ {
		b.WriteString("05/01/2023 SALARY PAYMENT 45,000.00 line content\n")
	}
	text := b.String()

	chunks := Split(text, 1000, 100)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks for %d chars, got %d", len(text), len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 1000 {
			t.Errorf("chunk %d length %d exceeds window size", i, len(c))
		}
		if !strings.Contains(text, c) {
			t.Errorf("chunk %d is not a substring of the source", i)
		}
	}
	// Line-structured text should split on newlines, so every chunk ends
	// cleanly except possibly the last.
	for i, c := range chunks[:len(chunks)-1] {
		if !strings.HasSuffix(c, "\n") {
			t.Errorf("chunk %d should end on a newline boundary", i)
		}
	}
}

func TestSplit_FallsBackToSpaceBoundary(t *testing.T) {
	text := strings.Repeat("word ", 500) // no newlines, no periods
	chunks := Split(text, 400, 50)
	for i, c := range chunks[:len(chunks)-1] {
		if !strings.HasSuffix(c, " ") {
			t.Errorf("chunk %d should end on a space boundary, got %q", i, c[len(c)-10:])
		}
	}
}

func TestSplit_KeepsRuneBoundaries(t *testing.T) {
	// Multi-byte text with no newlines, periods or spaces forces hard cuts.
	text := strings.Repeat("émévé", 100)
	chunks := Split(text, 47, 13)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if !utf8.ValidString(c) {
			t.Errorf("chunk %d splits a rune: %q", i, c)
		}
	}
}

func TestMergeTransactions_DropsDuplicates(t *testing.T) {
	chunkA := []domain.NormalizedTransaction{
		txn("2023-01-05", "SALARY PAYMENT", 45000),
		txn("2023-01-10", "SEND MONEY", -1000),
	}
	// Overlap region re-extracted the send-money line.
	chunkB := []domain.NormalizedTransaction{
		txn("2023-01-10", "SEND MONEY", -1000),
		txn("2023-01-15", "PAYBILL KPLC", -2500),
	}

	merged := MergeTransactions(chunkA, chunkB)
	if len(merged) != 3 {
		t.Fatalf("merged %d transactions, want 3", len(merged))
	}

	count := 0
	for _, m := range merged {
		if m.DedupKey() == chunkA[1].DedupKey() {
			count++
		}
	}
	if count != 1 {
		t.Errorf("duplicate key appears %d times, want exactly 1", count)
	}
}

func TestMergeMetadata_LaterChunksWin(t *testing.T) {
	merged := MergeMetadata(
		map[string]any{"account_number": "0123", "provider": "EQUITY"},
		map[string]any{"account_number": "0123456789"},
	)
	if merged["account_number"] != "0123456789" {
		t.Errorf("account_number = %v, want later chunk's value", merged["account_number"])
	}
	if merged["provider"] != "EQUITY" {
		t.Errorf("provider = %v, want earlier chunk's value preserved", merged["provider"])
	}
}

func TestProcessor_SkipsFailedChunks(t *testing.T) {
	p := NewProcessor(100, 20, 0, logger.NewWithWriter(os.Stderr))
	text := strings.Repeat("statement line content here\n", 20)

	calls := 0
	result, err := p.Process(context.Background(), text, func(ctx context.Context, chunk string, index, total int) (*ChunkResult, error) {
		calls++
		if index == 1 {
			return nil, errors.New("oracle timeout")
		}
		return &ChunkResult{
			Transactions: []domain.NormalizedTransaction{txn("2023-01-05", chunk[:10], int64(index))},
		}, nil
	})
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if calls < 3 {
		t.Fatalf("expected at least 3 chunks, got %d calls", calls)
	}
	if len(result.Transactions) != calls-1 {
		t.Errorf("got %d transactions, want %d (one per successful chunk)", len(result.Transactions), calls-1)
	}
}

func TestProcessor_AllChunksFailed(t *testing.T) {
	p := NewProcessor(100, 20, 0, logger.NewWithWriter(os.Stderr))
	text := strings.Repeat("statement line content here\n", 20)

	_, err := p.Process(context.Background(), text, func(ctx context.Context, chunk string, index, total int) (*ChunkResult, error) {
		return nil, errors.New("oracle down")
	})
	if err == nil {
		t.Fatal("Process() = nil error when every chunk failed")
	}
	appErr, ok := apperrors.As(err)
	if !ok || appErr.Code != apperrors.CodeAllChunksFailed {
		t.Errorf("error = %v, want code %s", err, apperrors.CodeAllChunksFailed)
	}
}
