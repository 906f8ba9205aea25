// Package extract turns raw statement files (PDF, image, plain text) into
// text plus optional structured key-value pairs and typed entities.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jumuia/creditlens/internal/domain"
)

// Method identifies how text was pulled out of a file.
type Method string

const (
	MethodPDFText  Method = "pdf_text"
	MethodImageOCR Method = "image_ocr"
	MethodOCR      Method = "ocr"
	MethodText     Method = "plain_text"
)

// Options tunes a single extraction call. Method overrides routing when set.
type Options struct {
	Method       Method
	EnhanceImage bool
	Language     string
}

// Metadata describes how an extraction went.
type Metadata struct {
	Confidence     float64       `json:"confidence"` // [0,1]
	Method         Method        `json:"method"`
	ProcessingTime time.Duration `json:"processing_time"`
}

// Entity is a typed value recognized in the extracted text.
type Entity struct {
	Type       string  `json:"type"` // "date", "amount", "phone"
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// ExtractedData is the result of extracting one file. For batch extraction a
// per-item failure yields empty text with Error set instead of aborting the
// batch.
type ExtractedData struct {
	Text           string            `json:"text"`
	Metadata       Metadata          `json:"metadata"`
	StructuredData map[string]string `json:"structured_data,omitempty"`
	Entities       []Entity          `json:"entities,omitempty"`
	Error          string            `json:"error,omitempty"`
}

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".tif": true, ".tiff": true, ".bmp": true,
}

// Extractor routes files to the right recognition method and runs entity
// extraction over the result.
type Extractor struct {
	log zerolog.Logger
}

// New creates an Extractor.
func New(log zerolog.Logger) *Extractor {
	return &Extractor{log: log.With().Str("component", "extract").Logger()}
}

// Extract pulls text out of the file at path. Image extensions route to the
// image recognizer, .pdf to PDF text extraction, and everything else to the
// generic OCR path unless opts.Method overrides.
func (e *Extractor) Extract(ctx context.Context, path string, docType domain.DocumentType, opts Options) (*ExtractedData, error) {
	start := time.Now()

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("extract %s: %w", path, err)
	}

	method := opts.Method
	if method == "" {
		ext := strings.ToLower(filepath.Ext(path))
		switch {
		case imageExtensions[ext]:
			method = MethodImageOCR
		case ext == ".pdf":
			method = MethodPDFText
		default:
			method = MethodOCR
		}
	}

	var (
		text       string
		confidence float64
		err        error
	)
	switch method {
	case MethodPDFText:
		text, confidence, err = extractPDFText(path)
	case MethodImageOCR:
		text, confidence, err = e.extractImageText(ctx, path, opts)
	case MethodText:
		text, confidence, err = readPlainText(path)
	default:
		text, confidence, err = runTesseract(ctx, path, opts.Language)
	}
	if err != nil {
		return nil, fmt.Errorf("extract %s via %s: %w", filepath.Base(path), method, err)
	}

	data := &ExtractedData{
		Text: text,
		Metadata: Metadata{
			Confidence:     confidence,
			Method:         method,
			ProcessingTime: time.Since(start),
		},
		StructuredData: extractKeyValuePairs(text),
		Entities:       extractEntities(text, confidence),
	}

	e.log.Debug().
		Str("path", filepath.Base(path)).
		Str("method", string(method)).
		Float64("confidence", confidence).
		Int("text_len", len(text)).
		Msg("extraction finished")

	return data, nil
}

// ExtractBatch processes files independently and concurrently. A single
// file's failure produces an empty-text result with Error set; it never
// aborts the other items.
func (e *Extractor) ExtractBatch(ctx context.Context, paths []string, docType domain.DocumentType, opts Options) []*ExtractedData {
	results := make([]*ExtractedData, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, path := range paths {
		g.Go(func() error {
			data, err := e.Extract(gctx, path, docType, opts)
			if err != nil {
				e.log.Warn().Err(err).Str("path", path).Msg("batch item failed")
				results[i] = &ExtractedData{Error: err.Error()}
				return nil
			}
			results[i] = data
			return nil
		})
	}
	_ = g.Wait() // item errors are captured per slot, never returned

	return results
}

// readPlainText loads a text file directly, for statements that arrive as
// exported text or CSV.
func readPlainText(path string) (string, float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", 0, err
	}
	return string(data), 1.0, nil
}
