// Package parsers implements the format-specific statement parsers for bank,
// mobile money, cooperative (SACCO) and tabular CSV exports.
package parsers

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/jumuia/creditlens/internal/domain"
)

// Options tunes a single parse call.
type Options struct {
	// EnhanceImage preprocesses scanned images before OCR.
	EnhanceImage bool
	// Language is the OCR language hint, defaulting to English.
	Language string
	// ExtractionMethod forces a specific text extraction method.
	ExtractionMethod string
}

// StatementParser is the common contract every format parser satisfies.
type StatementParser interface {
	// Name identifies the parser in logs and provenance metadata.
	Name() string
	// CanHandle reports whether this parser takes (extension, document type).
	CanHandle(ext string, docType domain.DocumentType) bool
	// Parse produces a terminal ParseResult: a usable transaction list with
	// confidence, or a tagged failure. Never both.
	Parse(ctx context.Context, path string, opts Options) domain.ParseResult
	// ValidateDocument cheaply checks the file looks parseable.
	ValidateDocument(ctx context.Context, path string) bool
	// ExtractMetadata pulls header metadata without a full parse.
	ExtractMetadata(ctx context.Context, path string) (map[string]any, error)
}

// Registry selects a parser by extension and document type. Registration
// order matters: the first parser that can handle a document wins.
type Registry struct {
	parsers []StatementParser
}

func NewRegistry(parsers ...StatementParser) *Registry {
	return &Registry{parsers: parsers}
}

func (r *Registry) Register(p StatementParser) {
	r.parsers = append(r.parsers, p)
}

// ForDocument returns the parser for the given file and document type, or
// false when no registered parser can handle it.
func (r *Registry) ForDocument(path string, docType domain.DocumentType) (StatementParser, bool) {
	ext := NormalizeExt(path)
	for _, p := range r.parsers {
		if p.CanHandle(ext, docType) {
			return p, true
		}
	}
	return nil, false
}

// Parsers returns the registered parsers in selection order.
func (r *Registry) Parsers() []StatementParser {
	return r.parsers
}

// NormalizeExt lowercases the extension of path without the leading dot.
func NormalizeExt(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}
