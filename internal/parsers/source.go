package parsers

import (
	"context"
	"time"

	"github.com/jumuia/creditlens/internal/domain"
	"github.com/jumuia/creditlens/internal/extract"
)

// sourceText pulls the document text through the extraction layer. Plain text
// files bypass OCR routing.
func sourceText(ctx context.Context, e *extract.Extractor, path string, docType domain.DocumentType, opts Options) (string, float64, error) {
	extractOpts := extract.Options{
		Method:       extract.Method(opts.ExtractionMethod),
		EnhanceImage: opts.EnhanceImage,
		Language:     opts.Language,
	}
	if extractOpts.Method == "" {
		switch NormalizeExt(path) {
		case "txt", "text", "csv":
			extractOpts.Method = extract.MethodText
		}
	}
	data, err := e.Extract(ctx, path, docType, extractOpts)
	if err != nil {
		return "", 0, err
	}
	return data.Text, data.Metadata.Confidence, nil
}

// failResult wraps a structured error into a terminal ParseResult.
func failResult(err error) domain.ParseResult {
	return domain.ParseResult{Success: false, Err: err}
}

// metadataMap flattens statement metadata for the ExtractMetadata contract.
func metadataMap(meta domain.StatementMetadata) map[string]any {
	m := make(map[string]any)
	if meta.AccountNumber != "" {
		m["account_number"] = meta.AccountNumber
	}
	if meta.AccountName != "" {
		m["account_name"] = meta.AccountName
	}
	if meta.Provider != "" {
		m["provider"] = meta.Provider
	}
	if !meta.PeriodStart.IsZero() {
		m["period_start"] = meta.PeriodStart.Format(time.DateOnly)
	}
	if !meta.PeriodEnd.IsZero() {
		m["period_end"] = meta.PeriodEnd.Format(time.DateOnly)
	}
	if meta.OpeningBalance != nil {
		m["opening_balance"] = meta.OpeningBalance.String()
	}
	if meta.ClosingBalance != nil {
		m["closing_balance"] = meta.ClosingBalance.String()
	}
	for k, v := range meta.Extra {
		m[k] = v
	}
	return m
}
