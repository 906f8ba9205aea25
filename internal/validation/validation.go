// Package validation enforces the per-document-type rule table before and
// after parsing, and classifies runtime failures into the fixed taxonomy.
package validation

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jumuia/creditlens/internal/apperrors"
	"github.com/jumuia/creditlens/internal/domain"
	"github.com/jumuia/creditlens/internal/parsers"
)

// typeRules is the per-document-type validation rule table.
type typeRules struct {
	extensions     map[string]bool
	maxSizeBytes   int64
	minTxnCount    int
	requiredFields []string // StatementMetadata fields that must be present
}

var rulesByType = map[domain.DocumentType]typeRules{
	domain.DocTypeBankStatement: {
		extensions:     set("pdf", "txt", "text", "csv", "png", "jpg", "jpeg", "tif", "tiff"),
		maxSizeBytes:   10 * 1024 * 1024,
		minTxnCount:    1,
		requiredFields: []string{"account_number"},
	},
	domain.DocTypeMpesaStatement: {
		extensions:     set("pdf", "txt", "text", "csv", "png", "jpg", "jpeg"),
		maxSizeBytes:   10 * 1024 * 1024,
		minTxnCount:    1,
		requiredFields: []string{"account_number"}, // owner phone number
	},
	domain.DocTypeSaccoStatement: {
		extensions:     set("pdf", "txt", "text", "png", "jpg", "jpeg"),
		maxSizeBytes:   10 * 1024 * 1024,
		minTxnCount:    0, // a membership-only statement is still useful
		requiredFields: []string{"account_number"}, // member number
	},
}

func set(items ...string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, s := range items {
		m[s] = true
	}
	return m
}

// Result is the outcome of a validation pass: errors block processing,
// warnings never do.
type Result struct {
	Errors   []*apperrors.Error `json:"errors,omitempty"`
	Warnings []*apperrors.Error `json:"warnings,omitempty"`
}

// Valid reports whether the pass produced no blocking errors.
func (r *Result) Valid() bool { return len(r.Errors) == 0 }

// futureDateSlack caps how far in the future a transaction date may sit
// before it is considered nonsensical.
const futureDateSlack = 24 * time.Hour

// Service runs document and data validation with the configured tolerance.
type Service struct {
	tolerance      decimal.Decimal
	smallFileBytes int64
	errorLog       *apperrors.ErrorLog
	log            zerolog.Logger
}

// New creates the validation service. tolerance is the balance reconciliation
// tolerance as a decimal string, conventionally one cent.
func New(tolerance string, smallFileBytes int64, errorLog *apperrors.ErrorLog, log zerolog.Logger) (*Service, error) {
	tol, err := decimal.NewFromString(tolerance)
	if err != nil {
		return nil, fmt.Errorf("invalid reconcile tolerance %q: %w", tolerance, err)
	}
	if smallFileBytes <= 0 {
		smallFileBytes = 1024
	}
	return &Service{
		tolerance:      tol,
		smallFileBytes: smallFileBytes,
		errorLog:       errorLog,
		log:            log.With().Str("component", "validation").Logger(),
	}, nil
}

// ValidateDocument checks existence, extension and size against the rule
// table. Errors are fatal for the document; an undersized file is only a
// warning.
func (s *Service) ValidateDocument(path string, docType domain.DocumentType) Result {
	var result Result

	rules, ok := rulesByType[docType]
	if !ok {
		result.Errors = append(result.Errors,
			apperrors.New(apperrors.CodeValidationError, "unsupported document type %q", docType))
		return result
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsPermission(err) {
			result.Errors = append(result.Errors,
				apperrors.Wrap(err, apperrors.CodePermissionDenied, "cannot access %s", path))
		} else {
			result.Errors = append(result.Errors,
				apperrors.Wrap(err, apperrors.CodeFileNotFound, "file %s not found", path))
		}
		return result
	}

	if ext := parsers.NormalizeExt(path); !rules.extensions[ext] {
		result.Errors = append(result.Errors,
			apperrors.New(apperrors.CodeInvalidFileType, "extension %q not accepted for %s", ext, docType))
	}
	if info.Size() > rules.maxSizeBytes {
		result.Errors = append(result.Errors,
			apperrors.New(apperrors.CodeFileTooLarge, "file is %d bytes, limit %d", info.Size(), rules.maxSizeBytes))
	}
	if info.Size() < s.smallFileBytes {
		result.Warnings = append(result.Warnings,
			apperrors.New(apperrors.CodeSmallFileSize, "file is only %d bytes", info.Size()))
	}
	return result
}

// ValidateExtractedData checks required metadata fields, every transaction
// individually, and runs the type-specific reconciliation.
func (s *Service) ValidateExtractedData(parsed *domain.ParseResult, docType domain.DocumentType) Result {
	var result Result

	rules, ok := rulesByType[docType]
	if !ok {
		result.Errors = append(result.Errors,
			apperrors.New(apperrors.CodeValidationError, "unsupported document type %q", docType))
		return result
	}

	for _, field := range rules.requiredFields {
		if metadataFieldPresent(parsed.Metadata, field) {
			continue
		}
		// CSV exports carry no header block; when the layout also lacks a
		// matching column the absence is structural, not a parse gap.
		if parsed.Metadata.Source == "tabular" {
			result.Warnings = append(result.Warnings,
				apperrors.New(apperrors.CodeMissingRequiredField,
					"metadata field %q missing from tabular export", field))
			continue
		}
		result.Errors = append(result.Errors,
			apperrors.New(apperrors.CodeMissingRequiredField, "metadata field %q missing", field))
	}

	if len(parsed.Transactions) < rules.minTxnCount {
		result.Errors = append(result.Errors,
			apperrors.New(apperrors.CodeValidationError,
				"%d transactions, type requires at least %d", len(parsed.Transactions), rules.minTxnCount))
	}

	cutoff := time.Now().Add(futureDateSlack)
	for i := range parsed.Transactions {
		s.validateTransaction(&parsed.Transactions[i], i, cutoff, &result)
	}

	switch docType {
	case domain.DocTypeBankStatement:
		s.reconcileBalances(parsed, &result)
	case domain.DocTypeSaccoStatement:
		s.reconcileShares(parsed, &result)
	}

	if parsed.Metadata.Confidence > 0 && parsed.Metadata.Confidence < 0.5 {
		result.Warnings = append(result.Warnings,
			apperrors.New(apperrors.CodeValidationError,
				"low parsing confidence %.2f", parsed.Metadata.Confidence))
	}
	return result
}

func (s *Service) validateTransaction(txn *domain.NormalizedTransaction, idx int, futureCutoff time.Time, result *Result) {
	if txn.Date.IsZero() {
		result.Errors = append(result.Errors,
			apperrors.New(apperrors.CodeInvalidDate, "transaction %d has no date", idx))
	} else if txn.Date.After(futureCutoff) {
		result.Errors = append(result.Errors,
			apperrors.New(apperrors.CodeInvalidDate,
				"transaction %d dated %s is in the future", idx, txn.Date.Format(time.DateOnly)))
	}
	if txn.Amount.IsZero() {
		result.Errors = append(result.Errors,
			apperrors.New(apperrors.CodeInvalidAmount, "transaction %d has zero amount", idx))
	}
	if len(strings.TrimSpace(txn.Description)) < 3 {
		result.Errors = append(result.Errors,
			apperrors.New(apperrors.CodeMissingTransactionField,
				"transaction %d has no usable description", idx))
	}
}

// reconcileBalances checks closing = opening + net of transactions within the
// configured tolerance. Skipped when either balance is absent.
func (s *Service) reconcileBalances(parsed *domain.ParseResult, result *Result) {
	meta := parsed.Metadata
	if meta.OpeningBalance == nil || meta.ClosingBalance == nil {
		result.Warnings = append(result.Warnings,
			apperrors.New(apperrors.CodeValidationError, "balances missing, reconciliation skipped"))
		return
	}

	net := decimal.Zero
	for i := range parsed.Transactions {
		net = net.Add(parsed.Transactions[i].Amount)
	}
	expected := meta.OpeningBalance.Add(net)
	diff := meta.ClosingBalance.Sub(expected).Abs()
	if diff.GreaterThan(s.tolerance) {
		result.Errors = append(result.Errors,
			apperrors.New(apperrors.CodeValidationError,
				"balance reconciliation failed: closing %s, expected %s (diff %s)",
				meta.ClosingBalance, expected, diff))
	}
}

// reconcileShares checks the reported share balance equals the sum of share
// transactions within the tolerance. Skipped when the statement carries no
// share balance or no share transactions.
func (s *Service) reconcileShares(parsed *domain.ParseResult, result *Result) {
	membership, ok := parsed.Metadata.Extra["membership"].(parsers.Membership)
	if !ok || membership.ShareBalance == nil {
		return
	}

	shareTotal := decimal.Zero
	sawShareTxn := false
	for i := range parsed.Transactions {
		txn := &parsed.Transactions[i]
		if txn.Extra["shares"] != true {
			continue
		}
		sawShareTxn = true
		shareTotal = shareTotal.Add(txn.Amount)
	}
	if !sawShareTxn {
		return
	}

	diff := membership.ShareBalance.Sub(shareTotal).Abs()
	if diff.GreaterThan(s.tolerance) {
		result.Errors = append(result.Errors,
			apperrors.New(apperrors.CodeValidationError,
				"share reconciliation failed: balance %s, share transactions total %s (diff %s)",
				membership.ShareBalance, shareTotal, diff))
	}
}

func metadataFieldPresent(meta domain.StatementMetadata, field string) bool {
	switch field {
	case "account_number":
		return meta.AccountNumber != ""
	case "account_name":
		return meta.AccountName != ""
	case "provider":
		return meta.Provider != ""
	case "period":
		return !meta.PeriodStart.IsZero() && !meta.PeriodEnd.IsZero()
	default:
		_, ok := meta.Extra[field]
		return ok
	}
}

// HandleProcessingError classifies a runtime error, records it in the bounded
// ring buffer with its processing context, and returns the structured error.
func (s *Service) HandleProcessingError(err error, stage, documentID string) *apperrors.Error {
	appErr := apperrors.Classify(err)
	if appErr == nil {
		return nil
	}
	if appErr.Stage == "" {
		appErr.WithStage(stage)
	}
	if appErr.DocumentID == "" {
		appErr.WithDocument(documentID)
	}

	if s.errorLog != nil {
		s.errorLog.Append(appErr)
	}
	s.log.Error().
		Str("code", string(appErr.Code)).
		Str("stage", appErr.Stage).
		Str("document_id", appErr.DocumentID).
		Msg(appErr.Message)

	return appErr
}
