package validation

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jumuia/creditlens/internal/apperrors"
	"github.com/jumuia/creditlens/internal/domain"
	"github.com/jumuia/creditlens/internal/logger"
	"github.com/jumuia/creditlens/internal/parsers"
)

func newService(t *testing.T) *Service {
	t.Helper()
	s, err := New("0.01", 1024, apperrors.NewErrorLog(10), logger.NewWithWriter(os.Stderr))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func writeFile(t *testing.T, name string, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(strings.Repeat("x", size)), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func hasCode(errs []*apperrors.Error, code apperrors.Code) bool {
	for _, e := range errs {
		if e.Code == code {
			return true
		}
	}
	return false
}

func TestValidateDocument_SmallFileIsWarningOnly(t *testing.T) {
	s := newService(t)
	path := writeFile(t, "tiny.txt", 100) // < 1KB

	result := s.ValidateDocument(path, domain.DocTypeBankStatement)
	if !result.Valid() {
		t.Fatalf("undersized file must not be rejected, errors: %v", result.Errors)
	}
	if !hasCode(result.Warnings, apperrors.CodeSmallFileSize) {
		t.Errorf("want SMALL_FILE_SIZE warning, got %v", result.Warnings)
	}
}

func TestValidateDocument_Errors(t *testing.T) {
	s := newService(t)

	result := s.ValidateDocument("/nonexistent/statement.pdf", domain.DocTypeBankStatement)
	if !hasCode(result.Errors, apperrors.CodeFileNotFound) {
		t.Errorf("missing file: got %v", result.Errors)
	}

	badExt := writeFile(t, "statement.docx", 2048)
	result = s.ValidateDocument(badExt, domain.DocTypeBankStatement)
	if !hasCode(result.Errors, apperrors.CodeInvalidFileType) {
		t.Errorf("bad extension: got %v", result.Errors)
	}

	result = s.ValidateDocument(writeFile(t, "ok.txt", 2048), "UNKNOWN_TYPE")
	if result.Valid() {
		t.Error("unknown document type must fail")
	}
}

func validParseResult() *domain.ParseResult {
	opening, closing := dec("50000"), dec("94000")
	b1, b2 := dec("95000"), dec("94000")
	return &domain.ParseResult{
		Success: true,
		Transactions: []domain.NormalizedTransaction{
			{Date: time.Date(2023, 1, 5, 0, 0, 0, 0, time.UTC), Description: "SALARY PAYMENT",
				Amount: dec("45000"), BalanceAfter: &b1},
			{Date: time.Date(2023, 1, 10, 0, 0, 0, 0, time.UTC), Description: "SEND MONEY",
				Amount: dec("-1000"), BalanceAfter: &b2},
		},
		Metadata: domain.StatementMetadata{
			DocumentType:   domain.DocTypeBankStatement,
			AccountNumber:  "0123456789",
			OpeningBalance: &opening,
			ClosingBalance: &closing,
			Confidence:     0.9,
		},
	}
}

func TestValidateExtractedData_CleanPass(t *testing.T) {
	s := newService(t)
	result := s.ValidateExtractedData(validParseResult(), domain.DocTypeBankStatement)
	if !result.Valid() {
		t.Fatalf("clean data should validate, errors: %v", result.Errors)
	}
}

func TestValidateExtractedData_ReconciliationFailure(t *testing.T) {
	s := newService(t)
	parsed := validParseResult()
	bad := dec("90000") // off by 4000, far beyond tolerance
	parsed.Metadata.ClosingBalance = &bad

	result := s.ValidateExtractedData(parsed, domain.DocTypeBankStatement)
	if result.Valid() {
		t.Fatal("reconciliation failure beyond tolerance must be an error")
	}
	if !hasCode(result.Errors, apperrors.CodeValidationError) {
		t.Errorf("got %v", result.Errors)
	}
}

func TestValidateExtractedData_WithinTolerance(t *testing.T) {
	s := newService(t)
	parsed := validParseResult()
	nearly := dec("94000.01") // exactly at the one-cent tolerance
	parsed.Metadata.ClosingBalance = &nearly

	result := s.ValidateExtractedData(parsed, domain.DocTypeBankStatement)
	if !result.Valid() {
		t.Fatalf("one-cent difference is within tolerance, errors: %v", result.Errors)
	}
}

func TestValidateExtractedData_TransactionChecks(t *testing.T) {
	s := newService(t)
	parsed := validParseResult()
	parsed.Transactions = append(parsed.Transactions,
		domain.NormalizedTransaction{Description: "NO DATE", Amount: dec("10")},
		domain.NormalizedTransaction{Date: time.Now().AddDate(1, 0, 0), Description: "FUTURE", Amount: dec("10")},
		domain.NormalizedTransaction{Date: time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC), Description: "ZERO", Amount: decimal.Zero},
		domain.NormalizedTransaction{Date: time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC), Description: "x", Amount: dec("10")},
	)
	// Balances no longer reconcile; drop them so only per-transaction errors remain.
	parsed.Metadata.OpeningBalance = nil
	parsed.Metadata.ClosingBalance = nil

	result := s.ValidateExtractedData(parsed, domain.DocTypeBankStatement)
	if !hasCode(result.Errors, apperrors.CodeInvalidDate) {
		t.Error("want INVALID_DATE for missing and future dates")
	}
	if !hasCode(result.Errors, apperrors.CodeInvalidAmount) {
		t.Error("want INVALID_AMOUNT for zero amount")
	}
	if !hasCode(result.Errors, apperrors.CodeMissingTransactionField) {
		t.Error("want MISSING_TRANSACTION_FIELD for trivial description")
	}
}

func TestValidateExtractedData_MissingRequiredField(t *testing.T) {
	s := newService(t)
	parsed := validParseResult()
	parsed.Metadata.AccountNumber = ""

	result := s.ValidateExtractedData(parsed, domain.DocTypeBankStatement)
	if !hasCode(result.Errors, apperrors.CodeMissingRequiredField) {
		t.Errorf("got %v", result.Errors)
	}
}

func TestValidateExtractedData_TabularMissingAccountIsWarning(t *testing.T) {
	s := newService(t)
	parsed := validParseResult()
	parsed.Metadata.AccountNumber = ""
	parsed.Metadata.Source = "tabular"
	parsed.Metadata.Provider = "KCB"

	result := s.ValidateExtractedData(parsed, domain.DocTypeBankStatement)
	if !result.Valid() {
		t.Fatalf("tabular export without an account column must not be rejected, errors: %v", result.Errors)
	}
	if !hasCode(result.Warnings, apperrors.CodeMissingRequiredField) {
		t.Errorf("want MISSING_REQUIRED_FIELD warning, got %v", result.Warnings)
	}
}

func saccoParseResult(shareBalance string) *domain.ParseResult {
	balance := dec(shareBalance)
	return &domain.ParseResult{
		Success: true,
		Transactions: []domain.NormalizedTransaction{
			{Date: time.Date(2023, 1, 5, 0, 0, 0, 0, time.UTC), Description: "SHARE CONTRIBUTION",
				Amount: dec("2000"), Extra: map[string]any{"shares": true}},
			{Date: time.Date(2023, 2, 5, 0, 0, 0, 0, time.UTC), Description: "SHARE CONTRIBUTION",
				Amount: dec("2000"), Extra: map[string]any{"shares": true}},
			{Date: time.Date(2023, 2, 10, 0, 0, 0, 0, time.UTC), Description: "LOAN REPAYMENT",
				Amount: dec("-1500")},
		},
		Metadata: domain.StatementMetadata{
			DocumentType:  domain.DocTypeSaccoStatement,
			AccountNumber: "MEM-001",
			Confidence:    0.9,
			Extra: map[string]any{
				"membership": parsers.Membership{MemberNumber: "MEM-001", ShareBalance: &balance},
			},
		},
	}
}

func TestValidateExtractedData_ShareReconciliationFailure(t *testing.T) {
	s := newService(t)
	// Share transactions total 4000; the reported balance disagrees by 1000.
	result := s.ValidateExtractedData(saccoParseResult("5000"), domain.DocTypeSaccoStatement)
	if result.Valid() {
		t.Fatal("share reconciliation failure beyond tolerance must be an error")
	}
	if !hasCode(result.Errors, apperrors.CodeValidationError) {
		t.Errorf("got %v", result.Errors)
	}
}

func TestValidateExtractedData_ShareReconciliationWithinTolerance(t *testing.T) {
	s := newService(t)
	result := s.ValidateExtractedData(saccoParseResult("4000.01"), domain.DocTypeSaccoStatement)
	if !result.Valid() {
		t.Fatalf("one-cent share difference is within tolerance, errors: %v", result.Errors)
	}
}

func TestValidateExtractedData_Idempotent(t *testing.T) {
	s := newService(t)
	parsed := validParseResult()
	bad := dec("90000")
	parsed.Metadata.ClosingBalance = &bad

	first := s.ValidateExtractedData(parsed, domain.DocTypeBankStatement)
	second := s.ValidateExtractedData(parsed, domain.DocTypeBankStatement)

	if len(first.Errors) != len(second.Errors) || len(first.Warnings) != len(second.Warnings) {
		t.Fatalf("validation not idempotent: %d/%d vs %d/%d errors/warnings",
			len(first.Errors), len(first.Warnings), len(second.Errors), len(second.Warnings))
	}
	for i := range first.Errors {
		if first.Errors[i].Code != second.Errors[i].Code {
			t.Errorf("error %d: %s vs %s", i, first.Errors[i].Code, second.Errors[i].Code)
		}
	}
}

func TestHandleProcessingError(t *testing.T) {
	ring := apperrors.NewErrorLog(10)
	s, err := New("0.01", 1024, ring, logger.NewWithWriter(os.Stderr))
	if err != nil {
		t.Fatal(err)
	}

	appErr := s.HandleProcessingError(errors.New("open /x: no such file or directory"), "extraction", "doc-1")
	if appErr.Code != apperrors.CodeFileNotFound {
		t.Errorf("code = %s, want FILE_NOT_FOUND", appErr.Code)
	}
	if appErr.Stage != "extraction" || appErr.DocumentID != "doc-1" {
		t.Errorf("context not attached: %+v", appErr)
	}
	if ring.Len() != 1 {
		t.Errorf("ring len = %d, want 1", ring.Len())
	}
	entry := ring.Recent(1)[0]
	if entry.DocumentID != "doc-1" || entry.Stage != "extraction" {
		t.Errorf("ring entry = %+v", entry)
	}
	if entry.Timestamp.IsZero() {
		t.Error("ring entry must carry a timestamp")
	}
}
