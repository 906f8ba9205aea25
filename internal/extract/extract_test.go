package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jumuia/creditlens/internal/domain"
	"github.com/jumuia/creditlens/internal/logger"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const sampleStatement = `EQUITY BANK KENYA
Account Number: 0123456789
Account Name: JOHN KAMAU
Statement Period: 01/01/2023 to 31/01/2023

05/01/2023 SALARY PAYMENT 45,000.00 95,000.00
10/01/2023 SEND MONEY TO +254723456789 -1,000.00 94,000.00
`

func TestExtract_PlainText(t *testing.T) {
	path := writeTempFile(t, "statement.txt", sampleStatement)
	e := New(logger.NewWithWriter(os.Stderr))

	data, err := e.Extract(context.Background(), path, domain.DocTypeBankStatement, Options{Method: MethodText})
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if data.Text != sampleStatement {
		t.Error("Extract() should return file content verbatim for plain text")
	}
	if data.Metadata.Method != MethodText {
		t.Errorf("Method = %s, want %s", data.Metadata.Method, MethodText)
	}
	if data.Metadata.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want 1.0", data.Metadata.Confidence)
	}
}

func TestExtract_MissingFile(t *testing.T) {
	e := New(logger.NewWithWriter(os.Stderr))
	_, err := e.Extract(context.Background(), "/nonexistent/file.txt", domain.DocTypeBankStatement, Options{})
	if err == nil {
		t.Fatal("Extract() = nil error for missing file")
	}
}

func TestExtractBatch_FailureIsolation(t *testing.T) {
	good := writeTempFile(t, "good.txt", sampleStatement)
	e := New(logger.NewWithWriter(os.Stderr))

	results := e.ExtractBatch(context.Background(),
		[]string{good, "/nonexistent/bad.txt"},
		domain.DocTypeBankStatement, Options{Method: MethodText})

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Error != "" || results[0].Text == "" {
		t.Errorf("good item should succeed, got error %q", results[0].Error)
	}
	if results[1].Error == "" {
		t.Error("bad item should carry an embedded error")
	}
	if results[1].Text != "" {
		t.Error("failed item should have empty text")
	}
}

func TestExtractEntities(t *testing.T) {
	entities := extractEntities(sampleStatement, 0.9)

	byType := make(map[string][]string)
	for _, e := range entities {
		byType[e.Type] = append(byType[e.Type], e.Value)
		if e.Confidence != 0.9 {
			t.Errorf("entity %v confidence = %v, want recognizer confidence 0.9", e.Value, e.Confidence)
		}
	}

	if len(byType["date"]) == 0 {
		t.Error("expected date entities")
	}
	foundDate := false
	for _, d := range byType["date"] {
		if d == "05/01/2023" {
			foundDate = true
		}
	}
	if !foundDate {
		t.Errorf("expected date 05/01/2023 in %v", byType["date"])
	}

	foundAmount := false
	for _, a := range byType["amount"] {
		if a == "45,000.00" {
			foundAmount = true
		}
	}
	if !foundAmount {
		t.Errorf("expected amount 45,000.00 in %v", byType["amount"])
	}

	if len(byType["phone"]) != 1 || byType["phone"][0] != "+254723456789" {
		t.Errorf("phone entities = %v, want [+254723456789]", byType["phone"])
	}
}

func TestExtractKeyValuePairs(t *testing.T) {
	kv := extractKeyValuePairs(sampleStatement)

	if kv["account_number"] != "0123456789" {
		t.Errorf("account_number = %q, want 0123456789", kv["account_number"])
	}
	if kv["account_name"] != "JOHN KAMAU" {
		t.Errorf("account_name = %q, want JOHN KAMAU", kv["account_name"])
	}
	if kv["statement_period"] != "01/01/2023 to 31/01/2023" {
		t.Errorf("statement_period = %q", kv["statement_period"])
	}
}

func TestTextQuality(t *testing.T) {
	if q := textQuality([]string{"Normal bank statement text 123.45"}); q < 0.9 {
		t.Errorf("clean text quality = %v, want >= 0.9", q)
	}
	if q := textQuality([]string{"\x00\x01\x02�����"}); q > 0.5 {
		t.Errorf("garbage quality = %v, want <= 0.5", q)
	}
	if q := textQuality(nil); q != 0 {
		t.Errorf("empty quality = %v, want 0", q)
	}
}
