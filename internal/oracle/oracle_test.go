package oracle

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jumuia/creditlens/internal/apperrors"
	"github.com/jumuia/creditlens/internal/logger"
)

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"bare array", `[{"a":1}]`, `[{"a":1}]`},
		{"bare object", `{"transactions":[]}`, `{"transactions":[]}`},
		{"json fence", "```json\n[{\"a\":1}]\n```", `[{"a":1}]`},
		{"plain fence", "```\n[{\"a\":1}]\n```", `[{"a":1}]`},
		{"fenced object", "```json\n{\"transactions\":[]}\n```", `{"transactions":[]}`},
		{"leading prose", "Here are the transactions:\n[{\"a\":1}]", `[{"a":1}]`},
		{"prose around object", "Sure:\n{\"transactions\":[]}\nDone.", `{"transactions":[]}`},
		{"surrounding whitespace", "  \n[{\"a\":1}]\n  ", `[{"a":1}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanModelJSON(tt.raw); got != tt.want {
				t.Errorf("cleanModelJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTransformTransactions(t *testing.T) {
	items := []any{
		map[string]any{
			"date":          "2023-01-05",
			"description":   "SALARY PAYMENT",
			"amount":        45000.0,
			"balance_after": 95000.0,
			"type":          "income",
			"reference":     "SAL-2023-01",
		},
		map[string]any{
			"date":          "2023-01-10",
			"description":   "SEND MONEY TO +254723456789",
			"amount":        -1000.0,
			"balance_after": nil,
		},
	}

	txns, err := transformTransactions(items)
	if err != nil {
		t.Fatalf("transformTransactions() error: %v", err)
	}
	if len(txns) != 2 {
		t.Fatalf("got %d transactions, want 2", len(txns))
	}

	if txns[0].Amount.String() != "45000" {
		t.Errorf("amount = %s, want 45000", txns[0].Amount)
	}
	if txns[0].Type != "INCOME" {
		t.Errorf("type = %s, want INCOME (uppercased)", txns[0].Type)
	}
	if txns[0].Reference != "SAL-2023-01" {
		t.Errorf("reference = %q", txns[0].Reference)
	}
	if txns[0].BalanceAfter == nil || txns[0].BalanceAfter.String() != "95000" {
		t.Errorf("balance_after = %v, want 95000", txns[0].BalanceAfter)
	}
	if txns[1].BalanceAfter != nil {
		t.Error("null balance_after should stay nil")
	}
	if txns[1].Date.Format("2006-01-02") != "2023-01-10" {
		t.Errorf("date = %v", txns[1].Date)
	}
}

func TestTransformTransactions_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		items []any
	}{
		{"not an object", []any{"oops"}},
		{"missing date", []any{map[string]any{"description": "X", "amount": 1.0}}},
		{"bad date format", []any{map[string]any{"date": "05/01/2023", "description": "X", "amount": 1.0}}},
		{"missing amount", []any{map[string]any{"date": "2023-01-05", "description": "X"}}},
		{"amount as string", []any{map[string]any{"date": "2023-01-05", "description": "X", "amount": "45000"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := transformTransactions(tt.items); err == nil {
				t.Error("transformTransactions() = nil error, want failure")
			}
		})
	}
}

func TestParseModelReply_ObjectEnvelope(t *testing.T) {
	reply := `{
		"metadata": {
			"account_number": "0123456789",
			"account_name": "JOHN KAMAU",
			"provider": "EQUITY BANK",
			"currency": "KES",
			"period_start": "2023-01-01",
			"period_end": null
		},
		"transactions": [
			{"date": "2023-01-05", "description": "SALARY PAYMENT", "amount": 45000, "balance_after": null}
		]
	}`

	txns, meta, err := parseModelReply(reply)
	if err != nil {
		t.Fatalf("parseModelReply() error: %v", err)
	}
	if len(txns) != 1 || txns[0].Description != "SALARY PAYMENT" {
		t.Fatalf("transactions = %+v", txns)
	}
	if meta["account_number"] != "0123456789" || meta["provider"] != "EQUITY BANK" {
		t.Errorf("metadata = %+v", meta)
	}
	if _, ok := meta["period_end"]; ok {
		t.Error("null metadata values must be dropped")
	}
}

func TestParseModelReply_BareArrayAccepted(t *testing.T) {
	txns, meta, err := parseModelReply(`[{"date": "2023-01-05", "description": "X Y Z", "amount": 10}]`)
	if err != nil {
		t.Fatalf("parseModelReply() error: %v", err)
	}
	if len(txns) != 1 {
		t.Fatalf("got %d transactions, want 1", len(txns))
	}
	if meta != nil {
		t.Errorf("bare array carries no metadata, got %+v", meta)
	}
}

func TestParseModelReply_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"not json", "oops"},
		{"object without transactions", `{"metadata": {}}`},
		{"scalar", `42`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := parseModelReply(tt.reply); err == nil {
				t.Error("parseModelReply() = nil error, want failure")
			}
		})
	}
}

// flakyClient fails a fixed number of times before succeeding.
type flakyClient struct {
	failures int
	err      error
	calls    int
}

func (f *flakyClient) Submit(ctx context.Context, req Request) (*Result, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return &Result{ModelName: "fake"}, nil
}

func TestRetryingClient_EventualSuccess(t *testing.T) {
	inner := &flakyClient{failures: 2, err: errors.New("transient")}
	rc := NewRetryingClient(inner, 3, time.Millisecond, 10*time.Millisecond, logger.NewWithWriter(os.Stderr))

	result, err := rc.Submit(context.Background(), Request{DocumentID: "doc-1"})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if result.ModelName != "fake" {
		t.Errorf("unexpected result %+v", result)
	}
	if inner.calls != 3 {
		t.Errorf("calls = %d, want 3", inner.calls)
	}
}

func TestRetryingClient_ExhaustsAttempts(t *testing.T) {
	inner := &flakyClient{failures: 10, err: errors.New("transient")}
	rc := NewRetryingClient(inner, 3, time.Millisecond, 10*time.Millisecond, logger.NewWithWriter(os.Stderr))

	if _, err := rc.Submit(context.Background(), Request{}); err == nil {
		t.Fatal("Submit() = nil error after exhausting attempts")
	}
	if inner.calls != 3 {
		t.Errorf("calls = %d, want 3", inner.calls)
	}
}

func TestRetryingClient_MalformedIsPermanent(t *testing.T) {
	inner := &flakyClient{failures: 10, err: apperrors.New(apperrors.CodeOracleMalformed, "bad json")}
	rc := NewRetryingClient(inner, 3, time.Millisecond, 10*time.Millisecond, logger.NewWithWriter(os.Stderr))

	if _, err := rc.Submit(context.Background(), Request{}); err == nil {
		t.Fatal("Submit() = nil error")
	}
	if inner.calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on malformed response)", inner.calls)
	}
}

func TestClassifyModelError_RateLimit(t *testing.T) {
	err := classifyModelError(errors.New("googleapi: Error 429: RESOURCE_EXHAUSTED"))
	appErr, ok := apperrors.As(err)
	if !ok || appErr.Code != apperrors.CodeOracleRateLimited {
		t.Errorf("got %v, want %s", err, apperrors.CodeOracleRateLimited)
	}
}
