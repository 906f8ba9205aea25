package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the closed enumeration of normalized transaction kinds.
type TransactionType string

const (
	TxnIncome     TransactionType = "INCOME"
	TxnExpense    TransactionType = "EXPENSE"
	TxnTransfer   TransactionType = "TRANSFER"
	TxnPayment    TransactionType = "PAYMENT"
	TxnWithdrawal TransactionType = "WITHDRAWAL"
	TxnDeposit    TransactionType = "DEPOSIT"
)

// NormalizedTransaction is one statement line in canonical form. Core fields
// are closed and validated; Extra carries source-specific values (receipt
// codes, counterpart phone numbers, share counts) without loosening the core.
type NormalizedTransaction struct {
	Date         time.Time        `json:"date"`
	Description  string           `json:"description"`
	Amount       decimal.Decimal  `json:"amount"` // signed, two-decimal currency units
	BalanceAfter *decimal.Decimal `json:"balance_after,omitempty"`
	Type         TransactionType  `json:"type"`
	Category     string           `json:"category"`
	Subcategory  string           `json:"subcategory,omitempty"`
	Reference    string           `json:"reference,omitempty"`
	Extra        map[string]any   `json:"extra,omitempty"`
}

// Validate enforces the core invariants: a real calendar date, a non-empty
// description. Amount is a decimal and therefore always finite.
func (t *NormalizedTransaction) Validate() error {
	if t.Date.IsZero() {
		return fmt.Errorf("transaction has no date")
	}
	if strings.TrimSpace(t.Description) == "" {
		return fmt.Errorf("transaction has no description")
	}
	return nil
}

// SetExtra records a source-specific field, allocating the map on first use.
func (t *NormalizedTransaction) SetExtra(key string, value any) {
	if t.Extra == nil {
		t.Extra = make(map[string]any)
	}
	t.Extra[key] = value
}

// DedupKey is the composite identity used when merging oracle chunks:
// (date, amount, description).
func (t *NormalizedTransaction) DedupKey() string {
	return t.Date.Format("2006-01-02") + "|" + t.Amount.String() + "|" + strings.TrimSpace(t.Description)
}

// StatementMetadata is the per-document summary derived by the parser that
// handled it.
type StatementMetadata struct {
	DocumentType   DocumentType     `json:"document_type"`
	Source         string           `json:"source,omitempty"` // name of the parser that produced it
	AccountNumber  string           `json:"account_number,omitempty"`
	AccountName    string           `json:"account_name,omitempty"`
	Provider       string           `json:"provider,omitempty"`
	PeriodStart    time.Time        `json:"period_start,omitempty"`
	PeriodEnd      time.Time        `json:"period_end,omitempty"`
	OpeningBalance *decimal.Decimal `json:"opening_balance,omitempty"`
	ClosingBalance *decimal.Decimal `json:"closing_balance,omitempty"`
	TotalCredits   decimal.Decimal  `json:"total_credits"`
	TotalDebits    decimal.Decimal  `json:"total_debits"`
	Currency       string           `json:"currency,omitempty"`
	Confidence     float64          `json:"confidence"` // [0,1]
	ProcessingTime time.Duration    `json:"processing_time"`
	Extra          map[string]any   `json:"extra,omitempty"`
}

// ParseResult is the terminal output of any format parser: either a usable
// transaction list with a confidence score, or a tagged failure. Never both.
type ParseResult struct {
	Success      bool                    `json:"success"`
	Transactions []NormalizedTransaction `json:"transactions,omitempty"`
	Metadata     StatementMetadata       `json:"metadata"`
	Err          error                   `json:"-"`
}

// CategorizationResult is the outcome of running the rule engine over one
// transaction description.
type CategorizationResult struct {
	Category    string  `json:"category"`
	Subcategory string  `json:"subcategory,omitempty"`
	Confidence  float64 `json:"confidence"` // [0,1]
	RuleName    string  `json:"rule_name,omitempty"`
	Pattern     string  `json:"pattern,omitempty"`
}
