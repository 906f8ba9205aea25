package bigquery

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jumuia/creditlens/internal/domain"
	"github.com/jumuia/creditlens/internal/repository"
)

func TestTransactionRowRoundTrip(t *testing.T) {
	balance := decimal.RequireFromString("94000.50")
	st := repository.StoredTransaction{
		ID:         "txn-1",
		CustomerID: "cust-1",
		DocumentID: "doc-1",
		Txn: domain.NormalizedTransaction{
			Date:         time.Date(2023, 1, 5, 0, 0, 0, 0, time.UTC),
			Description:  "SALARY PAYMENT",
			Amount:       decimal.RequireFromString("45000.25"),
			BalanceAfter: &balance,
			Type:         domain.TxnIncome,
			Category:     "INCOME",
			Subcategory:  "SALARY",
			Reference:    "REF-9",
			Extra:        map[string]any{"mpesa_category": "send"},
		},
		StoredAt: time.Now(),
	}

	row, err := transactionToRow(&st)
	if err != nil {
		t.Fatal(err)
	}
	back, err := rowToTransaction(row)
	if err != nil {
		t.Fatal(err)
	}

	if !back.Txn.Amount.Equal(st.Txn.Amount) {
		t.Errorf("amount = %s, want %s", back.Txn.Amount, st.Txn.Amount)
	}
	if back.Txn.BalanceAfter == nil || !back.Txn.BalanceAfter.Equal(balance) {
		t.Errorf("balance = %v, want %s", back.Txn.BalanceAfter, balance)
	}
	if !back.Txn.Date.Equal(st.Txn.Date) {
		t.Errorf("date = %s, want %s", back.Txn.Date, st.Txn.Date)
	}
	if back.Txn.Extra["mpesa_category"] != "send" {
		t.Errorf("extra lost in round trip: %v", back.Txn.Extra)
	}
	if back.Txn.Category != "INCOME" || back.Txn.Subcategory != "SALARY" {
		t.Errorf("categorization lost: %s/%s", back.Txn.Category, back.Txn.Subcategory)
	}
}

func TestDocumentRowNullTimestamps(t *testing.T) {
	doc := &domain.Document{
		ID:         "doc-1",
		CustomerID: "cust-1",
		Type:       domain.DocTypeBankStatement,
		Status:     domain.DocStatusPending,
		UploadedAt: time.Now(),
	}

	row := documentToRow(doc)
	if row.StartedTS.Valid || row.FinishedTS.Valid {
		t.Error("pending document must carry null started/finished timestamps")
	}

	back := rowToDocument(row)
	if back.StartedAt != nil || back.FinishedAt != nil {
		t.Error("null timestamps must map back to nil pointers")
	}

	started := time.Now()
	doc.StartedAt = &started
	row = documentToRow(doc)
	if !row.StartedTS.Valid {
		t.Error("set StartedAt must produce a valid timestamp")
	}
}
