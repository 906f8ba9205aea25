package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/jumuia/creditlens/internal/domain"
	"github.com/jumuia/creditlens/internal/repository"
)

type transactionsRepo struct {
	s *Store
}

func (r *transactionsRepo) SaveBatch(ctx context.Context, customerID, documentID string, txns []domain.NormalizedTransaction) error {
	if len(txns) == 0 {
		return nil
	}

	now := time.Now()
	rows := make([]*TransactionRow, 0, len(txns))
	for i := range txns {
		st := repository.StoredTransaction{
			ID:         uuid.NewString(),
			CustomerID: customerID,
			DocumentID: documentID,
			Txn:        txns[i],
			StoredAt:   now,
		}
		row, err := transactionToRow(&st)
		if err != nil {
			return fmt.Errorf("encode transaction %d for document %s: %w", i, documentID, err)
		}
		rows = append(rows, row)
	}

	if err := r.s.inserter(transactionsTable).Put(ctx, rows); err != nil {
		return fmt.Errorf("insert %d transactions for document %s: %w", len(rows), documentID, err)
	}
	return nil
}

func (r *transactionsRepo) FindByCustomer(ctx context.Context, customerID string) ([]repository.StoredTransaction, error) {
	return r.query(ctx, "customer_id", customerID)
}

func (r *transactionsRepo) FindByDocument(ctx context.Context, documentID string) ([]repository.StoredTransaction, error) {
	return r.query(ctx, "document_id", documentID)
}

func (r *transactionsRepo) query(ctx context.Context, column, value string) ([]repository.StoredTransaction, error) {
	q := r.s.client.Query(fmt.Sprintf(`
		SELECT *
		FROM %s
		WHERE %s = @value
		ORDER BY transaction_date, stored_ts
	`, r.s.table(transactionsTable), column))
	q.Parameters = []bigquery.QueryParameter{{Name: "value", Value: value}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query transactions by %s: %w", column, err)
	}

	var out []repository.StoredTransaction
	for {
		var row TransactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("query transactions by %s: %w", column, err)
		}
		st, err := rowToTransaction(&row)
		if err != nil {
			return nil, fmt.Errorf("decode transaction %s: %w", row.TransactionID, err)
		}
		out = append(out, st)
	}
	return out, nil
}

func (r *transactionsRepo) UpdateCategorization(ctx context.Context, updates []repository.StoredTransaction) error {
	for i := range updates {
		st := &updates[i]

		extraJSON := ""
		if len(st.Txn.Extra) > 0 {
			row, err := transactionToRow(st)
			if err != nil {
				return fmt.Errorf("encode categorization for %s: %w", st.ID, err)
			}
			extraJSON = row.ExtraJSON
		}

		q := r.s.client.Query(fmt.Sprintf(`
			UPDATE %s
			SET category = @category,
			    subcategory = @subcategory,
			    extra_json = @extra_json
			WHERE transaction_id = @id
		`, r.s.table(transactionsTable)))
		q.Parameters = []bigquery.QueryParameter{
			{Name: "category", Value: st.Txn.Category},
			{Name: "subcategory", Value: st.Txn.Subcategory},
			{Name: "extra_json", Value: extraJSON},
			{Name: "id", Value: st.ID},
		}

		job, err := q.Run(ctx)
		if err != nil {
			return fmt.Errorf("update categorization for %s: %w", st.ID, err)
		}
		status, err := job.Wait(ctx)
		if err != nil {
			return fmt.Errorf("update categorization for %s: %w", st.ID, err)
		}
		if status.Err() != nil {
			return fmt.Errorf("update categorization for %s: %w", st.ID, status.Err())
		}
	}
	return nil
}

func (r *transactionsRepo) CountByCustomer(ctx context.Context, customerID string) (int, error) {
	q := r.s.client.Query(fmt.Sprintf(`
		SELECT COUNT(*) AS n
		FROM %s
		WHERE customer_id = @customer_id
	`, r.s.table(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{{Name: "customer_id", Value: customerID}}

	it, err := q.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("count transactions for %s: %w", customerID, err)
	}

	var row struct {
		N int64 `bigquery:"n"`
	}
	if err := it.Next(&row); err != nil && err != iterator.Done {
		return 0, fmt.Errorf("count transactions for %s: %w", customerID, err)
	}
	return int(row.N), nil
}
