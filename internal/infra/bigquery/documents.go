package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/jumuia/creditlens/internal/domain"
	"github.com/jumuia/creditlens/internal/repository"
)

type documentsRepo struct {
	s *Store
}

func (r *documentsRepo) Save(ctx context.Context, doc *domain.Document) error {
	if err := r.s.inserter(documentsTable).Put(ctx, documentToRow(doc)); err != nil {
		return fmt.Errorf("insert document %s: %w", doc.ID, err)
	}
	return nil
}

func (r *documentsRepo) FindByID(ctx context.Context, id string) (*domain.Document, error) {
	q := r.s.client.Query(fmt.Sprintf(`
		SELECT *
		FROM %s
		WHERE document_id = @id
		LIMIT 1
	`, r.s.table(documentsTable)))
	q.Parameters = []bigquery.QueryParameter{{Name: "id", Value: id}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("find document %s: %w", id, err)
	}

	var row DocumentRow
	if err := it.Next(&row); err == iterator.Done {
		return nil, repository.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("find document %s: %w", id, err)
	}
	return rowToDocument(&row), nil
}

func (r *documentsRepo) FindByCustomer(ctx context.Context, customerID string) ([]*domain.Document, error) {
	q := r.s.client.Query(fmt.Sprintf(`
		SELECT *
		FROM %s
		WHERE customer_id = @customer_id
		ORDER BY uploaded_ts
	`, r.s.table(documentsTable)))
	q.Parameters = []bigquery.QueryParameter{{Name: "customer_id", Value: customerID}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("find documents for %s: %w", customerID, err)
	}

	var docs []*domain.Document
	for {
		var row DocumentRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("find documents for %s: %w", customerID, err)
		}
		docs = append(docs, rowToDocument(&row))
	}
	return docs, nil
}

func (r *documentsRepo) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMsg string) error {
	now := time.Now()
	q := r.s.client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    error_message = @error_message,
		    started_ts = IF(@status = 'PROCESSING', @now, started_ts),
		    finished_ts = IF(@status IN ('COMPLETED', 'FAILED'), @now, finished_ts)
		WHERE document_id = @id
	`, r.s.table(documentsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: string(status)},
		{Name: "error_message", Value: errMsg},
		{Name: "now", Value: now},
		{Name: "id", Value: id},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("update document %s: %w", id, err)
	}
	st, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("update document %s: %w", id, err)
	}
	if st.Err() != nil {
		return fmt.Errorf("update document %s: %w", id, st.Err())
	}
	return nil
}

func (r *documentsRepo) CountByStatus(ctx context.Context) (map[domain.DocumentStatus]int, error) {
	q := r.s.client.Query(fmt.Sprintf(`
		SELECT status, COUNT(*) AS n
		FROM %s
		GROUP BY status
	`, r.s.table(documentsTable)))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("count documents by status: %w", err)
	}

	counts := make(map[domain.DocumentStatus]int)
	for {
		var row struct {
			Status string `bigquery:"status"`
			N      int64  `bigquery:"n"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("count documents by status: %w", err)
		}
		counts[domain.DocumentStatus(row.Status)] = int(row.N)
	}
	return counts, nil
}
