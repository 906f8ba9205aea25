package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/jumuia/creditlens/internal/domain"
	"github.com/jumuia/creditlens/internal/repository"
)

type factorsRepo struct {
	s *Store
}

// Upsert keeps at most one live factor record per customer via MERGE.
func (r *factorsRepo) Upsert(ctx context.Context, factors *domain.CreditFactors) error {
	row := factorsToRow(factors)

	q := r.s.client.Query(fmt.Sprintf(`
		MERGE %s T
		USING (SELECT @customer_id AS customer_id) S
		ON T.customer_id = S.customer_id
		WHEN MATCHED THEN UPDATE SET
			payment_history = @payment_history,
			mobile_money_consistency = @mobile_money_consistency,
			cooperative_membership = @cooperative_membership,
			income_stability = @income_stability,
			community_trust = @community_trust,
			asset_ownership = @asset_ownership,
			digital_adoption = @digital_adoption,
			updated_ts = @updated_ts
		WHEN NOT MATCHED THEN INSERT (
			customer_id, payment_history, mobile_money_consistency,
			cooperative_membership, income_stability, community_trust,
			asset_ownership, digital_adoption, updated_ts
		) VALUES (
			@customer_id, @payment_history, @mobile_money_consistency,
			@cooperative_membership, @income_stability, @community_trust,
			@asset_ownership, @digital_adoption, @updated_ts
		)
	`, r.s.table(factorsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "customer_id", Value: row.CustomerID},
		{Name: "payment_history", Value: row.PaymentHistory},
		{Name: "mobile_money_consistency", Value: row.MobileMoneyConsistency},
		{Name: "cooperative_membership", Value: row.CooperativeMembership},
		{Name: "income_stability", Value: row.IncomeStability},
		{Name: "community_trust", Value: row.CommunityTrust},
		{Name: "asset_ownership", Value: row.AssetOwnership},
		{Name: "digital_adoption", Value: row.DigitalAdoption},
		{Name: "updated_ts", Value: row.UpdatedTS},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("upsert factors for %s: %w", factors.CustomerID, err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("upsert factors for %s: %w", factors.CustomerID, err)
	}
	if status.Err() != nil {
		return fmt.Errorf("upsert factors for %s: %w", factors.CustomerID, status.Err())
	}
	return nil
}

func (r *factorsRepo) FindByCustomer(ctx context.Context, customerID string) (*domain.CreditFactors, error) {
	q := r.s.client.Query(fmt.Sprintf(`
		SELECT *
		FROM %s
		WHERE customer_id = @customer_id
		LIMIT 1
	`, r.s.table(factorsTable)))
	q.Parameters = []bigquery.QueryParameter{{Name: "customer_id", Value: customerID}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("find factors for %s: %w", customerID, err)
	}

	var row FactorsRow
	if err := it.Next(&row); err == iterator.Done {
		return nil, repository.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("find factors for %s: %w", customerID, err)
	}
	return rowToFactors(&row), nil
}

type assessmentsRepo struct {
	s *Store
}

func (r *assessmentsRepo) Append(ctx context.Context, assessment *domain.CreditAssessment) error {
	if err := r.s.inserter(assessmentsTable).Put(ctx, assessmentToRow(assessment)); err != nil {
		return fmt.Errorf("insert assessment %s: %w", assessment.ID, err)
	}
	return nil
}

func (r *assessmentsRepo) FindByCustomer(ctx context.Context, customerID string) ([]*domain.CreditAssessment, error) {
	q := r.s.client.Query(fmt.Sprintf(`
		SELECT *
		FROM %s
		WHERE customer_id = @customer_id
		ORDER BY created_ts
	`, r.s.table(assessmentsTable)))
	q.Parameters = []bigquery.QueryParameter{{Name: "customer_id", Value: customerID}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("find assessments for %s: %w", customerID, err)
	}

	var out []*domain.CreditAssessment
	for {
		var row AssessmentRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("find assessments for %s: %w", customerID, err)
		}
		out = append(out, rowToAssessment(&row))
	}
	return out, nil
}

func (r *assessmentsRepo) Latest(ctx context.Context, customerID string) (*domain.CreditAssessment, error) {
	q := r.s.client.Query(fmt.Sprintf(`
		SELECT *
		FROM %s
		WHERE customer_id = @customer_id
		ORDER BY created_ts DESC
		LIMIT 1
	`, r.s.table(assessmentsTable)))
	q.Parameters = []bigquery.QueryParameter{{Name: "customer_id", Value: customerID}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest assessment for %s: %w", customerID, err)
	}

	var row AssessmentRow
	if err := it.Next(&row); err == iterator.Done {
		return nil, repository.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("latest assessment for %s: %w", customerID, err)
	}
	return rowToAssessment(&row), nil
}

func (r *assessmentsRepo) CountByRiskLevel(ctx context.Context) (map[domain.RiskLevel]int, error) {
	q := r.s.client.Query(fmt.Sprintf(`
		SELECT risk_level, COUNT(*) AS n
		FROM %s
		GROUP BY risk_level
	`, r.s.table(assessmentsTable)))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("count assessments by risk level: %w", err)
	}

	counts := make(map[domain.RiskLevel]int)
	for {
		var row struct {
			RiskLevel string `bigquery:"risk_level"`
			N         int64  `bigquery:"n"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("count assessments by risk level: %w", err)
		}
		counts[domain.RiskLevel(row.RiskLevel)] = int(row.N)
	}
	return counts, nil
}

func (r *assessmentsRepo) AverageScore(ctx context.Context) (float64, error) {
	q := r.s.client.Query(fmt.Sprintf(`
		SELECT IFNULL(AVG(score), 0) AS avg_score
		FROM %s
	`, r.s.table(assessmentsTable)))

	it, err := q.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("average assessment score: %w", err)
	}

	var row struct {
		AvgScore float64 `bigquery:"avg_score"`
	}
	if err := it.Next(&row); err != nil && err != iterator.Done {
		return 0, fmt.Errorf("average assessment score: %w", err)
	}
	return row.AvgScore, nil
}

type supplementaryRepo struct {
	s *Store
}

// Upsert replaces the per-customer supplementary record. DELETE plus insert
// keeps the MERGE surface small for a rarely written table.
func (r *supplementaryRepo) Upsert(ctx context.Context, data *domain.SupplementaryData) error {
	q := r.s.client.Query(fmt.Sprintf(`
		DELETE FROM %s WHERE customer_id = @customer_id
	`, r.s.table(supplementaryTable)))
	q.Parameters = []bigquery.QueryParameter{{Name: "customer_id", Value: data.CustomerID}}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("upsert supplementary for %s: %w", data.CustomerID, err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("upsert supplementary for %s: %w", data.CustomerID, err)
	}
	if status.Err() != nil {
		return fmt.Errorf("upsert supplementary for %s: %w", data.CustomerID, status.Err())
	}

	if err := r.s.inserter(supplementaryTable).Put(ctx, supplementaryToRow(data)); err != nil {
		return fmt.Errorf("upsert supplementary for %s: %w", data.CustomerID, err)
	}
	return nil
}

func (r *supplementaryRepo) FindByCustomer(ctx context.Context, customerID string) (*domain.SupplementaryData, error) {
	q := r.s.client.Query(fmt.Sprintf(`
		SELECT *
		FROM %s
		WHERE customer_id = @customer_id
		LIMIT 1
	`, r.s.table(supplementaryTable)))
	q.Parameters = []bigquery.QueryParameter{{Name: "customer_id", Value: customerID}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("find supplementary for %s: %w", customerID, err)
	}

	var row SupplementaryRow
	if err := it.Next(&row); err == iterator.Done {
		return nil, repository.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("find supplementary for %s: %w", customerID, err)
	}
	return rowToSupplementary(&row), nil
}
