package bigquery

import (
	"encoding/json"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/jumuia/creditlens/internal/domain"
	"github.com/jumuia/creditlens/internal/repository"
)

// DocumentRow represents a document record in BigQuery.
type DocumentRow struct {
	DocumentID   string `bigquery:"document_id"`
	CustomerID   string `bigquery:"customer_id"`
	DocumentType string `bigquery:"document_type"`

	URI       string `bigquery:"uri"`
	Filename  string `bigquery:"filename"`
	MimeType  string `bigquery:"mime_type"`
	SizeBytes int64  `bigquery:"size_bytes"`

	Status       string `bigquery:"status"`
	ErrorMessage string `bigquery:"error_message"`

	UploadedTS time.Time              `bigquery:"uploaded_ts"`
	StartedTS  bigquery.NullTimestamp `bigquery:"started_ts"`
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"`
}

func documentToRow(doc *domain.Document) *DocumentRow {
	row := &DocumentRow{
		DocumentID:   doc.ID,
		CustomerID:   doc.CustomerID,
		DocumentType: string(doc.Type),
		URI:          doc.URI,
		Filename:     doc.Filename,
		MimeType:     doc.MimeType,
		SizeBytes:    doc.SizeBytes,
		Status:       string(doc.Status),
		ErrorMessage: doc.Error,
		UploadedTS:   doc.UploadedAt,
	}
	row.StartedTS = nullTimestamp(doc.StartedAt)
	row.FinishedTS = nullTimestamp(doc.FinishedAt)
	return row
}

func rowToDocument(row *DocumentRow) *domain.Document {
	return &domain.Document{
		ID:         row.DocumentID,
		CustomerID: row.CustomerID,
		Type:       domain.DocumentType(row.DocumentType),
		URI:        row.URI,
		Filename:   row.Filename,
		MimeType:   row.MimeType,
		SizeBytes:  row.SizeBytes,
		Status:     domain.DocumentStatus(row.Status),
		Error:      row.ErrorMessage,
		UploadedAt: row.UploadedTS,
		StartedAt:  timestampPtr(row.StartedTS),
		FinishedAt: timestampPtr(row.FinishedTS),
	}
}

// TransactionRow represents a normalized transaction record in BigQuery.
// Amounts travel as NUMERIC via big.Rat.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"`
	CustomerID    string `bigquery:"customer_id"`
	DocumentID    string `bigquery:"document_id"`

	TransactionDate civil.Date `bigquery:"transaction_date"`
	Description     string     `bigquery:"description"`
	Amount          *big.Rat   `bigquery:"amount"`
	BalanceAfter    *big.Rat   `bigquery:"balance_after"`

	TransactionType string `bigquery:"transaction_type"`
	Category        string `bigquery:"category"`
	Subcategory     string `bigquery:"subcategory"`
	Reference       string `bigquery:"reference"`

	// ExtraJSON carries the open Extra map as serialized JSON.
	ExtraJSON string `bigquery:"extra_json"`

	StoredTS time.Time `bigquery:"stored_ts"`
}

func transactionToRow(st *repository.StoredTransaction) (*TransactionRow, error) {
	row := &TransactionRow{
		TransactionID:   st.ID,
		CustomerID:      st.CustomerID,
		DocumentID:      st.DocumentID,
		TransactionDate: civil.DateOf(st.Txn.Date),
		Description:     st.Txn.Description,
		Amount:          st.Txn.Amount.Rat(),
		TransactionType: string(st.Txn.Type),
		Category:        st.Txn.Category,
		Subcategory:     st.Txn.Subcategory,
		Reference:       st.Txn.Reference,
		StoredTS:        st.StoredAt,
	}
	if st.Txn.BalanceAfter != nil {
		row.BalanceAfter = st.Txn.BalanceAfter.Rat()
	}
	if len(st.Txn.Extra) > 0 {
		raw, err := json.Marshal(st.Txn.Extra)
		if err != nil {
			return nil, err
		}
		row.ExtraJSON = string(raw)
	}
	return row, nil
}

func rowToTransaction(row *TransactionRow) (repository.StoredTransaction, error) {
	txn := domain.NormalizedTransaction{
		Date:        row.TransactionDate.In(time.UTC),
		Description: row.Description,
		Type:        domain.TransactionType(row.TransactionType),
		Category:    row.Category,
		Subcategory: row.Subcategory,
		Reference:   row.Reference,
	}
	if row.Amount != nil {
		txn.Amount = decimal.NewFromBigRat(row.Amount, 2)
	}
	if row.BalanceAfter != nil {
		balance := decimal.NewFromBigRat(row.BalanceAfter, 2)
		txn.BalanceAfter = &balance
	}
	if row.ExtraJSON != "" {
		if err := json.Unmarshal([]byte(row.ExtraJSON), &txn.Extra); err != nil {
			return repository.StoredTransaction{}, err
		}
	}
	return repository.StoredTransaction{
		ID:         row.TransactionID,
		CustomerID: row.CustomerID,
		DocumentID: row.DocumentID,
		Txn:        txn,
		StoredAt:   row.StoredTS,
	}, nil
}

// FactorsRow represents the live per-customer factor record in BigQuery.
type FactorsRow struct {
	CustomerID             string    `bigquery:"customer_id"`
	PaymentHistory         float64   `bigquery:"payment_history"`
	MobileMoneyConsistency float64   `bigquery:"mobile_money_consistency"`
	CooperativeMembership  float64   `bigquery:"cooperative_membership"`
	IncomeStability        float64   `bigquery:"income_stability"`
	CommunityTrust         float64   `bigquery:"community_trust"`
	AssetOwnership         float64   `bigquery:"asset_ownership"`
	DigitalAdoption        float64   `bigquery:"digital_adoption"`
	UpdatedTS              time.Time `bigquery:"updated_ts"`
}

func factorsToRow(f *domain.CreditFactors) *FactorsRow {
	return &FactorsRow{
		CustomerID:             f.CustomerID,
		PaymentHistory:         f.PaymentHistory,
		MobileMoneyConsistency: f.MobileMoneyConsistency,
		CooperativeMembership:  f.CooperativeMembership,
		IncomeStability:        f.IncomeStability,
		CommunityTrust:         f.CommunityTrust,
		AssetOwnership:         f.AssetOwnership,
		DigitalAdoption:        f.DigitalAdoption,
		UpdatedTS:              f.UpdatedAt,
	}
}

func rowToFactors(row *FactorsRow) *domain.CreditFactors {
	return &domain.CreditFactors{
		CustomerID:             row.CustomerID,
		PaymentHistory:         row.PaymentHistory,
		MobileMoneyConsistency: row.MobileMoneyConsistency,
		CooperativeMembership:  row.CooperativeMembership,
		IncomeStability:        row.IncomeStability,
		CommunityTrust:         row.CommunityTrust,
		AssetOwnership:         row.AssetOwnership,
		DigitalAdoption:        row.DigitalAdoption,
		UpdatedAt:              row.UpdatedTS,
	}
}

// AssessmentRow represents one append-only scoring run in BigQuery. The
// factor sub-scores are denormalized into the row.
type AssessmentRow struct {
	AssessmentID string `bigquery:"assessment_id"`
	CustomerID   string `bigquery:"customer_id"`

	Score      int64  `bigquery:"score"`
	RiskLevel  string `bigquery:"risk_level"`
	Confidence int64  `bigquery:"confidence"`
	Method     string `bigquery:"method"`

	PaymentHistory         float64 `bigquery:"payment_history"`
	MobileMoneyConsistency float64 `bigquery:"mobile_money_consistency"`
	CooperativeMembership  float64 `bigquery:"cooperative_membership"`
	IncomeStability        float64 `bigquery:"income_stability"`
	CommunityTrust         float64 `bigquery:"community_trust"`
	AssetOwnership         float64 `bigquery:"asset_ownership"`
	DigitalAdoption        float64 `bigquery:"digital_adoption"`

	Recommendations []string `bigquery:"recommendations"`
	RiskIndicators  []string `bigquery:"risk_indicators"`

	CreatedTS time.Time `bigquery:"created_ts"`
}

func assessmentToRow(a *domain.CreditAssessment) *AssessmentRow {
	return &AssessmentRow{
		AssessmentID:           a.ID,
		CustomerID:             a.CustomerID,
		Score:                  int64(a.Score),
		RiskLevel:              string(a.RiskLevel),
		Confidence:             int64(a.Confidence),
		Method:                 a.Method,
		PaymentHistory:         a.Factors.PaymentHistory,
		MobileMoneyConsistency: a.Factors.MobileMoneyConsistency,
		CooperativeMembership:  a.Factors.CooperativeMembership,
		IncomeStability:        a.Factors.IncomeStability,
		CommunityTrust:         a.Factors.CommunityTrust,
		AssetOwnership:         a.Factors.AssetOwnership,
		DigitalAdoption:        a.Factors.DigitalAdoption,
		Recommendations:        a.Recommendations,
		RiskIndicators:         a.RiskIndicators,
		CreatedTS:              a.CreatedAt,
	}
}

func rowToAssessment(row *AssessmentRow) *domain.CreditAssessment {
	return &domain.CreditAssessment{
		ID:         row.AssessmentID,
		CustomerID: row.CustomerID,
		Score:      int(row.Score),
		RiskLevel:  domain.RiskLevel(row.RiskLevel),
		Confidence: int(row.Confidence),
		Factors: domain.CreditFactors{
			CustomerID:             row.CustomerID,
			PaymentHistory:         row.PaymentHistory,
			MobileMoneyConsistency: row.MobileMoneyConsistency,
			CooperativeMembership:  row.CooperativeMembership,
			IncomeStability:        row.IncomeStability,
			CommunityTrust:         row.CommunityTrust,
			AssetOwnership:         row.AssetOwnership,
			DigitalAdoption:        row.DigitalAdoption,
			UpdatedAt:              row.CreatedTS,
		},
		Recommendations: row.Recommendations,
		RiskIndicators:  row.RiskIndicators,
		Method:          row.Method,
		CreatedAt:       row.CreatedTS,
	}
}

// SupplementaryRow represents the alternative-data record in BigQuery.
type SupplementaryRow struct {
	CustomerID              string   `bigquery:"customer_id"`
	EmploymentMonths        int64    `bigquery:"employment_months"`
	CooperativeMemberMonths int64    `bigquery:"cooperative_member_months"`
	MonthlyContribution     *big.Rat `bigquery:"monthly_contribution"`
	ContributionsOnTime     int64    `bigquery:"contributions_on_time"`
	ContributionsExpected   int64    `bigquery:"contributions_expected"`
	ReferenceRatings        []int64  `bigquery:"reference_ratings"`
	GroupParticipations     int64    `bigquery:"group_participations"`
	OwnsProperty            bool     `bigquery:"owns_property"`
	OwnsVehicle             bool     `bigquery:"owns_vehicle"`
}

func supplementaryToRow(d *domain.SupplementaryData) *SupplementaryRow {
	ratings := make([]int64, len(d.ReferenceRatings))
	for i, r := range d.ReferenceRatings {
		ratings[i] = int64(r)
	}
	return &SupplementaryRow{
		CustomerID:              d.CustomerID,
		EmploymentMonths:        int64(d.EmploymentMonths),
		CooperativeMemberMonths: int64(d.CooperativeMemberMonths),
		MonthlyContribution:     d.MonthlyContribution.Rat(),
		ContributionsOnTime:     int64(d.ContributionsOnTime),
		ContributionsExpected:   int64(d.ContributionsExpected),
		ReferenceRatings:        ratings,
		GroupParticipations:     int64(d.GroupParticipations),
		OwnsProperty:            d.OwnsProperty,
		OwnsVehicle:             d.OwnsVehicle,
	}
}

func rowToSupplementary(row *SupplementaryRow) *domain.SupplementaryData {
	ratings := make([]int, len(row.ReferenceRatings))
	for i, r := range row.ReferenceRatings {
		ratings[i] = int(r)
	}
	data := &domain.SupplementaryData{
		CustomerID:              row.CustomerID,
		EmploymentMonths:        int(row.EmploymentMonths),
		CooperativeMemberMonths: int(row.CooperativeMemberMonths),
		ContributionsOnTime:     int(row.ContributionsOnTime),
		ContributionsExpected:   int(row.ContributionsExpected),
		ReferenceRatings:        ratings,
		GroupParticipations:     int(row.GroupParticipations),
		OwnsProperty:            row.OwnsProperty,
		OwnsVehicle:             row.OwnsVehicle,
	}
	if row.MonthlyContribution != nil {
		data.MonthlyContribution = decimal.NewFromBigRat(row.MonthlyContribution, 2)
	}
	return data
}

func nullTimestamp(t *time.Time) bigquery.NullTimestamp {
	if t == nil {
		return bigquery.NullTimestamp{}
	}
	return bigquery.NullTimestamp{Timestamp: *t, Valid: true}
}

func timestampPtr(ts bigquery.NullTimestamp) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Timestamp
	return &t
}
