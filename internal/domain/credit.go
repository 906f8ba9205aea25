package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RiskLevel buckets a composite credit score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskVeryHigh RiskLevel = "VERY_HIGH"
)

// CreditFactors is the live per-customer factor record: seven sub-scores in
// [1,100], at most one record per customer, updated in place on each scoring
// run.
type CreditFactors struct {
	CustomerID             string    `json:"customer_id"`
	PaymentHistory         float64   `json:"payment_history"`
	MobileMoneyConsistency float64   `json:"mobile_money_consistency"`
	CooperativeMembership  float64   `json:"cooperative_membership"`
	IncomeStability        float64   `json:"income_stability"`
	CommunityTrust         float64   `json:"community_trust"`
	AssetOwnership         float64   `json:"asset_ownership"`
	DigitalAdoption        float64   `json:"digital_adoption"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// SupplementaryData holds the alternative-data inputs collected outside of
// statement parsing: employment, cooperative membership, community references
// and asset declarations.
type SupplementaryData struct {
	CustomerID              string          `json:"customer_id"`
	EmploymentMonths        int             `json:"employment_months"`
	CooperativeMemberMonths int             `json:"cooperative_member_months"`
	MonthlyContribution     decimal.Decimal `json:"monthly_contribution"`
	ContributionsOnTime     int             `json:"contributions_on_time"`
	ContributionsExpected   int             `json:"contributions_expected"`
	ReferenceRatings        []int           `json:"reference_ratings"` // 1..5 each
	GroupParticipations     int             `json:"group_participations"`
	OwnsProperty            bool            `json:"owns_property"`
	OwnsVehicle             bool            `json:"owns_vehicle"`
}

// CreditAssessment is one append-only scoring run: a point-in-time record,
// never mutated after creation.
type CreditAssessment struct {
	ID              string        `json:"assessment_id"`
	CustomerID      string        `json:"customer_id"`
	Score           int           `json:"score"`      // [300,850]
	RiskLevel       RiskLevel     `json:"risk_level"`
	Confidence      int           `json:"confidence"` // [1,100]
	Factors         CreditFactors `json:"factors"`
	Recommendations []string      `json:"recommendations,omitempty"`
	RiskIndicators  []string      `json:"risk_indicators,omitempty"`
	Method          string        `json:"method"`
	CreatedAt       time.Time     `json:"created_at"`
}
