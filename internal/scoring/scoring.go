// Package scoring computes alternative-data credit scores from transaction
// history, cooperative membership and community references.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jumuia/creditlens/internal/config"
	"github.com/jumuia/creditlens/internal/domain"
	"github.com/jumuia/creditlens/internal/repository"
)

// Method tags assessments produced by this engine.
const Method = "alternative_data_v1"

// Composite score bounds after rescaling.
const (
	MinScore = 300
	MaxScore = 850
)

// Risk level thresholds on the rescaled score.
const (
	lowRiskFloor    = 700
	mediumRiskFloor = 600
	highRiskFloor   = 500
)

// Engine scores customers. It reads transactions, documents and the
// supplementary record, updates the live factor record in place, and appends
// one assessment per run.
type Engine struct {
	weights config.ScoringConfig
	store   *repository.Store
	log     zerolog.Logger
}

func NewEngine(weights config.ScoringConfig, store *repository.Store, log zerolog.Logger) *Engine {
	return &Engine{
		weights: weights,
		store:   store,
		log:     log.With().Str("component", "scoring").Logger(),
	}
}

// CalculateScore runs the full scoring pipeline for one customer. Identical
// inputs always produce the identical score; the only side effects are the
// factor upsert and the appended assessment.
func (e *Engine) CalculateScore(ctx context.Context, customerID string) (*domain.CreditAssessment, error) {
	txns, err := e.store.Transactions.FindByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("load transactions for %s: %w", customerID, err)
	}
	docs, err := e.store.Documents.FindByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("load documents for %s: %w", customerID, err)
	}
	supp, err := e.store.Supplementary.FindByCustomer(ctx, customerID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("load supplementary data for %s: %w", customerID, err)
	}

	factors := domain.CreditFactors{
		CustomerID:             customerID,
		PaymentHistory:         paymentHistoryScore(txns),
		MobileMoneyConsistency: mobileMoneyScore(txns),
		CooperativeMembership:  cooperativeScore(txns, supp),
		IncomeStability:        incomeStabilityScore(txns, supp),
		CommunityTrust:         communityScore(supp),
		AssetOwnership:         assetScore(supp),
		DigitalAdoption:        digitalAdoptionScore(txns),
		UpdatedAt:              time.Now(),
	}

	overall := e.weights.PaymentHistoryWeight*factors.PaymentHistory +
		e.weights.MobileMoneyWeight*factors.MobileMoneyConsistency +
		e.weights.CooperativeWeight*factors.CooperativeMembership +
		e.weights.IncomeStabilityWeight*factors.IncomeStability +
		e.weights.CommunityWeight*factors.CommunityTrust +
		e.weights.AssetsWeight*factors.AssetOwnership +
		e.weights.DigitalWeight*factors.DigitalAdoption

	score := RescaleScore(overall)

	assessment := &domain.CreditAssessment{
		ID:              uuid.NewString(),
		CustomerID:      customerID,
		Score:           score,
		RiskLevel:       BucketRisk(score),
		Confidence:      confidence(docs, txns, supp),
		Factors:         factors,
		Recommendations: recommendations(factors, overall),
		RiskIndicators:  riskIndicators(factors, overall, len(docs)),
		Method:          Method,
		CreatedAt:       time.Now(),
	}

	if err := e.store.Factors.Upsert(ctx, &factors); err != nil {
		return nil, fmt.Errorf("upsert factors for %s: %w", customerID, err)
	}
	if err := e.store.Assessments.Append(ctx, assessment); err != nil {
		return nil, fmt.Errorf("append assessment for %s: %w", customerID, err)
	}

	e.log.Info().
		Str("customer_id", customerID).
		Int("score", score).
		Str("risk_level", string(assessment.RiskLevel)).
		Int("confidence", assessment.Confidence).
		Msg("credit score calculated")

	return assessment, nil
}

// RescaleScore maps the weighted 1..100 overall onto the conventional
// 300..850 range.
func RescaleScore(overall float64) int {
	score := int(math.Round(MinScore + overall*5.5))
	if score < MinScore {
		score = MinScore
	}
	if score > MaxScore {
		score = MaxScore
	}
	return score
}

// BucketRisk buckets a rescaled score into a risk level.
func BucketRisk(score int) domain.RiskLevel {
	switch {
	case score >= lowRiskFloor:
		return domain.RiskLow
	case score >= mediumRiskFloor:
		return domain.RiskMedium
	case score >= highRiskFloor:
		return domain.RiskHigh
	default:
		return domain.RiskVeryHigh
	}
}
