package scoring

import (
	"math"

	"github.com/jumuia/creditlens/internal/domain"
	"github.com/jumuia/creditlens/internal/repository"
)

// Every sub-score lands in [1,100].
func clampFactor(f float64) float64 {
	if f < 1 {
		return 1
	}
	if f > 100 {
		return 100
	}
	return f
}

// paymentHistoryScore rewards transaction volume and penalizes irregular
// income: base 50, up to +30 for volume, minus up to 30 for income variance.
func paymentHistoryScore(txns []repository.StoredTransaction) float64 {
	if len(txns) == 0 {
		return 1
	}
	volume := math.Min(30, float64(len(txns))/2)
	cv := incomeVariation(txns)
	return clampFactor(50 + volume - cv*30)
}

// mobileMoneyScore rewards mobile money frequency, recurring bill payments
// and breadth of usage.
func mobileMoneyScore(txns []repository.StoredTransaction) float64 {
	mm := mobileMoneyTxns(txns)
	if len(mm) == 0 {
		return 1
	}

	months := activeMonths(mm)
	freq := float64(len(mm)) / math.Max(1, float64(months))
	score := 40 + math.Min(30, freq*3)

	// Recurring bill payments in at least two distinct months.
	billMonths := make(map[string]bool)
	categories := make(map[string]bool)
	for _, st := range mm {
		cat, _ := st.Txn.Extra["mpesa_category"].(string)
		if cat == "" {
			cat = st.Txn.Subcategory
		}
		categories[cat] = true
		if cat == "bill_pay" || cat == "BILL_PAY" {
			billMonths[st.Txn.Date.Format("2006-01")] = true
		}
	}
	if len(billMonths) >= 2 {
		score += 15
	}
	if len(categories) >= 3 {
		score += 15
	}
	return clampFactor(score)
}

// cooperativeScore rewards membership duration and contribution consistency.
// SACCO transactions stand in when no supplementary record exists.
func cooperativeScore(txns []repository.StoredTransaction, supp *domain.SupplementaryData) float64 {
	if supp != nil {
		duration := math.Min(50, float64(supp.CooperativeMemberMonths)*2)
		consistency := 0.0
		if supp.ContributionsExpected > 0 {
			consistency = float64(supp.ContributionsOnTime) / float64(supp.ContributionsExpected) * 50
		}
		return clampFactor(duration + consistency)
	}

	saccoMonths := make(map[string]bool)
	for _, st := range txns {
		if st.Txn.Category == "SAVINGS" && st.Txn.Subcategory == "SACCO" {
			saccoMonths[st.Txn.Date.Format("2006-01")] = true
		}
	}
	if len(saccoMonths) == 0 {
		return 1
	}
	return clampFactor(float64(len(saccoMonths)) * 8)
}

// incomeStabilityScore combines income variance with employment duration.
func incomeStabilityScore(txns []repository.StoredTransaction, supp *domain.SupplementaryData) float64 {
	if len(txns) == 0 {
		return 1
	}
	cv := incomeVariation(txns)
	score := 70 - cv*50
	if supp != nil {
		score += math.Min(20, float64(supp.EmploymentMonths)/3)
	}
	return clampFactor(score)
}

// communityScore combines reference ratings with group participation counts.
func communityScore(supp *domain.SupplementaryData) float64 {
	if supp == nil {
		return 1
	}
	score := 0.0
	if len(supp.ReferenceRatings) > 0 {
		total := 0
		for _, r := range supp.ReferenceRatings {
			total += r
		}
		avg := float64(total) / float64(len(supp.ReferenceRatings))
		score += avg / 5 * 70
	}
	score += math.Min(30, float64(supp.GroupParticipations)*5)
	return clampFactor(score)
}

// assetScore rewards declared property and vehicle ownership.
func assetScore(supp *domain.SupplementaryData) float64 {
	score := 20.0
	if supp != nil {
		if supp.OwnsProperty {
			score += 45
		}
		if supp.OwnsVehicle {
			score += 30
		}
	}
	return clampFactor(score)
}

// digitalAdoptionScore is the share of transactions routed through digital
// channels.
func digitalAdoptionScore(txns []repository.StoredTransaction) float64 {
	if len(txns) == 0 {
		return 1
	}
	digital := 0
	for _, st := range txns {
		if isDigital(&st.Txn) {
			digital++
		}
	}
	return clampFactor(float64(digital) / float64(len(txns)) * 100)
}

func isDigital(txn *domain.NormalizedTransaction) bool {
	if _, ok := txn.Extra["mpesa_category"]; ok {
		return true
	}
	return txn.Category == "MOBILE_MONEY" || txn.Reference != ""
}

func mobileMoneyTxns(txns []repository.StoredTransaction) []repository.StoredTransaction {
	var mm []repository.StoredTransaction
	for _, st := range txns {
		if _, ok := st.Txn.Extra["mpesa_category"]; ok {
			mm = append(mm, st)
			continue
		}
		if st.Txn.Category == "MOBILE_MONEY" {
			mm = append(mm, st)
		}
	}
	return mm
}

// incomeVariation is the coefficient of variation of monthly income totals,
// clamped to [0,1]. One month of history counts as perfectly stable.
func incomeVariation(txns []repository.StoredTransaction) float64 {
	monthly := make(map[string]float64)
	for _, st := range txns {
		if st.Txn.Amount.IsPositive() {
			f, _ := st.Txn.Amount.Float64()
			monthly[st.Txn.Date.Format("2006-01")] += f
		}
	}
	if len(monthly) < 2 {
		return 0
	}

	var sum float64
	for _, v := range monthly {
		sum += v
	}
	mean := sum / float64(len(monthly))
	if mean == 0 {
		return 1
	}

	var variance float64
	for _, v := range monthly {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(monthly))

	cv := math.Sqrt(variance) / mean
	return math.Min(1, cv)
}

func activeMonths(txns []repository.StoredTransaction) int {
	months := make(map[string]bool)
	for _, st := range txns {
		months[st.Txn.Date.Format("2006-01")] = true
	}
	return len(months)
}

// confidence is derived from data coverage, never from the score itself:
// document count, transaction volume, source diversity and factor-record
// completeness.
func confidence(docs []*domain.Document, txns []repository.StoredTransaction, supp *domain.SupplementaryData) int {
	c := 0.0
	c += math.Min(30, float64(len(docs))*10)
	c += math.Min(30, float64(len(txns))/2)

	types := make(map[domain.DocumentType]bool)
	for _, d := range docs {
		types[d.Type] = true
	}
	c += float64(len(types)) * 10 // up to 30 across the three source types

	if supp != nil {
		c += 10
	}

	if c < 1 {
		c = 1
	}
	if c > 100 {
		c = 100
	}
	return int(math.Round(c))
}

// recommendations come from fixed threshold rules against the sub-scores and
// the overall score.
func recommendations(f domain.CreditFactors, overall float64) []string {
	var recs []string
	if f.MobileMoneyConsistency < 60 {
		recs = append(recs, "Increase mobile money usage for bills and payments to build a digital transaction history")
	}
	if f.CooperativeMembership < 50 {
		recs = append(recs, "Join a SACCO and make regular monthly contributions")
	}
	if f.PaymentHistory < 50 {
		recs = append(recs, "Maintain consistent statement activity across months")
	}
	if f.IncomeStability < 50 {
		recs = append(recs, "Document additional or recurring income sources")
	}
	if f.AssetOwnership < 40 {
		recs = append(recs, "Register owned assets to strengthen the credit profile")
	}
	if overall < 40 {
		recs = append(recs, "Provide additional statements to improve assessment coverage")
	}
	return recs
}

// riskIndicators flag the conditions a lender should review.
func riskIndicators(f domain.CreditFactors, overall float64, docCount int) []string {
	var indicators []string
	if docCount == 0 {
		indicators = append(indicators, "No source documents on file")
	}
	if f.PaymentHistory < 40 {
		indicators = append(indicators, "Irregular transaction pattern")
	}
	if f.IncomeStability < 40 {
		indicators = append(indicators, "Unstable or undocumented income")
	}
	if f.CommunityTrust < 30 {
		indicators = append(indicators, "Insufficient community references")
	}
	if overall < 40 {
		indicators = append(indicators, "Overall profile below lending threshold")
	}
	return indicators
}
