package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/jumuia/creditlens/internal/api/middleware"
	"github.com/jumuia/creditlens/internal/domain"
	"github.com/jumuia/creditlens/internal/repository"
	"github.com/jumuia/creditlens/internal/rules"
	"github.com/jumuia/creditlens/internal/scoring"
)

// CustomersHandler handles per-customer queries, scoring and supplementary
// data.
type CustomersHandler struct {
	store  *repository.Store
	engine *scoring.Engine
	rules  rules.Registry
	log    zerolog.Logger
}

func NewCustomersHandler(store *repository.Store, engine *scoring.Engine, ruleEngine rules.Registry, log zerolog.Logger) *CustomersHandler {
	return &CustomersHandler{store: store, engine: engine, rules: ruleEngine, log: log}
}

// Transactions handles GET /api/customers/{id}/transactions with optional
// start_date, end_date and type filters.
func (h *CustomersHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID := r.PathValue("id")
	query := r.URL.Query()

	var startDate, endDate time.Time
	var err error
	if s := query.Get("start_date"); s != "" {
		if startDate, err = time.Parse(time.DateOnly, s); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "invalid start_date, want YYYY-MM-DD")
			return
		}
	}
	if s := query.Get("end_date"); s != "" {
		if endDate, err = time.Parse(time.DateOnly, s); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "invalid end_date, want YYYY-MM-DD")
			return
		}
	}
	txnType := domain.TransactionType(query.Get("type"))

	txns, err := h.store.Transactions.FindByCustomer(ctx, customerID)
	if err != nil {
		h.log.Error().Err(err).Str("customer_id", customerID).Msg("failed to load transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "failed to load transactions")
		return
	}

	filtered := txns[:0:0]
	for i := range txns {
		date := txns[i].Txn.Date
		if !startDate.IsZero() && date.Before(startDate) {
			continue
		}
		if !endDate.IsZero() && date.After(endDate.AddDate(0, 0, 1)) {
			continue
		}
		if txnType != "" && txns[i].Txn.Type != txnType {
			continue
		}
		filtered = append(filtered, txns[i])
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"transactions": filtered,
		"stats":        transactionStats(filtered),
	})
}

// Score handles POST /api/customers/{id}/score: run a fresh scoring pass.
func (h *CustomersHandler) Score(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID := r.PathValue("id")

	assessment, err := h.engine.CalculateScore(ctx, customerID)
	if err != nil {
		h.log.Error().Err(err).Str("customer_id", customerID).Msg("scoring failed")
		middleware.WriteError(w, http.StatusInternalServerError, "scoring failed")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, assessment)
}

// LatestScore handles GET /api/customers/{id}/score.
func (h *CustomersHandler) LatestScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID := r.PathValue("id")

	assessment, err := h.store.Assessments.Latest(ctx, customerID)
	if errors.Is(err, repository.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "customer has not been scored")
		return
	}
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, "failed to load assessment")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, assessment)
}

// ScoreHistory handles GET /api/customers/{id}/score/history.
func (h *CustomersHandler) ScoreHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID := r.PathValue("id")

	history, err := h.store.Assessments.FindByCustomer(ctx, customerID)
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, "failed to load assessments")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"assessments": history,
		"count":       len(history),
	})
}

// Supplementary handles PUT /api/customers/{id}/supplementary: upsert the
// alternative-data record.
func (h *CustomersHandler) Supplementary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID := r.PathValue("id")

	var data domain.SupplementaryData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	data.CustomerID = customerID

	for _, rating := range data.ReferenceRatings {
		if rating < 1 || rating > 5 {
			middleware.WriteError(w, http.StatusBadRequest, "reference ratings must be in [1,5]")
			return
		}
	}

	if err := h.store.Supplementary.Upsert(ctx, &data); err != nil {
		h.log.Error().Err(err).Str("customer_id", customerID).Msg("failed to save supplementary data")
		middleware.WriteError(w, http.StatusInternalServerError, "failed to save supplementary data")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, data)
}

// Recategorize handles POST /api/customers/{id}/recategorize: re-run the
// current rule set over the customer's stored transactions inside a date
// range, optionally only those below a stored confidence.
func (h *CustomersHandler) Recategorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID := r.PathValue("id")

	var req struct {
		StartDate       string   `json:"start_date"`
		EndDate         string   `json:"end_date"`
		BelowConfidence *float64 `json:"below_confidence"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	from := time.Time{}
	to := time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
	var err error
	if req.StartDate != "" {
		if from, err = time.Parse(time.DateOnly, req.StartDate); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "invalid start_date, want YYYY-MM-DD")
			return
		}
	}
	if req.EndDate != "" {
		if to, err = time.Parse(time.DateOnly, req.EndDate); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "invalid end_date, want YYYY-MM-DD")
			return
		}
	}
	below := -1.0
	if req.BelowConfidence != nil {
		below = *req.BelowConfidence
	}

	stored, err := h.store.Transactions.FindByCustomer(ctx, customerID)
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, "failed to load transactions")
		return
	}

	txns := make([]domain.NormalizedTransaction, len(stored))
	for i := range stored {
		txns[i] = stored[i].Txn
	}
	recategorized := h.rules.Recategorize(txns, from, to, below)

	// Persist only the rows whose categorization actually moved.
	var updates []repository.StoredTransaction
	for i := range stored {
		if recategorized[i].Category == stored[i].Txn.Category &&
			recategorized[i].Subcategory == stored[i].Txn.Subcategory {
			continue
		}
		update := stored[i]
		update.Txn = recategorized[i]
		updates = append(updates, update)
	}
	if len(updates) > 0 {
		if err := h.store.Transactions.UpdateCategorization(ctx, updates); err != nil {
			h.log.Error().Err(err).Str("customer_id", customerID).Msg("failed to persist recategorization")
			middleware.WriteError(w, http.StatusInternalServerError, "failed to persist recategorization")
			return
		}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"examined":     len(stored),
		"updated":      len(updates),
		"rule_version": h.rules.Version(),
	})
}
