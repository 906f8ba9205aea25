package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/jumuia/creditlens/internal/api/middleware"
	"github.com/jumuia/creditlens/internal/rules"
)

// RulesHandler manages the categorization rule set at runtime.
type RulesHandler struct {
	rules rules.Registry
	log   zerolog.Logger
}

func NewRulesHandler(ruleEngine rules.Registry, log zerolog.Logger) *RulesHandler {
	return &RulesHandler{rules: ruleEngine, log: log}
}

// List handles GET /api/rules.
func (h *RulesHandler) List(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"rules":   h.rules.Rules(),
		"version": h.rules.Version(),
	})
}

type ruleRequest struct {
	Name    string        `json:"name"`
	Entries []rules.Entry `json:"entries"`
}

// Add handles POST /api/rules.
func (h *RulesHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || len(req.Entries) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "name and entries are required")
		return
	}

	if err := h.rules.AddRule(req.Name, req.Entries); err != nil {
		middleware.WriteError(w, http.StatusConflict, err.Error())
		return
	}
	h.log.Info().Str("rule", req.Name).Int("version", h.rules.Version()).Msg("rule added")
	middleware.WriteJSON(w, http.StatusCreated, map[string]any{"version": h.rules.Version()})
}

// Update handles PUT /api/rules/{name}.
func (h *RulesHandler) Update(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req struct {
		Entries []rules.Entry `json:"entries"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Entries) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "entries are required")
		return
	}

	if err := h.rules.UpdateRule(name, req.Entries); err != nil {
		middleware.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	h.log.Info().Str("rule", name).Int("version", h.rules.Version()).Msg("rule updated")
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"version": h.rules.Version()})
}

// Remove handles DELETE /api/rules/{name}.
func (h *RulesHandler) Remove(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	if err := h.rules.RemoveRule(name); err != nil {
		middleware.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	h.log.Info().Str("rule", name).Int("version", h.rules.Version()).Msg("rule removed")
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"version": h.rules.Version()})
}
