package handlers

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/jumuia/creditlens/internal/api/middleware"
	"github.com/jumuia/creditlens/internal/apperrors"
	"github.com/jumuia/creditlens/internal/queue"
	"github.com/jumuia/creditlens/internal/repository"
)

// OpsHandler handles queue operations and the error log.
type OpsHandler struct {
	store    *repository.Store
	queue    *queue.Service
	errorLog *apperrors.ErrorLog
	log      zerolog.Logger
}

func NewOpsHandler(store *repository.Store, q *queue.Service, errorLog *apperrors.ErrorLog, log zerolog.Logger) *OpsHandler {
	return &OpsHandler{store: store, queue: q, errorLog: errorLog, log: log}
}

// QueueStats handles GET /api/queue/stats.
func (h *OpsHandler) QueueStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	queueCounts, err := h.queue.Stats(ctx)
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, "failed to read queue stats")
		return
	}
	docCounts, err := h.store.Documents.CountByStatus(ctx)
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, "failed to read document stats")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"queue":     queueCounts,
		"documents": docCounts,
	})
}

// Requeue handles POST /api/queue/{id}/requeue: the external recovery path
// for terminally failed items.
func (h *OpsHandler) Requeue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	item, err := h.queue.Requeue(ctx, id)
	if err != nil {
		middleware.WriteError(w, http.StatusConflict, err.Error())
		return
	}
	middleware.WriteJSON(w, http.StatusOK, item)
}

// Errors handles GET /api/errors: the most recent terminal processing
// errors, newest first.
func (h *OpsHandler) Errors(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil {
			limit = parsed
		}
	}

	entries := h.errorLog.Recent(limit)
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"errors": entries,
		"count":  len(entries),
	})
}
