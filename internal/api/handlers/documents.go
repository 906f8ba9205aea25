// Package handlers implements the HTTP API surface: uploads, processing
// status, customer queries, scoring, rule management and queue operations.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jumuia/creditlens/internal/api/middleware"
	"github.com/jumuia/creditlens/internal/blobstore"
	"github.com/jumuia/creditlens/internal/domain"
	"github.com/jumuia/creditlens/internal/queue"
	"github.com/jumuia/creditlens/internal/repository"
	"github.com/jumuia/creditlens/internal/validation"
)

// DocumentsHandler handles document upload and status endpoints.
type DocumentsHandler struct {
	store     *repository.Store
	queue     *queue.Service
	blobs     *blobstore.Store
	validator *validation.Service
	uploadDir string
	bucket    string
	maxUpload int64
	log       zerolog.Logger
}

func NewDocumentsHandler(
	store *repository.Store,
	q *queue.Service,
	blobs *blobstore.Store,
	validator *validation.Service,
	uploadDir, bucket string,
	maxUpload int64,
	log zerolog.Logger,
) *DocumentsHandler {
	return &DocumentsHandler{
		store:     store,
		queue:     q,
		blobs:     blobs,
		validator: validator,
		uploadDir: uploadDir,
		bucket:    bucket,
		maxUpload: maxUpload,
		log:       log,
	}
}

// Upload handles POST /api/documents: a multipart form with the statement
// file plus customer_id, document_type and optional priority fields. The
// document is validated, stored, recorded PENDING and enqueued.
func (h *DocumentsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		middleware.WriteError(w, http.StatusRequestEntityTooLarge, "upload exceeds the size limit or is malformed")
		return
	}

	customerID := r.FormValue("customer_id")
	if customerID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "customer_id is required")
		return
	}
	docType := domain.DocumentType(r.FormValue("document_type"))
	if !domain.ValidDocumentType(docType) {
		middleware.WriteError(w, http.StatusBadRequest,
			fmt.Sprintf("document_type must be one of %s, %s, %s",
				domain.DocTypeBankStatement, domain.DocTypeMpesaStatement, domain.DocTypeSaccoStatement))
		return
	}

	priority := 0
	if p := r.FormValue("priority"); p != "" {
		parsed, err := strconv.Atoi(p)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "priority must be an integer")
			return
		}
		priority = parsed
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		h.log.Error().Err(err).Msg("cannot create upload directory")
		middleware.WriteError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	documentID := uuid.NewString()
	filename := filepath.Base(header.Filename)
	localPath := filepath.Join(h.uploadDir, documentID+"-"+filename)

	dst, err := os.Create(localPath)
	if err != nil {
		h.log.Error().Err(err).Msg("cannot create upload file")
		middleware.WriteError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	written, err := io.Copy(dst, file)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(localPath)
		h.log.Error().Err(err).Msg("cannot write upload file")
		middleware.WriteError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	if res := h.validator.ValidateDocument(localPath, docType); !res.Valid() {
		os.Remove(localPath)
		middleware.WriteJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "document rejected",
			"errors": res.Errors,
		})
		return
	}

	uri := localPath
	if h.bucket != "" {
		objectName := fmt.Sprintf("statements/%s/%s/%s", customerID, time.Now().Format("2006/01/02"), documentID+"-"+filename)
		remote, err := h.blobs.Upload(ctx, objectName, localPath)
		if err != nil {
			h.log.Error().Err(err).Msg("cloud upload failed, keeping local copy")
		} else {
			uri = remote
			os.Remove(localPath)
		}
	}

	doc := &domain.Document{
		ID:         documentID,
		CustomerID: customerID,
		Type:       docType,
		URI:        uri,
		Filename:   filename,
		MimeType:   header.Header.Get("Content-Type"),
		SizeBytes:  written,
		Status:     domain.DocStatusPending,
		UploadedAt: time.Now(),
	}
	if err := h.store.Documents.Save(ctx, doc); err != nil {
		h.log.Error().Err(err).Msg("failed to save document")
		middleware.WriteError(w, http.StatusInternalServerError, "failed to save document")
		return
	}

	item, err := h.queue.Enqueue(ctx, doc.ID, customerID, priority)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	middleware.WriteJSON(w, http.StatusAccepted, map[string]any{
		"document_id":   doc.ID,
		"queue_item_id": item.ID,
		"status":        doc.Status,
		"priority":      item.Priority,
	})
}

// Get handles GET /api/documents/{id}: the document plus its queue record.
func (h *DocumentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	doc, err := h.store.Documents.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "document not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("document_id", id).Msg("failed to load document")
		middleware.WriteError(w, http.StatusInternalServerError, "failed to load document")
		return
	}

	response := map[string]any{"document": doc}
	if item, err := h.store.Queue.FindByDocument(ctx, id); err == nil {
		response["queue"] = item
	}
	middleware.WriteJSON(w, http.StatusOK, response)
}

// Transactions handles GET /api/documents/{id}/transactions: the parsed
// result once processing completed, the recorded error once it failed.
func (h *DocumentsHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	doc, err := h.store.Documents.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "document not found")
		return
	}
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, "failed to load document")
		return
	}

	switch doc.Status {
	case domain.DocStatusFailed:
		middleware.WriteJSON(w, http.StatusOK, map[string]any{
			"status": doc.Status,
			"error":  doc.Error,
		})
		return
	case domain.DocStatusCompleted:
	default:
		middleware.WriteJSON(w, http.StatusAccepted, map[string]any{"status": doc.Status})
		return
	}

	txns, err := h.store.Transactions.FindByDocument(ctx, id)
	if err != nil {
		h.log.Error().Err(err).Str("document_id", id).Msg("failed to load transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "failed to load transactions")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"status":       doc.Status,
		"transactions": txns,
		"stats":        transactionStats(txns),
	})
}

// transactionStats summarizes a transaction list for API responses.
func transactionStats(txns []repository.StoredTransaction) map[string]any {
	credits, debits := decimal.Zero, decimal.Zero
	byCategory := make(map[string]int)
	for i := range txns {
		amount := txns[i].Txn.Amount
		if amount.IsPositive() {
			credits = credits.Add(amount)
		} else {
			debits = debits.Add(amount.Abs())
		}
		if c := txns[i].Txn.Category; c != "" {
			byCategory[c]++
		}
	}
	return map[string]any{
		"count":         len(txns),
		"total_credits": credits,
		"total_debits":  debits,
		"net":           credits.Sub(debits),
		"by_category":   byCategory,
	}
}
