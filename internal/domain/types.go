package domain

import "time"

// DocumentType identifies the kind of financial statement a document holds.
type DocumentType string

const (
	DocTypeBankStatement  DocumentType = "BANK_STATEMENT"
	DocTypeMpesaStatement DocumentType = "MPESA_STATEMENT"
	DocTypeSaccoStatement DocumentType = "SACCO_STATEMENT"
)

// ValidDocumentType reports whether t is one of the supported statement types.
func ValidDocumentType(t DocumentType) bool {
	switch t {
	case DocTypeBankStatement, DocTypeMpesaStatement, DocTypeSaccoStatement:
		return true
	}
	return false
}

// DocumentStatus is the processing state of an uploaded document.
type DocumentStatus string

const (
	DocStatusPending    DocumentStatus = "PENDING"
	DocStatusProcessing DocumentStatus = "PROCESSING"
	DocStatusCompleted  DocumentStatus = "COMPLETED"
	DocStatusFailed     DocumentStatus = "FAILED"
)

// Document is an uploaded statement awaiting or having finished processing.
type Document struct {
	ID         string         `json:"document_id"`
	CustomerID string         `json:"customer_id"`
	Type       DocumentType   `json:"document_type"`
	URI        string         `json:"uri"` // local path or gs:// URI
	Filename   string         `json:"filename"`
	MimeType   string         `json:"mime_type"`
	SizeBytes  int64          `json:"size_bytes"`
	Status     DocumentStatus `json:"status"`
	Error      string         `json:"error,omitempty"`
	UploadedAt time.Time      `json:"uploaded_at"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}

// QueueStatus mirrors DocumentStatus with an added RETRY state.
type QueueStatus string

const (
	QueueStatusQueued     QueueStatus = "QUEUED"
	QueueStatusProcessing QueueStatus = "PROCESSING"
	QueueStatusCompleted  QueueStatus = "COMPLETED"
	QueueStatusFailed     QueueStatus = "FAILED"
	QueueStatusRetry      QueueStatus = "RETRY"
)

// QueueItem tracks one document through the processing queue.
// Priority runs 1 (highest) to 10 (lowest).
type QueueItem struct {
	ID          string      `json:"queue_item_id"`
	DocumentID  string      `json:"document_id"`
	CustomerID  string      `json:"customer_id"`
	Priority    int         `json:"priority"`
	Attempts    int         `json:"attempts"`
	MaxAttempts int         `json:"max_attempts"`
	Status      QueueStatus `json:"status"`
	Error       string      `json:"error,omitempty"`
	EnqueuedAt  time.Time   `json:"enqueued_at"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}
