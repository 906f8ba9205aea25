// Package repository defines the persistence abstractions the core consumes.
// The core never depends on a specific storage engine; the in-memory
// implementation here serves tests and single-node deployments, the BigQuery
// implementation lives in internal/infra/bigquery.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jumuia/creditlens/internal/domain"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("not found")

// ErrQueueEmpty is returned by ClaimNext when nothing is claimable.
var ErrQueueEmpty = errors.New("queue empty")

// DocumentRepository stores uploaded statement documents.
type DocumentRepository interface {
	Save(ctx context.Context, doc *domain.Document) error
	FindByID(ctx context.Context, id string) (*domain.Document, error)
	FindByCustomer(ctx context.Context, customerID string) ([]*domain.Document, error)
	// UpdateStatus transitions the document and records the error message on
	// failure transitions.
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMsg string) error
	CountByStatus(ctx context.Context) (map[domain.DocumentStatus]int, error)
}

// StoredTransaction ties a normalized transaction to its owner and source
// document.
type StoredTransaction struct {
	ID         string                       `json:"transaction_id"`
	CustomerID string                       `json:"customer_id"`
	DocumentID string                       `json:"document_id"`
	Txn        domain.NormalizedTransaction `json:"transaction"`
	StoredAt   time.Time                    `json:"stored_at"`
}

// TransactionRepository stores normalized transactions.
type TransactionRepository interface {
	SaveBatch(ctx context.Context, customerID, documentID string, txns []domain.NormalizedTransaction) error
	FindByCustomer(ctx context.Context, customerID string) ([]StoredTransaction, error)
	FindByDocument(ctx context.Context, documentID string) ([]StoredTransaction, error)
	// UpdateCategorization rewrites category fields for re-categorized
	// transactions, matched by id.
	UpdateCategorization(ctx context.Context, updates []StoredTransaction) error
	CountByCustomer(ctx context.Context, customerID string) (int, error)
}

// FactorsRepository stores the live factor record, one per customer.
type FactorsRepository interface {
	Upsert(ctx context.Context, factors *domain.CreditFactors) error
	FindByCustomer(ctx context.Context, customerID string) (*domain.CreditFactors, error)
}

// AssessmentRepository stores append-only scoring runs.
type AssessmentRepository interface {
	Append(ctx context.Context, assessment *domain.CreditAssessment) error
	FindByCustomer(ctx context.Context, customerID string) ([]*domain.CreditAssessment, error)
	Latest(ctx context.Context, customerID string) (*domain.CreditAssessment, error)
	CountByRiskLevel(ctx context.Context) (map[domain.RiskLevel]int, error)
	AverageScore(ctx context.Context) (float64, error)
}

// SupplementaryRepository stores the alternative-data record per customer.
type SupplementaryRepository interface {
	Upsert(ctx context.Context, data *domain.SupplementaryData) error
	FindByCustomer(ctx context.Context, customerID string) (*domain.SupplementaryData, error)
}

// QueueRepository stores processing queue items. ClaimNext must be atomic:
// no two concurrent callers may claim the same QUEUED item.
type QueueRepository interface {
	Enqueue(ctx context.Context, item *domain.QueueItem) error
	// ClaimNext atomically claims the best QUEUED or RETRY item, ordered by
	// priority ascending then enqueue time ascending, marking it PROCESSING.
	ClaimNext(ctx context.Context) (*domain.QueueItem, error)
	Update(ctx context.Context, item *domain.QueueItem) error
	FindByID(ctx context.Context, id string) (*domain.QueueItem, error)
	FindByDocument(ctx context.Context, documentID string) (*domain.QueueItem, error)
	CountByStatus(ctx context.Context) (map[domain.QueueStatus]int, error)
}

// Store bundles every repository for wiring convenience.
type Store struct {
	Documents     DocumentRepository
	Transactions  TransactionRepository
	Factors       FactorsRepository
	Assessments   AssessmentRepository
	Supplementary SupplementaryRepository
	Queue         QueueRepository
}
