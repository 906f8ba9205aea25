// Package queue manages the document processing queue: priority enqueue,
// atomic claims, retry accounting and external requeue of failed items.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jumuia/creditlens/internal/domain"
	"github.com/jumuia/creditlens/internal/repository"
)

// Priority bounds; 1 is the highest priority, 10 the lowest.
const (
	HighestPriority = 1
	LowestPriority  = 10
	DefaultPriority = 5
)

// DefaultMaxAttempts bounds processing attempts before an item goes FAILED.
const DefaultMaxAttempts = 3

// Service wraps the queue repository with the queueing policy.
type Service struct {
	repo        repository.QueueRepository
	maxAttempts int
	log         zerolog.Logger
}

func NewService(repo repository.QueueRepository, maxAttempts int, log zerolog.Logger) *Service {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Service{
		repo:        repo,
		maxAttempts: maxAttempts,
		log:         log.With().Str("component", "queue").Logger(),
	}
}

// Enqueue creates a QUEUED item for the document. Priority 0 takes the
// default; anything outside [1,10] is rejected.
func (s *Service) Enqueue(ctx context.Context, documentID, customerID string, priority int) (*domain.QueueItem, error) {
	if priority == 0 {
		priority = DefaultPriority
	}
	if priority < HighestPriority || priority > LowestPriority {
		return nil, fmt.Errorf("priority %d outside [%d,%d]", priority, HighestPriority, LowestPriority)
	}

	item := &domain.QueueItem{
		ID:          uuid.NewString(),
		DocumentID:  documentID,
		CustomerID:  customerID,
		Priority:    priority,
		MaxAttempts: s.maxAttempts,
		Status:      domain.QueueStatusQueued,
		EnqueuedAt:  time.Now(),
	}
	if err := s.repo.Enqueue(ctx, item); err != nil {
		return nil, fmt.Errorf("enqueue document %s: %w", documentID, err)
	}

	s.log.Info().
		Str("queue_item_id", item.ID).
		Str("document_id", documentID).
		Int("priority", priority).
		Msg("document enqueued")
	return item, nil
}

// Claim atomically takes the next processable item, or repository.ErrQueueEmpty.
func (s *Service) Claim(ctx context.Context) (*domain.QueueItem, error) {
	return s.repo.ClaimNext(ctx)
}

// Complete marks a claimed item COMPLETED.
func (s *Service) Complete(ctx context.Context, item *domain.QueueItem) error {
	now := time.Now()
	item.Status = domain.QueueStatusCompleted
	item.CompletedAt = &now
	item.Error = ""
	return s.repo.Update(ctx, item)
}

// Fail records a processing failure. Items with attempts left go to RETRY
// and become claimable again; exhausted items go FAILED, which is terminal
// until an external Requeue.
func (s *Service) Fail(ctx context.Context, item *domain.QueueItem, cause error) error {
	item.Error = cause.Error()
	if item.Attempts < item.MaxAttempts {
		item.Status = domain.QueueStatusRetry
		s.log.Warn().
			Str("queue_item_id", item.ID).
			Str("document_id", item.DocumentID).
			Int("attempts", item.Attempts).
			Int("max_attempts", item.MaxAttempts).
			Err(cause).
			Msg("processing failed, will retry")
	} else {
		now := time.Now()
		item.Status = domain.QueueStatusFailed
		item.CompletedAt = &now
		s.log.Error().
			Str("queue_item_id", item.ID).
			Str("document_id", item.DocumentID).
			Int("attempts", item.Attempts).
			Err(cause).
			Msg("processing failed terminally")
	}
	return s.repo.Update(ctx, item)
}

// Requeue is the external recovery path for FAILED items: it resets the
// attempt counter and returns the item to QUEUED. Only FAILED items qualify.
func (s *Service) Requeue(ctx context.Context, queueItemID string) (*domain.QueueItem, error) {
	item, err := s.repo.FindByID(ctx, queueItemID)
	if err != nil {
		return nil, err
	}
	if item.Status != domain.QueueStatusFailed {
		return nil, fmt.Errorf("queue item %s is %s, only FAILED items can be requeued", queueItemID, item.Status)
	}

	item.Status = domain.QueueStatusQueued
	item.Attempts = 0
	item.Error = ""
	item.StartedAt = nil
	item.CompletedAt = nil
	item.EnqueuedAt = time.Now()
	if err := s.repo.Update(ctx, item); err != nil {
		return nil, err
	}

	s.log.Info().Str("queue_item_id", item.ID).Str("document_id", item.DocumentID).Msg("failed item requeued")
	return item, nil
}

// Stats returns item counts grouped by queue status.
func (s *Service) Stats(ctx context.Context) (map[domain.QueueStatus]int, error) {
	return s.repo.CountByStatus(ctx)
}
