package queue

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jumuia/creditlens/internal/domain"
	"github.com/jumuia/creditlens/internal/logger"
	"github.com/jumuia/creditlens/internal/repository"
)

func newService() *Service {
	return NewService(repository.NewMemoryQueue(), 3, logger.NewWithWriter(os.Stderr))
}

func TestEnqueue_PriorityBounds(t *testing.T) {
	ctx := context.Background()
	s := newService()

	item, err := s.Enqueue(ctx, "doc-1", "cust-1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if item.Priority != DefaultPriority {
		t.Errorf("priority = %d, want default %d", item.Priority, DefaultPriority)
	}
	if item.Status != domain.QueueStatusQueued || item.MaxAttempts != 3 {
		t.Errorf("item = %+v", item)
	}

	if _, err := s.Enqueue(ctx, "doc-2", "cust-1", 11); err == nil {
		t.Error("priority 11 should be rejected")
	}
	if _, err := s.Enqueue(ctx, "doc-3", "cust-1", -1); err == nil {
		t.Error("negative priority should be rejected")
	}
}

func TestFail_RetryThenTerminal(t *testing.T) {
	ctx := context.Background()
	s := newService()

	if _, err := s.Enqueue(ctx, "doc-1", "cust-1", 1); err != nil {
		t.Fatal(err)
	}

	cause := errors.New("parser blew up")
	for attempt := 1; attempt <= 3; attempt++ {
		item, err := s.Claim(ctx)
		if err != nil {
			t.Fatalf("attempt %d: claim: %v", attempt, err)
		}
		if item.Attempts != attempt {
			t.Errorf("attempts = %d, want %d", item.Attempts, attempt)
		}
		if err := s.Fail(ctx, item, cause); err != nil {
			t.Fatal(err)
		}

		if attempt < 3 {
			if item.Status != domain.QueueStatusRetry {
				t.Errorf("attempt %d: status = %s, want RETRY", attempt, item.Status)
			}
		} else if item.Status != domain.QueueStatusFailed {
			t.Errorf("exhausted item status = %s, want FAILED", item.Status)
		}
	}

	// FAILED is terminal: nothing is claimable.
	if _, err := s.Claim(ctx); err != repository.ErrQueueEmpty {
		t.Errorf("claim after terminal failure = %v, want ErrQueueEmpty", err)
	}
}

func TestRequeue_OnlyFailedItems(t *testing.T) {
	ctx := context.Background()
	s := newService()

	item, _ := s.Enqueue(ctx, "doc-1", "cust-1", 1)

	if _, err := s.Requeue(ctx, item.ID); err == nil {
		t.Error("requeue of a QUEUED item should fail")
	}

	// Exhaust the item.
	cause := errors.New("boom")
	for i := 0; i < 3; i++ {
		claimed, err := s.Claim(ctx)
		if err != nil {
			t.Fatal(err)
		}
		_ = s.Fail(ctx, claimed, cause)
	}

	requeued, err := s.Requeue(ctx, item.ID)
	if err != nil {
		t.Fatalf("Requeue() error: %v", err)
	}
	if requeued.Status != domain.QueueStatusQueued || requeued.Attempts != 0 || requeued.Error != "" {
		t.Errorf("requeued item = %+v", requeued)
	}

	claimed, err := s.Claim(ctx)
	if err != nil {
		t.Fatalf("requeued item should be claimable: %v", err)
	}
	if claimed.ID != item.ID {
		t.Error("claimed a different item")
	}
}

func TestCompleteAndStats(t *testing.T) {
	ctx := context.Background()
	s := newService()

	_, _ = s.Enqueue(ctx, "doc-1", "cust-1", 1)
	_, _ = s.Enqueue(ctx, "doc-2", "cust-1", 2)

	item, err := s.Claim(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Complete(ctx, item); err != nil {
		t.Fatal(err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats[domain.QueueStatusCompleted] != 1 || stats[domain.QueueStatusQueued] != 1 {
		t.Errorf("stats = %v", stats)
	}
}
