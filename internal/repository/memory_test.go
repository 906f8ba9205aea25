package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jumuia/creditlens/internal/domain"
)

func TestMemoryDocuments_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryDocuments()

	doc := &domain.Document{
		ID:         "doc-1",
		CustomerID: "cust-1",
		Type:       domain.DocTypeBankStatement,
		Status:     domain.DocStatusPending,
		UploadedAt: time.Now(),
	}
	if err := repo.Save(ctx, doc); err != nil {
		t.Fatal(err)
	}

	if err := repo.UpdateStatus(ctx, "doc-1", domain.DocStatusProcessing, ""); err != nil {
		t.Fatal(err)
	}
	got, err := repo.FindByID(ctx, "doc-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.DocStatusProcessing || got.StartedAt == nil {
		t.Errorf("processing transition not recorded: %+v", got)
	}

	if err := repo.UpdateStatus(ctx, "doc-1", domain.DocStatusFailed, "parse failed"); err != nil {
		t.Fatal(err)
	}
	got, _ = repo.FindByID(ctx, "doc-1")
	if got.Status != domain.DocStatusFailed || got.Error != "parse failed" || got.FinishedAt == nil {
		t.Errorf("failed transition not recorded: %+v", got)
	}

	// Mutating the returned copy must not touch the store.
	got.Status = domain.DocStatusCompleted
	again, _ := repo.FindByID(ctx, "doc-1")
	if again.Status != domain.DocStatusFailed {
		t.Error("repository returned a live reference, not a copy")
	}

	if _, err := repo.FindByID(ctx, "missing"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryTransactions_SaveAndQuery(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTransactions()

	txns := []domain.NormalizedTransaction{
		{Date: time.Date(2023, 1, 10, 0, 0, 0, 0, time.UTC), Description: "B", Amount: decimal.NewFromInt(-100)},
		{Date: time.Date(2023, 1, 5, 0, 0, 0, 0, time.UTC), Description: "A", Amount: decimal.NewFromInt(200)},
	}
	if err := repo.SaveBatch(ctx, "cust-1", "doc-1", txns); err != nil {
		t.Fatal(err)
	}

	got, err := repo.FindByCustomer(ctx, "cust-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d transactions", len(got))
	}
	if !got[0].Txn.Date.Before(got[1].Txn.Date) {
		t.Error("transactions should come back date-ordered")
	}

	count, _ := repo.CountByCustomer(ctx, "cust-1")
	if count != 2 {
		t.Errorf("count = %d", count)
	}

	byDoc, _ := repo.FindByDocument(ctx, "doc-1")
	if len(byDoc) != 2 {
		t.Errorf("by document: %d", len(byDoc))
	}
}

func TestMemoryAssessments_Aggregates(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAssessments()

	for i, tc := range []struct {
		score int
		risk  domain.RiskLevel
	}{
		{720, domain.RiskLow},
		{640, domain.RiskMedium},
		{520, domain.RiskHigh},
	} {
		err := repo.Append(ctx, &domain.CreditAssessment{
			ID:         uuid.NewString(),
			CustomerID: "cust-1",
			Score:      tc.score,
			RiskLevel:  tc.risk,
			CreatedAt:  time.Now().Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	counts, _ := repo.CountByRiskLevel(ctx)
	if counts[domain.RiskLow] != 1 || counts[domain.RiskMedium] != 1 || counts[domain.RiskHigh] != 1 {
		t.Errorf("counts = %v", counts)
	}

	avg, _ := repo.AverageScore(ctx)
	want := float64(720+640+520) / 3
	if avg != want {
		t.Errorf("average = %v, want %v", avg, want)
	}

	latest, err := repo.Latest(ctx, "cust-1")
	if err != nil {
		t.Fatal(err)
	}
	if latest.Score != 520 {
		t.Errorf("latest score = %d, want most recent run", latest.Score)
	}
}

func TestMemoryQueue_ClaimOrdering(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryQueue()
	base := time.Now()

	// Priorities [1,5,1,3]: both priority-1 items (in enqueue order) must
	// come out before 3, before 5.
	for i, priority := range []int{1, 5, 1, 3} {
		err := repo.Enqueue(ctx, &domain.QueueItem{
			ID:         uuid.NewString(),
			DocumentID: []string{"first", "low", "second", "mid"}[i],
			Priority:   priority,
			Status:     domain.QueueStatusQueued,
			EnqueuedAt: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	var order []string
	for {
		item, err := repo.ClaimNext(ctx)
		if err == ErrQueueEmpty {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		if item.Status != domain.QueueStatusProcessing || item.Attempts != 1 {
			t.Errorf("claimed item not marked processing: %+v", item)
		}
		order = append(order, item.DocumentID)
	}

	want := []string{"first", "second", "mid", "low"}
	if len(order) != len(want) {
		t.Fatalf("drained %d items, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("drain order = %v, want %v", order, want)
		}
	}
}

func TestMemoryQueue_AtomicClaim(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryQueue()

	const items = 20
	for i := 0; i < items; i++ {
		_ = repo.Enqueue(ctx, &domain.QueueItem{
			ID:         uuid.NewString(),
			Priority:   5,
			Status:     domain.QueueStatusQueued,
			EnqueuedAt: time.Now(),
		})
	}

	var mu sync.Mutex
	claimed := make(map[string]int)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				item, err := repo.ClaimNext(ctx)
				if err != nil {
					return
				}
				mu.Lock()
				claimed[item.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(claimed) != items {
		t.Fatalf("claimed %d distinct items, want %d", len(claimed), items)
	}
	for id, n := range claimed {
		if n != 1 {
			t.Errorf("item %s claimed %d times", id, n)
		}
	}
}

func TestMemoryFactors_Upsert(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryFactors()

	if _, err := repo.FindByCustomer(ctx, "cust-1"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	f := &domain.CreditFactors{CustomerID: "cust-1", PaymentHistory: 60, UpdatedAt: time.Now()}
	if err := repo.Upsert(ctx, f); err != nil {
		t.Fatal(err)
	}
	f.PaymentHistory = 70
	if err := repo.Upsert(ctx, f); err != nil {
		t.Fatal(err)
	}

	got, err := repo.FindByCustomer(ctx, "cust-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.PaymentHistory != 70 {
		t.Errorf("upsert did not replace: %v", got.PaymentHistory)
	}
}
