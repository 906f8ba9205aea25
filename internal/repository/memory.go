package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jumuia/creditlens/internal/domain"
)

// NewMemoryStore builds a Store backed entirely by in-memory repositories.
func NewMemoryStore() *Store {
	return &Store{
		Documents:     NewMemoryDocuments(),
		Transactions:  NewMemoryTransactions(),
		Factors:       NewMemoryFactors(),
		Assessments:   NewMemoryAssessments(),
		Supplementary: NewMemorySupplementary(),
		Queue:         NewMemoryQueue(),
	}
}

// MemoryDocuments is a mutex-guarded document store. All reads return copies
// so callers can never mutate stored state in place.
type MemoryDocuments struct {
	mu   sync.RWMutex
	docs map[string]domain.Document
}

func NewMemoryDocuments() *MemoryDocuments {
	return &MemoryDocuments{docs: make(map[string]domain.Document)}
}

func (m *MemoryDocuments) Save(ctx context.Context, doc *domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ID] = *doc
	return nil
}

func (m *MemoryDocuments) FindByID(ctx context.Context, id string) (*domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &doc, nil
}

func (m *MemoryDocuments) FindByCustomer(ctx context.Context, customerID string) ([]*domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Document
	for _, doc := range m.docs {
		if doc.CustomerID == customerID {
			d := doc
			out = append(out, &d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.Before(out[j].UploadedAt) })
	return out, nil
}

func (m *MemoryDocuments) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	doc.Status = status
	doc.Error = errMsg
	switch status {
	case domain.DocStatusProcessing:
		doc.StartedAt = &now
	case domain.DocStatusCompleted, domain.DocStatusFailed:
		doc.FinishedAt = &now
	}
	m.docs[id] = doc
	return nil
}

func (m *MemoryDocuments) CountByStatus(ctx context.Context) (map[domain.DocumentStatus]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[domain.DocumentStatus]int)
	for _, doc := range m.docs {
		counts[doc.Status]++
	}
	return counts, nil
}

// MemoryTransactions stores normalized transactions keyed by id.
type MemoryTransactions struct {
	mu   sync.RWMutex
	txns map[string]StoredTransaction
}

func NewMemoryTransactions() *MemoryTransactions {
	return &MemoryTransactions{txns: make(map[string]StoredTransaction)}
}

func (m *MemoryTransactions) SaveBatch(ctx context.Context, customerID, documentID string, txns []domain.NormalizedTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for _, txn := range txns {
		id := uuid.NewString()
		m.txns[id] = StoredTransaction{
			ID:         id,
			CustomerID: customerID,
			DocumentID: documentID,
			Txn:        txn,
			StoredAt:   now,
		}
	}
	return nil
}

func (m *MemoryTransactions) FindByCustomer(ctx context.Context, customerID string) ([]StoredTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []StoredTransaction
	for _, st := range m.txns {
		if st.CustomerID == customerID {
			out = append(out, st)
		}
	}
	sortByDate(out)
	return out, nil
}

func (m *MemoryTransactions) FindByDocument(ctx context.Context, documentID string) ([]StoredTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []StoredTransaction
	for _, st := range m.txns {
		if st.DocumentID == documentID {
			out = append(out, st)
		}
	}
	sortByDate(out)
	return out, nil
}

func (m *MemoryTransactions) UpdateCategorization(ctx context.Context, updates []StoredTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range updates {
		existing, ok := m.txns[u.ID]
		if !ok {
			return ErrNotFound
		}
		existing.Txn.Category = u.Txn.Category
		existing.Txn.Subcategory = u.Txn.Subcategory
		existing.Txn.Extra = u.Txn.Extra
		m.txns[u.ID] = existing
	}
	return nil
}

func (m *MemoryTransactions) CountByCustomer(ctx context.Context, customerID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, st := range m.txns {
		if st.CustomerID == customerID {
			count++
		}
	}
	return count, nil
}

func sortByDate(txns []StoredTransaction) {
	sort.Slice(txns, func(i, j int) bool {
		if !txns[i].Txn.Date.Equal(txns[j].Txn.Date) {
			return txns[i].Txn.Date.Before(txns[j].Txn.Date)
		}
		return txns[i].ID < txns[j].ID
	})
}

// MemoryFactors keeps at most one live factor record per customer.
type MemoryFactors struct {
	mu      sync.RWMutex
	factors map[string]domain.CreditFactors
}

func NewMemoryFactors() *MemoryFactors {
	return &MemoryFactors{factors: make(map[string]domain.CreditFactors)}
}

func (m *MemoryFactors) Upsert(ctx context.Context, factors *domain.CreditFactors) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factors[factors.CustomerID] = *factors
	return nil
}

func (m *MemoryFactors) FindByCustomer(ctx context.Context, customerID string) (*domain.CreditFactors, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.factors[customerID]
	if !ok {
		return nil, ErrNotFound
	}
	return &f, nil
}

// MemoryAssessments is append-only per the assessment contract.
type MemoryAssessments struct {
	mu          sync.RWMutex
	assessments []domain.CreditAssessment
}

func NewMemoryAssessments() *MemoryAssessments {
	return &MemoryAssessments{}
}

func (m *MemoryAssessments) Append(ctx context.Context, assessment *domain.CreditAssessment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assessments = append(m.assessments, *assessment)
	return nil
}

func (m *MemoryAssessments) FindByCustomer(ctx context.Context, customerID string) ([]*domain.CreditAssessment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.CreditAssessment
	for i := range m.assessments {
		if m.assessments[i].CustomerID == customerID {
			a := m.assessments[i]
			out = append(out, &a)
		}
	}
	return out, nil
}

func (m *MemoryAssessments) Latest(ctx context.Context, customerID string) (*domain.CreditAssessment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *domain.CreditAssessment
	for i := range m.assessments {
		if m.assessments[i].CustomerID != customerID {
			continue
		}
		if latest == nil || m.assessments[i].CreatedAt.After(latest.CreatedAt) {
			a := m.assessments[i]
			latest = &a
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest, nil
}

func (m *MemoryAssessments) CountByRiskLevel(ctx context.Context) (map[domain.RiskLevel]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[domain.RiskLevel]int)
	for i := range m.assessments {
		counts[m.assessments[i].RiskLevel]++
	}
	return counts, nil
}

func (m *MemoryAssessments) AverageScore(ctx context.Context) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.assessments) == 0 {
		return 0, nil
	}
	total := 0
	for i := range m.assessments {
		total += m.assessments[i].Score
	}
	return float64(total) / float64(len(m.assessments)), nil
}

// MemorySupplementary keeps the alternative-data record per customer.
type MemorySupplementary struct {
	mu   sync.RWMutex
	data map[string]domain.SupplementaryData
}

func NewMemorySupplementary() *MemorySupplementary {
	return &MemorySupplementary{data: make(map[string]domain.SupplementaryData)}
}

func (m *MemorySupplementary) Upsert(ctx context.Context, data *domain.SupplementaryData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[data.CustomerID] = *data
	return nil
}

func (m *MemorySupplementary) FindByCustomer(ctx context.Context, customerID string) (*domain.SupplementaryData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.data[customerID]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

// MemoryQueue implements the atomic-claim queue contract: the claim scan and
// status flip happen under one lock, so no two callers get the same item.
type MemoryQueue struct {
	mu    sync.Mutex
	items map[string]domain.QueueItem
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{items: make(map[string]domain.QueueItem)}
}

func (m *MemoryQueue) Enqueue(ctx context.Context, item *domain.QueueItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.ID] = *item
	return nil
}

func (m *MemoryQueue) ClaimNext(ctx context.Context) (*domain.QueueItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var best *domain.QueueItem
	for id := range m.items {
		item := m.items[id]
		if item.Status != domain.QueueStatusQueued && item.Status != domain.QueueStatusRetry {
			continue
		}
		if best == nil || claimBefore(&item, best) {
			b := item
			best = &b
		}
	}
	if best == nil {
		return nil, ErrQueueEmpty
	}

	now := time.Now()
	best.Status = domain.QueueStatusProcessing
	best.StartedAt = &now
	best.Attempts++
	m.items[best.ID] = *best
	return best, nil
}

// claimBefore orders by priority ascending (1 is highest), then enqueue time
// ascending, then id for stability.
func claimBefore(a, b *domain.QueueItem) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if !a.EnqueuedAt.Equal(b.EnqueuedAt) {
		return a.EnqueuedAt.Before(b.EnqueuedAt)
	}
	return a.ID < b.ID
}

func (m *MemoryQueue) Update(ctx context.Context, item *domain.QueueItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[item.ID]; !ok {
		return ErrNotFound
	}
	m.items[item.ID] = *item
	return nil
}

func (m *MemoryQueue) FindByID(ctx context.Context, id string) (*domain.QueueItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &item, nil
}

func (m *MemoryQueue) FindByDocument(ctx context.Context, documentID string) (*domain.QueueItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.items {
		if m.items[id].DocumentID == documentID {
			item := m.items[id]
			return &item, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryQueue) CountByStatus(ctx context.Context) (map[domain.QueueStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[domain.QueueStatus]int)
	for id := range m.items {
		counts[m.items[id].Status]++
	}
	return counts, nil
}
