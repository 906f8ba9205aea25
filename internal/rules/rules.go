// Package rules is the transaction categorization engine: a versioned
// registry of named pattern rules with deterministic highest-confidence-wins
// matching.
package rules

import (
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jumuia/creditlens/internal/domain"
)

// Category names used by the amount adjustment and the no-match fallback.
const (
	CategoryUncategorized    = "UNCATEGORIZED"
	CategoryHighValue        = "HIGH_VALUE"
	CategorySmallTransaction = "SMALL_TRANSACTION"
)

// Amount adjustment thresholds: very large transactions without a strong
// match move to the high-value bucket; tiny uncategorized ones to the
// small-transaction bucket.
var (
	highValueThreshold  = decimal.NewFromInt(100_000)
	smallValueThreshold = decimal.NewFromInt(100)
)

const (
	strongMatchConfidence = 0.7
	adjustmentBump        = 0.1
)

// Entry is one (pattern, category, subcategory, confidence) line of a rule.
type Entry struct {
	Pattern     string         `json:"pattern"` // case-insensitive regular expression
	Category    string         `json:"category"`
	Subcategory string         `json:"subcategory,omitempty"`
	Confidence  float64        `json:"confidence"` // [0,1]
	Metadata    map[string]any `json:"metadata,omitempty"`

	compiled *regexp.Regexp
}

// Registry is the injected categorization engine. Mutations are explicitly
// synchronized; concurrent Categorize calls always observe a complete rule
// set, never a partial mutation.
type Registry interface {
	// Categorize matches the description (and optional amount) against every
	// pattern of every rule. Highest confidence wins, first-declared wins
	// ties; no match yields UNCATEGORIZED with confidence 0.
	Categorize(description string, amount *decimal.Decimal) domain.CategorizationResult
	// CategorizeBatch categorizes each transaction independently and
	// attaches match provenance to its metadata.
	CategorizeBatch(txns []domain.NormalizedTransaction) []domain.NormalizedTransaction
	// Recategorize re-runs categorization over transactions inside the date
	// range, optionally only those whose stored confidence is below
	// belowConfidence (ignored when negative).
	Recategorize(txns []domain.NormalizedTransaction, from, to time.Time, belowConfidence float64) []domain.NormalizedTransaction

	// AddRule fails if the name already exists.
	AddRule(name string, entries []Entry) error
	// UpdateRule fails if the name does not exist.
	UpdateRule(name string, entries []Entry) error
	// RemoveRule fails if the name does not exist.
	RemoveRule(name string) error

	// Rules returns a copy of the current rule set in declaration order.
	Rules() map[string][]Entry
	// Version increments on every successful mutation.
	Version() int
}

// registry is the copy-on-write implementation: mutations build a new rule
// slice under the lock and swap it in whole.
type registry struct {
	mu      sync.RWMutex
	ordered []namedRule // declaration order, drives tie-breaking
	version int
}

type namedRule struct {
	name    string
	entries []Entry
}

// NewRegistry creates a registry seeded with the given rules in order.
func NewRegistry(seed []NamedEntries) (Registry, error) {
	r := &registry{}
	for _, s := range seed {
		compiled, err := compileEntries(s.Entries)
		if err != nil {
			return nil, fmt.Errorf("seed rule %q: %w", s.Name, err)
		}
		r.ordered = append(r.ordered, namedRule{name: s.Name, entries: compiled})
	}
	return r, nil
}

// NamedEntries pairs a rule name with its ordered entries, for seeding.
type NamedEntries struct {
	Name    string
	Entries []Entry
}

func compileEntries(entries []Entry) ([]Entry, error) {
	compiled := make([]Entry, len(entries))
	for i, e := range entries {
		re, err := regexp.Compile("(?i)" + e.Pattern)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", e.Pattern, err)
		}
		if e.Confidence < 0 || e.Confidence > 1 {
			return nil, fmt.Errorf("pattern %q: confidence %v outside [0,1]", e.Pattern, e.Confidence)
		}
		e.compiled = re
		compiled[i] = e
	}
	return compiled, nil
}

func (r *registry) Categorize(description string, amount *decimal.Decimal) domain.CategorizationResult {
	r.mu.RLock()
	rules := r.ordered
	r.mu.RUnlock()

	best := domain.CategorizationResult{Category: CategoryUncategorized, Confidence: 0}
	matched := false

	for _, rule := range rules {
		for _, e := range rule.entries {
			if !e.compiled.MatchString(description) {
				continue
			}
			// Strictly-greater keeps the first-declared winner on ties.
			if !matched || e.Confidence > best.Confidence {
				best = domain.CategorizationResult{
					Category:    e.Category,
					Subcategory: e.Subcategory,
					Confidence:  e.Confidence,
					RuleName:    rule.name,
					Pattern:     e.Pattern,
				}
				matched = true
			}
		}
	}

	if amount != nil {
		best = adjustForAmount(best, *amount, matched)
	}
	return best
}

// adjustForAmount applies the optional amount-based reclassification.
func adjustForAmount(result domain.CategorizationResult, amount decimal.Decimal, matched bool) domain.CategorizationResult {
	abs := amount.Abs()
	switch {
	case abs.GreaterThanOrEqual(highValueThreshold) && result.Confidence < strongMatchConfidence:
		result.Category = CategoryHighValue
		result.Subcategory = ""
		result.Confidence = clamp01(result.Confidence + adjustmentBump)
	case abs.LessThan(smallValueThreshold) && !matched:
		result.Category = CategorySmallTransaction
		result.Confidence = clamp01(result.Confidence + adjustmentBump)
	}
	return result
}

func clamp01(f float64) float64 {
	if f > 1 {
		return 1
	}
	if f < 0 {
		return 0
	}
	return f
}

func (r *registry) CategorizeBatch(txns []domain.NormalizedTransaction) []domain.NormalizedTransaction {
	out := make([]domain.NormalizedTransaction, len(txns))
	for i, txn := range txns {
		out[i] = r.categorizeOne(txn)
	}
	return out
}

// categorizeOne returns a categorized copy; the input and its Extra map are
// never mutated.
func (r *registry) categorizeOne(txn domain.NormalizedTransaction) domain.NormalizedTransaction {
	amount := txn.Amount
	result := r.Categorize(txn.Description, &amount)

	txn.Extra = cloneExtra(txn.Extra)
	txn.Category = result.Category
	txn.Subcategory = result.Subcategory
	txn.SetExtra("categorization_confidence", result.Confidence)
	if result.RuleName != "" {
		txn.SetExtra("rule_name", result.RuleName)
		txn.SetExtra("rule_pattern", result.Pattern)
	}
	return txn
}

func cloneExtra(extra map[string]any) map[string]any {
	if extra == nil {
		return nil
	}
	clone := make(map[string]any, len(extra))
	for k, v := range extra {
		clone[k] = v
	}
	return clone
}

func (r *registry) Recategorize(txns []domain.NormalizedTransaction, from, to time.Time, belowConfidence float64) []domain.NormalizedTransaction {
	out := make([]domain.NormalizedTransaction, len(txns))
	copy(out, txns)

	for i, txn := range out {
		if txn.Date.Before(from) || txn.Date.After(to) {
			continue
		}
		if belowConfidence >= 0 {
			if stored, ok := txn.Extra["categorization_confidence"].(float64); ok && stored >= belowConfidence {
				continue
			}
		}
		out[i] = r.categorizeOne(txn)
	}
	return out
}

func (r *registry) AddRule(name string, entries []Entry) error {
	compiled, err := compileEntries(entries)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index(name) >= 0 {
		return fmt.Errorf("rule %q already exists", name)
	}
	next := make([]namedRule, len(r.ordered), len(r.ordered)+1)
	copy(next, r.ordered)
	r.ordered = append(next, namedRule{name: name, entries: compiled})
	r.version++
	return nil
}

func (r *registry) UpdateRule(name string, entries []Entry) error {
	compiled, err := compileEntries(entries)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.index(name)
	if idx < 0 {
		return fmt.Errorf("rule %q does not exist", name)
	}
	next := make([]namedRule, len(r.ordered))
	copy(next, r.ordered)
	next[idx] = namedRule{name: name, entries: compiled}
	r.ordered = next
	r.version++
	return nil
}

func (r *registry) RemoveRule(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.index(name)
	if idx < 0 {
		return fmt.Errorf("rule %q does not exist", name)
	}
	next := make([]namedRule, 0, len(r.ordered)-1)
	next = append(next, r.ordered[:idx]...)
	next = append(next, r.ordered[idx+1:]...)
	r.ordered = next
	r.version++
	return nil
}

// index must be called with the lock held.
func (r *registry) index(name string) int {
	for i, rule := range r.ordered {
		if rule.name == name {
			return i
		}
	}
	return -1
}

func (r *registry) Rules() map[string][]Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string][]Entry, len(r.ordered))
	for _, rule := range r.ordered {
		entries := make([]Entry, len(rule.entries))
		copy(entries, rule.entries)
		out[rule.name] = entries
	}
	return out
}

func (r *registry) Version() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}
