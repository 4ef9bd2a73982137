// Package cache memoizes paydown computations by the identity of their inputs.
// The engine itself never caches; callers wrap it with a Memo.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/mcclellann/paydown/pkg/models"
)

// Schedule is one memoized computation.
type Schedule struct {
	Result *models.PaydownResult
	Log    []models.PaymentLogEntry
}

// clone copies the schedule so callers never share the cached log or result.
func (s Schedule) clone() Schedule {
	out := Schedule{Log: append([]models.PaymentLogEntry(nil), s.Log...)}
	if s.Result != nil {
		r := *s.Result
		r.AnnualSummaries = make(map[int]models.AnnualSummary, len(s.Result.AnnualSummaries))
		for y, a := range s.Result.AnnualSummaries {
			r.AnnualSummaries[y] = a
		}
		if s.Result.LatestPaymentDate != nil {
			latest := *s.Result.LatestPaymentDate
			r.LatestPaymentDate = &latest
		}
		out.Result = &r
	}
	return out
}

// Key hashes a loan definition and its events. Identical inputs, in the same
// order, always produce the same key.
func Key(def models.LoanDefinition, events []models.Event) (string, error) {
	payload, err := json.Marshal(struct {
		Loan   models.LoanDefinition `json:"loan"`
		Events []models.Event        `json:"events"`
	}{def, events})
	if err != nil {
		return "", fmt.Errorf("encode cache key: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// Stats counts lookups since the memo was created.
type Stats struct {
	Hits   uint64
	Misses uint64
	Size   int
}

// Memo caches schedules keyed by Key.
type Memo struct {
	lru    *LRUCache[Schedule]
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewMemo creates a memo holding at most size schedules for ttl each.
func NewMemo(size int, ttl time.Duration) *Memo {
	return &Memo{lru: NewLRUCache[Schedule](size, ttl)}
}

// GetOrCompute returns the cached schedule for key, or runs compute and caches
// its result. Errors are not cached. The boolean reports a cache hit.
func (m *Memo) GetOrCompute(key string, compute func() (Schedule, error)) (Schedule, bool, error) {
	if s, ok := m.lru.Get(key); ok {
		m.hits.Add(1)
		return s.clone(), true, nil
	}
	m.misses.Add(1)
	s, err := compute()
	if err != nil {
		return Schedule{}, false, err
	}
	m.lru.Set(key, s.clone())
	return s, false, nil
}

// Stats returns the hit and miss counters.
func (m *Memo) Stats() Stats {
	return Stats{Hits: m.hits.Load(), Misses: m.misses.Load(), Size: m.lru.Len()}
}
