package store

import (
	"sync"

	"fintrack/internal/core"
)

// TransactionStore is the in-memory cache of the most recently fetched
// transaction page plus its summary. Last write wins; the backend is the
// source of truth.
type TransactionStore struct {
	broadcaster

	mu           sync.RWMutex
	transactions []core.Transaction
	summary      *core.TransactionSummary
	loading      bool
}

func NewTransactionStore() *TransactionStore {
	return &TransactionStore{}
}

// SetTransactions replaces the cached list.
func (s *TransactionStore) SetTransactions(transactions []core.Transaction) {
	s.mu.Lock()
	s.transactions = append([]core.Transaction(nil), transactions...)
	s.mu.Unlock()
	s.notify()
}

// SetSummary replaces the cached summary.
func (s *TransactionStore) SetSummary(summary core.TransactionSummary) {
	s.mu.Lock()
	s.summary = &summary
	s.mu.Unlock()
	s.notify()
}

// SetLoading flags an in-flight fetch.
func (s *TransactionStore) SetLoading(loading bool) {
	s.mu.Lock()
	s.loading = loading
	s.mu.Unlock()
	s.notify()
}

// Add prepends a newly created transaction to the cache.
func (s *TransactionStore) Add(tx core.Transaction) {
	s.mu.Lock()
	s.transactions = append([]core.Transaction{tx}, s.transactions...)
	s.mu.Unlock()
	s.notify()
}

// Clear drops the cached list and summary.
func (s *TransactionStore) Clear() {
	s.mu.Lock()
	s.transactions = nil
	s.summary = nil
	s.mu.Unlock()
	s.notify()
}

// Transactions returns a copy of the cached list.
func (s *TransactionStore) Transactions() []core.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Transaction(nil), s.transactions...)
}

// Summary returns the cached summary, or nil when none has been fetched.
func (s *TransactionStore) Summary() *core.TransactionSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.summary == nil {
		return nil
	}
	summary := *s.summary
	return &summary
}

// Loading reports whether a fetch is in flight.
func (s *TransactionStore) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}
