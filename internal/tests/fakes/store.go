package fakes

import (
	"context"
	"errors"
	"sync"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/storage"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/storage/memory"
)

var ErrStoreUnavailable = errors.New("database is unavailable")

// FlakyStore is a memory store whose transaction writes fail a set number of times.
type FlakyStore struct {
	*memory.Store

	mu                  sync.Mutex
	TransactionFailures int
}

var _ storage.GovernanceStore = (*FlakyStore)(nil)

func NewFlakyStore(store *memory.Store) *FlakyStore {
	return &FlakyStore{Store: store}
}

func (s *FlakyStore) FailTransactions(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TransactionFailures = n
}

func (s *FlakyStore) CreateTransaction(ctx context.Context, tx *storage.Transaction) error {
	s.mu.Lock()
	if s.TransactionFailures > 0 {
		s.TransactionFailures--
		s.mu.Unlock()
		return ErrStoreUnavailable
	}
	s.mu.Unlock()
	return s.Store.CreateTransaction(ctx, tx)
}
