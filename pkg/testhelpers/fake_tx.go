package testhelpers

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
)

// FakeTx records Commit/Rollback calls. Every other pgx.Tx method panics,
// so it only suits services whose repositories are mocked.
type FakeTx struct {
	pgx.Tx

	mu         sync.Mutex
	committed  bool
	rolledBack bool
	CommitErr  error
}

func (f *FakeTx) Commit(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CommitErr != nil {
		return f.CommitErr
	}
	f.committed = true
	return nil
}

func (f *FakeTx) Rollback(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.committed {
		return pgx.ErrTxClosed
	}
	f.rolledBack = true
	return nil
}

// Committed reports whether Commit succeeded.
func (f *FakeTx) Committed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.committed
}

// RolledBack reports whether Rollback ran before any commit.
func (f *FakeTx) RolledBack() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rolledBack
}

// FakeTransactionManager hands out FakeTx values and remembers them.
type FakeTransactionManager struct {
	mu        sync.Mutex
	txs       []*FakeTx
	BeginErr  error
	CommitErr error
}

func (m *FakeTransactionManager) BeginTx(_ context.Context) (pgx.Tx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BeginErr != nil {
		return nil, m.BeginErr
	}
	tx := &FakeTx{CommitErr: m.CommitErr}
	m.txs = append(m.txs, tx)
	return tx, nil
}

// Txs returns every transaction started so far.
func (m *FakeTransactionManager) Txs() []*FakeTx {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*FakeTx, len(m.txs))
	copy(out, m.txs)
	return out
}

// LastTx returns the most recent transaction, or nil.
func (m *FakeTransactionManager) LastTx() *FakeTx {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.txs) == 0 {
		return nil
	}
	return m.txs[len(m.txs)-1]
}
