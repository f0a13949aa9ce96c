// Package memory is a transactional in-process store implementing the
// repository ports. It backs local runs and service tests.
//
// Transactions are serialized: Begin takes a store-wide lock that is held
// until Commit or Rollback. Each transaction works on its own copy of the
// tables, published atomically on Commit, so reads outside a transaction
// only ever see committed data and never wait on an open transaction.
package memory

import (
	"context"
	"errors"
	"sync"

	"status-promo-marketplace/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrForeignTx is returned when a repository receives a transaction that
// was not started by its store.
var ErrForeignTx = errors.New("memory: transaction not started by this store")

// tables is one version of every table. A published version is never
// mutated again.
type tables struct {
	users       map[uuid.UUID]domain.User
	walletTxs   map[uuid.UUID]domain.WalletTransaction
	campaigns   map[uuid.UUID]domain.Campaign
	promotions  map[uuid.UUID]domain.Promotion
	withdrawals map[uuid.UUID]domain.Withdrawal
	activity    []domain.ActivityEntry
}

func newTables() *tables {
	return &tables{
		users:       make(map[uuid.UUID]domain.User),
		walletTxs:   make(map[uuid.UUID]domain.WalletTransaction),
		campaigns:   make(map[uuid.UUID]domain.Campaign),
		promotions:  make(map[uuid.UUID]domain.Promotion),
		withdrawals: make(map[uuid.UUID]domain.Withdrawal),
	}
}

// clone copies every table. Values are copied in and out by the
// repositories, so shallow map copies are independent.
func (t *tables) clone() *tables {
	return &tables{
		users:       copyMap(t.users),
		walletTxs:   copyMap(t.walletTxs),
		campaigns:   copyMap(t.campaigns),
		promotions:  copyMap(t.promotions),
		withdrawals: copyMap(t.withdrawals),
		activity:    append([]domain.ActivityEntry(nil), t.activity...),
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Store holds the committed tables.
type Store struct {
	txMu      sync.Mutex   // serializes transactions
	dataMu    sync.RWMutex // guards committed
	committed *tables
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{committed: newTables()}
}

func (s *Store) current() *tables {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	return s.committed
}

// Begin implements ports.DBTransactor.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	locked := make(chan struct{})
	go func() {
		s.txMu.Lock()
		close(locked)
	}()
	select {
	case <-locked:
	case <-ctx.Done():
		// Hand the lock back once the waiter gets it.
		go func() {
			<-locked
			s.txMu.Unlock()
		}()
		return nil, ctx.Err()
	}
	return &memTx{store: s, work: s.current().clone()}, nil
}

// write runs fn against tx's working copy.
func (s *Store) write(tx pgx.Tx, fn func(db *tables) error) error {
	mt, err := s.owns(tx)
	if err != nil {
		return err
	}
	return fn(mt.work)
}

// read runs fn against tx's working copy, or against the committed tables
// when tx is nil.
func (s *Store) read(tx pgx.Tx, fn func(db *tables) error) error {
	if tx == nil {
		return fn(s.current())
	}
	mt, err := s.owns(tx)
	if err != nil {
		return err
	}
	return fn(mt.work)
}

// autocommit runs a single write outside an explicit transaction.
func (s *Store) autocommit(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) owns(tx pgx.Tx) (*memTx, error) {
	mt, ok := tx.(*memTx)
	if !ok || mt.store != s {
		return nil, ErrForeignTx
	}
	if mt.closed {
		return nil, pgx.ErrTxClosed
	}
	return mt, nil
}

// memTx satisfies pgx.Tx. Only Commit and Rollback are meaningful; the
// embedded nil interface makes every other method panic.
type memTx struct {
	pgx.Tx
	store  *Store
	work   *tables
	closed bool
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.closed = true
	t.store.dataMu.Lock()
	t.store.committed = t.work
	t.store.dataMu.Unlock()
	t.work = nil
	t.store.txMu.Unlock()
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.closed = true
	t.work = nil
	t.store.txMu.Unlock()
	return nil
}

// paginate returns the requested page of items. page and size are 1-based
// and default to 1 and 20.
func paginate[T any](items []T, page, size int) []T {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	start := (page - 1) * size
	if start >= len(items) {
		return []T{}
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
