// Package memory implements ticketing/storage entirely in process memory,
// following the same Store/Transaction split as the Postgres implementation
// and the teacher's own in-memory agent store: a single mutex guards all
// maps, and a transaction holds that mutex for its whole lifetime so
// AssignTicket's lock-check-increment sequence is atomic without a real
// database.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/ticketflow/engine/ticketing/models"
	"github.com/ticketflow/engine/ticketing/storage"
)

// Store is a thread-safe in-memory implementation of storage.Store, useful
// for tests.
type Store struct {
	mu sync.Mutex

	tickets    map[string]*models.Ticket
	agents     map[string]*models.SupportAgent
	rules      map[string]*models.RoutingRule
	categories map[string]*models.Category
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		tickets:    make(map[string]*models.Ticket),
		agents:     make(map[string]*models.SupportAgent),
		rules:      make(map[string]*models.RoutingRule),
		categories: make(map[string]*models.Category),
	}
}

func (s *Store) Tickets() storage.TicketRepository      { return &ticketRepo{store: s} }
func (s *Store) Agents() storage.AgentRepository        { return &agentRepo{store: s} }
func (s *Store) Rules() storage.RuleRepository          { return &ruleRepo{store: s} }
func (s *Store) Categories() storage.CategoryRepository { return &categoryRepo{store: s} }

func (s *Store) Close() error { return nil }

// Begin acquires the store's mutex for the lifetime of the transaction, so
// every repository call made through it runs without re-locking.
func (s *Store) Begin(ctx context.Context) (storage.Transaction, error) {
	s.mu.Lock()
	return &Transaction{store: s}, nil
}

// Transaction implements storage.Transaction by holding the store's mutex
// locked and operating on its maps directly (no further locking).
type Transaction struct {
	store *Store
	done  bool
}

func (t *Transaction) Tickets() storage.TicketRepository {
	return &ticketRepo{store: t.store, inTx: true}
}
func (t *Transaction) Agents() storage.AgentRepository { return &agentRepo{store: t.store, inTx: true} }
func (t *Transaction) Rules() storage.RuleRepository   { return &ruleRepo{store: t.store, inTx: true} }
func (t *Transaction) Categories() storage.CategoryRepository {
	return &categoryRepo{store: t.store, inTx: true}
}

var errTransactionClosed = errors.New("memory: transaction already committed or rolled back")

func (t *Transaction) Commit() error {
	if t.done {
		return errTransactionClosed
	}
	t.done = true
	t.store.mu.Unlock()
	return nil
}

func (t *Transaction) Rollback() error {
	if t.done {
		return errTransactionClosed
	}
	t.done = true
	t.store.mu.Unlock()
	return nil
}
