// Package postgres implements ticketing/storage on PostgreSQL, with the
// same store/transaction split as the in-memory implementation.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/ticketflow/engine/ticketing/storage"
)

// querier is satisfied by both *sql.DB and *sql.Tx so the repository
// methods work identically inside and outside a transaction.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Store implements storage.Store on PostgreSQL.
type Store struct {
	db         *sql.DB
	tickets    *ticketRepo
	agents     *agentRepo
	rules      *ruleRepo
	categories *categoryRepo
}

// New opens a connection pool and verifies connectivity.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return NewFromDB(db), nil
}

// NewFromDB wraps an existing connection pool.
func NewFromDB(db *sql.DB) *Store {
	return &Store{
		db:         db,
		tickets:    &ticketRepo{q: db},
		agents:     &agentRepo{q: db},
		rules:      &ruleRepo{q: db},
		categories: &categoryRepo{q: db},
	}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Tickets() storage.TicketRepository      { return s.tickets }
func (s *Store) Agents() storage.AgentRepository        { return s.agents }
func (s *Store) Rules() storage.RuleRepository          { return s.rules }
func (s *Store) Categories() storage.CategoryRepository { return s.categories }

func (s *Store) Begin(ctx context.Context) (storage.Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Transaction{
		tx:         tx,
		tickets:    &ticketRepo{q: tx},
		agents:     &agentRepo{q: tx},
		rules:      &ruleRepo{q: tx},
		categories: &categoryRepo{q: tx},
	}, nil
}

// Transaction implements storage.Transaction.
type Transaction struct {
	tx         *sql.Tx
	tickets    *ticketRepo
	agents     *agentRepo
	rules      *ruleRepo
	categories *categoryRepo
}

func (t *Transaction) Tickets() storage.TicketRepository      { return t.tickets }
func (t *Transaction) Agents() storage.AgentRepository        { return t.agents }
func (t *Transaction) Rules() storage.RuleRepository          { return t.rules }
func (t *Transaction) Categories() storage.CategoryRepository { return t.categories }

func (t *Transaction) Commit() error   { return t.tx.Commit() }
func (t *Transaction) Rollback() error { return t.tx.Rollback() }
