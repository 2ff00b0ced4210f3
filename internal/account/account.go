// Package account holds per-identity credit balances.
package account

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/joebot/clipbot/internal/bus"
)

var (
	// ErrInsufficientBalance is returned when a debit would take the balance below zero.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrNotFound is returned when an account does not exist.
	ErrNotFound = errors.New("account not found")
)

// Account is a participant's credit record.
type Account struct {
	Identity  bus.Identity
	Balance   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store persists accounts. Every balance change is atomic.
type Store interface {
	// FindOrCreate returns the account, creating it with a zero balance.
	FindOrCreate(ctx context.Context, id bus.Identity) (*Account, error)
	// AddCredits adds n credits, creating the account if needed, and returns the new balance.
	AddCredits(ctx context.Context, id bus.Identity, n int) (int, error)
	// ConsumeOneCredit debits one credit and returns the remaining balance,
	// or ErrInsufficientBalance when the balance is zero.
	ConsumeOneCredit(ctx context.Context, id bus.Identity) (int, error)
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Driver string // memory, sqlite, postgres, dynamodb
	DSN    string // sqlite file path or postgres connection string
	Table  string // dynamodb table
	Region string // dynamodb region
}

// New creates a store for the configured driver.
func New(ctx context.Context, opts Options) (Store, error) {
	var (
		store Store
		err   error
	)
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "", "memory":
		store = NewMemoryStore()
	case "sqlite":
		store, err = OpenSQL(ctx, DialectSQLite, opts.DSN)
	case "postgres":
		store, err = OpenSQL(ctx, DialectPostgres, opts.DSN)
	case "dynamodb":
		store, err = OpenDynamo(ctx, opts.Table, opts.Region)
	default:
		return nil, errors.Errorf("unknown store driver %q: use memory, sqlite, postgres or dynamodb", opts.Driver)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create %s store", opts.Driver)
	}
	return store, nil
}
