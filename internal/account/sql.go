package account

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	// Database drivers.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/joebot/clipbot/internal/bus"
)

// Dialect names a SQL backend.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

const schema = `CREATE TABLE IF NOT EXISTS accounts (
	identity   BIGINT PRIMARY KEY,
	balance    INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
	created_at BIGINT NOT NULL,
	updated_at BIGINT NOT NULL
)`

// SQLStore keeps accounts in a single SQL table.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// OpenSQL opens the database, verifies the connection and creates the table.
func OpenSQL(ctx context.Context, dialect Dialect, dsn string) (*SQLStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("dsn is required")
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s database", dialect)
	}

	switch dialect {
	case DialectSQLite:
		// A single writer avoids SQLITE_BUSY between workers.
		db.SetMaxOpenConns(1)
	case DialectPostgres:
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(2 * time.Hour)
		db.SetConnMaxIdleTime(15 * time.Minute)
	default:
		db.Close()
		return nil, errors.Errorf("unsupported dialect %q", dialect)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	return NewSQLStore(ctx, db, dialect)
}

// NewSQLStore wraps an open database and ensures the schema exists.
func NewSQLStore(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLStore, error) {
	if db == nil {
		return nil, errors.New("db must not be nil")
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, errors.Wrap(err, "failed to create accounts table")
	}
	return &SQLStore{db: db, dialect: dialect, now: time.Now}, nil
}

func (s *SQLStore) FindOrCreate(ctx context.Context, id bus.Identity) (*Account, error) {
	now := s.now().Unix()
	if _, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO accounts (identity, balance, created_at, updated_at) VALUES (?, 0, ?, ?)
		 ON CONFLICT (identity) DO NOTHING`),
		int64(id), now, now); err != nil {
		return nil, errors.Wrapf(err, "failed to create account %s", id)
	}

	var (
		acc              = Account{Identity: id}
		created, updated int64
	)
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT balance, created_at, updated_at FROM accounts WHERE identity = ?`),
		int64(id)).Scan(&acc.Balance, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load account %s", id)
	}
	acc.CreatedAt = time.Unix(created, 0)
	acc.UpdatedAt = time.Unix(updated, 0)
	return &acc, nil
}

func (s *SQLStore) AddCredits(ctx context.Context, id bus.Identity, n int) (int, error) {
	if n < 0 {
		return 0, errors.Errorf("add credits: negative amount %d", n)
	}
	now := s.now().Unix()
	var balance int
	err := s.db.QueryRowContext(ctx, s.rebind(
		`INSERT INTO accounts (identity, balance, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (identity) DO UPDATE SET balance = accounts.balance + excluded.balance, updated_at = excluded.updated_at
		 RETURNING balance`),
		int64(id), n, now, now).Scan(&balance)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to add %d credits to %s", n, id)
	}
	return balance, nil
}

func (s *SQLStore) ConsumeOneCredit(ctx context.Context, id bus.Identity) (int, error) {
	var balance int
	err := s.db.QueryRowContext(ctx, s.rebind(
		`UPDATE accounts SET balance = balance - 1, updated_at = ?
		 WHERE identity = ? AND balance > 0
		 RETURNING balance`),
		s.now().Unix(), int64(id)).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, ErrInsufficientBalance
	}
	if err != nil {
		return 0, errors.Wrapf(err, "failed to debit %s", id)
	}
	return balance, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var (
		b strings.Builder
		n int
	)
	b.Grow(len(query) + 8)
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
