package account

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joebot/clipbot/internal/bus"
)

func openTestSQLite(t *testing.T) *SQLStore {
	t.Helper()
	s, err := OpenSQL(context.Background(), DialectSQLite, filepath.Join(t.TempDir(), "accounts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLStoreFindOrCreate(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	acc, err := s.FindOrCreate(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, bus.Identity(42), acc.Identity)
	require.Equal(t, 0, acc.Balance)
	require.False(t, acc.CreatedAt.IsZero())

	// Second call returns the same row.
	_, err = s.AddCredits(ctx, 42, 2)
	require.NoError(t, err)
	acc, err = s.FindOrCreate(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, 2, acc.Balance)
}

func TestSQLStoreAddAndConsume(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	_, err := s.ConsumeOneCredit(ctx, 1)
	require.ErrorIs(t, err, ErrInsufficientBalance)

	bal, err := s.AddCredits(ctx, 1, 5)
	require.NoError(t, err)
	require.Equal(t, 5, bal)

	bal, err = s.AddCredits(ctx, 1, 50)
	require.NoError(t, err)
	require.Equal(t, 55, bal)

	bal, err = s.ConsumeOneCredit(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 54, bal)

	_, err = s.AddCredits(ctx, 1, -1)
	require.Error(t, err)
}

func TestSQLStoreConcurrentConsume(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()
	_, err := s.AddCredits(ctx, 9, 3)
	require.NoError(t, err)

	var (
		wg sync.WaitGroup
		ok atomic.Int32
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.ConsumeOneCredit(ctx, 9); err == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(3), ok.Load())

	acc, err := s.FindOrCreate(ctx, 9)
	require.NoError(t, err)
	require.Equal(t, 0, acc.Balance)
}

func TestOpenSQLRequiresDSN(t *testing.T) {
	_, err := OpenSQL(context.Background(), DialectSQLite, " ")
	require.Error(t, err)
}

func TestRebind(t *testing.T) {
	pg := &SQLStore{dialect: DialectPostgres}
	require.Equal(t, "UPDATE a SET b = $1 WHERE c = $2", pg.rebind("UPDATE a SET b = ? WHERE c = ?"))

	lite := &SQLStore{dialect: DialectSQLite}
	require.Equal(t, "SELECT ?", lite.rebind("SELECT ?"))
}
