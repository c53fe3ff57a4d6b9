package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alexanderramin/arbor/internal/contract"
	"github.com/alexanderramin/arbor/internal/db"
	"github.com/alexanderramin/arbor/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditRepo_RecentNewestFirst(t *testing.T) {
	database := testutil.NewTestDB(t)
	repo := NewSQLiteAuditRepo(database)
	ctx := context.Background()
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repo.RecordAudit(ctx, contract.AuditEntry{
		Operation: "AddChild", AgentID: "a1", Target: "n1", Success: true, Timestamp: at,
	}))
	require.NoError(t, repo.RecordAudit(ctx, contract.AuditEntry{
		Operation: "RemoveNode", AgentID: "a2", Target: "n2",
		ErrorCode: contract.ErrForbidden, Message: "no", Timestamp: at.Add(time.Second),
	}))

	entries, err := repo.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "RemoveNode", entries[0].Operation)
	assert.False(t, entries[0].Success)
	assert.Equal(t, contract.ErrForbidden, entries[0].ErrorCode)
	assert.Equal(t, "no", entries[0].Message)
	assert.True(t, at.Add(time.Second).Equal(entries[0].Timestamp))

	assert.Equal(t, "AddChild", entries[1].Operation)
	assert.True(t, entries[1].Success)
	assert.Empty(t, entries[1].ErrorCode)

	limited, err := repo.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestAuditRepo_CountByAgent(t *testing.T) {
	database := testutil.NewTestDB(t)
	repo := NewSQLiteAuditRepo(database)
	ctx := context.Background()

	for _, agent := range []string{"a", "b", "a", "a"} {
		require.NoError(t, repo.RecordAudit(ctx, contract.AuditEntry{Operation: "GetNode", AgentID: agent, Success: true}))
	}
	counts, err := repo.CountByAgent(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 3, "b": 1}, counts)
}

func TestAuditRepo_CommitsWithBlob(t *testing.T) {
	database := testutil.NewTestDB(t)
	ctx := context.Background()
	uow := testutil.NewTestUoW(database)

	err := uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		if _, err := NewSQLiteBlobRepo(tx).Put(ctx, "current", []byte("x")); err != nil {
			return err
		}
		return NewSQLiteAuditRepo(tx).RecordAudit(ctx, contract.AuditEntry{Operation: "Save", AgentID: "cli", Success: true})
	})
	require.NoError(t, err)

	blob, err := NewSQLiteBlobRepo(database).Get(ctx, "current")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), blob.Data)
	entries, err := NewSQLiteAuditRepo(database).Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Save", entries[0].Operation)
}

func TestAuditRepo_RollbackDiscardsBlobAndEntry(t *testing.T) {
	database := testutil.NewTestDB(t)
	ctx := context.Background()
	injected := errors.New("disk full")
	uow := &testutil.FailOnNthExecUoW{DB: database, FailOn: 1, Err: injected}

	err := uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		if _, err := NewSQLiteBlobRepo(tx).Put(ctx, "current", []byte("x")); err != nil {
			return err
		}
		return NewSQLiteAuditRepo(tx).RecordAudit(ctx, contract.AuditEntry{Operation: "Save", AgentID: "cli", Success: true})
	})
	require.ErrorIs(t, err, injected)

	_, err = NewSQLiteBlobRepo(database).Get(ctx, "current")
	assert.ErrorIs(t, err, ErrNotFound)
	entries, err := NewSQLiteAuditRepo(database).Recent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// newConcurrentTestDB creates a file-backed SQLite database in a temp directory.
// Unlike :memory:, a file-backed DB shares state across all connections in the
// pool, which is required to test real concurrent access with WAL mode.
func newConcurrentTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.OpenDB(filepath.Join(t.TempDir(), "concurrent_test.db"))
	require.NoError(t, err, "failed to create concurrent test database")
	t.Cleanup(func() { database.Close() })
	return database
}

func TestAuditRepo_ConcurrentWriters(t *testing.T) {
	database := newConcurrentTestDB(t)
	repo := NewSQLiteAuditRepo(database)
	ctx := context.Background()

	const writers, perWriter = 4, 10
	var wg sync.WaitGroup
	errs := make(chan error, writers*perWriter)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				errs <- repo.RecordAudit(ctx, contract.AuditEntry{
					Operation: fmt.Sprintf("op-%d", i),
					AgentID:   fmt.Sprintf("agent-%d", w),
					Success:   true,
				})
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	counts, err := repo.CountByAgent(ctx)
	require.NoError(t, err)
	require.Len(t, counts, writers)
	for agent, n := range counts {
		assert.Equal(t, perWriter, n, agent)
	}
}
