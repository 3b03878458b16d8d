package ledger

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/bloblets/arena-backend/pkg/config"
	"github.com/bloblets/arena-backend/pkg/db"
	"github.com/bloblets/arena-backend/pkg/db/models"
	"github.com/bloblets/arena-backend/pkg/enums"
	pkgerrors "github.com/bloblets/arena-backend/pkg/errors"
)

func setupLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS ledger_entries (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  address TEXT NOT NULL,
  parent_id INTEGER NOT NULL DEFAULT 0,
  reason TEXT NOT NULL,
  delta INTEGER NOT NULL,
  balance_after INTEGER NOT NULL,
  battle_id TEXT,
  swap_id TEXT,
  metadata TEXT,
  created_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_ledger_address_parent ON ledger_entries (address, parent_id);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func repoTestAddr(n int) string {
	return fmt.Sprintf("0x%040x", n)
}

func TestRepositoryInsertAssignsIncreasingIDs(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	addr := repoTestAddr(100)

	first := models.LedgerEntry{Address: addr, Reason: enums.LedgerReasonBattleWin, Delta: 10, BalanceAfter: 10}
	require.NoError(t, repo.Insert(context.Background(), &first))

	second := models.LedgerEntry{Address: addr, ParentID: first.ID, Reason: enums.LedgerReasonBattleWin, Delta: 5, BalanceAfter: 15}
	require.NoError(t, repo.Insert(context.Background(), &second))
	assert.Greater(t, second.ID, first.ID)
}

func TestRepositoryLatestBalance(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	addr := repoTestAddr(101)
	other := repoTestAddr(102)

	balance, err := repo.LatestBalance(context.Background(), addr)
	require.NoError(t, err)
	assert.Zero(t, balance, "unknown address starts at zero")

	credit := models.LedgerEntry{Address: addr, Reason: enums.LedgerReasonSwapCredit, Delta: 100, BalanceAfter: 100}
	require.NoError(t, repo.Insert(context.Background(), &credit))
	otherCredit := models.LedgerEntry{Address: other, Reason: enums.LedgerReasonSwapCredit, Delta: 999, BalanceAfter: 999}
	require.NoError(t, repo.Insert(context.Background(), &otherCredit))
	upkeep := models.LedgerEntry{Address: addr, ParentID: credit.ID, Reason: enums.LedgerReasonCareUpkeep, Delta: -30, BalanceAfter: 70}
	require.NoError(t, repo.Insert(context.Background(), &upkeep))

	balance, err = repo.LatestBalance(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, int64(70), balance)

	balance, err = repo.LatestBalance(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, int64(999), balance)
}

func TestRepositoryListByAddressNewestFirst(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	addr := repoTestAddr(103)

	deltas := []int64{10, 20, 30}
	running, parent := int64(0), int64(0)
	for _, delta := range deltas {
		running += delta
		entry := models.LedgerEntry{Address: addr, ParentID: parent, Reason: enums.LedgerReasonBattleWin, Delta: delta, BalanceAfter: running}
		require.NoError(t, repo.Insert(context.Background(), &entry))
		parent = entry.ID
	}

	all, err := repo.ListByAddress(context.Background(), addr, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, int64(30), all[0].Delta)
	assert.Equal(t, int64(10), all[2].Delta)

	limited, err := repo.ListByAddress(context.Background(), addr, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, int64(30), limited[0].Delta)
}

func TestRepositoryActiveBalances(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	funded := repoTestAddr(105)
	drained := repoTestAddr(106)

	fundedCredit := models.LedgerEntry{Address: funded, Reason: enums.LedgerReasonSwapCredit, Delta: 80, BalanceAfter: 80}
	require.NoError(t, repo.Insert(context.Background(), &fundedCredit))
	drainedCredit := models.LedgerEntry{Address: drained, Reason: enums.LedgerReasonSwapCredit, Delta: 40, BalanceAfter: 40}
	require.NoError(t, repo.Insert(context.Background(), &drainedCredit))
	drainedDebit := models.LedgerEntry{Address: drained, ParentID: drainedCredit.ID, Reason: enums.LedgerReasonRedeemDebit, Delta: -40, BalanceAfter: 0}
	require.NoError(t, repo.Insert(context.Background(), &drainedDebit))

	rows, err := repo.ActiveBalances(context.Background())
	require.NoError(t, err)

	byAddr := make(map[string]int64, len(rows))
	for _, row := range rows {
		byAddr[row.Address] = row.Balance
	}
	assert.Equal(t, int64(80), byAddr[funded])
	_, drainedPresent := byAddr[drained]
	assert.False(t, drainedPresent, "zero balances are not active")
}

func TestRepositoryWithTxSwapsConnection(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewRepository(db)
	addr := repoTestAddr(104)

	err := db.Transaction(func(tx *gorm.DB) error {
		scoped := repo.WithTx(tx)
		entry := models.LedgerEntry{Address: addr, Reason: enums.LedgerReasonBattleWin, Delta: 10, BalanceAfter: 10}
		if err := scoped.Insert(context.Background(), &entry); err != nil {
			return err
		}
		return fmt.Errorf("force rollback")
	})
	require.Error(t, err)

	balance, err := repo.LatestBalance(context.Background(), addr)
	require.NoError(t, err)
	assert.Zero(t, balance, "rolled back entry must not be visible")

	assert.Same(t, repo, repo.WithTx(nil), "nil tx keeps the base connection")
}

func TestRepositoryRejectsForkedTail(t *testing.T) {
	gdb := setupLedgerTestDB(t)
	repo := NewRepository(gdb)
	addr := repoTestAddr(107)

	first := models.LedgerEntry{Address: addr, Reason: enums.LedgerReasonSwapCredit, Delta: 100, BalanceAfter: 100}
	require.NoError(t, repo.Insert(context.Background(), &first))

	// A second entry claiming the same predecessor would fork the chain.
	fork := models.LedgerEntry{Address: addr, Reason: enums.LedgerReasonRedeemDebit, Delta: -60, BalanceAfter: 40}
	err := repo.Insert(context.Background(), &fork)
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err, ""), "fork must fail as a unique violation, got %v", err)
}

// staleTailRepo hands out a captured tail on the first read, mimicking a
// writer in another process that loaded its tail before a rival committed.
type staleTailRepo struct {
	inner Repository
	stale *models.LedgerEntry
	used  *bool
}

func (s *staleTailRepo) WithTx(tx *gorm.DB) Repository {
	return &staleTailRepo{inner: s.inner.WithTx(tx), stale: s.stale, used: s.used}
}

func (s *staleTailRepo) Tail(ctx context.Context, addr string) (*models.LedgerEntry, error) {
	if !*s.used {
		*s.used = true
		return s.stale, nil
	}
	return s.inner.Tail(ctx, addr)
}

func (s *staleTailRepo) Insert(ctx context.Context, entry *models.LedgerEntry) error {
	return s.inner.Insert(ctx, entry)
}

func (s *staleTailRepo) LatestBalance(ctx context.Context, addr string) (int64, error) {
	return s.inner.LatestBalance(ctx, addr)
}

func (s *staleTailRepo) ActiveBalances(ctx context.Context) ([]AddressBalance, error) {
	return s.inner.ActiveBalances(ctx)
}

func (s *staleTailRepo) ListByAddress(ctx context.Context, addr string, limit int) ([]models.LedgerEntry, error) {
	return s.inner.ListByAddress(ctx, addr, limit)
}

type gormRunner struct {
	db *gorm.DB
}

func (g gormRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

func newDBBackedService(t *testing.T, gdb *gorm.DB, repo Repository) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:   repo,
		Runner: gormRunner{db: gdb},
		Config: config.LedgerConfig{MaxAppendRetries: 3},
	})
	require.NoError(t, err)
	return svc
}

func TestStaleTailWriterRetriesToLinearHistory(t *testing.T) {
	gdb := setupLedgerTestDB(t)
	repo := NewRepository(gdb)
	addr := testAddr(t, 200)

	fresh := newDBBackedService(t, gdb, repo)
	seed, err := fresh.Append(context.Background(), EntryInput{
		Address: addr, Reason: enums.LedgerReasonSwapCredit, Delta: 100,
	})
	require.NoError(t, err)

	// A second instance reads its tail, then the first instance commits.
	staleCopy := seed
	if _, err := fresh.Append(context.Background(), EntryInput{
		Address: addr, Reason: enums.LedgerReasonRedeemDebit, Delta: -60,
	}); err != nil {
		t.Fatalf("first debit: %v", err)
	}

	used := false
	rival := newDBBackedService(t, gdb, &staleTailRepo{inner: repo, stale: &staleCopy, used: &used})
	entry, err := rival.Append(context.Background(), EntryInput{
		Address: addr, Reason: enums.LedgerReasonCareUpkeep, Delta: -30,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), entry.BalanceAfter, "retry must read the committed tail")

	history, err := repo.ListByAddress(context.Background(), addr, 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, history[1].ID, history[0].ParentID)
	assert.Equal(t, history[2].ID, history[1].ParentID)
}

func TestStaleTailWriterCannotOverdrawAcrossInstances(t *testing.T) {
	gdb := setupLedgerTestDB(t)
	repo := NewRepository(gdb)
	addr := testAddr(t, 201)

	fresh := newDBBackedService(t, gdb, repo)
	seed, err := fresh.Append(context.Background(), EntryInput{
		Address: addr, Reason: enums.LedgerReasonSwapCredit, Delta: 100,
	})
	require.NoError(t, err)

	staleCopy := seed
	if _, err := fresh.Append(context.Background(), EntryInput{
		Address: addr, Reason: enums.LedgerReasonRedeemDebit, Delta: -60,
	}); err != nil {
		t.Fatalf("first debit: %v", err)
	}

	// Off the stale tail both debits look affordable. The chain guard forces
	// a re-read, and the second debit must be refused.
	used := false
	rival := newDBBackedService(t, gdb, &staleTailRepo{inner: repo, stale: &staleCopy, used: &used})
	_, err = rival.Append(context.Background(), EntryInput{
		Address: addr, Reason: enums.LedgerReasonRedeemDebit, Delta: -60,
	})
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeInsufficientBalance, appErr.Code())

	balance, err := repo.LatestBalance(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, int64(40), balance)

	history, err := repo.ListByAddress(context.Background(), addr, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	var sum int64
	for _, e := range history {
		sum += e.Delta
	}
	assert.Equal(t, balance, sum, "deltas must reconcile with the tail balance")
}
