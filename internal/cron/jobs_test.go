package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bloblets/arena-backend/internal/ledger"
	"github.com/bloblets/arena-backend/pkg/db/models"
	"github.com/bloblets/arena-backend/pkg/enums"
	"github.com/bloblets/arena-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test"})
}

type fakeOrderExpirer struct {
	expired int64
	err     error
	calls   int
}

func (f *fakeOrderExpirer) ExpireStale(ctx context.Context) (int64, error) {
	f.calls++
	return f.expired, f.err
}

func TestOrderTTLJobExpiresQuotes(t *testing.T) {
	expirer := &fakeOrderExpirer{expired: 3}
	job, err := NewOrderTTLJob(OrderTTLJobParams{Logger: testLogger(), Orders: expirer})
	if err != nil {
		t.Fatalf("NewOrderTTLJob: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if expirer.calls != 1 {
		t.Fatalf("expected one expire call, got %d", expirer.calls)
	}
}

func TestOrderTTLJobPropagatesErrors(t *testing.T) {
	expirer := &fakeOrderExpirer{err: errors.New("boom")}
	job, err := NewOrderTTLJob(OrderTTLJobParams{Logger: testLogger(), Orders: expirer})
	if err != nil {
		t.Fatalf("NewOrderTTLJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

type fakeSwapReader struct {
	swaps      []models.TreasurySwap
	lastCutoff time.Time
	err        error
}

func (f *fakeSwapReader) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]models.TreasurySwap, error) {
	f.lastCutoff = cutoff
	return f.swaps, f.err
}

func TestStaleSwapJobUsesConfiguredAge(t *testing.T) {
	reader := &fakeSwapReader{swaps: []models.TreasurySwap{
		{ID: uuid.New(), Direction: enums.SwapDirectionDeposit, Status: enums.SwapStatusPending},
	}}
	job, err := NewStaleSwapJob(StaleSwapJobParams{
		Logger: testLogger(),
		Swaps:  reader,
		Age:    6 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewStaleSwapJob: %v", err)
	}

	before := time.Now().UTC().Add(-6 * time.Hour)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	after := time.Now().UTC().Add(-6 * time.Hour)
	if reader.lastCutoff.Before(before) || reader.lastCutoff.After(after) {
		t.Fatalf("cutoff %s outside expected window", reader.lastCutoff)
	}
}

func TestStaleSwapJobPropagatesErrors(t *testing.T) {
	reader := &fakeSwapReader{err: errors.New("boom")}
	job, err := NewStaleSwapJob(StaleSwapJobParams{Logger: testLogger(), Swaps: reader})
	if err != nil {
		t.Fatalf("NewStaleSwapJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

type fakeUpkeepLedger struct {
	appends []ledger.EntryInput
	failFor string
}

func (f *fakeUpkeepLedger) Append(ctx context.Context, input ledger.EntryInput) (models.LedgerEntry, error) {
	if input.Address == f.failFor {
		return models.LedgerEntry{}, errors.New("append failed")
	}
	f.appends = append(f.appends, input)
	return models.LedgerEntry{Address: input.Address, Delta: input.Delta}, nil
}

func (f *fakeUpkeepLedger) Balance(ctx context.Context, addr string) (int64, error) {
	return 0, nil
}

func (f *fakeUpkeepLedger) History(ctx context.Context, addr string, limit int) ([]models.LedgerEntry, error) {
	return nil, nil
}

func (f *fakeUpkeepLedger) WithAccounts(ctx context.Context, addresses []string, fn func(tx *gorm.DB, app ledger.Appender) error) error {
	return errors.New("not used")
}

type fakeBalanceReader struct {
	rows []ledger.AddressBalance
	err  error
}

func (f *fakeBalanceReader) ActiveBalances(ctx context.Context) ([]ledger.AddressBalance, error) {
	return f.rows, f.err
}

func TestCareUpkeepJobDebitsActiveAddresses(t *testing.T) {
	led := &fakeUpkeepLedger{}
	reader := &fakeBalanceReader{rows: []ledger.AddressBalance{
		{Address: "0xaaa", Balance: 100},
		{Address: "0xbbb", Balance: 3},
	}}
	job, err := NewCareUpkeepJob(CareUpkeepJobParams{
		Logger:   testLogger(),
		Ledger:   led,
		Balances: reader,
		Points:   5,
	})
	if err != nil {
		t.Fatalf("NewCareUpkeepJob: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(led.appends) != 2 {
		t.Fatalf("expected 2 debits, got %d", len(led.appends))
	}
	if led.appends[0].Delta != -5 {
		t.Fatalf("expected full upkeep -5, got %d", led.appends[0].Delta)
	}
	// Addresses holding less than the upkeep are drained, not overdrafted.
	if led.appends[1].Delta != -3 {
		t.Fatalf("expected clamped debit -3, got %d", led.appends[1].Delta)
	}
	for _, entry := range led.appends {
		if entry.Reason != enums.LedgerReasonCareUpkeep {
			t.Fatalf("expected care_upkeep reason, got %s", entry.Reason)
		}
	}
}

func TestCareUpkeepJobCollectsPerAddressErrors(t *testing.T) {
	led := &fakeUpkeepLedger{failFor: "0xbad"}
	reader := &fakeBalanceReader{rows: []ledger.AddressBalance{
		{Address: "0xgood", Balance: 50},
		{Address: "0xbad", Balance: 50},
		{Address: "0xalso", Balance: 50},
	}}
	job, err := NewCareUpkeepJob(CareUpkeepJobParams{
		Logger:   testLogger(),
		Ledger:   led,
		Balances: reader,
		Points:   5,
	})
	if err != nil {
		t.Fatalf("NewCareUpkeepJob: %v", err)
	}

	runErr := job.Run(context.Background())
	if runErr == nil {
		t.Fatal("expected aggregated error")
	}
	// One failure must not stop the remaining addresses.
	if len(led.appends) != 2 {
		t.Fatalf("expected 2 successful debits, got %d", len(led.appends))
	}
}

func TestCareUpkeepJobRequiresPositivePoints(t *testing.T) {
	_, err := NewCareUpkeepJob(CareUpkeepJobParams{
		Logger:   testLogger(),
		Ledger:   &fakeUpkeepLedger{},
		Balances: &fakeBalanceReader{},
		Points:   0,
	})
	if err == nil {
		t.Fatal("expected error for zero upkeep")
	}
}
