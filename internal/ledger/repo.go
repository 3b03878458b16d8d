package ledger

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/bloblets/arena-backend/pkg/db/models"
)

// AddressBalance pairs an address with its current balance.
type AddressBalance struct {
	Address string `gorm:"column:address"`
	Balance int64  `gorm:"column:balance"`
}

// Repository manages persistence for ledger entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, entry *models.LedgerEntry) error
	Tail(ctx context.Context, address string) (*models.LedgerEntry, error)
	LatestBalance(ctx context.Context, address string) (int64, error)
	ListByAddress(ctx context.Context, address string, limit int) ([]models.LedgerEntry, error)
	ActiveBalances(ctx context.Context) ([]AddressBalance, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, entry *models.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// Tail reads the newest entry for the address, nil when no history exists.
// Appenders chain their parent_id off it.
func (r *repository) Tail(ctx context.Context, address string) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("address = ?", address).
		Order("id DESC").
		Take(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// LatestBalance reads the newest balance_after for the address. An address
// with no history has an implicit balance of 0.
func (r *repository) LatestBalance(ctx context.Context, address string) (int64, error) {
	tail, err := r.Tail(ctx, address)
	if err != nil {
		return 0, err
	}
	if tail == nil {
		return 0, nil
	}
	return tail.BalanceAfter, nil
}

// ActiveBalances returns every address whose current balance is positive.
// The upkeep job walks this set.
func (r *repository) ActiveBalances(ctx context.Context) ([]AddressBalance, error) {
	var rows []AddressBalance
	err := r.db.WithContext(ctx).Raw(`
SELECT le.address AS address, le.balance_after AS balance
FROM ledger_entries le
JOIN (
  SELECT address, MAX(id) AS max_id
  FROM ledger_entries
  GROUP BY address
) latest ON le.id = latest.max_id
WHERE le.balance_after > 0
ORDER BY le.address ASC`).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListByAddress(ctx context.Context, address string, limit int) ([]models.LedgerEntry, error) {
	query := r.db.WithContext(ctx).
		Where("address = ?", address).
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var entries []models.LedgerEntry
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
