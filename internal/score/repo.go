package score

import (
	"context"

	"gorm.io/gorm"
)

// LeaderboardRow is one address with its current ledger balance.
type LeaderboardRow struct {
	Address string `gorm:"column:address"`
	Balance int64  `gorm:"column:balance"`
}

// Repository reads aggregated score data from the ledger.
type Repository interface {
	TopBalances(ctx context.Context, limit int) ([]LeaderboardRow, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a score repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// TopBalances returns the highest current balances. The newest entry per
// address carries its balance, so the join picks MAX(id) per address. Ties
// break on address for a stable ordering.
func (r *repository) TopBalances(ctx context.Context, limit int) ([]LeaderboardRow, error) {
	var rows []LeaderboardRow
	err := r.db.WithContext(ctx).Raw(`
SELECT le.address AS address, le.balance_after AS balance
FROM ledger_entries le
JOIN (
  SELECT address, MAX(id) AS max_id
  FROM ledger_entries
  GROUP BY address
) latest ON le.id = latest.max_id
ORDER BY le.balance_after DESC, le.address ASC
LIMIT ?`, limit).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
