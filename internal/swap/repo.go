package swap

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bloblets/arena-backend/pkg/db/models"
	"github.com/bloblets/arena-backend/pkg/enums"
)

// errStaleStatus means the stored row left the expected status between the
// caller's load and its write. The transition must not apply.
var errStaleStatus = errors.New("swap status changed concurrently")

// Repository manages persistence for treasury swaps.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, swap *models.TreasurySwap) error
	FindByID(ctx context.Context, swapID uuid.UUID) (*models.TreasurySwap, error)
	UpdateFrom(ctx context.Context, swap *models.TreasurySwap, from enums.SwapStatus) error
	ListByAddress(ctx context.Context, addr string, limit int) ([]models.TreasurySwap, error)
	ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]models.TreasurySwap, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a swap repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, swap *models.TreasurySwap) error {
	return r.db.WithContext(ctx).Create(swap).Error
}

func (r *repository) FindByID(ctx context.Context, swapID uuid.UUID) (*models.TreasurySwap, error) {
	var swap models.TreasurySwap
	err := r.db.WithContext(ctx).Where("id = ?", swapID).Take(&swap).Error
	if err != nil {
		return nil, err
	}
	return &swap, nil
}

// UpdateFrom writes the swap's mutable fields only if the stored row is still
// in the given status. A rival writer that moved the row first makes this
// return errStaleStatus so the caller can reload and reconcile.
func (r *repository) UpdateFrom(ctx context.Context, swap *models.TreasurySwap, from enums.SwapStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.TreasurySwap{}).
		Where("id = ? AND status = ?", swap.ID, from).
		Updates(map[string]any{
			"status":       swap.Status,
			"tx_signature": swap.TxSignature,
			"confirmed_at": swap.ConfirmedAt,
			"cancelled_at": swap.CancelledAt,
			"failed_at":    swap.FailedAt,
			"failure_note": swap.FailureNote,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errStaleStatus
	}
	return nil
}

func (r *repository) ListByAddress(ctx context.Context, addr string, limit int) ([]models.TreasurySwap, error) {
	query := r.db.WithContext(ctx).
		Where("address = ?", addr).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var swaps []models.TreasurySwap
	if err := query.Find(&swaps).Error; err != nil {
		return nil, err
	}
	return swaps, nil
}

// ListPendingOlderThan returns pending swaps created before the cutoff. The
// stale-swap report job feeds on this.
func (r *repository) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]models.TreasurySwap, error) {
	var swaps []models.TreasurySwap
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", "pending", cutoff).
		Order("created_at ASC").
		Find(&swaps).Error
	if err != nil {
		return nil, err
	}
	return swaps, nil
}
