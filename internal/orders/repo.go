package orders

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
var errStaleStatus = errors.New("order status changed concurrently")

// Repository manages persistence for confirmable orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	UpdateFrom(ctx context.Context, order *models.Order, from enums.OrderStatus) error
	ListByAddress(ctx context.Context, addr string, limit int) ([]models.Order, error)
	ExpirePending(ctx context.Context, cutoff time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an orders repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Where("id = ?", orderID).Take(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateFrom writes the order's mutable fields only if the stored row is
// still in the given status. A rival writer that moved the row first makes
// this return errStaleStatus so the caller can reload and reconcile.
func (r *repository) UpdateFrom(ctx context.Context, order *models.Order, from enums.OrderStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", order.ID, from).
		Updates(map[string]any{
			"status":       order.Status,
			"tx_hash":      order.TxHash,
			"confirmed_at": order.ConfirmedAt,
			"applied_at":   order.AppliedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errStaleStatus
	}
	return nil
}

func (r *repository) ListByAddress(ctx context.Context, addr string, limit int) ([]models.Order, error) {
	query := r.db.WithContext(ctx).
		Where("address = ?", addr).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// ExpirePending flips every pending order whose quote lapsed before the
// cutoff. Returns the number of orders expired.
func (r *repository) ExpirePending(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("status = ? AND expires_at < ?", enums.OrderStatusPending, cutoff).
		Update("status", enums.OrderStatusExpired)
	return result.RowsAffected, result.Error
}
