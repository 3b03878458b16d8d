package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bloblets/arena-backend/pkg/db/models"
	pkgerrors "github.com/bloblets/arena-backend/pkg/errors"
)

// Repository manages bloblet equipment ownership.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Loadout(ctx context.Context, ownerAddress string) ([]models.PvpItem, error)
	EquippedLoadout(ctx context.Context, ownerAddress string) ([]models.PvpItem, error)
	FindByID(ctx context.Context, itemID uuid.UUID) (*models.PvpItem, error)
	TransferItem(ctx context.Context, itemID uuid.UUID, from, to string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an inventory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Loadout lists every item the address owns, equipped first.
func (r *repository) Loadout(ctx context.Context, ownerAddress string) ([]models.PvpItem, error) {
	var items []models.PvpItem
	err := r.db.WithContext(ctx).
		Where("owner_address = ?", ownerAddress).
		Order("equipped DESC, slot ASC, created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// EquippedLoadout lists only the items the address has equipped.
func (r *repository) EquippedLoadout(ctx context.Context, ownerAddress string) ([]models.PvpItem, error) {
	var items []models.PvpItem
	err := r.db.WithContext(ctx).
		Where("owner_address = ? AND equipped", ownerAddress).
		Order("slot ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) FindByID(ctx context.Context, itemID uuid.UUID) (*models.PvpItem, error) {
	var item models.PvpItem
	err := r.db.WithContext(ctx).Where("id = ?", itemID).Take(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// TransferItem reassigns an item between owners. The item is unequipped on
// arrival so the new owner's per-slot limit cannot be violated. Transfers of
// items the sender no longer owns fail with a conflict.
func (r *repository) TransferItem(ctx context.Context, itemID uuid.UUID, from, to string) error {
	item, err := r.FindByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return err
	}
	if item.OwnerAddress != from {
		return pkgerrors.New(pkgerrors.CodeConflict,
			fmt.Sprintf("item %s is not owned by the sender", itemID))
	}

	result := r.db.WithContext(ctx).
		Model(&models.PvpItem{}).
		Where("id = ? AND owner_address = ?", itemID, from).
		Updates(map[string]any{"owner_address": to, "equipped": false})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "item changed owner during transfer")
	}
	return nil
}
