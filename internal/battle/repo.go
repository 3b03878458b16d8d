package battle

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bloblets/arena-backend/pkg/db/models"
)

// Repository manages persistence for resolved battles and their loot.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, battle *models.PvpBattle) error
	FindByID(ctx context.Context, battleID uuid.UUID) (*models.PvpBattle, error)
	ListByAddress(ctx context.Context, addr string, limit int) ([]models.PvpBattle, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a battle repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Insert writes the battle row and its loot rows together.
func (r *repository) Insert(ctx context.Context, battle *models.PvpBattle) error {
	return r.db.WithContext(ctx).Create(battle).Error
}

func (r *repository) FindByID(ctx context.Context, battleID uuid.UUID) (*models.PvpBattle, error) {
	var battle models.PvpBattle
	err := r.db.WithContext(ctx).
		Preload("Loot").
		Where("id = ?", battleID).
		Take(&battle).Error
	if err != nil {
		return nil, err
	}
	return &battle, nil
}

// ListByAddress returns battles the address fought, newest first.
func (r *repository) ListByAddress(ctx context.Context, addr string, limit int) ([]models.PvpBattle, error) {
	query := r.db.WithContext(ctx).
		Preload("Loot").
		Where("attacker_address = ? OR defender_address = ?", addr, addr).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var battles []models.PvpBattle
	if err := query.Find(&battles).Error; err != nil {
		return nil, err
	}
	return battles, nil
}
