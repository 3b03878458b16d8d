package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bloblets/arena-backend/pkg/enums"
)

// PvpItem is a piece of bloblet equipment. Owned by the inventory
// collaborator; the battle resolver only reads loadouts and reassigns owners
// when loot transfers.
type PvpItem struct {
	ID           uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerAddress string         `gorm:"column:owner_address;not null;index"`
	Slot         enums.LootSlot `gorm:"column:slot;type:loot_slot_enum;not null"`
	Slug         string         `gorm:"column:slug;not null"`
	Equipped     bool           `gorm:"column:equipped;not null;default:false"`
	CreatedAt    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (PvpItem) TableName() string {
	return "pvp_items"
}
