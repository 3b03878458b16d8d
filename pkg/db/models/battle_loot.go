package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bloblets/arena-backend/pkg/enums"
)

// BattleLoot records one item changing hands as part of a battle outcome.
type BattleLoot struct {
	ID          uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BattleID    uuid.UUID      `gorm:"column:battle_id;type:uuid;not null;index"`
	Slot        enums.LootSlot `gorm:"column:slot;type:loot_slot_enum;not null"`
	ItemID      uuid.UUID      `gorm:"column:item_id;type:uuid;not null"`
	ItemSlug    string         `gorm:"column:item_slug;not null"`
	FromAddress string         `gorm:"column:from_address;not null"`
	ToAddress   string         `gorm:"column:to_address;not null"`
	Equipped    bool           `gorm:"column:equipped;not null;default:false"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
}

func (BattleLoot) TableName() string {
	return "battle_loot"
}
