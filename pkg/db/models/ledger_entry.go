package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/bloblets/arena-backend/pkg/enums"
)

// LedgerEntry is one immutable row of an address's point history. The store
// assigns a monotonically increasing id; balance_after is the running balance
// immediately after applying delta. parent_id is the id of the previous entry
// for the address (0 for the first); the unique index on (address, parent_id)
// rejects a writer that read a stale tail, even from another process.
type LedgerEntry struct {
	ID           int64              `gorm:"column:id;primaryKey;autoIncrement"`
	Address      string             `gorm:"column:address;not null;index:idx_ledger_address_id,priority:1;uniqueIndex:uq_ledger_address_parent,priority:1"`
	ParentID     int64              `gorm:"column:parent_id;not null;default:0;uniqueIndex:uq_ledger_address_parent,priority:2"`
	Reason       enums.LedgerReason `gorm:"column:reason;type:ledger_reason_enum;not null"`
	Delta        int64              `gorm:"column:delta;not null"`
	BalanceAfter int64              `gorm:"column:balance_after;not null"`
	BattleID     *uuid.UUID         `gorm:"column:battle_id;type:uuid"`
	SwapID       *uuid.UUID         `gorm:"column:swap_id;type:uuid"`
	Metadata     json.RawMessage    `gorm:"column:metadata;type:jsonb"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (LedgerEntry) TableName() string {
	return "ledger_entries"
}
