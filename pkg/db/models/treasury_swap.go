package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bloblets/arena-backend/pkg/enums"
)

// TreasurySwap is an economic order converting between on-chain tokens and
// ledger points. Created pending; mutated only by the swap state machine;
// never deleted. The unique index on tx_signature backstops confirmation
// idempotence at the storage layer.
type TreasurySwap struct {
	ID           uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Address      string              `gorm:"column:address;not null;index"`
	Direction    enums.SwapDirection `gorm:"column:direction;type:swap_direction_enum;not null"`
	Status       enums.SwapStatus    `gorm:"column:status;type:swap_status_enum;not null;default:'pending'"`
	Source       enums.SwapSource    `gorm:"column:source;type:swap_source_enum;not null;default:'user'"`
	AmountPoints int64               `gorm:"column:amount_points;not null"`
	AmountTokens decimal.Decimal     `gorm:"column:amount_tokens;type:numeric(36,18);not null"`
	Reference    string              `gorm:"column:reference;not null"`
	TxSignature  *string             `gorm:"column:tx_signature;uniqueIndex:uq_swaps_tx_signature"`
	FailureNote  *string             `gorm:"column:failure_note"`
	ConfirmedAt  *time.Time          `gorm:"column:confirmed_at"`
	FailedAt     *time.Time          `gorm:"column:failed_at"`
	CancelledAt  *time.Time          `gorm:"column:cancelled_at"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (TreasurySwap) TableName() string {
	return "treasury_swaps"
}
