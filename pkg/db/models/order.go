package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bloblets/arena-backend/pkg/enums"
)

// Order is a generic confirmable unit: quote first, verify the external
// transaction, then apply exactly one ledger effect. quote_tokens pins the
// token amount the chain transaction must move, fixed at quote time.
// applied_at is set at most once, and only together with confirmed_at; the
// unique index on tx_hash makes re-confirmation a no-op.
type Order struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Address     string            `gorm:"column:address;not null;index"`
	Type        enums.OrderType   `gorm:"column:type;type:order_type_enum;not null"`
	Status      enums.OrderStatus `gorm:"column:status;type:order_status_enum;not null;default:'pending'"`
	QuotePoints int64             `gorm:"column:quote_points;not null"`
	QuoteTokens decimal.Decimal   `gorm:"column:quote_tokens;type:numeric(36,18);not null"`
	TxHash      *string           `gorm:"column:tx_hash;uniqueIndex:uq_orders_tx_hash"`
	Metadata    json.RawMessage   `gorm:"column:metadata;type:jsonb"`
	ExpiresAt   time.Time         `gorm:"column:expires_at;not null"`
	ConfirmedAt *time.Time        `gorm:"column:confirmed_at"`
	AppliedAt   *time.Time        `gorm:"column:applied_at"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string {
	return "orders"
}
