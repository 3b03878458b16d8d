package enums

import "fmt"

// OrderType maps to the order_type_enum enum in Postgres. Each type names a
// token-gated action whose confirmation applies exactly one ledger effect.
type OrderType string

const (
	// OrderTypeSwapDeposit credits ledger points once an inbound token
	// transfer is verified on chain.
	OrderTypeSwapDeposit OrderType = "swap_deposit"
	// OrderTypeShopPurchase debits ledger points for a token-gated shop item.
	OrderTypeShopPurchase OrderType = "shop_purchase"
	// OrderTypeRevival debits ledger points to revive a knocked-out bloblet.
	OrderTypeRevival OrderType = "revival"
)

var validOrderTypes = []OrderType{
	OrderTypeSwapDeposit,
	OrderTypeShopPurchase,
	OrderTypeRevival,
}

// IsValid reports whether the value matches the canonical order type enum.
func (t OrderType) IsValid() bool {
	for _, candidate := range validOrderTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// LedgerReason returns the reason recorded for this order's ledger effect.
func (t OrderType) LedgerReason() LedgerReason {
	switch t {
	case OrderTypeSwapDeposit:
		return LedgerReasonSwapCredit
	case OrderTypeShopPurchase, OrderTypeRevival:
		return LedgerReasonRedeemDebit
	default:
		return LedgerReasonManualAdjustment
	}
}

// IsCredit reports whether applying this order adds points to the address.
func (t OrderType) IsCredit() bool {
	return t == OrderTypeSwapDeposit
}

// ParseOrderType converts raw input into OrderType.
func ParseOrderType(value string) (OrderType, error) {
	for _, candidate := range validOrderTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order type %q", value)
}
