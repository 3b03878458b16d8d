package enums

// SwapStatus maps to the swap_status_enum enum in Postgres.
type SwapStatus string

const (
	SwapStatusPending   SwapStatus = "pending"
	SwapStatusConfirmed SwapStatus = "confirmed"
	SwapStatusFailed    SwapStatus = "failed"
	SwapStatusCancelled SwapStatus = "cancelled"
)

var validSwapStatuses = []SwapStatus{
	SwapStatusPending,
	SwapStatusConfirmed,
	SwapStatusFailed,
	SwapStatusCancelled,
}

// IsValid reports whether the value matches the canonical swap status enum.
func (s SwapStatus) IsValid() bool {
	for _, candidate := range validSwapStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition may leave this status.
// Every status except pending is terminal.
func (s SwapStatus) IsTerminal() bool {
	return s != SwapStatusPending
}
