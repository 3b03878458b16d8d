package enums

import "fmt"

// SwapDirection maps to the swap_direction_enum enum in Postgres.
type SwapDirection string

const (
	SwapDirectionDeposit  SwapDirection = "deposit"
	SwapDirectionWithdraw SwapDirection = "withdraw"
)

var validSwapDirections = []SwapDirection{
	SwapDirectionDeposit,
	SwapDirectionWithdraw,
}

// IsValid reports whether the value matches the canonical swap direction enum.
func (d SwapDirection) IsValid() bool {
	for _, candidate := range validSwapDirections {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseSwapDirection converts raw input into SwapDirection.
func ParseSwapDirection(value string) (SwapDirection, error) {
	for _, candidate := range validSwapDirections {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid swap direction %q", value)
}
