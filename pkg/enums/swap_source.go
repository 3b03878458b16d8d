package enums

import "fmt"

// SwapSource maps to the swap_source_enum enum in Postgres.
type SwapSource string

const (
	SwapSourceUser   SwapSource = "user"
	SwapSourceAdmin  SwapSource = "admin"
	SwapSourceSystem SwapSource = "system"
)

var validSwapSources = []SwapSource{
	SwapSourceUser,
	SwapSourceAdmin,
	SwapSourceSystem,
}

// IsValid reports whether the value matches the canonical swap source enum.
func (s SwapSource) IsValid() bool {
	for _, candidate := range validSwapSources {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSwapSource converts raw input into SwapSource.
func ParseSwapSource(value string) (SwapSource, error) {
	for _, candidate := range validSwapSources {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid swap source %q", value)
}
