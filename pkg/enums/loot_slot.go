package enums

import "fmt"

// LootSlot maps to the loot_slot_enum enum in Postgres. A bloblet equips at
// most one item per slot.
type LootSlot string

const (
	LootSlotHat       LootSlot = "hat"
	LootSlotOutfit    LootSlot = "outfit"
	LootSlotAccessory LootSlot = "accessory"
	LootSlotAura      LootSlot = "aura"
)

var validLootSlots = []LootSlot{
	LootSlotHat,
	LootSlotOutfit,
	LootSlotAccessory,
	LootSlotAura,
}

// IsValid reports whether the value matches the canonical loot slot enum.
func (s LootSlot) IsValid() bool {
	for _, candidate := range validLootSlots {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseLootSlot converts raw input into LootSlot.
func ParseLootSlot(value string) (LootSlot, error) {
	for _, candidate := range validLootSlots {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid loot slot %q", value)
}
