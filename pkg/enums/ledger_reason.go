package enums

import "fmt"

// LedgerReason maps to the ledger_reason_enum enum in Postgres.
type LedgerReason string

const (
	LedgerReasonBalanceSnapshot  LedgerReason = "balance_snapshot"
	LedgerReasonCareUpkeep       LedgerReason = "care_upkeep"
	LedgerReasonBattleWin        LedgerReason = "battle_win"
	LedgerReasonBattleLoss       LedgerReason = "battle_loss"
	LedgerReasonTreasuryCut      LedgerReason = "treasury_cut"
	LedgerReasonSwapCredit       LedgerReason = "swap_credit"
	LedgerReasonRedeemDebit      LedgerReason = "redeem_debit"
	LedgerReasonRedeemFee        LedgerReason = "redeem_fee"
	LedgerReasonManualAdjustment LedgerReason = "manual_adjustment"
)

var validLedgerReasons = []LedgerReason{
	LedgerReasonBalanceSnapshot,
	LedgerReasonCareUpkeep,
	LedgerReasonBattleWin,
	LedgerReasonBattleLoss,
	LedgerReasonTreasuryCut,
	LedgerReasonSwapCredit,
	LedgerReasonRedeemDebit,
	LedgerReasonRedeemFee,
	LedgerReasonManualAdjustment,
}

// debitLedgerReasons are the reasons that can only remove points. The ledger
// enforces the non-negative balance invariant for these.
var debitLedgerReasons = map[LedgerReason]bool{
	LedgerReasonCareUpkeep:  true,
	LedgerReasonBattleLoss:  true,
	LedgerReasonRedeemDebit: true,
	LedgerReasonRedeemFee:   true,
}

// IsValid reports whether the value matches the canonical ledger reason enum.
func (r LedgerReason) IsValid() bool {
	for _, candidate := range validLedgerReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsDebit reports whether entries with this reason must carry a negative delta.
func (r LedgerReason) IsDebit() bool {
	return debitLedgerReasons[r]
}

// ParseLedgerReason converts raw input into LedgerReason.
func ParseLedgerReason(value string) (LedgerReason, error) {
	for _, candidate := range validLedgerReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger reason %q", value)
}
