package enums

// ScoreTier is the display rank derived from a ledger balance.
type ScoreTier string

const (
	ScoreTierRookie     ScoreTier = "rookie"
	ScoreTierAdventurer ScoreTier = "adventurer"
	ScoreTierChampion   ScoreTier = "champion"
	ScoreTierLegend     ScoreTier = "legend"
)
