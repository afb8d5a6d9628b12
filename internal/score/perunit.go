package score

import "strings"

// Scale is the escalating cost for removals, duplications and conversions,
// indexed by how many of the same operation came before.
var Scale = [5]int{0, 10, 30, 50, 70}

// Flat per-unit costs.
const (
	NeutralCardCost      = 20
	MonsterCardCost      = 80
	ForbiddenCardCost    = 20
	RegularEpiphanyCost  = 10
	DivineEpiphanyCost   = 20
	CharacterCardPenalty = 20
	FirstConversionCost  = 10
)

// ClampIndex limits an occurrence index to the bounds of Scale.
func ClampIndex(n int) int {
	return clamp(n, 0, len(Scale)-1)
}

// PerUnitRules is the canonical cost table. Every unit of a row is priced at
// the row's occurrence index and the results are summed.
type PerUnitRules struct{}

// Name returns the rule set identifier
func (PerUnitRules) Name() string { return DefaultRuleSetName }

// Description returns a one-line summary
func (PerUnitRules) Description() string {
	return "table-driven cost per unit; first conversion costs 10"
}

// PointsForRow prices every unit of row and sums them.
func (r PerUnitRules) PointsForRow(row ActionRow, occurrenceIndex int) int {
	return row.Units() * r.unitCost(row, occurrenceIndex)
}

func (PerUnitRules) unitCost(row ActionRow, occurrenceIndex int) int {
	idx := ClampIndex(occurrenceIndex)

	switch row.Type {
	case NeutralCard:
		return NeutralCardCost
	case MonsterCard:
		return MonsterCardCost
	case ForbiddenCard:
		return ForbiddenCardCost
	case RegularEpiphany:
		if exemptEpiphany(row.Subtype) {
			return 0
		}
		return RegularEpiphanyCost
	case DivineEpiphany:
		return DivineEpiphanyCost
	case CardRemoval:
		cost := Scale[idx]
		if row.IsCharacterCard {
			cost += CharacterCardPenalty
		}
		return cost
	case Duplication:
		return Scale[idx]
	case Conversion:
		if idx == 0 {
			return FirstConversionCost
		}
		return Scale[idx]
	default:
		return 0
	}
}

// exemptEpiphany reports whether a regular epiphany subtype is free.
func exemptEpiphany(subtype string) bool {
	switch strings.ToLower(strings.TrimSpace(subtype)) {
	case "starting", "unique":
		return true
	}
	return false
}
