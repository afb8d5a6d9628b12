package score

import "strings"

// FlatRules prices each row once regardless of its count. Regular epiphanies
// only cost when they target a neutral or monster card, and every conversion
// costs the same.
type FlatRules struct{}

// Name returns the rule set identifier
func (FlatRules) Name() string { return "flat" }

// Description returns a one-line summary
func (FlatRules) Description() string {
	return "one charge per row; conversions always cost 10"
}

// PointsForRow prices row once.
func (FlatRules) PointsForRow(row ActionRow, occurrenceIndex int) int {
	idx := ClampIndex(occurrenceIndex)

	switch row.Type {
	case NeutralCard:
		return NeutralCardCost
	case MonsterCard:
		return MonsterCardCost
	case ForbiddenCard:
		return ForbiddenCardCost
	case RegularEpiphany:
		if row.IsCharacterCard {
			return 0
		}
		switch strings.ToLower(strings.TrimSpace(row.Subtype)) {
		case "neutral", "monster":
			return RegularEpiphanyCost
		}
		return 0
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
		return FirstConversionCost
	default:
		return 0
	}
}

// OccurrenceStep advances same-typed counters by one row, since count is ignored.
func (FlatRules) OccurrenceStep(ActionRow) int { return 1 }
