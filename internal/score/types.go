package score

import "github.com/shopspring/decimal"

// ActionType identifies what a row records. Values match the frontend's select options.
type ActionType string

const (
	NeutralCard     ActionType = "neutralCard"
	MonsterCard     ActionType = "monsterCard"
	ForbiddenCard   ActionType = "forbiddenCard"
	RegularEpiphany ActionType = "regularEpiphany"
	DivineEpiphany  ActionType = "divineEpiphany"
	CardRemoval     ActionType = "cardRemoval"
	Duplication     ActionType = "duplication"
	Conversion      ActionType = "conversion"
)

// ActionTypes lists every known type in display order.
var ActionTypes = []ActionType{
	NeutralCard,
	MonsterCard,
	ForbiddenCard,
	RegularEpiphany,
	DivineEpiphany,
	CardRemoval,
	Duplication,
	Conversion,
}

// Known reports whether t is one of the recognised action types.
func (t ActionType) Known() bool {
	for _, k := range ActionTypes {
		if t == k {
			return true
		}
	}
	return false
}

// Indexed reports whether the cost of t escalates with its occurrence index.
func (t ActionType) Indexed() bool {
	return t == CardRemoval || t == Duplication || t == Conversion
}

// Label returns a human readable name for t.
func (t ActionType) Label() string {
	switch t {
	case NeutralCard:
		return "Neutral Card"
	case MonsterCard:
		return "Monster Card"
	case ForbiddenCard:
		return "Forbidden Card"
	case RegularEpiphany:
		return "Regular Epiphany"
	case DivineEpiphany:
		return "Divine Epiphany"
	case CardRemoval:
		return "Card Removal"
	case Duplication:
		return "Card Duplication"
	case Conversion:
		return "Card Conversion"
	default:
		return string(t)
	}
}

// ActionRow is a single acquisition or deck operation entered for a character.
type ActionRow struct {
	ID              string     `json:"id"`
	Type            ActionType `json:"type"`
	Subtype         string     `json:"subtype"`
	Count           int        `json:"count"`
	IsCharacterCard bool       `json:"isCharacterCard"`
	Notes           string     `json:"notes"`
}

// Units returns the row's count clamped to at least 1.
func (r ActionRow) Units() int {
	if r.Count < 1 {
		return 1
	}
	return r.Count
}

// RowScore is the cost of one row at its position in the character's sequence.
type RowScore struct {
	Row             ActionRow `json:"row"`
	OccurrenceIndex int       `json:"occurrenceIndex"`
	Points          int       `json:"points"`
}

// ChartPoint is one bar of the per-character chart.
type ChartPoint struct {
	Type   ActionType `json:"type"`
	Points int        `json:"points"`
}

// Totals is the aggregate outcome for a character.
type Totals struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	OverCap bool `json:"overCap"`
}

// CharacterReport carries everything the frontend renders for one character.
type CharacterReport struct {
	ID           int             `json:"id"`
	Name         string          `json:"name"`
	Rows         []RowScore      `json:"rows"`
	Total        int             `json:"total"`
	Limit        int             `json:"limit"`
	OverCap      bool            `json:"overCap"`
	Remaining    int             `json:"remaining"`
	UsagePercent decimal.Decimal `json:"usagePercent"`
	Chart        []ChartPoint    `json:"chart"`
}
