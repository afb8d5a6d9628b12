package session

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/MJE43/czn-savedata-calc/internal/score"
)

// Row field names accepted by UpdateRow.
const (
	FieldType            = "type"
	FieldSubtype         = "subtype"
	FieldCount           = "count"
	FieldIsCharacterCard = "isCharacterCard"
	FieldNotes           = "notes"
)

// RowPatch is a typed partial update. Nil fields are left unchanged.
type RowPatch struct {
	Type            *score.ActionType `json:"type,omitempty"`
	Subtype         *string           `json:"subtype,omitempty"`
	Count           *int              `json:"count,omitempty"`
	IsCharacterCard *bool             `json:"isCharacterCard,omitempty"`
	Notes           *string           `json:"notes,omitempty"`
}

// newRow returns a neutral card row with a fresh id.
func newRow() score.ActionRow {
	return score.ActionRow{
		ID:    uuid.NewString(),
		Type:  score.NeutralCard,
		Count: 1,
	}
}

// apply writes the non-nil fields of p onto row. Count is clamped to at least 1.
func (p RowPatch) apply(row *score.ActionRow) {
	if p.Type != nil {
		row.Type = *p.Type
	}
	if p.Subtype != nil {
		row.Subtype = *p.Subtype
	}
	if p.Count != nil {
		row.Count = *p.Count
		if row.Count < 1 {
			row.Count = 1
		}
	}
	if p.IsCharacterCard != nil {
		row.IsCharacterCard = *p.IsCharacterCard
	}
	if p.Notes != nil {
		row.Notes = *p.Notes
	}
}

// fieldPatch converts a form field and its raw value into a RowPatch.
func fieldPatch(field, value string) (RowPatch, error) {
	var p RowPatch
	switch field {
	case FieldType:
		t := score.ActionType(strings.TrimSpace(value))
		p.Type = &t
	case FieldSubtype:
		p.Subtype = &value
	case FieldCount:
		n := score.ParseCount(value)
		p.Count = &n
	case FieldIsCharacterCard:
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			b = false
		}
		p.IsCharacterCard = &b
	case FieldNotes:
		p.Notes = &value
	default:
		return RowPatch{}, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return p, nil
}
