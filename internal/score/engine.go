package score

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Stepper is implemented by rule sets that advance occurrence counters by
// something other than the row's unit count.
type Stepper interface {
	OccurrenceStep(row ActionRow) int
}

// PointsForRow prices row with the canonical rule set.
func PointsForRow(row ActionRow, occurrenceIndex int) int {
	return PerUnitRules{}.PointsForRow(row, occurrenceIndex)
}

// ScoreRows walks rows in order and prices each one at its occurrence index.
// Counters are kept per type and advanced after the row is priced.
func ScoreRows(rows []ActionRow, rs RuleSet) []RowScore {
	if rs == nil {
		rs = PerUnitRules{}
	}
	stepper, _ := rs.(Stepper)

	counters := make(map[ActionType]int, 3)
	out := make([]RowScore, 0, len(rows))
	for _, row := range rows {
		idx := 0
		if row.Type.Indexed() {
			idx = counters[row.Type]
		}
		out = append(out, RowScore{
			Row:             row,
			OccurrenceIndex: idx,
			Points:          rs.PointsForRow(row, idx),
		})
		if row.Type.Indexed() {
			step := row.Units()
			if stepper != nil {
				step = stepper.OccurrenceStep(row)
			}
			counters[row.Type] += step
		}
	}
	return out
}

// ComputeCharacterTotals sums the canonical cost of rows and compares it with
// the limit derived from cfg.
func ComputeCharacterTotals(rows []ActionRow, cfg RunConfig) Totals {
	return ComputeTotalsWith(rows, cfg, PerUnitRules{})
}

// ComputeTotalsWith is ComputeCharacterTotals with an explicit rule set.
func ComputeTotalsWith(rows []ActionRow, cfg RunConfig, rs RuleSet) Totals {
	return totalsOf(ScoreRows(rows, rs), cfg)
}

func totalsOf(scores []RowScore, cfg RunConfig) Totals {
	total := 0
	for _, s := range scores {
		total += s.Points
	}
	limit := cfg.PointLimit()
	return Totals{
		Total:   total,
		Limit:   limit,
		OverCap: total > limit,
	}
}

// BuildCharacterReport scores rows and assembles the full per-character view.
func BuildCharacterReport(id int, name string, rows []ActionRow, cfg RunConfig, rs RuleSet) CharacterReport {
	scores := ScoreRows(rows, rs)
	totals := totalsOf(scores, cfg)

	chart := make([]ChartPoint, len(scores))
	for i, s := range scores {
		chart[i] = ChartPoint{Type: s.Row.Type, Points: s.Points}
	}

	return CharacterReport{
		ID:           id,
		Name:         name,
		Rows:         scores,
		Total:        totals.Total,
		Limit:        totals.Limit,
		OverCap:      totals.OverCap,
		Remaining:    totals.Limit - totals.Total,
		UsagePercent: UsagePercent(totals.Total, totals.Limit),
		Chart:        chart,
	}
}

var hundred = decimal.NewFromInt(100)

// UsagePercent returns total/limit*100 rounded to one decimal place.
// A non-positive limit yields zero.
func UsagePercent(total, limit int) decimal.Decimal {
	if limit <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(total)).
		Mul(hundred).
		DivRound(decimal.NewFromInt(int64(limit)), 1)
}

// ParseCount converts user input to a unit count. Anything that is not a
// positive integer yields 1.
func ParseCount(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 1
	}
	return n
}
