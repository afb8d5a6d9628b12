package scripting

import (
	"errors"
	"fmt"
	"math"

	"github.com/dop251/goja"

	"github.com/MJE43/czn-savedata-calc/internal/score"
)

// RuleSetName is the name under which script rules are installed in a session.
const RuleSetName = "script"

// ErrMissingPointsForRow is returned when a script does not define pointsForRow.
var ErrMissingPointsForRow = errors.New("script must define pointsForRow(row, index)")

// RuleSet prices rows by calling a user-supplied pointsForRow(row, index).
// Failures and non-numeric or negative results score 0 and are logged to the VM buffer.
type RuleSet struct {
	vm     *VM
	source string
}

// Compile runs source in a fresh VM and checks that it defines pointsForRow.
func Compile(source string) (*RuleSet, error) {
	vm := NewVM()
	if err := vm.Execute(source); err != nil {
		return nil, err
	}
	if !vm.HasFunc("pointsForRow") {
		return nil, ErrMissingPointsForRow
	}
	return &RuleSet{vm: vm, source: source}, nil
}

// Name returns the rule set identifier
func (r *RuleSet) Name() string { return RuleSetName }

// Description returns a one-line summary
func (r *RuleSet) Description() string { return "user-supplied JavaScript pointsForRow(row, index)" }

// Source returns the script the rule set was compiled from.
func (r *RuleSet) Source() string { return r.source }

// Logs returns messages written by the script and by failed calls.
func (r *RuleSet) Logs() []LogEntry { return r.vm.GetLogs() }

// PointsForRow calls the script and converts its result to a non-negative integer.
func (r *RuleSet) PointsForRow(row score.ActionRow, occurrenceIndex int) int {
	val, err := r.vm.CallPointsForRow(row, occurrenceIndex)
	if err != nil {
		r.vm.appendLog(err.Error())
		return 0
	}

	pts, ok := toPoints(val)
	if !ok {
		r.vm.appendLog(fmt.Sprintf("pointsForRow() returned %v for %s; scoring 0", val, row.Type))
		return 0
	}
	return pts
}

func toPoints(v goja.Value) (int, bool) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return 0, false
	}
	switch n := v.Export().(type) {
	case int64:
		if n < 0 {
			return 0, false
		}
		return int(n), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) || n < 0 {
			return 0, false
		}
		return int(math.Round(n)), true
	default:
		return 0, false
	}
}
