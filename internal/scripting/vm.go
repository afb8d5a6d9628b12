package scripting

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/MJE43/czn-savedata-calc/internal/score"
)

// LogEntry represents a single log message from the script.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// VM wraps a goja runtime with sandbox restrictions and global function injection.
type VM struct {
	runtime *goja.Runtime
	mu      sync.Mutex

	logs    []LogEntry
	logsMu  sync.Mutex
	maxLogs int
}

const (
	scriptInitTimeout = 2 * time.Second
	scriptCallTimeout = 1 * time.Second
)

// NewVM creates a sandboxed goja runtime with global functions injected.
func NewVM() *VM {
	vm := &VM{
		runtime: goja.New(),
		maxLogs: 200,
	}
	vm.injectGlobalFunctions()
	injectConstants(vm.runtime)
	return vm
}

// injectGlobalFunctions registers log, console.log and clampIndex.
func (vm *VM) injectGlobalFunctions() {
	vm.runtime.Set("log", func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		vm.appendLog(strings.Join(parts, " "))
		return goja.Undefined()
	})

	console := vm.runtime.NewObject()
	console.Set("log", vm.runtime.Get("log"))
	vm.runtime.Set("console", console)

	vm.runtime.Set("clampIndex", func(call goja.FunctionCall) goja.Value {
		n := 0
		if len(call.Arguments) > 0 {
			n = toInt(call.Arguments[0])
		}
		return vm.runtime.ToValue(score.ClampIndex(n))
	})

	// Block dangerous globals.
	vm.runtime.Set("require", goja.Undefined())
	vm.runtime.Set("fetch", goja.Undefined())
	vm.runtime.Set("XMLHttpRequest", goja.Undefined())
	vm.runtime.Set("eval", goja.Undefined())
	vm.runtime.Set("Function", goja.Undefined())
}

// injectConstants exposes the action type identifiers and the cost scale.
func injectConstants(rt *goja.Runtime) {
	rt.Set("NEUTRAL_CARD", string(score.NeutralCard))
	rt.Set("MONSTER_CARD", string(score.MonsterCard))
	rt.Set("FORBIDDEN_CARD", string(score.ForbiddenCard))
	rt.Set("REGULAR_EPIPHANY", string(score.RegularEpiphany))
	rt.Set("DIVINE_EPIPHANY", string(score.DivineEpiphany))
	rt.Set("CARD_REMOVAL", string(score.CardRemoval))
	rt.Set("DUPLICATION", string(score.Duplication))
	rt.Set("CONVERSION", string(score.Conversion))

	scale := make([]int, len(score.Scale))
	copy(scale, score.Scale[:])
	rt.Set("SCALE", scale)
}

// Execute runs user script source code once to register its functions.
func (vm *VM) Execute(source string) error {
	return vm.runWithTimeout(scriptInitTimeout, func() error {
		vm.mu.Lock()
		defer vm.mu.Unlock()
		_, err := vm.runtime.RunString(source)
		if err != nil {
			return fmt.Errorf("script execution error: %w", err)
		}
		return nil
	})
}

// HasFunc returns true if the script defined a global function called name.
func (vm *VM) HasFunc(name string) bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	_, ok := goja.AssertFunction(vm.runtime.Get(name))
	return ok
}

// CallPointsForRow invokes the user-defined pointsForRow(row, index).
func (vm *VM) CallPointsForRow(row score.ActionRow, occurrenceIndex int) (goja.Value, error) {
	var out goja.Value
	err := vm.runWithTimeout(scriptCallTimeout, func() error {
		vm.mu.Lock()
		defer vm.mu.Unlock()

		fn := vm.runtime.Get("pointsForRow")
		callable, ok := goja.AssertFunction(fn)
		if !ok {
			return fmt.Errorf("pointsForRow() function is not defined")
		}

		result, err := callable(goja.Undefined(), vm.rowValue(row), vm.runtime.ToValue(occurrenceIndex))
		if err != nil {
			return fmt.Errorf("pointsForRow() error: %w", err)
		}
		out = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (vm *VM) rowValue(row score.ActionRow) goja.Value {
	obj := vm.runtime.NewObject()
	obj.Set("id", row.ID)
	obj.Set("type", string(row.Type))
	obj.Set("subtype", row.Subtype)
	obj.Set("count", row.Units())
	obj.Set("isCharacterCard", row.IsCharacterCard)
	obj.Set("notes", row.Notes)
	return obj
}

// GetLogs returns a copy of the current log buffer.
func (vm *VM) GetLogs() []LogEntry {
	vm.logsMu.Lock()
	defer vm.logsMu.Unlock()
	out := make([]LogEntry, len(vm.logs))
	copy(out, vm.logs)
	return out
}

// ClearLogs clears the log buffer.
func (vm *VM) ClearLogs() {
	vm.logsMu.Lock()
	defer vm.logsMu.Unlock()
	vm.logs = vm.logs[:0]
}

func (vm *VM) appendLog(msg string) {
	vm.logsMu.Lock()
	defer vm.logsMu.Unlock()
	if len(vm.logs) >= vm.maxLogs {
		vm.logs = vm.logs[1:]
	}
	vm.logs = append(vm.logs, LogEntry{Time: time.Now(), Message: msg})
}

func (vm *VM) runWithTimeout(timeout time.Duration, fn func() error) error {
	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		// Interrupt a runaway script execution.
		vm.runtime.Interrupt("script execution timeout")
		select {
		case err := <-done:
			vm.runtime.ClearInterrupt()
			if err != nil {
				return fmt.Errorf("script timed out: %w", err)
			}
			return fmt.Errorf("script timed out")
		case <-time.After(200 * time.Millisecond):
			return fmt.Errorf("script timed out")
		}
	}
}

func toInt(v goja.Value) int {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return 0
	}
	return int(v.ToInteger())
}
