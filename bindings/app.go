package bindings

import (
	"context"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"

	"github.com/MJE43/czn-savedata-calc/internal/score"
	"github.com/MJE43/czn-savedata-calc/internal/scripting"
	"github.com/MJE43/czn-savedata-calc/internal/session"
)

// ChangedEvent is emitted with the fresh RunReport after every mutation.
const ChangedEvent = "calc:changed"

// App is the Wails-bound calculator. Every mutating method returns the
// updated report so the frontend can render without a second call.
type App struct {
	mu      sync.RWMutex
	ctx     context.Context
	session *session.Session
	logger  *zap.Logger

	emit func(ctx context.Context, name string, data ...interface{})
}

// ActionOption is one entry of the action type dropdown.
type ActionOption struct {
	Value   score.ActionType `json:"value"`
	Label   string           `json:"label"`
	Indexed bool             `json:"indexed"`
}

// New binds sess and registers the app as one of its change notifiers.
func New(sess *session.Session, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		session: sess,
		logger:  logger.Named("bindings"),
		emit:    runtime.EventsEmit,
	}
	sess.AddNotifier(a)
	return a
}

// Startup stores the Wails context used for events.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	a.ctx = ctx
	a.mu.Unlock()
}

// Shutdown drops the Wails context so late notifications are not emitted.
func (a *App) Shutdown(ctx context.Context) {
	a.mu.Lock()
	a.ctx = nil
	a.mu.Unlock()
}

// RunChanged forwards session changes to the frontend.
func (a *App) RunChanged(report session.RunReport) {
	a.mu.RLock()
	ctx := a.ctx
	a.mu.RUnlock()
	if ctx == nil {
		return
	}
	a.emit(ctx, ChangedEvent, report)
}

func (a *App) GetRun() session.RunReport {
	return a.session.Report()
}

func (a *App) GetCharacter(characterID int) (score.CharacterReport, error) {
	return a.session.Character(characterID)
}

// ActionOptions lists the action types in display order.
func (a *App) ActionOptions() []ActionOption {
	out := make([]ActionOption, 0, len(score.ActionTypes))
	for _, t := range score.ActionTypes {
		out = append(out, ActionOption{Value: t, Label: t.Label(), Indexed: t.Indexed()})
	}
	return out
}

// ------------- Run configuration -------------

func (a *App) SetTier(tier int) session.RunReport {
	a.session.SetTier(tier)
	return a.session.Report()
}

func (a *App) SetNightmare(on bool) session.RunReport {
	a.session.SetNightmare(on)
	return a.session.Report()
}

func (a *App) SetCodex(modifier int) session.RunReport {
	a.session.SetCodex(modifier)
	return a.session.Report()
}

// ------------- Rule sets -------------

func (a *App) ListRuleSets() []score.RuleSetSpec {
	return score.List()
}

func (a *App) SetRuleSet(name string) (session.RunReport, error) {
	if err := a.session.SetRuleSet(name); err != nil {
		return session.RunReport{}, err
	}
	return a.session.Report(), nil
}

// SetScriptRules compiles source and makes it the active rule set.
func (a *App) SetScriptRules(source string) (session.RunReport, error) {
	if err := a.session.SetScriptRules(source); err != nil {
		a.logger.Warn("script rules rejected", zap.Error(err))
		return session.RunReport{}, err
	}
	return a.session.Report(), nil
}

func (a *App) ScriptLogs() []scripting.LogEntry {
	return a.session.ScriptLogs()
}

// ------------- Rows -------------

func (a *App) AddRow(characterID int) (score.CharacterReport, error) {
	if _, err := a.session.AddRow(characterID); err != nil {
		return score.CharacterReport{}, err
	}
	return a.session.Character(characterID)
}

// UpdateRow sets a single field from its raw form value.
func (a *App) UpdateRow(characterID int, rowID, field, value string) (score.CharacterReport, error) {
	if _, err := a.session.UpdateRow(characterID, rowID, field, value); err != nil {
		return score.CharacterReport{}, err
	}
	return a.session.Character(characterID)
}

func (a *App) RemoveRow(characterID int, rowID string) (score.CharacterReport, error) {
	if err := a.session.RemoveRow(characterID, rowID); err != nil {
		return score.CharacterReport{}, err
	}
	return a.session.Character(characterID)
}

func (a *App) MoveRow(characterID int, rowID string, index int) (score.CharacterReport, error) {
	if err := a.session.MoveRow(characterID, rowID, index); err != nil {
		return score.CharacterReport{}, err
	}
	return a.session.Character(characterID)
}

func (a *App) ResetCharacter(characterID int) (score.CharacterReport, error) {
	if err := a.session.ResetCharacter(characterID); err != nil {
		return score.CharacterReport{}, err
	}
	return a.session.Character(characterID)
}

// ResetRun clears every character, keeping the configuration and rule set.
func (a *App) ResetRun() session.RunReport {
	a.session.Reset()
	return a.session.Report()
}
