package session

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/MJE43/czn-savedata-calc/internal/score"
	"github.com/MJE43/czn-savedata-calc/internal/scripting"
)

// NumCharacters is the fixed party size of a run.
const NumCharacters = 3

// RunReport is the complete scored view of a run.
type RunReport struct {
	Config        score.RunConfig         `json:"config"`
	EffectiveTier int                     `json:"effectiveTier"`
	PointLimit    int                     `json:"pointLimit"`
	RuleSet       string                  `json:"ruleSet"`
	Characters    []score.CharacterReport `json:"characters"`
	AnyOverCap    bool                    `json:"anyOverCap"`
}

// Notifier receives the fresh report after every successful mutation.
type Notifier interface {
	RunChanged(report RunReport)
}

type character struct {
	id   int
	name string
	rows []score.ActionRow
}

// Session owns the ephemeral state of one run: the run configuration, the
// active rule set and exactly three characters. It is safe for concurrent use.
type Session struct {
	mu         sync.RWMutex
	cfg        score.RunConfig
	rules      score.RuleSet
	characters [NumCharacters]character

	// publishMu is held from the start of a mutation until every notifier
	// has seen its report, so reports are published in mutation order.
	publishMu sync.Mutex
	notifyMu  sync.RWMutex
	notifiers []Notifier

	logger *zap.Logger
}

// New creates a session with three empty characters. A nil rule set selects
// the default; a nil logger discards output.
func New(cfg score.RunConfig, rules score.RuleSet, logger *zap.Logger) *Session {
	if rules == nil {
		rules = score.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		cfg:    cfg.Normalize(),
		rules:  rules,
		logger: logger,
	}
	s.resetCharacters()
	return s
}

// AddNotifier registers n as a change listener. Listeners are called in
// registration order and must not mutate the session.
func (s *Session) AddNotifier(n Notifier) {
	if n == nil {
		return
	}
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.notifiers = append(s.notifiers, n)
}

func (s *Session) resetCharacters() {
	for i := range s.characters {
		s.characters[i] = character{
			id:   i + 1,
			name: fmt.Sprintf("Character %d", i+1),
		}
	}
}

// Observe calls fn with the current report while no mutation can publish.
// A listener registered inside fn sees every later change and nothing older.
func (s *Session) Observe(fn func(RunReport)) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	fn(s.Report())
}

// changed publishes the current report to every notifier. Callers hold publishMu.
func (s *Session) changed() {
	s.notifyMu.RLock()
	ns := s.notifiers
	s.notifyMu.RUnlock()
	if len(ns) == 0 {
		return
	}
	report := s.Report()
	for _, n := range ns {
		n.RunChanged(report)
	}
}

// character returns the character with the given 1-based id. Callers hold mu.
func (s *Session) character(id int) (*character, error) {
	if id < 1 || id > NumCharacters {
		return nil, fmt.Errorf("%w: %d", ErrCharacterNotFound, id)
	}
	return &s.characters[id-1], nil
}

func (c *character) rowIndex(rowID string) (int, error) {
	for i, r := range c.rows {
		if r.ID == rowID {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrRowNotFound, rowID)
}

// ------------- Run configuration -------------

// Config returns the normalized run configuration.
func (s *Session) Config() score.RunConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// SetConfig replaces the whole run configuration after normalizing it.
func (s *Session) SetConfig(cfg score.RunConfig) score.RunConfig {
	return s.updateConfig(func(c *score.RunConfig) { *c = cfg })
}

// updateConfig applies fn to the configuration and normalizes the result.
func (s *Session) updateConfig(fn func(cfg *score.RunConfig)) score.RunConfig {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	fn(&s.cfg)
	s.cfg = s.cfg.Normalize()
	out := s.cfg
	s.mu.Unlock()

	s.logger.Debug("run config set",
		zap.Int("tier", out.Tier),
		zap.Bool("nightmare", out.NightmareMode),
		zap.Int("codex", out.CodexModifier))
	s.changed()
	return out
}

// SetTier sets the run tier. Values below 1 are clamped to 1.
func (s *Session) SetTier(tier int) score.RunConfig {
	return s.updateConfig(func(c *score.RunConfig) { c.Tier = tier })
}

// SetNightmare toggles nightmare mode.
func (s *Session) SetNightmare(on bool) score.RunConfig {
	return s.updateConfig(func(c *score.RunConfig) { c.NightmareMode = on })
}

// SetCodex sets the codex modifier, clamped to [0, 2].
func (s *Session) SetCodex(modifier int) score.RunConfig {
	return s.updateConfig(func(c *score.RunConfig) { c.CodexModifier = modifier })
}

// ------------- Rule sets -------------

// RuleSet returns the active rule set.
func (s *Session) RuleSet() score.RuleSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rules
}

// SetRuleSet activates a registered rule set by name.
func (s *Session) SetRuleSet(name string) error {
	rs, ok := score.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRuleSet, name)
	}
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	s.rules = rs
	s.mu.Unlock()

	s.logger.Info("rule set changed", zap.String("rule_set", name))
	s.changed()
	return nil
}

// SetScriptRules compiles source and activates it as the rule set.
func (s *Session) SetScriptRules(source string) error {
	rs, err := scripting.Compile(source)
	if err != nil {
		return fmt.Errorf("compile rule script: %w", err)
	}
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	s.rules = rs
	s.mu.Unlock()

	s.logger.Info("script rule set installed", zap.Int("source_bytes", len(source)))
	s.changed()
	return nil
}

// ScriptLogs returns the log buffer of the active script rule set, or nil
// when a built-in rule set is active.
func (s *Session) ScriptLogs() []scripting.LogEntry {
	s.mu.RLock()
	rs, ok := s.rules.(*scripting.RuleSet)
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	return rs.Logs()
}

// ------------- Rows -------------

// Rows returns a copy of a character's rows in order.
func (s *Session) Rows(characterID int) ([]score.ActionRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.character(characterID)
	if err != nil {
		return nil, err
	}
	out := make([]score.ActionRow, len(c.rows))
	copy(out, c.rows)
	return out, nil
}

// AddRow appends a default neutral card row to the character.
func (s *Session) AddRow(characterID int) (score.ActionRow, error) {
	return s.AddRowWith(characterID, RowPatch{})
}

// AddRowWith appends a new row initialised from p.
func (s *Session) AddRowWith(characterID int, p RowPatch) (score.ActionRow, error) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	c, err := s.character(characterID)
	if err != nil {
		s.mu.Unlock()
		return score.ActionRow{}, err
	}
	row := newRow()
	p.apply(&row)
	c.rows = append(c.rows, row)
	s.mu.Unlock()

	s.logger.Debug("row added",
		zap.Int("character", characterID),
		zap.String("row_id", row.ID),
		zap.String("type", string(row.Type)))
	s.changed()
	return row, nil
}

// UpdateRow sets one field of a row from its raw form value.
func (s *Session) UpdateRow(characterID int, rowID, field, value string) (score.ActionRow, error) {
	p, err := fieldPatch(field, value)
	if err != nil {
		return score.ActionRow{}, err
	}
	return s.PatchRow(characterID, rowID, p)
}

// PatchRow applies a typed partial update to a row in place.
func (s *Session) PatchRow(characterID int, rowID string, p RowPatch) (score.ActionRow, error) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	c, err := s.character(characterID)
	if err != nil {
		s.mu.Unlock()
		return score.ActionRow{}, err
	}
	i, err := c.rowIndex(rowID)
	if err != nil {
		s.mu.Unlock()
		return score.ActionRow{}, err
	}
	p.apply(&c.rows[i])
	row := c.rows[i]
	s.mu.Unlock()

	s.changed()
	return row, nil
}

// RemoveRow deletes a row from the character.
func (s *Session) RemoveRow(characterID int, rowID string) error {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	c, err := s.character(characterID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	i, err := c.rowIndex(rowID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	c.rows = append(c.rows[:i], c.rows[i+1:]...)
	s.mu.Unlock()

	s.logger.Debug("row removed", zap.Int("character", characterID), zap.String("row_id", rowID))
	s.changed()
	return nil
}

// MoveRow moves a row to position to, clamped to the bounds of the list.
func (s *Session) MoveRow(characterID int, rowID string, to int) error {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	c, err := s.character(characterID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	from, err := c.rowIndex(rowID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if to < 0 {
		to = 0
	}
	if to > len(c.rows)-1 {
		to = len(c.rows) - 1
	}
	row := c.rows[from]
	c.rows = append(c.rows[:from], c.rows[from+1:]...)
	c.rows = append(c.rows[:to], append([]score.ActionRow{row}, c.rows[to:]...)...)
	s.mu.Unlock()

	s.changed()
	return nil
}

// ResetCharacter clears every row of one character.
func (s *Session) ResetCharacter(characterID int) error {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	c, err := s.character(characterID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	c.rows = nil
	s.mu.Unlock()

	s.changed()
	return nil
}

// Reset restores the run to its initial state, keeping the configuration and rule set.
func (s *Session) Reset() {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	s.resetCharacters()
	s.mu.Unlock()

	s.logger.Info("run reset")
	s.changed()
}

// ------------- Reports -------------

// snapshot is the state a report is scored from, copied under mu so scoring
// (which may run script rule sets) happens without holding the lock.
type snapshot struct {
	cfg        score.RunConfig
	rules      score.RuleSet
	characters [NumCharacters]character
}

func (s *Session) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := snapshot{cfg: s.cfg, rules: s.rules}
	for i, c := range s.characters {
		rows := make([]score.ActionRow, len(c.rows))
		copy(rows, c.rows)
		snap.characters[i] = character{id: c.id, name: c.name, rows: rows}
	}
	return snap
}

// Character returns the scored view of one character.
func (s *Session) Character(characterID int) (score.CharacterReport, error) {
	if characterID < 1 || characterID > NumCharacters {
		return score.CharacterReport{}, fmt.Errorf("%w: %d", ErrCharacterNotFound, characterID)
	}
	snap := s.snapshot()
	c := snap.characters[characterID-1]
	return score.BuildCharacterReport(c.id, c.name, c.rows, snap.cfg, snap.rules), nil
}

// Report scores every character against the current configuration.
func (s *Session) Report() RunReport {
	snap := s.snapshot()

	rep := RunReport{
		Config:        snap.cfg,
		EffectiveTier: snap.cfg.EffectiveTier(),
		PointLimit:    snap.cfg.PointLimit(),
		RuleSet:       snap.rules.Name(),
		Characters:    make([]score.CharacterReport, 0, NumCharacters),
	}
	for _, c := range snap.characters {
		cr := score.BuildCharacterReport(c.id, c.name, c.rows, snap.cfg, snap.rules)
		rep.AnyOverCap = rep.AnyOverCap || cr.OverCap
		rep.Characters = append(rep.Characters, cr)
	}
	return rep
}
