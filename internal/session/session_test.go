package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MJE43/czn-savedata-calc/internal/score"
)

type recordingNotifier struct {
	mu      sync.Mutex
	reports []RunReport
}

func (n *recordingNotifier) RunChanged(r RunReport) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reports = append(n.reports, r)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.reports)
}

func newTestSession() *Session {
	return New(score.DefaultRunConfig(), nil, nil)
}

func TestNewSessionHasThreeCharacters(t *testing.T) {
	s := newTestSession()
	rep := s.Report()

	if len(rep.Characters) != NumCharacters {
		t.Fatalf("Expected %d characters, got %d", NumCharacters, len(rep.Characters))
	}
	for i, c := range rep.Characters {
		if c.ID != i+1 {
			t.Errorf("Expected character id %d, got %d", i+1, c.ID)
		}
		if c.Total != 0 || c.Limit != 30 || c.OverCap {
			t.Errorf("Unexpected empty character report %+v", c)
		}
	}
	if rep.RuleSet != score.DefaultRuleSetName {
		t.Errorf("Expected default rule set, got %q", rep.RuleSet)
	}
}

func TestAddAndUpdateRows(t *testing.T) {
	s := newTestSession()

	row, err := s.AddRow(1)
	if err != nil {
		t.Fatalf("AddRow: %v", err)
	}
	if row.ID == "" || row.Type != score.NeutralCard || row.Count != 1 {
		t.Fatalf("Unexpected default row %+v", row)
	}

	rep, _ := s.Character(1)
	if rep.Total != 20 {
		t.Errorf("Expected total 20, got %d", rep.Total)
	}

	if _, err := s.UpdateRow(1, row.ID, FieldType, "monsterCard"); err != nil {
		t.Fatalf("UpdateRow type: %v", err)
	}
	if _, err := s.UpdateRow(1, row.ID, FieldCount, "abc"); err != nil {
		t.Fatalf("UpdateRow count: %v", err)
	}
	updated, err := s.UpdateRow(1, row.ID, FieldNotes, "from the shop")
	if err != nil {
		t.Fatalf("UpdateRow notes: %v", err)
	}
	if updated.Type != score.MonsterCard || updated.Count != 1 || updated.Notes != "from the shop" {
		t.Errorf("Unexpected updated row %+v", updated)
	}

	if _, err := s.UpdateRow(1, row.ID, FieldCount, "3"); err != nil {
		t.Fatalf("UpdateRow count: %v", err)
	}
	rep, _ = s.Character(1)
	if rep.Total != 240 {
		t.Errorf("Expected total 240, got %d", rep.Total)
	}

	// other characters are untouched
	other, _ := s.Character(2)
	if other.Total != 0 || len(other.Rows) != 0 {
		t.Errorf("Expected character 2 to be empty, got %+v", other)
	}
}

func TestUpdateRowCharacterCardField(t *testing.T) {
	s := newTestSession()
	row, _ := s.AddRowWith(1, RowPatch{Type: typePtr(score.CardRemoval)})

	got, err := s.UpdateRow(1, row.ID, FieldIsCharacterCard, "true")
	if err != nil {
		t.Fatalf("UpdateRow: %v", err)
	}
	if !got.IsCharacterCard {
		t.Error("Expected character card flag to be set")
	}

	got, _ = s.UpdateRow(1, row.ID, FieldIsCharacterCard, "maybe")
	if got.IsCharacterCard {
		t.Error("Expected invalid bool to clear the flag")
	}
}

func TestUpdateRowErrors(t *testing.T) {
	s := newTestSession()
	row, _ := s.AddRow(2)

	if _, err := s.UpdateRow(2, row.ID, "colour", "red"); !errors.Is(err, ErrUnknownField) {
		t.Errorf("Expected ErrUnknownField, got %v", err)
	}
	if _, err := s.UpdateRow(2, "missing", FieldNotes, "x"); !errors.Is(err, ErrRowNotFound) {
		t.Errorf("Expected ErrRowNotFound, got %v", err)
	}
	if _, err := s.UpdateRow(1, row.ID, FieldNotes, "x"); !errors.Is(err, ErrRowNotFound) {
		t.Errorf("Expected row of character 2 to be missing from character 1, got %v", err)
	}
	if _, err := s.AddRow(4); !errors.Is(err, ErrCharacterNotFound) {
		t.Errorf("Expected ErrCharacterNotFound, got %v", err)
	}
	if _, err := s.Character(0); !errors.Is(err, ErrCharacterNotFound) {
		t.Errorf("Expected ErrCharacterNotFound, got %v", err)
	}
}

func TestPatchRowClampsCount(t *testing.T) {
	s := newTestSession()
	row, _ := s.AddRow(3)
	zero := 0
	got, err := s.PatchRow(3, row.ID, RowPatch{Count: &zero})
	if err != nil {
		t.Fatalf("PatchRow: %v", err)
	}
	if got.Count != 1 {
		t.Errorf("Expected count clamped to 1, got %d", got.Count)
	}
}

func TestRemoveRow(t *testing.T) {
	s := newTestSession()
	a, _ := s.AddRow(1)
	b, _ := s.AddRowWith(1, RowPatch{Type: typePtr(score.MonsterCard)})

	if err := s.RemoveRow(1, a.ID); err != nil {
		t.Fatalf("RemoveRow: %v", err)
	}
	rows, _ := s.Rows(1)
	if len(rows) != 1 || rows[0].ID != b.ID {
		t.Fatalf("Expected only row %s to remain, got %+v", b.ID, rows)
	}
	if err := s.RemoveRow(1, a.ID); !errors.Is(err, ErrRowNotFound) {
		t.Errorf("Expected ErrRowNotFound on second removal, got %v", err)
	}
}

func TestMoveRowChangesOccurrenceOrder(t *testing.T) {
	s := newTestSession()
	plain, _ := s.AddRowWith(1, RowPatch{Type: typePtr(score.CardRemoval)})
	charCard := true
	special, _ := s.AddRowWith(1, RowPatch{Type: typePtr(score.CardRemoval), IsCharacterCard: &charCard})

	rep, _ := s.Character(1)
	if rep.Total != 30 {
		t.Fatalf("Expected total 30, got %d", rep.Total)
	}

	if err := s.MoveRow(1, special.ID, 0); err != nil {
		t.Fatalf("MoveRow: %v", err)
	}
	rows, _ := s.Rows(1)
	if rows[0].ID != special.ID || rows[1].ID != plain.ID {
		t.Fatalf("Unexpected order after move: %+v", rows)
	}
	rep, _ = s.Character(1)
	if rep.Total != 20+10 {
		t.Errorf("Expected total 30 after move, got %d", rep.Total)
	}
	if rep.Rows[0].Points != 20 || rep.Rows[1].Points != 10 {
		t.Errorf("Expected 20 then 10, got %d then %d", rep.Rows[0].Points, rep.Rows[1].Points)
	}

	// out of range indexes clamp
	if err := s.MoveRow(1, special.ID, 99); err != nil {
		t.Fatalf("MoveRow: %v", err)
	}
	rows, _ = s.Rows(1)
	if rows[1].ID != special.ID {
		t.Errorf("Expected row moved to the end, got %+v", rows)
	}
}

func TestRunConfigSetters(t *testing.T) {
	s := newTestSession()

	s.SetTier(3)
	s.SetNightmare(true)
	cfg := s.SetCodex(5)
	if cfg.CodexModifier != 2 {
		t.Errorf("Expected codex clamped to 2, got %d", cfg.CodexModifier)
	}

	rep := s.Report()
	if rep.EffectiveTier != 6 || rep.PointLimit != 80 {
		t.Errorf("Expected effective tier 6 and limit 80, got %d and %d", rep.EffectiveTier, rep.PointLimit)
	}

	cfg = s.SetTier(-1)
	if cfg.Tier != 1 {
		t.Errorf("Expected tier clamped to 1, got %d", cfg.Tier)
	}
}

func TestAnyOverCap(t *testing.T) {
	s := newTestSession()
	s.AddRow(2)
	if s.Report().AnyOverCap {
		t.Fatal("Expected no character over cap")
	}
	s.AddRowWith(2, RowPatch{Type: typePtr(score.MonsterCard)})
	rep := s.Report()
	if !rep.AnyOverCap || !rep.Characters[1].OverCap || rep.Characters[0].OverCap {
		t.Errorf("Expected only character 2 over cap, got %+v", rep)
	}
}

func TestSetRuleSet(t *testing.T) {
	s := newTestSession()
	s.AddRowWith(1, RowPatch{Type: typePtr(score.Conversion)})
	s.AddRowWith(1, RowPatch{Type: typePtr(score.Conversion)})
	s.AddRowWith(1, RowPatch{Type: typePtr(score.Conversion)})

	rep, _ := s.Character(1)
	if rep.Total != 10+10+30 {
		t.Fatalf("Expected per-unit total 50, got %d", rep.Total)
	}

	if err := s.SetRuleSet("flat"); err != nil {
		t.Fatalf("SetRuleSet: %v", err)
	}
	rep, _ = s.Character(1)
	if rep.Total != 30 {
		t.Errorf("Expected flat total 30, got %d", rep.Total)
	}

	if err := s.SetRuleSet("nope"); !errors.Is(err, ErrUnknownRuleSet) {
		t.Errorf("Expected ErrUnknownRuleSet, got %v", err)
	}
	if s.RuleSet().Name() != "flat" {
		t.Errorf("Expected failed switch to keep flat, got %s", s.RuleSet().Name())
	}
}

func TestSetScriptRules(t *testing.T) {
	s := newTestSession()
	s.AddRow(1)
	s.AddRow(1)

	if err := s.SetScriptRules(`function pointsForRow(row, index) { log("row", row.type); return 7; }`); err != nil {
		t.Fatalf("SetScriptRules: %v", err)
	}
	rep := s.Report()
	if rep.RuleSet != "script" {
		t.Errorf("Expected script rule set, got %q", rep.RuleSet)
	}
	if rep.Characters[0].Total != 14 {
		t.Errorf("Expected total 14, got %d", rep.Characters[0].Total)
	}
	if len(s.ScriptLogs()) == 0 {
		t.Error("Expected script logs to be captured")
	}

	if err := s.SetScriptRules(`var nothing = true;`); err == nil {
		t.Error("Expected script without pointsForRow to be rejected")
	}
	if s.RuleSet().Name() != "script" {
		t.Error("Expected rejected script to keep the previous rule set")
	}

	if err := s.SetRuleSet(score.DefaultRuleSetName); err != nil {
		t.Fatalf("SetRuleSet: %v", err)
	}
	if s.ScriptLogs() != nil {
		t.Error("Expected no script logs for a built-in rule set")
	}
}

func TestResetKeepsConfig(t *testing.T) {
	s := newTestSession()
	s.SetTier(4)
	s.AddRow(1)
	s.AddRow(3)

	if err := s.ResetCharacter(1); err != nil {
		t.Fatalf("ResetCharacter: %v", err)
	}
	if rows, _ := s.Rows(1); len(rows) != 0 {
		t.Errorf("Expected character 1 cleared, got %d rows", len(rows))
	}
	if rows, _ := s.Rows(3); len(rows) != 1 {
		t.Errorf("Expected character 3 untouched, got %d rows", len(rows))
	}

	s.Reset()
	rep := s.Report()
	for _, c := range rep.Characters {
		if len(c.Rows) != 0 {
			t.Errorf("Expected %s to be empty after reset", c.Name)
		}
	}
	if rep.Config.Tier != 4 {
		t.Errorf("Expected tier 4 to survive reset, got %d", rep.Config.Tier)
	}
}

func TestNotifierCalledOnMutation(t *testing.T) {
	s := newTestSession()
	n := &recordingNotifier{}
	other := &recordingNotifier{}
	s.AddNotifier(n)
	s.AddNotifier(other)
	s.AddNotifier(nil)

	row, _ := s.AddRow(1)
	s.UpdateRow(1, row.ID, FieldType, "monsterCard")
	s.SetTier(2)
	s.RemoveRow(1, row.ID)

	if got := n.count(); got != 4 {
		t.Fatalf("Expected 4 notifications, got %d", got)
	}
	if got := other.count(); got != 4 {
		t.Errorf("Expected every notifier to be called, second got %d", got)
	}
	if n.reports[1].Characters[0].Total != 80 {
		t.Errorf("Expected second notification to carry total 80, got %d", n.reports[1].Characters[0].Total)
	}

	// failed mutations do not notify
	s.RemoveRow(1, "missing")
	if got := n.count(); got != 4 {
		t.Errorf("Expected failed mutation not to notify, got %d notifications", got)
	}
}

func TestConcurrentMutations(t *testing.T) {
	s := newTestSession()
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			s.AddRow(id%NumCharacters + 1)
			_ = s.Report()
		}(i)
	}
	wg.Wait()

	total := 0
	for _, c := range s.Report().Characters {
		total += len(c.Rows)
	}
	if total != 30 {
		t.Errorf("Expected 30 rows, got %d", total)
	}
}

func TestOccurrenceCountersArePerCharacter(t *testing.T) {
	s := newTestSession()
	removal := typePtr(score.CardRemoval)
	s.AddRowWith(1, RowPatch{Type: removal})
	s.AddRowWith(1, RowPatch{Type: removal})
	s.AddRowWith(2, RowPatch{Type: removal})

	first, _ := s.Character(1)
	if len(first.Rows) != 2 {
		t.Fatalf("Expected 2 rows for character 1, got %d", len(first.Rows))
	}
	if first.Rows[0].OccurrenceIndex != 0 || first.Rows[1].OccurrenceIndex != 1 {
		t.Errorf("Expected indexes 0 and 1, got %d and %d", first.Rows[0].OccurrenceIndex, first.Rows[1].OccurrenceIndex)
	}
	if first.Total != 10 {
		t.Errorf("Expected character 1 total 10, got %d", first.Total)
	}

	second, _ := s.Character(2)
	if len(second.Rows) != 1 {
		t.Fatalf("Expected 1 row for character 2, got %d", len(second.Rows))
	}
	if got := second.Rows[0]; got.OccurrenceIndex != 0 || got.Points != 0 {
		t.Errorf("Expected character 2 removal at index 0 costing 0, got index %d points %d", got.OccurrenceIndex, got.Points)
	}
}

func TestNotificationsFollowMutationOrder(t *testing.T) {
	s := newTestSession()
	n := &recordingNotifier{}
	s.AddNotifier(n)

	const adds = 50
	var wg sync.WaitGroup
	for i := 0; i < adds; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AddRow(1)
		}()
	}
	wg.Wait()

	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.reports) != adds {
		t.Fatalf("Expected %d notifications, got %d", adds, len(n.reports))
	}
	for i, rep := range n.reports {
		if got := len(rep.Characters[0].Rows); got != i+1 {
			t.Fatalf("Notification %d carried %d rows, want %d", i, got, i+1)
		}
	}
}

func TestObserveHoldsOffMutations(t *testing.T) {
	s := newTestSession()
	s.AddRow(1)

	done := make(chan struct{})
	s.Observe(func(rep RunReport) {
		if len(rep.Characters[0].Rows) != 1 {
			t.Errorf("Expected 1 row in observed report, got %d", len(rep.Characters[0].Rows))
		}
		go func() {
			s.AddRow(1)
			close(done)
		}()
		select {
		case <-done:
			t.Error("Mutation completed while observing")
		case <-time.After(50 * time.Millisecond):
		}
	})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Mutation did not complete after observe returned")
	}
}

// gateRules blocks inside the first PointsForRow call until released.
type gateRules struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gateRules) Name() string        { return "gate" }
func (g *gateRules) Description() string { return "blocks the first row" }

func (g *gateRules) PointsForRow(row score.ActionRow, occurrenceIndex int) int {
	g.once.Do(func() {
		close(g.entered)
		<-g.release
	})
	return 1
}

func TestSlowRulesDoNotBlockWriters(t *testing.T) {
	g := &gateRules{entered: make(chan struct{}), release: make(chan struct{})}
	s := New(score.DefaultRunConfig(), g, nil)
	s.AddRow(1)

	reported := make(chan RunReport)
	go func() { reported <- s.Report() }()
	<-g.entered

	wrote := make(chan struct{})
	go func() {
		s.SetTier(5)
		s.AddRow(2)
		close(wrote)
	}()
	select {
	case <-wrote:
	case <-time.After(5 * time.Second):
		t.Fatal("Writers blocked while a report was being scored")
	}

	close(g.release)
	rep := <-reported
	if rep.Config.Tier != 1 || len(rep.Characters[1].Rows) != 0 {
		t.Errorf("Expected the report to reflect the state when it started, got tier %d", rep.Config.Tier)
	}
}

func typePtr(t score.ActionType) *score.ActionType { return &t }
