package score

import (
	"sort"
	"sync"
)

// RuleSet prices a single row given how many same-typed units preceded it.
type RuleSet interface {
	// Name returns the rule set's identifier
	Name() string

	// Description returns a one-line summary for listings
	Description() string

	// PointsForRow returns the cost of row when occurrenceIndex same-typed units came before it
	PointsForRow(row ActionRow, occurrenceIndex int) int
}

// RuleSetSpec describes a registered rule set.
type RuleSetSpec struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Default     bool   `json:"default"`
}

// DefaultRuleSetName is the canonical rule set.
const DefaultRuleSetName = "per-unit"

var (
	registryMu sync.RWMutex
	registry   = make(map[string]RuleSet)
)

// Register adds a rule set to the registry, replacing any set with the same name.
func Register(rs RuleSet) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[rs.Name()] = rs
}

// Lookup retrieves a rule set by name.
func Lookup(name string) (RuleSet, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	rs, ok := registry[name]
	return rs, ok
}

// Default returns the per-unit rule set.
func Default() RuleSet {
	rs, _ := Lookup(DefaultRuleSetName)
	return rs
}

// List returns all registered rule sets sorted by name.
func List() []RuleSetSpec {
	registryMu.RLock()
	defer registryMu.RUnlock()
	specs := make([]RuleSetSpec, 0, len(registry))
	for name, rs := range registry {
		specs = append(specs, RuleSetSpec{
			Name:        name,
			Description: rs.Description(),
			Default:     name == DefaultRuleSetName,
		})
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

func init() {
	Register(PerUnitRules{})
	Register(FlatRules{})
}
