package score

const (
	// BasePointLimit is the limit at effective tier 1.
	BasePointLimit = 30
	// PointsPerTier is added to the limit for every tier above the first.
	PointsPerTier = 10
	// MaxCodexModifier is the largest tier bonus the codex can grant.
	MaxCodexModifier = 2
)

// RunConfig holds the run parameters that determine the point limit.
type RunConfig struct {
	Tier          int  `json:"tier"`
	NightmareMode bool `json:"nightmareMode"`
	CodexModifier int  `json:"codexModifier"`
}

// DefaultRunConfig returns tier 1 without modifiers.
func DefaultRunConfig() RunConfig {
	return RunConfig{Tier: 1}
}

// Normalize clamps tier to at least 1 and the codex modifier to [0, MaxCodexModifier].
func (c RunConfig) Normalize() RunConfig {
	if c.Tier < 1 {
		c.Tier = 1
	}
	c.CodexModifier = clamp(c.CodexModifier, 0, MaxCodexModifier)
	return c
}

// EffectiveTier is tier plus one for nightmare mode plus the codex modifier.
func (c RunConfig) EffectiveTier() int {
	t := c.Tier + c.CodexModifier
	if c.NightmareMode {
		t++
	}
	return t
}

// PointLimit returns 30 + 10*(effectiveTier-1).
func (c RunConfig) PointLimit() int {
	return BasePointLimit + PointsPerTier*(c.EffectiveTier()-1)
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
