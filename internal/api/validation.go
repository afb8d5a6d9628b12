package api

import (
	"fmt"

	"github.com/MJE43/czn-savedata-calc/internal/score"
	"github.com/MJE43/czn-savedata-calc/internal/scripting"
)

const maxRowsPerRequest = 1_000

const maxScriptBytes = 64 << 10

// ValidateScoreRequest checks the parts of a score request that cannot be clamped.
func ValidateScoreRequest(req *ScoreRequest) error {
	if len(req.Rows) > maxRowsPerRequest {
		return fmt.Errorf("too many rows (max %d)", maxRowsPerRequest)
	}
	if len(req.Script) > maxScriptBytes {
		return fmt.Errorf("script too large (max %d bytes)", maxScriptBytes)
	}
	if req.Script == "" && req.RuleSet != "" {
		if _, ok := score.Lookup(req.RuleSet); !ok {
			return fmt.Errorf("rule set '%s' not found", req.RuleSet)
		}
	}
	return nil
}

// ValidateRuleSetRequest requires a name, and a source when the name is "script".
func ValidateRuleSetRequest(req *RuleSetRequest) error {
	if req.Name == "" {
		return fmt.Errorf("name is required")
	}
	if req.Name == scripting.RuleSetName {
		if req.Source == "" {
			return fmt.Errorf("source is required for the '%s' rule set", scripting.RuleSetName)
		}
		if len(req.Source) > maxScriptBytes {
			return fmt.Errorf("source too large (max %d bytes)", maxScriptBytes)
		}
	}
	return nil
}
