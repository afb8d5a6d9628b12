package api

import (
	"github.com/MJE43/czn-savedata-calc/internal/score"
	"github.com/MJE43/czn-savedata-calc/internal/scripting"
	"github.com/MJE43/czn-savedata-calc/internal/session"
)

// EngineError represents a structured error response with context
type EngineError struct {
	Type      string                 `json:"type"`
	Message   string                 `json:"message"`
	Context   map[string]interface{} `json:"context,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	Timestamp string                 `json:"timestamp,omitempty"`
}

// Error implements the error interface
func (e EngineError) Error() string {
	return e.Message
}

// Error types
const (
	ErrTypeValidation   = "validation_error"
	ErrTypeNotFound     = "not_found"
	ErrTypeUnauthorized = "unauthorized"
	ErrTypeForbidden    = "forbidden"
	ErrTypeInternal     = "internal_error"
)

// ErrorCategory represents error categories for monitoring
type ErrorCategory string

const (
	CategoryValidation ErrorCategory = "validation"
	CategoryRun        ErrorCategory = "run"
	CategoryAuth       ErrorCategory = "auth"
	CategorySystem     ErrorCategory = "system"
)

// GetErrorCategory returns the category for an error type
func GetErrorCategory(errType string) ErrorCategory {
	switch errType {
	case ErrTypeValidation:
		return CategoryValidation
	case ErrTypeNotFound:
		return CategoryRun
	case ErrTypeUnauthorized, ErrTypeForbidden:
		return CategoryAuth
	default:
		return CategorySystem
	}
}

// VersionInfo describes the calculator build and the rule sets it ships.
type VersionInfo struct {
	EngineVersion string   `json:"engine_version"`
	GitCommit     string   `json:"git_commit,omitempty"`
	BuildTime     string   `json:"build_time,omitempty"`
	GoVersion     string   `json:"go_version"`
	RuleSets      []string `json:"rule_sets"`
}

// ScoreRequest scores rows without touching the run session.
type ScoreRequest struct {
	Config  score.RunConfig   `json:"config"`
	RuleSet string            `json:"ruleSet,omitempty"`
	Script  string            `json:"script,omitempty"`
	Rows    []score.ActionRow `json:"rows"`
}

// ScoreResponse is the stateless scoring result.
type ScoreResponse struct {
	Report        score.CharacterReport `json:"report"`
	RuleSet       string                `json:"ruleSet"`
	EngineVersion string                `json:"engine_version"`
}

// ConfigRequest is a partial update of the run configuration.
type ConfigRequest struct {
	Tier          *int  `json:"tier,omitempty"`
	NightmareMode *bool `json:"nightmareMode,omitempty"`
	CodexModifier *int  `json:"codexModifier,omitempty"`
}

// RuleSetRequest selects a registered rule set or installs a script.
type RuleSetRequest struct {
	Name   string `json:"name"`
	Source string `json:"source,omitempty"`
}

// FieldRequest carries the raw form value for a single row field.
type FieldRequest struct {
	Value string `json:"value"`
}

// MoveRequest moves a row to a new position.
type MoveRequest struct {
	Index *int `json:"index"`
}

// RunResponse wraps the run report.
type RunResponse struct {
	Run           session.RunReport `json:"run"`
	EngineVersion string            `json:"engine_version"`
}

// CharacterResponse wraps one character report.
type CharacterResponse struct {
	Character     score.CharacterReport `json:"character"`
	EngineVersion string                `json:"engine_version"`
}

// RowResponse returns a mutated row along with its character's fresh report.
type RowResponse struct {
	Row           score.ActionRow       `json:"row"`
	Character     score.CharacterReport `json:"character"`
	EngineVersion string                `json:"engine_version"`
}

// RuleSetsResponse lists registered rule sets.
type RuleSetsResponse struct {
	RuleSets      []score.RuleSetSpec  `json:"rule_sets"`
	Active        string               `json:"active"`
	ScriptLogs    []scripting.LogEntry `json:"script_logs,omitempty"`
	EngineVersion string               `json:"engine_version"`
}
