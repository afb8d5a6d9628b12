package session

import "errors"

var (
	ErrCharacterNotFound = errors.New("character not found")
	ErrRowNotFound       = errors.New("row not found")
	ErrUnknownField      = errors.New("unknown row field")
	ErrUnknownRuleSet    = errors.New("unknown rule set")
)
