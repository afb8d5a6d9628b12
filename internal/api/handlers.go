package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/MJE43/czn-savedata-calc/internal/score"
	"github.com/MJE43/czn-savedata-calc/internal/scripting"
	"github.com/MJE43/czn-savedata-calc/internal/session"
)

// handleListRuleSets lists the registered rule sets and the active one
func (s *Server) handleListRuleSets(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, RuleSetsResponse{
		RuleSets:      score.List(),
		Active:        s.session.RuleSet().Name(),
		ScriptLogs:    s.session.ScriptLogs(),
		EngineVersion: EngineVersion,
	})
}

// handleScore scores a list of rows without touching the run session
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if err := decodeJSON(r, &req); err != nil {
		s.errorHandler.HandleValidationError(w, r, "body", "invalid JSON format: "+err.Error())
		return
	}
	if err := ValidateScoreRequest(&req); err != nil {
		s.errorHandler.HandleValidationError(w, r, "body", err.Error())
		return
	}

	var rs score.RuleSet
	switch {
	case req.Script != "":
		compiled, err := scripting.Compile(req.Script)
		if err != nil {
			s.errorHandler.HandleScriptError(w, r, "script", err)
			return
		}
		rs = compiled
	case req.RuleSet != "":
		rs, _ = score.Lookup(req.RuleSet)
	default:
		rs = score.Default()
	}

	cfg := req.Config.Normalize()
	report := score.BuildCharacterReport(0, "score", req.Rows, cfg, rs)

	s.logger.Debug("score request",
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("rule_set", rs.Name()),
		zap.Int("rows", len(req.Rows)),
		zap.Int("total", report.Total),
		zap.Int("limit", report.Limit),
	)

	s.writeJSON(w, http.StatusOK, ScoreResponse{
		Report:        report,
		RuleSet:       rs.Name(),
		EngineVersion: EngineVersion,
	})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	s.writeRun(w, http.StatusOK)
}

func (s *Server) handleGetCharacter(w http.ResponseWriter, r *http.Request) {
	id, ok := s.characterID(w, r)
	if !ok {
		return
	}
	report, err := s.session.Character(id)
	if err != nil {
		s.errorHandler.HandleSessionError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, CharacterResponse{Character: report, EngineVersion: EngineVersion})
}

// handleSetConfig applies a partial run configuration update
func (s *Server) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	var req ConfigRequest
	if err := decodeJSON(r, &req); err != nil {
		s.errorHandler.HandleValidationError(w, r, "body", "invalid JSON format: "+err.Error())
		return
	}

	cfg := s.session.Config()
	if req.Tier != nil {
		cfg.Tier = *req.Tier
	}
	if req.NightmareMode != nil {
		cfg.NightmareMode = *req.NightmareMode
	}
	if req.CodexModifier != nil {
		cfg.CodexModifier = *req.CodexModifier
	}
	s.session.SetConfig(cfg)

	s.writeRun(w, http.StatusOK)
}

// handleSetRuleSet activates a registered rule set or installs a script
func (s *Server) handleSetRuleSet(w http.ResponseWriter, r *http.Request) {
	var req RuleSetRequest
	if err := decodeJSON(r, &req); err != nil {
		s.errorHandler.HandleValidationError(w, r, "body", "invalid JSON format: "+err.Error())
		return
	}
	if err := ValidateRuleSetRequest(&req); err != nil {
		s.errorHandler.HandleValidationError(w, r, "name", err.Error())
		return
	}

	if req.Name == scripting.RuleSetName {
		if err := s.session.SetScriptRules(req.Source); err != nil {
			s.errorHandler.HandleScriptError(w, r, "source", err)
			return
		}
	} else if err := s.session.SetRuleSet(req.Name); err != nil {
		s.errorHandler.HandleSessionError(w, r, err)
		return
	}

	s.writeRun(w, http.StatusOK)
}

func (s *Server) handleResetRun(w http.ResponseWriter, r *http.Request) {
	s.session.Reset()
	s.writeRun(w, http.StatusOK)
}

func (s *Server) handleResetCharacter(w http.ResponseWriter, r *http.Request) {
	id, ok := s.characterID(w, r)
	if !ok {
		return
	}
	if err := s.session.ResetCharacter(id); err != nil {
		s.errorHandler.HandleSessionError(w, r, err)
		return
	}
	s.writeCharacter(w, r, id, http.StatusOK)
}

// handleAddRow appends a row. The body is an optional RowPatch; an empty body adds a default row.
func (s *Server) handleAddRow(w http.ResponseWriter, r *http.Request) {
	id, ok := s.characterID(w, r)
	if !ok {
		return
	}

	var patch session.RowPatch
	if err := decodeJSON(r, &patch); err != nil && !errors.Is(err, io.EOF) {
		s.errorHandler.HandleValidationError(w, r, "body", "invalid JSON format: "+err.Error())
		return
	}

	row, err := s.session.AddRowWith(id, patch)
	if err != nil {
		s.errorHandler.HandleSessionError(w, r, err)
		return
	}
	s.writeRow(w, r, id, row, http.StatusCreated)
}

func (s *Server) handlePatchRow(w http.ResponseWriter, r *http.Request) {
	id, ok := s.characterID(w, r)
	if !ok {
		return
	}

	var patch session.RowPatch
	if err := decodeJSON(r, &patch); err != nil {
		s.errorHandler.HandleValidationError(w, r, "body", "invalid JSON format: "+err.Error())
		return
	}

	row, err := s.session.PatchRow(id, chi.URLParam(r, "rowID"), patch)
	if err != nil {
		s.errorHandler.HandleSessionError(w, r, err)
		return
	}
	s.writeRow(w, r, id, row, http.StatusOK)
}

func (s *Server) handleRemoveRow(w http.ResponseWriter, r *http.Request) {
	id, ok := s.characterID(w, r)
	if !ok {
		return
	}
	if err := s.session.RemoveRow(id, chi.URLParam(r, "rowID")); err != nil {
		s.errorHandler.HandleSessionError(w, r, err)
		return
	}
	s.writeCharacter(w, r, id, http.StatusOK)
}

// handleUpdateField sets one row field from its raw form value
func (s *Server) handleUpdateField(w http.ResponseWriter, r *http.Request) {
	id, ok := s.characterID(w, r)
	if !ok {
		return
	}

	var req FieldRequest
	if err := decodeJSON(r, &req); err != nil {
		s.errorHandler.HandleValidationError(w, r, "body", "invalid JSON format: "+err.Error())
		return
	}

	row, err := s.session.UpdateRow(id, chi.URLParam(r, "rowID"), chi.URLParam(r, "field"), req.Value)
	if err != nil {
		s.errorHandler.HandleSessionError(w, r, err)
		return
	}
	s.writeRow(w, r, id, row, http.StatusOK)
}

func (s *Server) handleMoveRow(w http.ResponseWriter, r *http.Request) {
	id, ok := s.characterID(w, r)
	if !ok {
		return
	}

	var req MoveRequest
	if err := decodeJSON(r, &req); err != nil {
		s.errorHandler.HandleValidationError(w, r, "body", "invalid JSON format: "+err.Error())
		return
	}
	if req.Index == nil {
		s.errorHandler.HandleValidationError(w, r, "index", "index is required")
		return
	}

	if err := s.session.MoveRow(id, chi.URLParam(r, "rowID"), *req.Index); err != nil {
		s.errorHandler.HandleSessionError(w, r, err)
		return
	}
	s.writeCharacter(w, r, id, http.StatusOK)
}

// characterID parses the {characterID} URL parameter, writing a validation error when it is not a number.
func (s *Server) characterID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "characterID")
	id, err := strconv.Atoi(raw)
	if err != nil {
		s.errorHandler.HandleValidationError(w, r, "characterID", "characterID must be a number, got "+strconv.Quote(raw))
		return 0, false
	}
	return id, true
}

func (s *Server) writeRun(w http.ResponseWriter, status int) {
	s.writeJSON(w, status, RunResponse{Run: s.session.Report(), EngineVersion: EngineVersion})
}

func (s *Server) writeCharacter(w http.ResponseWriter, r *http.Request, id, status int) {
	report, err := s.session.Character(id)
	if err != nil {
		s.errorHandler.HandleSessionError(w, r, err)
		return
	}
	s.writeJSON(w, status, CharacterResponse{Character: report, EngineVersion: EngineVersion})
}

func (s *Server) writeRow(w http.ResponseWriter, r *http.Request, id int, row score.ActionRow, status int) {
	report, err := s.session.Character(id)
	if err != nil {
		s.errorHandler.HandleSessionError(w, r, err)
		return
	}
	s.writeJSON(w, status, RowResponse{Row: row, Character: report, EngineVersion: EngineVersion})
}
