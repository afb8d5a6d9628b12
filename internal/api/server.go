package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/MJE43/czn-savedata-calc/internal/session"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const requestTimeout = 30 * time.Second

// Server handles HTTP requests against one run session
type Server struct {
	session      *session.Session
	hub          *Hub
	errorHandler *ErrorHandler
	logger       *zap.Logger
	token        string
	startTime    time.Time
}

// NewServer creates a new API server. An empty token disables token checks on mutating routes.
func NewServer(sess *session.Session, logger *zap.Logger, token string) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("api")

	s := &Server{
		session:      sess,
		hub:          newHub(logger.Named("stream")),
		errorHandler: NewErrorHandler(logger),
		logger:       logger,
		token:        token,
		startTime:    time.Now(),
	}
	sess.AddNotifier(s.hub)

	logger.Info("api server created",
		zap.String("engine_version", EngineVersion),
		zap.Bool("token_enabled", token != ""),
		zap.String("rule_set", sess.RuleSet().Name()),
	)
	return s
}

// Routes sets up the HTTP routes with proper middleware
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.RequestLoggingMiddleware)
	r.Use(s.errorHandler.RecoveryHandler)
	r.Use(s.CORSMiddleware)

	r.Get("/health", s.handleHealthCheck)
	r.Get("/health/ready", s.handleReadiness)
	r.Get("/health/live", s.handleLiveness)

	r.Route("/api/v1", s.apiRoutes)

	// Unprefixed routes for the desktop frontend
	s.apiRoutes(r)

	return r
}

func (s *Server) apiRoutes(r chi.Router) {
	// Long-lived; registered outside the request timeout.
	r.Get("/run/stream", s.handleStream)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		s.requestRoutes(r)
	})
}

func (s *Server) requestRoutes(r chi.Router) {
	r.Get("/version", s.handleVersion)
	r.Get("/rulesets", s.handleListRuleSets)
	r.Post("/score", s.handleScore)

	r.Get("/run", s.handleGetRun)
	r.Get("/run/characters/{characterID}", s.handleGetCharacter)

	r.Group(func(r chi.Router) {
		r.Use(s.TokenMiddleware)

		r.Put("/run/config", s.handleSetConfig)
		r.Put("/run/ruleset", s.handleSetRuleSet)
		r.Post("/run/reset", s.handleResetRun)

		r.Post("/run/characters/{characterID}/reset", s.handleResetCharacter)
		r.Post("/run/characters/{characterID}/rows", s.handleAddRow)
		r.Patch("/run/characters/{characterID}/rows/{rowID}", s.handlePatchRow)
		r.Delete("/run/characters/{characterID}/rows/{rowID}", s.handleRemoveRow)
		r.Put("/run/characters/{characterID}/rows/{rowID}/fields/{field}", s.handleUpdateField)
		r.Post("/run/characters/{characterID}/rows/{rowID}/move", s.handleMoveRow)
	})
}

// writeJSON writes a JSON response with proper headers
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Engine-Version", EngineVersion)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("encode response", zap.Error(err))
	}
}

// decodeJSON decodes the request body into v, rejecting unknown fields
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
