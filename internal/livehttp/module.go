package livehttp

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/MJE43/czn-savedata-calc/internal/api"
	"github.com/MJE43/czn-savedata-calc/internal/session"
)

// Module is a Wails-bound service that owns the local HTTP API for a run session.
// The desktop UI reads Info to show where external tools can reach the calculator.
type Module struct {
	mu     sync.Mutex
	server *Server
	token  string
	logger *zap.Logger
}

// NewModule constructs the module but does not start the HTTP server.
// Call Startup(ctx) from the OnStartup hook.
func NewModule(addr string, sess *session.Session, logger *zap.Logger, token string) *Module {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("livehttp")
	handler := api.NewServer(sess, logger, token).Routes()
	return &Module{
		server: New(addr, handler, logger),
		token:  token,
		logger: logger,
	}
}

// Startup starts the local HTTP server.
func (m *Module) Startup(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.server.Start()
}

// Shutdown stops the HTTP server.
func (m *Module) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.server.Shutdown(ctx)
}

// ServerInfo describes the local API endpoint.
type ServerInfo struct {
	URL          string `json:"url"`
	TokenEnabled bool   `json:"tokenEnabled"`
	Running      bool   `json:"running"`
}

// Info returns the loopback URL and whether mutating routes need a token.
func (m *Module) Info() ServerInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ServerInfo{
		URL:          "http://" + m.server.Addr() + "/api/v1",
		TokenEnabled: m.token != "",
		Running:      m.server.Running(),
	}
}
