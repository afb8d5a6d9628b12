package api

import (
	"crypto/subtle"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// TokenHeader carries the API token on mutating requests.
const TokenHeader = "X-Api-Token"

// RequestLoggingMiddleware logs each request once it completes
func (s *Server) RequestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Int("bytes_written", ww.BytesWritten()),
		)
	})
}

// loopbackHosts are the origins allowed to call the API from a browser: the
// Wails webview and pages served from this machine.
var loopbackHosts = map[string]bool{
	"localhost":       true,
	"127.0.0.1":       true,
	"::1":             true,
	"wails":           true,
	"wails.localhost": true,
}

// allowedOrigin reports whether a browser Origin header belongs to the
// desktop webview or a loopback page.
func allowedOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	switch u.Scheme {
	case "http", "https", "wails":
	default:
		return false
	}
	return loopbackHosts[strings.ToLower(u.Hostname())]
}

// CORSMiddleware rejects requests from foreign browser origins and reflects
// allowed ones. Requests without an Origin header (curl, scripts) pass through.
func (s *Server) CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+TokenHeader)
		w.Header().Set("Access-Control-Max-Age", "86400")

		if origin := r.Header.Get("Origin"); origin != "" {
			if !allowedOrigin(origin) {
				engineErr := NewError(ErrTypeForbidden, "origin not allowed").
					WithRequestID(middleware.GetReqID(r.Context())).
					WithContext("origin", origin).
					WithContext("path", r.URL.Path).
					Build()
				s.errorHandler.HandleError(w, r, engineErr, http.StatusForbidden)
				return
			}
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// TokenMiddleware rejects requests without the configured token. It is a no-op when no token is set.
func (s *Server) TokenMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			next.ServeHTTP(w, r)
			return
		}
		got := r.Header.Get(TokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
			engineErr := NewError(ErrTypeUnauthorized, "missing or invalid "+TokenHeader).
				WithRequestID(middleware.GetReqID(r.Context())).
				WithContext("path", r.URL.Path).
				Build()
			s.errorHandler.HandleError(w, r, engineErr, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
