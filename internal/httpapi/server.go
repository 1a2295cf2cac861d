// Package httpapi exposes the engine's operational surface: a liveness
// probe, the capacity snapshot deployments use for autoscaling, and a
// Prometheus scrape endpoint.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/axeltournament/judge/internal/capacity"
)

// Server is the ops HTTP surface. JWTSecret gates /capacity and /metrics
// when non-empty; /health is always open so load balancers never need a
// token.
type Server struct {
	Capacity  *capacity.Tracker
	JWTSecret string

	mux *http.ServeMux
}

// NewServer wires the routes and returns a ready-to-serve Server.
func NewServer(cap *capacity.Tracker, jwtSecret string) *Server {
	s := &Server{Capacity: cap, JWTSecret: jwtSecret, mux: http.NewServeMux()}

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /capacity", s.withJWT(s.handleCapacity))
	s.mux.HandleFunc("GET /metrics", s.withJWT(promhttp.Handler().ServeHTTP))

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}

func (s *Server) handleCapacity(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.Capacity.Snapshot()); err != nil {
		slog.Error("httpapi: encode capacity snapshot failed", "error", err)
	}
}

// withJWT requires a valid Bearer token when JWTSecret is configured,
// mirroring the teacher's withInternalAuth gate: auth is bypassed entirely
// in single-node/no-secret deployments rather than rejecting everything.
func (s *Server) withJWT(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.JWTSecret == "" {
			next(w, r)
			return
		}

		authz := r.Header.Get("Authorization")
		tokenStr, ok := strings.CutPrefix(authz, "Bearer ")
		if !ok || tokenStr == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}

		_, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(s.JWTSecret), nil
		})
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		next(w, r)
	}
}

// ListenAndServe runs the server until ctx is cancelled, then shuts down
// with a grace period for in-flight scrapes.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
