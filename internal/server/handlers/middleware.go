package handlers

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cloudzz-dev/speakly/internal/models"
	"github.com/cloudzz-dev/speakly/internal/server/metrics"
	"github.com/cloudzz-dev/speakly/internal/server/ratelimit"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// Hijack keeps websocket upgrades working behind the logger.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func recoverer(log *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if p := recover(); p != nil {
					log.Error("panic in handler", zap.Any("panic", p), zap.String("path", r.URL.Path))
					writeJSON(w, http.StatusInternalServerError, models.Response{Error: "Internal server error"})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger writes one line per request. Only the action is taken from
// the query; bodies and credentials are never logged.
func requestLogger(log *zap.Logger, m *metrics.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			elapsed := time.Since(start)
			group := strings.TrimPrefix(r.URL.Path, "/")
			action := r.URL.Query().Get("action")
			if action == "" {
				action = strings.ToLower(r.Method)
			}
			if m != nil && group != "metrics" {
				m.ObserveRequest(group, action, rec.status, elapsed)
			}
			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("action", action),
				zap.Int("status", rec.status),
				zap.Duration("duration", elapsed),
				zap.String("remote", ratelimit.GetClientIP(r)),
				zap.String("user_id", r.Header.Get(models.UserIDHeader)),
			)
		})
	}
}

func cors(origin string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, "+models.UserIDHeader)
			h.Set("Access-Control-Max-Age", "86400")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rateLimit(l *ratelimit.IPLimiter) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l != nil && !l.Allow(ratelimit.GetClientIP(r)) {
				writeJSON(w, http.StatusTooManyRequests, models.Response{Error: "Too many requests"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// authenticator resolves the X-User-Id header to a known user and refreshes
// their presence.
type authenticator struct {
	users interface {
		UserExists(ctx context.Context, id int) (bool, error)
	}
	presence Presence
	log      *zap.Logger
}

func (a *authenticator) userID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(r.Header.Get(models.UserIDHeader)))
	if err != nil || id <= 0 {
		return 0, errUnauthorized
	}
	exists, err := a.users.UserExists(r.Context(), id)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, errUnauthorized
	}
	if a.presence != nil {
		if err := a.presence.Touch(r.Context(), id); err != nil {
			a.log.Debug("presence touch failed", zap.Int("user_id", id), zap.Error(err))
		}
	}
	return id, nil
}
