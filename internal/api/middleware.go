package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/area-core/internal/auth"
)

const (
	headerRequestID = "X-Request-ID"

	// maxRequestBodySize caps JSON bodies.
	maxRequestBodySize = 1 << 20
	// multipartOverhead is added to the image limit for form framing.
	multipartOverhead = 64 << 10

	corsMaxAge = "86400"
)

var (
	defaultCORSMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	defaultCORSHeaders = []string{"Authorization", "Content-Type", headerRequestID}
)

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// requestIDMiddleware echoes the caller's X-Request-ID, minting one when absent.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// loggingMiddleware writes one access line per request. Server errors are
// logged at warn so they stand out from routine traffic.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		began := time.Now()
		next.ServeHTTP(rec, r)

		log := s.logger.Info
		if rec.status >= http.StatusInternalServerError {
			log = s.logger.Warn
		}
		log("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"bytes", rec.written,
			"duration_ms", time.Since(began).Milliseconds(),
			"request_id", requestID(r.Context()),
		)
	})
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler { //nolint:errorlint // sentinel compared by identity
					panic(v)
				}
				s.logger.Error("handler panic",
					"panic", fmt.Sprint(v),
					"path", r.URL.Path,
					"request_id", requestID(r.Context()),
				)
				writeInternalError(w, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware answers preflights and decorates responses for allowed
// origins. No configured origins means any origin.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	methods := strings.Join(orDefault(s.cfg.CORS.AllowedMethods, defaultCORSMethods), ", ")
	headers := strings.Join(orDefault(s.cfg.CORS.AllowedHeaders, defaultCORSHeaders), ", ")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && s.isAllowedOrigin(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", methods)
			h.Set("Access-Control-Allow-Headers", headers)
			h.Set("Access-Control-Max-Age", corsMaxAge)
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) isAllowedOrigin(origin string) bool {
	allowed := s.cfg.CORS.AllowedOrigins
	return len(allowed) == 0 || slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
}

// bodySizeLimitMiddleware bounds request bodies. Multipart requests carry an
// area image and get the configured image limit instead.
func (s *Server) bodySizeLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			limit := int64(maxRequestBodySize)
			if mt := r.Header.Get("Content-Type"); strings.HasPrefix(mt, "multipart/") {
				limit = max(limit, s.areas.MaxFileSize()+multipartOverhead)
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit)
		}
		next.ServeHTTP(w, r)
	})
}

// authMiddleware turns a Bearer access token into the request principal.
// The token names the user; whether they are still active and still an
// admin is read from the store on every request.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !found || raw == "" {
			writeUnauthenticated(w, "missing bearer token")
			return
		}
		p, err := s.principalFromToken(r.Context(), raw)
		switch {
		case errors.Is(err, auth.ErrTokenInvalid),
			errors.Is(err, auth.ErrUserNotFound),
			errors.Is(err, auth.ErrUserInactive):
			writeUnauthenticated(w, "invalid or expired token")
			return
		case err != nil:
			s.logger.Error("resolving token principal", "error", err, "request_id", requestID(r.Context()))
			writeInternalError(w, "internal server error")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
	})
}

func (s *Server) principalFromToken(ctx context.Context, raw string) (auth.Principal, error) {
	claims, err := auth.ParseToken(raw, s.secCfg.JWT.Secret)
	if err != nil {
		return auth.Principal{}, err
	}
	p, err := claims.Principal()
	if err != nil {
		return auth.Principal{}, err
	}
	user, err := s.users.GetByID(ctx, p.UserID)
	if err != nil {
		return auth.Principal{}, err
	}
	if !user.Active {
		return auth.Principal{}, auth.ErrUserInactive
	}
	return user.Principal(), nil
}

type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int
}

func (w *statusRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.written += n
	return n, err
}

func orDefault(values, fallback []string) []string {
	if len(values) == 0 {
		return fallback
	}
	return values
}
