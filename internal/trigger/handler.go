// Package trigger is the HTTP surface of a stage: it validates the caller's
// origin and hands the request body to the dispatcher.
package trigger

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/savaki/stage-pipeline/internal/models"
	"github.com/savaki/stage-pipeline/internal/validator"
)

// maxBodyBytes bounds the trigger body; a key is all it carries.
const maxBodyBytes = 64 << 10

// Dispatcher runs one dispatch for a validated trigger body.
type Dispatcher interface {
	Dispatch(ctx context.Context, body []byte) (int, models.Response)
}

// Validator decides whether the request headers name an allowed caller.
type Validator interface {
	Validate(headers http.Header) validator.Result
}

type Handler struct {
	validator  Validator
	dispatcher Dispatcher
}

func NewHandler(v Validator, d Dispatcher) *Handler {
	return &Handler{
		validator:  v,
		dispatcher: d,
	}
}

// Router returns the stage's routes with logging and panic recovery. When
// env is set, a leading /<env> path segment is stripped first so the same
// router serves an API Gateway stage and a local server.
func (h *Handler) Router(logger zerolog.Logger, env string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(loggingMiddleware(logger))
	r.Use(h.recoverMiddleware)

	r.Post("/run", h.handleRun)
	r.Options("/run", h.handlePreflight)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.errorResponse(w, r, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.errorResponse(w, r, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	})

	return stripEnvPrefixMiddleware(env, r)
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	result := h.validator.Validate(r.Header)
	if !result.Allowed {
		logger.Warn().
			Err(result.Reason).
			Str("origin", result.Origin).
			Msg("rejected trigger")
		h.errorResponse(w, r, http.StatusForbidden, result.Reason.Error())
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		logger.Warn().Err(err).Msg("unable to read trigger body")
		h.errorResponse(w, r, http.StatusBadRequest, "No infile key provided in request body.")
		return
	}

	code, resp := h.dispatcher.Dispatch(ctx, body)
	h.jsonResponse(w, r, code, resp)
}

func (h *Handler) handlePreflight(w http.ResponseWriter, r *http.Request) {
	result := h.validator.Validate(r.Header)
	if !result.Allowed {
		h.errorResponse(w, r, http.StatusForbidden, result.Reason.Error())
		return
	}

	setCORS(w, r)
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Origin")
	w.Header().Set("Access-Control-Max-Age", "600")
	w.WriteHeader(http.StatusNoContent)
}

// recoverMiddleware turns a panic into the same JSON error shape, with the
// CORS header, that every other failure gets.
func (h *Handler) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				zerolog.Ctx(r.Context()).Error().
					Interface("panic", v).
					Bytes("stack", debug.Stack()).
					Msg("recovered from panic")
				h.errorResponse(w, r, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// setCORS echoes whatever origin the caller sent, even when it was rejected.
func setCORS(w http.ResponseWriter, r *http.Request) {
	origin, _ := validator.OriginFrom(r.Header)
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Add("Vary", "Origin")
}

// jsonResponse writes a JSON response
func (h *Handler) jsonResponse(w http.ResponseWriter, r *http.Request, statusCode int, data any) {
	setCORS(w, r)

	body, err := json.Marshal(data)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Internal Server Error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(body)
}

// errorResponse writes an error JSON response
func (h *Handler) errorResponse(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	h.jsonResponse(w, r, statusCode, models.ErrorResponse(message))
}

// loggingMiddleware logs details about each request and response
func loggingMiddleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			reqLogger := logger.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()
			ctx := reqLogger.WithContext(r.Context())
			r = r.WithContext(ctx)

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			reqLogger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Str("user_agent", r.UserAgent()).
				Msg("Incoming request")

			next.ServeHTTP(rw, r)

			reqLogger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status_code", rw.statusCode).
				Dur("duration", time.Since(start)).
				Msg("Request completed")
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// stripEnvPrefixMiddleware removes the /{env} prefix from request paths
func stripEnvPrefixMiddleware(env string, next http.Handler) http.Handler {
	if env == "" {
		return next
	}

	prefix := "/" + env
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == prefix || strings.HasPrefix(r.URL.Path, prefix+"/") {
			r.URL.Path = strings.TrimPrefix(r.URL.Path, prefix)
		}
		if r.URL.Path == "" {
			r.URL.Path = "/"
		}
		next.ServeHTTP(w, r)
	})
}
