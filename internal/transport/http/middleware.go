package httptransport

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"trivia-rewards/internal/logging"
	"trivia-rewards/internal/rewards"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog/v3"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

func APILogMiddleware() func(http.Handler) http.Handler {
	return httplog.RequestLogger(
		slog.New(slog.NewJSONHandler(logging.Writer(), &slog.HandlerOptions{})),
		&httplog.Options{
			Level:              slog.LevelInfo,
			Schema:             httplog.Schema{ResponseStatus: "status", ResponseDuration: "duration_ms"},
			LogRequestBody:     func(*http.Request) bool { return false },
			LogResponseBody:    func(*http.Request) bool { return false },
			LogRequestHeaders:  []string{},
			LogResponseHeaders: []string{},
			LogExtraAttrs: func(req *http.Request, _ string, _ int) []slog.Attr {
				rc := chi.RouteContext(req.Context())
				route := req.URL.Path
				if rc != nil && rc.RoutePattern() != "" {
					route = rc.RoutePattern()
				}
				return []slog.Attr{
					slog.String("request_id", chimw.GetReqID(req.Context())),
					slog.String("method", req.Method),
					slog.String("route", route),
					slog.String("path", req.URL.Path),
				}
			},
		},
	)
}

// BodyCaptureMiddleware attaches request and response bodies, truncated to maxCaptureBytes,
// to the access log line. Used on admin routes only.
func BodyCaptureMiddleware(maxCaptureBytes int) func(http.Handler) http.Handler {
	if maxCaptureBytes <= 0 {
		maxCaptureBytes = 4096
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqBody, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
			if err != nil {
				reqBody = nil
			}
			r.Body = io.NopCloser(bytes.NewReader(reqBody))

			cw := &captureWriter{ResponseWriter: w, maxBytes: maxCaptureBytes}
			next.ServeHTTP(cw, r)

			reqLog := reqBody
			if len(reqLog) > maxCaptureBytes {
				reqLog = reqLog[:maxCaptureBytes]
			}
			httplog.SetAttrs(r.Context(),
				slog.Any("request_body", parseMaybeJSON(reqLog)),
				slog.Any("response_body", parseMaybeJSON(cw.body.Bytes())),
				slog.Bool("request_body_truncated", len(reqBody) > maxCaptureBytes),
				slog.Bool("response_body_truncated", cw.truncated),
			)
		})
	}
}

type captureWriter struct {
	http.ResponseWriter
	body      bytes.Buffer
	maxBytes  int
	truncated bool
}

func (c *captureWriter) Write(p []byte) (int, error) {
	if !c.truncated {
		remain := c.maxBytes - c.body.Len()
		if remain > 0 {
			if len(p) <= remain {
				_, _ = c.body.Write(p)
			} else {
				_, _ = c.body.Write(p[:remain])
				c.truncated = true
			}
		} else {
			c.truncated = true
		}
	}
	return c.ResponseWriter.Write(p)
}

func parseMaybeJSON(b []byte) any {
	if len(b) == 0 {
		return ""
	}
	var out any
	if err := json.Unmarshal(b, &out); err == nil {
		return out
	}
	return string(b)
}

func WriteHTTPError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]any{"error": code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// statusFor maps the reward error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, rewards.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, rewards.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, rewards.ErrExpired):
		return http.StatusGone
	case errors.Is(err, rewards.ErrInsufficientInputs):
		return http.StatusUnprocessableEntity
	case errors.Is(err, rewards.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, rewards.ErrAlreadyUsed),
		errors.Is(err, rewards.ErrOutOfStock),
		errors.Is(err, rewards.ErrConcurrencyConflict),
		errors.Is(err, rewards.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, rewards.ErrExternalTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, rewards.ErrExternalFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError renders err as {"error": code, "retryable": bool}, plus the shortfall of a
// rejected forge. Unmapped errors are logged and reported as internal_error.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		metricHTTPInternalErrors.Add(1)
		log.Error().Err(err).
			Str("request_id", chimw.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
	}
	body := map[string]any{"error": rewards.Code(err), "retryable": rewards.Retryable(err)}
	var ie *rewards.InsufficientInputsError
	if errors.As(err, &ie) {
		body["required"] = ie.Required
		body["available"] = ie.Available
		if len(ie.MissingCategories) > 0 {
			body["missing_categories"] = ie.MissingCategories
		}
	}
	writeJSON(w, status, body)
}

func AdminAuthMiddleware(adminKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKey != "" && !CheckAdminAuth(r, adminKey) {
				WriteHTTPError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func CheckAdminAuth(r *http.Request, adminKey string) bool {
	if v := r.Header.Get("X-Admin-Key"); v == adminKey {
		return true
	}
	auth := r.Header.Get("Authorization")
	prefix := "Bearer "
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):] == adminKey
	}
	return false
}

// ParsePagination reads limit and offset, leaving limit 0 when absent so callers apply their
// own default.
func ParsePagination(r *http.Request) (int, int, error) {
	limit, offset := 0, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, 0, rewards.ErrInvalidRequest
		}
		limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, 0, rewards.ErrInvalidRequest
		}
		offset = n
	}
	return limit, offset, nil
}
