package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/andy/timeledger/internal/domain"
)

// maxBodyBytes bounds JSON request bodies
const maxBodyBytes = 1 << 20

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps an error class to its HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrPrecondition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}

	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		body.Fields = verr.Fields
	}

	if status == http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		body.Error = "internal server error"
	}
	writeJSON(w, status, body)
}

// decodeJSON reads a single JSON object and rejects unknown fields
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.Invalid("body", fmt.Sprintf("invalid JSON: %v", err))
	}
	if dec.More() {
		return domain.Invalid("body", "body must contain a single JSON object")
	}
	return nil
}

func idParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.Invalid("id", fmt.Sprintf("invalid id %q", raw))
	}
	return id, nil
}

// queryInt64 returns nil when the parameter is absent
func queryInt64(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, domain.Invalid(name, fmt.Sprintf("invalid integer %q", raw))
	}
	return &v, nil
}

// queryDate returns nil when the parameter is absent
func queryDate(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	d, err := domain.ParseDate(raw)
	if err != nil {
		return nil, domain.Invalid(name, err.Error())
	}
	return &d, nil
}

func queryBool(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}

// parseOptionalDate parses a YYYY-MM-DD body field
func parseOptionalDate(field string, raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	d, err := domain.ParseDate(*raw)
	if err != nil {
		return nil, domain.Invalid(field, err.Error())
	}
	return &d, nil
}
