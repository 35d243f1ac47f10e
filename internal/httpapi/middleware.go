package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/andy/timeledger/internal/domain"
)

// Identity headers set by the authenticating proxy
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserRole  = "X-User-Role"
	HeaderRequestID = "X-Request-ID"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	identityKey
)

// Identity is the authenticated caller
type Identity struct {
	User  *domain.User
	Scope domain.Scope
}

// RequestIDFrom returns the request id stored by the request id middleware
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// IdentityFrom returns the caller stored by the identity middleware
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// WithIdentity attaches a caller to ctx
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// scopeOf returns the caller's scope. Routes behind the identity middleware
// always have one.
func scopeOf(r *http.Request) domain.Scope {
	id, _ := IdentityFrom(r.Context())
	return id.Scope
}

// requestID reuses an incoming X-Request-ID or assigns a new one
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestLogger logs one line per request
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info("request",
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("user", r.Header.Get(HeaderUserID)),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// identify loads the caller named by the identity headers. Unknown and
// inactive users are rejected. A role header can only narrow an admin to
// consultant visibility, never widen it.
func (s *Server) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(HeaderUserID))
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || userID <= 0 {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing or invalid " + HeaderUserID})
			return
		}

		user, err := s.svc.People.GetUser(r.Context(), userID)
		if errors.Is(err, domain.ErrNotFound) || (err == nil && !user.IsActive) {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unknown or inactive user"})
			return
		}
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		scope := user.Scope()
		switch domain.Role(strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderUserRole)))) {
		case "", domain.RoleAdmin:
		case domain.RoleConsultant:
			scope.Privileged = false
		default:
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid " + HeaderUserRole})
			return
		}

		ctx := WithIdentity(r.Context(), Identity{User: user, Scope: scope})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// adminOnly rejects callers without privileged scope
func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !scopeOf(r).Privileged {
			s.writeError(w, r, domain.Forbiddenf("admin role required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
