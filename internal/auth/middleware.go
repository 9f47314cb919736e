package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/calculations-api/internal/apperror"
	"github.com/sakif/calculations-api/internal/model"
)

// contextKey is unexported so no other package can read or overwrite the
// current user stored by RequireUser.
type contextKey string

const currentUserKey contextKey = "currentUser"

// UserLookup resolves a token subject (an email) to a stored user.
// repository.UserRepository satisfies it.
type UserLookup interface {
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// RequireUser guards protected routes.
//
// It reads "Authorization: Bearer <jwt>", validates the token, loads the
// user named by its subject and stores the *model.User in the request
// context. A missing or invalid token, or a subject that no longer resolves
// to a user, ends the chain with 401. Only a failing lookup (database down)
// yields 500.
func RequireUser(tokens *TokenService, users UserLookup, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				writeUnauthorized(w, "not authenticated")
				return
			}

			email, err := tokens.Validate(raw)
			if err != nil {
				writeUnauthorized(w, "could not validate credentials")
				return
			}

			user, err := users.GetUserByEmail(r.Context(), email)
			if err != nil {
				if errors.Is(err, apperror.ErrNotFound) {
					writeUnauthorized(w, "could not validate credentials")
					return
				}
				logger.Error("auth: resolving token subject",
					slog.String("error", err.Error()),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"error":"internal_error","message":"An internal error occurred"}` + "\n"))
				return
			}

			ctx := WithCurrentUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithCurrentUser returns a copy of ctx carrying user.
func WithCurrentUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, currentUserKey, user)
}

// CurrentUser returns the user stored by RequireUser.
// It returns (nil, false) outside a protected route.
func CurrentUser(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(currentUserKey).(*model.User)
	return u, ok && u != nil
}

// bearerToken extracts the token from the Authorization header. The scheme
// is matched case-insensitively.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"unauthorized","message":"` + message + `"}` + "\n"))
}
