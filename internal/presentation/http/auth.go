package httppresentation

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	UserID int64  `json:"userId"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type userIDKey struct{}
type roleKey struct{}

const (
	headerSessionID = "X-Session-ID"
	roleAdmin       = "admin"
)

// Authenticate validates the bearer token and stores the caller's identity in
// the request context.
func Authenticate(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeError(w, http.StatusUnauthorized, errMissingToken)
				return
			}
			tokenString, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				writeError(w, http.StatusUnauthorized, errInvalidToken)
				return
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
				return secret, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !token.Valid || claims.UserID <= 0 {
				writeError(w, http.StatusUnauthorized, errInvalidToken)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey{}, claims.UserID)
			ctx = context.WithValue(ctx, roleKey{}, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin gates admin routes; it must run after Authenticate.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if role, _ := r.Context().Value(roleKey{}).(string); role != roleAdmin {
			writeError(w, http.StatusForbidden, errForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func userIDFrom(ctx context.Context) int64 {
	id, _ := ctx.Value(userIDKey{}).(int64)
	return id
}

// sessionIDFrom keys the cart session. Clients may pin an explicit session
// header; otherwise the cart follows the authenticated user.
func sessionIDFrom(r *http.Request) string {
	if sid := r.Header.Get(headerSessionID); sid != "" {
		return sid
	}
	if id := userIDFrom(r.Context()); id > 0 {
		return "user:" + strconv.FormatInt(id, 10)
	}
	return ""
}
