package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Auth errors.
var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// AuthConfig holds bearer-token validation settings. When Secret is
// empty, authentication is disabled and mutating routes are open.
type AuthConfig struct {
	Secret     string
	Issuer     string
	RolesClaim string
}

// User is the authenticated caller extracted from a JWT.
type User struct {
	Subject string
	Roles   []string
}

// HasRole reports whether the user carries the role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type authContextKey struct{}

// UserFromContext returns the authenticated user, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(authContextKey{}).(*User)
	return u
}

// TokenValidator validates HS256 bearer tokens.
type TokenValidator struct {
	config AuthConfig
}

// NewTokenValidator creates a validator from config.
func NewTokenValidator(cfg AuthConfig) *TokenValidator {
	if cfg.RolesClaim == "" {
		cfg.RolesClaim = "roles"
	}
	return &TokenValidator{config: cfg}
}

// Enabled reports whether token validation is configured.
func (v *TokenValidator) Enabled() bool {
	return v.config.Secret != ""
}

// ValidateToken parses and validates a token string.
func (v *TokenValidator) ValidateToken(tokenStr string) (*User, error) {
	if tokenStr == "" {
		return nil, ErrMissingToken
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return []byte(v.config.Secret), nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if v.config.Issuer != "" {
		iss, _ := claims.GetIssuer()
		if iss != v.config.Issuer {
			return nil, ErrInvalidToken
		}
	}

	user := &User{}
	user.Subject, _ = claims.GetSubject()
	if raw, ok := claims[v.config.RolesClaim].([]any); ok {
		for _, r := range raw {
			if s, ok := r.(string); ok {
				user.Roles = append(user.Roles, s)
			}
		}
	}
	return user, nil
}

// RequireAuth guards a route subtree with bearer-token validation. A nil
// or disabled validator passes everything through.
func RequireAuth(v *TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil || !v.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			user, err := v.ValidateToken(extractBearer(r))
			if err != nil {
				message := "authentication required"
				switch {
				case errors.Is(err, ErrExpiredToken):
					message = "token has expired"
				case errors.Is(err, ErrInvalidToken):
					message = "invalid token"
				}
				writeAuthError(w, message)
				return
			}

			ctx := context.WithValue(r.Context(), authContextKey{}, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractBearer(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

// SignTestToken issues an HS256 token for tests and local tooling.
func SignTestToken(secret, issuer, subject string, roles []string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(ttl).Unix(),
		"iat": time.Now().Unix(),
	}
	if issuer != "" {
		claims["iss"] = issuer
	}
	if len(roles) > 0 {
		anyRoles := make([]any, len(roles))
		for i, r := range roles {
			anyRoles[i] = r
		}
		claims["roles"] = anyRoles
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
