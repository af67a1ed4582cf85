package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const adminRole = "admin"

type contextKey string

const adminIDKey contextKey = "adminID"

var (
	errMissingBearer = errors.New("bearer token required")
	errNotAdmin      = errors.New("admin role required")
	errAuthDisabled  = errors.New("admin authentication is not configured")
)

// AdminClaims is the HS256 token body accepted on admin routes.
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AdminAuthenticator validates admin bearer tokens signed with a shared secret.
type AdminAuthenticator struct {
	secret []byte
}

func NewAdminAuthenticator(secret string) AdminAuthenticator {
	return AdminAuthenticator{secret: []byte(strings.TrimSpace(secret))}
}

// Authenticate returns the token subject, which becomes the acting admin id.
func (a AdminAuthenticator) Authenticate(authHeader string) (string, error) {
	if len(a.secret) == 0 {
		return "", errAuthDisabled
	}
	raw := strings.TrimPrefix(authHeader, "Bearer ")
	if raw == authHeader || strings.TrimSpace(raw) == "" {
		return "", errMissingBearer
	}

	claims := &AdminClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(30*time.Second))
	if err != nil {
		return "", err
	}
	if claims.Role != adminRole || strings.TrimSpace(claims.Subject) == "" {
		return "", errNotAdmin
	}
	return claims.Subject, nil
}

// Sign issues an admin token. Used by tooling and tests.
func (a AdminAuthenticator) Sign(subject string, ttl time.Duration, now time.Time) (string, error) {
	if len(a.secret) == 0 {
		return "", errAuthDisabled
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AdminClaims{
		Role: adminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(a.secret)
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		adminID, err := s.auth.Authenticate(r.Header.Get("Authorization"))
		if err != nil {
			s.logger.Warn("admin authentication rejected",
				"event", "http_admin_auth_rejected",
				"module", "internal/platform/httpserver",
				"layer", "transport",
				"path", r.URL.Path,
				"error", err.Error(),
			)
			writeJSON(w, http.StatusUnauthorized, errorBody{Code: "unauthorized", Message: err.Error()})
			return
		}
		ctx := context.WithValue(r.Context(), adminIDKey, adminID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func adminIDFrom(ctx context.Context) string {
	adminID, _ := ctx.Value(adminIDKey).(string)
	return adminID
}
