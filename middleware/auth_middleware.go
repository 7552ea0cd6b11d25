package middleware

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/mrpayong/terual-accounting/identity"
	"github.com/mrpayong/terual-accounting/utils"
	"go.uber.org/zap"
)

// DefaultSessionCookie is the cookie the identity provider stores its session token in
const DefaultSessionCookie = "__session"

// TokenValidator defines the interface for validating session tokens
type TokenValidator interface {
	// ValidateToken validates a session token and returns claims
	ValidateToken(ctx context.Context, token string) (*identity.Claims, error)
}

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	validator  TokenValidator
	cookieName string
	signInURL  string
	logger     *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware. cookieName defaults to
// DefaultSessionCookie; signInURL is where RequireSession sends anonymous visitors.
func NewAuthMiddleware(validator TokenValidator, cookieName, signInURL string, logger *zap.Logger) *AuthMiddleware {
	if cookieName == "" {
		cookieName = DefaultSessionCookie
	}
	if signInURL == "" {
		signInURL = "/sign-in"
	}
	return &AuthMiddleware{
		validator:  validator,
		cookieName: cookieName,
		signInURL:  signInURL,
		logger:     logger,
	}
}

// RequireAuth rejects API requests without a valid session with 401
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, ok := m.authenticate(r)
		if !ok {
			_ = utils.WriteUnauthorized(w, "Missing or invalid session")
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireSession redirects page requests without a valid session to sign-in,
// carrying the requested path so the visitor comes back after signing in
func (m *AuthMiddleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, ok := m.authenticate(r)
		if !ok {
			http.Redirect(w, r, m.signInRedirect(r), http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CookieName returns the session cookie name
func (m *AuthMiddleware) CookieName() string {
	return m.cookieName
}

func (m *AuthMiddleware) authenticate(r *http.Request) (context.Context, bool) {
	ctx := r.Context()
	requestID := GetRequestIDFromContext(ctx)

	token := m.extractToken(r)
	if token == "" {
		m.logger.Debug("missing session token", zap.String("request_id", requestID))
		return ctx, false
	}

	claims, err := m.validator.ValidateToken(ctx, token)
	if err != nil {
		m.logger.Warn("session validation failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		return ctx, false
	}

	m.logger.Debug("authentication successful",
		zap.String("request_id", requestID),
		zap.String("sub", claims.Subject))

	return identity.WithClaims(ctx, claims), true
}

func (m *AuthMiddleware) signInRedirect(r *http.Request) string {
	target, err := url.Parse(m.signInURL)
	if err != nil {
		return m.signInURL
	}
	q := target.Query()
	q.Set("redirect_url", r.URL.RequestURI())
	target.RawQuery = q.Encode()
	return target.String()
}

// extractToken extracts the session token from the Authorization header
// ("Bearer TOKEN") or the session cookie. The header takes precedence.
func (m *AuthMiddleware) extractToken(r *http.Request) string {
	if token := extractBearerToken(r); token != "" {
		return token
	}
	if cookie, err := r.Cookie(m.cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return ""
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
