package auth

import (
	"context"
	"strings"
)

// AuthContext is the outcome of token validation for one request. The zero
// value is the anonymous context.
type AuthContext struct {
	UserID string
	Email  string
}

// Anonymous is the context of a request without a valid token.
var Anonymous = AuthContext{}

// Authenticated reports whether the request carried a valid token.
func (a AuthContext) Authenticated() bool { return a.UserID != "" }

// Gate turns an Authorization header into an AuthContext. It never rejects:
// handlers decide whether an anonymous caller may proceed.
type Gate struct {
	tokens *JWTManager
}

func NewGate(tokens *JWTManager) *Gate {
	return &Gate{tokens: tokens}
}

// Authenticate parses "Bearer <token>" (or a bare token) and validates it.
// Any failure yields Anonymous.
func (g *Gate) Authenticate(header string) AuthContext {
	token := strings.TrimSpace(header)
	if token == "" {
		return Anonymous
	}
	if scheme, rest, ok := strings.Cut(token, " "); ok {
		if !strings.EqualFold(scheme, "Bearer") {
			return Anonymous
		}
		token = strings.TrimSpace(rest)
	}
	claims, err := g.tokens.ValidateToken(token)
	if err != nil {
		return Anonymous
	}
	return AuthContext{UserID: claims.UserID, Email: claims.Email}
}

type contextKey struct{}

// WithContext stores ac in ctx.
func WithContext(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

// FromContext returns the AuthContext stored in ctx, or Anonymous.
func FromContext(ctx context.Context) AuthContext {
	if ac, ok := ctx.Value(contextKey{}).(AuthContext); ok {
		return ac
	}
	return Anonymous
}
