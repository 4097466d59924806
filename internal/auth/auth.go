// Package auth guards the API with bearer tokens issued by an OpenID Connect
// provider. It is off unless a provider domain is configured.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// Config holds provider configuration.
type Config struct {
	Domain   string // e.g. "https://yourapp.eu.auth0.com"
	Audience string // API audience identifier
}

// Enabled reports whether a provider is configured.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Domain) != ""
}

// UserClaims are the JWT claims radiolens reads.
type UserClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

var errInvalidClaims = errors.New("invalid token claims")

// Verifier validates RS256 tokens against the provider's JWKS.
type Verifier struct {
	keyfunc  jwt.Keyfunc
	audience string
	issuer   string
}

// NewVerifier creates a verifier that fetches keys from
// {Domain}/.well-known/jwks.json and keeps them refreshed.
func NewVerifier(cfg Config) (*Verifier, error) {
	issuer := strings.TrimSuffix(cfg.Domain, "/")
	jwksURL := fmt.Sprintf("%s/.well-known/jwks.json", issuer)

	jwks, err := keyfunc.NewDefault([]string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS keyfunc: %w", err)
	}
	return newVerifier(jwks.Keyfunc, issuer, cfg.Audience), nil
}

func newVerifier(kf jwt.Keyfunc, issuer, audience string) *Verifier {
	return &Verifier{keyfunc: kf, issuer: issuer, audience: audience}
}

// Verify validates a JWT and returns its claims.
func (v *Verifier) Verify(tokenString string) (*UserClaims, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
	}
	if v.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, v.keyfunc, parserOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*UserClaims)
	if !ok || !token.Valid {
		return nil, errInvalidClaims
	}
	return claims, nil
}

// Middleware rejects requests without a valid token.
func Middleware(verifier *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				http.Error(w, "Unauthorized: missing token", http.StatusUnauthorized)
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				http.Error(w, "Unauthorized: invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// OptionalMiddleware attaches claims when a valid token is present and
// otherwise lets the request through unauthenticated.
func OptionalMiddleware(verifier *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// extractToken reads the bearer token from the Authorization header. GET
// requests may pass it as access_token instead, since EventSource cannot set
// headers.
func extractToken(r *http.Request) string {
	if token := extractBearerToken(r); token != "" {
		return token
	}
	if r.Method == http.MethodGet {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}

	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}

	return parts[1]
}

type contextKey int

const claimsKey contextKey = iota

// WithClaims returns a context carrying claims.
func WithClaims(ctx context.Context, claims *UserClaims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// Claims returns the claims from context, or nil if not authenticated.
func Claims(ctx context.Context) *UserClaims {
	claims, _ := ctx.Value(claimsKey).(*UserClaims)
	return claims
}

// Subject returns the token subject, or an empty string if not authenticated.
func Subject(ctx context.Context) string {
	claims := Claims(ctx)
	if claims == nil {
		return ""
	}
	return claims.Subject
}
