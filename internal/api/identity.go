package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"carshare/internal/config"
	"carshare/internal/domain"
	"carshare/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carried by access tokens. Subject is the user id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Identity verifies HS256 bearer tokens issued by the account service.
type Identity struct {
	secret []byte
	issuer string
}

func NewIdentity(cfg config.APIAuthConfig) *Identity {
	return &Identity{secret: []byte(cfg.JWTSecret), issuer: cfg.Issuer}
}

// Verify parses a raw token and returns the caller it identifies.
func (i *Identity) Verify(raw string) (models.Caller, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	var claims Claims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, opts...)
	if err != nil || !tok.Valid {
		return models.Caller{}, fmt.Errorf("%w: invalid token", domain.ErrUnauthenticated)
	}

	if claims.Subject == "" {
		return models.Caller{}, fmt.Errorf("%w: token has no subject", domain.ErrUnauthenticated)
	}
	if claims.Role != models.RoleCustomer && claims.Role != models.RoleOwner {
		return models.Caller{}, fmt.Errorf("%w: token has unknown role %q", domain.ErrUnauthenticated, claims.Role)
	}

	return models.Caller{UserID: claims.Subject, Role: claims.Role}, nil
}

// FromRequest reads the Authorization bearer header.
func (i *Identity) FromRequest(r *http.Request) (models.Caller, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	raw, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return models.Caller{}, fmt.Errorf("%w: missing bearer token", domain.ErrUnauthenticated)
	}
	return i.Verify(strings.TrimSpace(raw))
}

type callerKey struct{}

func withCaller(ctx context.Context, c models.Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFromContext returns the caller stored by the auth middleware.
func CallerFromContext(ctx context.Context) (models.Caller, error) {
	c, ok := ctx.Value(callerKey{}).(models.Caller)
	if !ok {
		return models.Caller{}, errors.New("no caller in context")
	}
	return c, nil
}
