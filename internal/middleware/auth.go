package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pkordes/triplog/internal/domain"
)

// Claims is the bearer token payload. Subject carries the member ID.
type Claims struct {
	SubUnitID    string   `json:"unit"`
	BaseID       string   `json:"base"`
	Capabilities []string `json:"caps"`
	jwt.RegisteredClaims
}

type actorKey struct{}

// WithActor returns a copy of ctx carrying a.
func WithActor(ctx context.Context, a domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFrom returns the actor placed in ctx by NewAuthenticator.
func ActorFrom(ctx context.Context) (domain.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(domain.Actor)
	return a, ok
}

// SignToken issues an HS256 token for a that expires after ttl.
func SignToken(secret []byte, a domain.Actor, ttl time.Duration) (string, error) {
	caps := make([]string, len(a.Capabilities))
	for i, c := range a.Capabilities {
		caps[i] = string(c)
	}
	now := time.Now()
	claims := Claims{
		SubUnitID:    a.SubUnitID.String(),
		BaseID:       a.BaseID.String(),
		Capabilities: caps,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   a.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// NewAuthenticator returns a middleware that requires a valid
// "Authorization: Bearer <token>" header and stores the resulting
// domain.Actor in the request context. Failures are answered with 401.
func NewAuthenticator(secret []byte, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || raw == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}
			actor, err := parseActor(secret, raw)
			if err != nil {
				log.WarnContext(r.Context(), "rejected token", "error", err)
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

func parseActor(secret []byte, raw string) (domain.Actor, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return domain.Actor{}, err
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return domain.Actor{}, fmt.Errorf("subject: %w", err)
	}
	unit, err := uuid.Parse(claims.SubUnitID)
	if err != nil {
		return domain.Actor{}, fmt.Errorf("unit: %w", err)
	}
	base, err := uuid.Parse(claims.BaseID)
	if err != nil {
		return domain.Actor{}, fmt.Errorf("base: %w", err)
	}
	if len(claims.Capabilities) == 0 {
		return domain.Actor{}, errors.New("token carries no capabilities")
	}
	caps := make([]domain.Capability, len(claims.Capabilities))
	for i, c := range claims.Capabilities {
		caps[i] = domain.Capability(c)
	}
	return domain.Actor{ID: id, SubUnitID: unit, BaseID: base, Capabilities: caps}, nil
}
