package auth

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrUnauthorized is returned for missing, malformed, expired or wrongly
// signed tokens.
var ErrUnauthorized = errors.New("unauthorized")

// Actor is the authenticated user ringing up a sale.
type Actor struct {
	UserID int64
	Role   string
}

// ID returns the actor identifier stored on sales.
func (a Actor) ID() string {
	return strconv.FormatInt(a.UserID, 10)
}

type ctxKey struct{}

// WithActor returns a copy of ctx carrying a.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// ActorFrom returns the actor stored in ctx, if any.
func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(ctxKey{}).(Actor)
	return a, ok
}

// Claims is the JWT payload issued to staff users.
type Claims struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 bearer tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens creates Tokens signing with secret. Issued tokens expire after
// ttl.
func NewTokens(secret []byte, ttl time.Duration) (*Tokens, error) {
	if len(secret) == 0 {
		return nil, errors.New("empty token secret")
	}
	return &Tokens{secret: secret, ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for a.
func (t *Tokens) Issue(a Actor) (string, error) {
	now := t.now()
	claims := Claims{
		UserID: a.UserID,
		Role:   a.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   a.ID(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}

// Verify parses raw and returns the actor it was issued for.
func (t *Tokens) Verify(raw string) (Actor, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return Actor{}, errors.Wrap(ErrUnauthorized, err.Error())
	}
	if claims.UserID <= 0 {
		return Actor{}, errors.Wrap(ErrUnauthorized, "token has no user")
	}
	return Actor{UserID: claims.UserID, Role: claims.Role}, nil
}
