package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokens_RoundTrip(t *testing.T) {
	tokens, err := NewTokens([]byte("s3cret"), time.Hour)
	require.NoError(t, err)

	raw, err := tokens.Issue(Actor{UserID: 42, Role: "cashier"})
	require.NoError(t, err)

	actor, err := tokens.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, Actor{UserID: 42, Role: "cashier"}, actor)
	assert.Equal(t, "42", actor.ID())
}

func TestTokens_Verify_Rejects(t *testing.T) {
	issuedAt := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	tokens, err := NewTokens([]byte("s3cret"), time.Hour)
	require.NoError(t, err)
	tokens.now = func() time.Time { return issuedAt }

	valid, err := tokens.Issue(Actor{UserID: 1, Role: "admin"})
	require.NoError(t, err)

	other, err := NewTokens([]byte("other"), time.Hour)
	require.NoError(t, err)
	foreign, err := other.Issue(Actor{UserID: 1})
	require.NoError(t, err)

	noUser, err := tokens.Issue(Actor{Role: "admin"})
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 1}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name string
		raw  string
		now  time.Time
	}{
		{"garbage", "not-a-token", issuedAt},
		{"wrong secret", foreign, issuedAt},
		{"expired", valid, issuedAt.Add(2 * time.Hour)},
		{"no user", noUser, issuedAt},
		{"alg none", none, issuedAt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens.now = func() time.Time { return tt.now }
			_, err := tokens.Verify(tt.raw)
			require.ErrorIs(t, err, ErrUnauthorized)
		})
	}
}

func TestNewTokens_EmptySecret(t *testing.T) {
	_, err := NewTokens(nil, time.Hour)
	require.Error(t, err)
}

func TestActorContext(t *testing.T) {
	_, ok := ActorFrom(context.Background())
	assert.False(t, ok)

	ctx := WithActor(context.Background(), Actor{UserID: 7})
	a, ok := ActorFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(7), a.UserID)
}
