package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerify(t *testing.T) {
	ctx := context.Background()
	issuer := NewIssuer("secret", "beans", time.Hour)
	verifier := NewVerifier("secret", "beans")

	t.Run("Success", func(t *testing.T) {
		token, err := issuer.Issue("user-1", RoleClient, RoleCashier)
		require.NoError(t, err)

		p, err := verifier.Verify(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, "user-1", p.UserID)
		assert.True(t, p.HasRole(RoleCashier))
		assert.False(t, p.HasRole(RoleAdmin))
	})

	t.Run("Wrong Secret", func(t *testing.T) {
		token, err := NewIssuer("other", "beans", time.Hour).Issue("user-1", RoleClient)
		require.NoError(t, err)
		_, err = verifier.Verify(ctx, token)
		assert.Error(t, err)
	})

	t.Run("Wrong Issuer", func(t *testing.T) {
		token, err := NewIssuer("secret", "someone-else", time.Hour).Issue("user-1", RoleClient)
		require.NoError(t, err)
		_, err = verifier.Verify(ctx, token)
		assert.Error(t, err)
	})

	t.Run("Expired", func(t *testing.T) {
		old := NewIssuer("secret", "beans", time.Minute)
		old.now = func() time.Time { return time.Now().Add(-time.Hour) }
		token, err := old.Issue("user-1", RoleClient)
		require.NoError(t, err)
		_, err = verifier.Verify(ctx, token)
		assert.Error(t, err)
	})

	t.Run("Unsigned", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", Issuer: "beans", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = verifier.Verify(ctx, token)
		assert.Error(t, err)
	})

	t.Run("Missing Subject", func(t *testing.T) {
		token, err := issuer.Issue("", RoleAdmin)
		require.NoError(t, err)
		_, err = verifier.Verify(ctx, token)
		assert.Error(t, err)
	})

	t.Run("Lowercase Roles", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
			Roles:            []string{"admin"},
			RegisteredClaims: jwt.RegisteredClaims{Subject: "u", Issuer: "beans", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		}).SignedString([]byte("secret"))
		require.NoError(t, err)
		p, err := verifier.Verify(ctx, token)
		require.NoError(t, err)
		assert.True(t, p.HasRole(RoleAdmin))
	})
}

func TestContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), Principal{UserID: "u", Roles: []Role{RoleClient}})
	p, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u", p.UserID)
}
