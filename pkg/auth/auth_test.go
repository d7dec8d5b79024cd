package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relmap/application/ports"
	apperrors "relmap/pkg/errors"
)

func testConfig() JWTConfig {
	return JWTConfig{SecretKey: "test-secret", Issuer: "relmap", Audience: []string{"authenticated"}}
}

func TestJWT_RoundTrip(t *testing.T) {
	gen, err := NewJWTGenerator(testConfig(), time.Hour)
	require.NoError(t, err)
	val, err := NewJWTValidator(testConfig())
	require.NoError(t, err)

	token, err := gen.GenerateToken("user-1", "marie@example.com")
	require.NoError(t, err)

	p, err := val.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", p.UserID)
	assert.Equal(t, "marie@example.com", p.Email)
}

func TestJWT_Rejections(t *testing.T) {
	val, err := NewJWTValidator(testConfig())
	require.NoError(t, err)

	expired, err := NewJWTGenerator(testConfig(), -time.Minute)
	require.NoError(t, err)
	expiredToken, err := expired.GenerateToken("user-1", "")
	require.NoError(t, err)

	otherCfg := testConfig()
	otherCfg.SecretKey = "other"
	other, err := NewJWTGenerator(otherCfg, time.Hour)
	require.NoError(t, err)
	forged, err := other.GenerateToken("user-1", "")
	require.NoError(t, err)

	wrongAud := testConfig()
	wrongAud.Audience = []string{"anon"}
	anon, err := NewJWTGenerator(wrongAud, time.Hour)
	require.NoError(t, err)
	anonToken, err := anon.GenerateToken("user-1", "")
	require.NoError(t, err)

	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "relmap", Audience: []string{"authenticated"}},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "empty", token: "", wantErr: ErrMissingToken},
		{name: "expired", token: expiredToken, wantErr: ErrExpiredToken},
		{name: "bad signature", token: forged, wantErr: ErrInvalidSignature},
		{name: "wrong audience", token: anonToken, wantErr: ErrInvalidClaims},
		{name: "missing subject", token: noSub, wantErr: ErrInvalidClaims},
		{name: "garbage", token: "not.a.token", wantErr: ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := val.ValidateToken(tt.token)
			assert.ErrorIs(t, err, tt.wantErr)

			_, err = val.Authenticate(context.Background(), tt.token)
			assert.True(t, apperrors.IsAuthRequired(err))
		})
	}
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewRateLimiter(60)
	l.now = func() time.Time { return now }

	// burst of 6
	for i := 0; i < 6; i++ {
		assert.True(t, l.Allow("user-1"), "request %d", i)
	}
	assert.False(t, l.Allow("user-1"))
	assert.True(t, l.Allow("user-2"))

	now = now.Add(time.Second)
	assert.True(t, l.Allow("user-1"))

	now = now.Add(time.Hour)
	l.Allow("user-3")
	assert.Equal(t, 2, l.Sweep())
	assert.Equal(t, 1, l.Len())
}

func TestPrincipalContext(t *testing.T) {
	_, ok := PrincipalFrom(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), &ports.Principal{UserID: "user-1"})
	p, ok := PrincipalFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, "user-1", p.UserID)
}
