package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService("secret", 1)
	token, err := svc.Generate("t1", "Ada", RoleTutor)
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "t1", claims.UserID)
	assert.Equal(t, "Ada", claims.Name)
	assert.Equal(t, RoleTutor, claims.Role)
}

func TestJWTService_Rejects(t *testing.T) {
	svc := NewJWTService("secret", 1)

	other, err := NewJWTService("other", 1).Generate("u1", "", RoleUser)
	require.NoError(t, err)
	_, err = svc.Validate(other)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	signed, err := expired.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = svc.Validate(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)

	anonymous, err := svc.Generate("", "", RoleUser)
	require.NoError(t, err)
	_, err = svc.Validate(anonymous)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Validate("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_OnlyHS256(t *testing.T) {
	svc := NewJWTService("secret", 1)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := tok.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = svc.Validate(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
