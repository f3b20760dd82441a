package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "unit-test-secret"

func newPair(t *testing.T, cfg JWTConfig) (*JWTIssuer, *JWTValidator) {
	t.Helper()
	issuer, err := NewJWTIssuer(cfg)
	require.NoError(t, err)
	validator, err := NewJWTValidator(cfg)
	require.NoError(t, err)
	return issuer, validator
}

func TestIssueAndValidateRoundTrip(t *testing.T) {
	issuer, validator := newPair(t, JWTConfig{Secret: testSecret, Issuer: "atlas-graph"})

	token, err := issuer.IssueToken("user-1", "user@example.com", []string{"admin", "editor"})
	require.NoError(t, err)

	claims, err := validator.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.True(t, claims.HasRole("admin"))
	assert.True(t, claims.HasRole("editor"))
	assert.False(t, claims.HasRole("viewer"))

	// The middleware passes the raw Authorization header through.
	claims, err = validator.ValidateToken("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
}

func TestValidateTokenRejectsBadInput(t *testing.T) {
	issuer, validator := newPair(t, JWTConfig{Secret: testSecret, Issuer: "atlas-graph"})

	_, err := validator.ValidateToken("")
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = validator.ValidateToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	otherIssuer, err := NewJWTIssuer(JWTConfig{Secret: "a-different-secret", Issuer: "atlas-graph"})
	require.NoError(t, err)
	forged, err := otherIssuer.IssueToken("user-1", "", nil)
	require.NoError(t, err)
	_, err = validator.ValidateToken(forged)
	assert.Error(t, err)

	wrongIssuer, err := issuer.IssueToken("user-1", "", nil)
	require.NoError(t, err)
	strictValidator, err := NewJWTValidator(JWTConfig{Secret: testSecret, Issuer: "someone-else"})
	require.NoError(t, err)
	_, err = strictValidator.ValidateToken(wrongIssuer)
	assert.ErrorIs(t, err, ErrInvalidClaims)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	_, validator := newPair(t, JWTConfig{Secret: testSecret})

	claims := Claims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = validator.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateTokenRequiresSubject(t *testing.T) {
	_, validator := newPair(t, JWTConfig{Secret: testSecret})

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = validator.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidClaims)
}

func TestSecretIsRequired(t *testing.T) {
	_, err := NewJWTValidator(JWTConfig{})
	assert.Error(t, err)
	_, err = NewJWTIssuer(JWTConfig{})
	assert.Error(t, err)
}

func TestUserContextRoundTrip(t *testing.T) {
	ctx := context.Background()

	_, err := GetUserFromContext(ctx)
	assert.Error(t, err)

	user := &UserContext{UserID: "user-1", Roles: []string{"admin"}}
	got, err := GetUserFromContext(SetUserInContext(ctx, user))
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)
}
