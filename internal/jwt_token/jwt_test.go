package jwttoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "mcpauth/pkg/domain-errors"
)

var jwtService = NewJWTService(
	"test-signing-key",
	"https://broker.test",
	"mcp",
)
var userID = "octocat"
var clientID = "test-client"
var scope = []string{"mcp", "read"}
var expiresIn = time.Hour

func Test_GenerateAccessToken(t *testing.T) {
	token, err := jwtService.GenerateAccessToken(userID, clientID, scope, expiresIn)
	require.NoError(t, err)
	require.NotEmpty(t, token.Token)
	require.NotEmpty(t, token.JTI)
	assert.WithinDuration(t, time.Now().Add(expiresIn), token.ExpiresAt, time.Minute)

	claims, err := jwtService.ValidateToken(token.Token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, userID, claims.Subject)
	assert.Equal(t, clientID, claims.ClientID)
	assert.Equal(t, "mcp read", claims.Scope)
	assert.Equal(t, token.JTI, claims.ID)
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	_, err := jwtService.ValidateToken("invalid-token-string")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	assert.Equal(t, "invalid token", dErrors.MessageOf(err))
}

func Test_ValidateToken_ExpiredToken(t *testing.T) {
	token, err := jwtService.GenerateAccessToken(userID, clientID, scope, -time.Hour)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token.Token)
	require.Error(t, err)
	assert.Equal(t, "token has expired", dErrors.MessageOf(err))
}

func Test_ValidateToken_WrongKeyOrIssuer(t *testing.T) {
	other := NewJWTService("other-key", "https://broker.test", "mcp")
	token, err := other.GenerateAccessToken(userID, clientID, scope, expiresIn)
	require.NoError(t, err)
	_, err = jwtService.ValidateToken(token.Token)
	assert.Error(t, err)

	foreign := NewJWTService("test-signing-key", "https://elsewhere.test", "mcp")
	token, err = foreign.GenerateAccessToken(userID, clientID, scope, expiresIn)
	require.NoError(t, err)
	_, err = jwtService.ValidateToken(token.Token)
	assert.Error(t, err)
}

func Test_ValidateToken_RejectsNoneAlgorithm(t *testing.T) {
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://broker.test",
			Audience:  []string{"mcp"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			ID:        "jti",
		},
	})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(raw)
	assert.Error(t, err)
}

func TestAdapter(t *testing.T) {
	token, err := jwtService.GenerateAccessToken(userID, clientID, scope, expiresIn)
	require.NoError(t, err)

	claims, err := NewJWTServiceAdapter(jwtService).ValidateToken(token.Token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, token.JTI, claims.SessionID)
	assert.Equal(t, clientID, claims.ClientID)
}
