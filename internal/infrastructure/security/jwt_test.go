package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHookTokenRoundTrip(t *testing.T) {
	token, err := GenerateHookToken("s3cret", "wordpress", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateJWT(token, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "wordpress", claims["sub"])
	assert.True(t, HasHookScope(claims))
}

func TestValidateJWTRejectsWrongSecret(t *testing.T) {
	token, err := GenerateHookToken("s3cret", "wordpress", time.Hour)
	require.NoError(t, err)

	_, err = ValidateJWT(token, "other")
	assert.Error(t, err)
}

func TestValidateJWTRejectsExpired(t *testing.T) {
	claims := jwt.MapClaims{"scope": HookScope, "exp": time.Now().Add(-time.Minute).Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	_, err = ValidateJWT(token, "s3cret")
	assert.Error(t, err)
}

func TestValidateJWTRejectsNoneAlgorithm(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"scope": HookScope}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ValidateJWT(token, "s3cret")
	assert.Error(t, err)
}

func TestEmptySecretRefused(t *testing.T) {
	_, err := GenerateHookToken("", "wordpress", 0)
	assert.Error(t, err)
	_, err = ValidateJWT("anything", "")
	assert.Error(t, err)
}

func TestGenerators(t *testing.T) {
	_, err := ulid.Parse(GenerateULID())
	assert.NoError(t, err)

	key, err := GenerateSecureKey(32)
	require.NoError(t, err)
	assert.Len(t, key, 64)

	_, err = GenerateSecureKey(0)
	assert.Error(t, err)
}
