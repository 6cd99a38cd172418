package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "a-long-enough-test-secret"

func TestGenerateAndValidateToken(t *testing.T) {
	token, err := GenerateToken("user-123", testSecret, 5*time.Minute)
	require.NoError(t, err)

	claims, err := ValidateToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID)
	assert.Equal(t, "user-123", claims.Subject)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	token, err := GenerateToken("user-123", testSecret, 5*time.Minute)
	require.NoError(t, err)

	_, err = ValidateToken(token, "another-secret")
	assert.Error(t, err)
}

func TestValidateToken_Expired(t *testing.T) {
	token, err := GenerateToken("user-123", testSecret, -time.Minute)
	require.NoError(t, err)

	_, err = ValidateToken(token, testSecret)
	assert.Error(t, err)
}

func TestGenerateToken_RequiresUser(t *testing.T) {
	_, err := GenerateToken("", testSecret, time.Minute)
	assert.Error(t, err)
}
