package api

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/vetconnect/vetconnect-server/internal/types"
)

func TestJwtRoundTrip(t *testing.T) {
	s := &VetConnectApp{signingKey: []byte("test-signing-key")}

	token, err := s.createJwtForSession(types.User{Id: 42}, time.Minute)
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	userId, err := s.extractUserIdFromToken(token)
	assert.NoError(t, err)
	assert.Equal(t, 42, userId)
}

func TestExtractUserIdFromToken(t *testing.T) {
	s := &VetConnectApp{signingKey: []byte("test-signing-key")}

	t.Run("rejects expired token", func(t *testing.T) {
		token, err := s.createJwtForSession(types.User{Id: 42}, -time.Minute)
		assert.NoError(t, err)

		_, err = s.extractUserIdFromToken(token)
		assert.Error(t, err)
	})

	t.Run("rejects token signed with a different key", func(t *testing.T) {
		other := &VetConnectApp{signingKey: []byte("other-key")}
		token, err := other.createJwtForSession(types.User{Id: 42}, time.Minute)
		assert.NoError(t, err)

		_, err = s.extractUserIdFromToken(token)
		assert.Error(t, err)
	})

	t.Run("rejects unsigned token", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
			userIdClaim: 42,
			expClaim:    time.Now().Add(time.Minute).Unix(),
		})
		tokenString, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		assert.NoError(t, err)

		_, err = s.extractUserIdFromToken(tokenString)
		assert.Error(t, err)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := s.extractUserIdFromToken("not-a-token")
		assert.Error(t, err)
	})
}

func TestPasswordHashing(t *testing.T) {
	hash, err := hashPassword("s3cret")
	assert.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)

	assert.True(t, verifyPassword(hash, "s3cret"))
	assert.False(t, verifyPassword(hash, "wrong"))
}

func TestCreateJwtCookie(t *testing.T) {
	cookie := createJwtCookie("token-value", time.Hour)
	assert.Equal(t, tokenCookieKey, cookie.Name)
	assert.Equal(t, "token-value", cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Expires.After(time.Now()))
}
