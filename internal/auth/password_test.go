package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashing(t *testing.T) {
	const secret = "area-admin-secret"

	hash, err := HashPassword(secret)
	require.NoError(t, err)

	fields := strings.Split(hash, "$")
	require.Len(t, fields, 6, "PHC string %q", hash)
	assert.Equal(t, []string{"", "argon2id", "v=19", "m=65536,t=3,p=1"}, fields[:4])

	ok, err := VerifyPassword(secret, hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword(secret+"x", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	again, err := HashPassword(secret)
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "salt must differ between hashes")
}

func TestVerifyPasswordRejectsMalformedHashes(t *testing.T) {
	for name, hash := range map[string]string{
		"empty":          "",
		"plain text":     "hunter2",
		"other scheme":   "$scrypt$v=19$m=65536,t=3,p=1$c2FsdA$aGFzaA",
		"old version":    "$argon2id$v=16$m=65536,t=3,p=1$c2FsdA$aGFzaA",
		"missing key":    "$argon2id$v=19$m=65536,t=3,p=1",
		"salt not b64":   "$argon2id$v=19$m=65536,t=3,p=1$@@$aGFzaA",
		"params garbled": "$argon2id$v=19$m=x,t=3,p=1$c2FsdA$aGFzaA",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := VerifyPassword("anything", hash)
			assert.Error(t, err)
		})
	}
}

func TestCheckCredentials(t *testing.T) {
	hash, err := HashPassword("open-sesame")
	require.NoError(t, err)

	active := &User{PasswordHash: hash, Active: true}
	pending := &User{PasswordHash: hash}

	assert.NoError(t, CheckCredentials(active, "open-sesame"))
	assert.ErrorIs(t, CheckCredentials(active, "close-sesame"), ErrInvalidCredentials)
	assert.ErrorIs(t, CheckCredentials(pending, "open-sesame"), ErrUserInactive)
	// A wrong password never reveals that the account is inactive.
	assert.ErrorIs(t, CheckCredentials(pending, "close-sesame"), ErrInvalidCredentials)
}
