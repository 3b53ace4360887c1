package credentials

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/dmitrijs2005/blindauth/internal/common"
	"github.com/dmitrijs2005/blindauth/internal/cryptox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cheap parameters keep the suite fast
var testParams = Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func TestHashAndVerify(t *testing.T) {
	v := NewArgon2Verifier(testParams)

	h, err := v.Hash("Secret123!")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(h, "$argon2id$v=19$m=8192,t=1,p=1$"), h)

	assert.True(t, v.Verify(h, "Secret123!"))
	assert.False(t, v.Verify(h, "Secret123?"))
	assert.False(t, v.Verify(h, ""))
}

func TestHash_KeyIsDerivedKey(t *testing.T) {
	h, err := NewArgon2Verifier(testParams).Hash("Secret123!")
	require.NoError(t, err)

	parts := strings.Split(h, "$")
	require.Len(t, parts, 6)
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	require.NoError(t, err)
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	require.NoError(t, err)

	want := cryptox.DeriveKey([]byte("Secret123!"), salt, cryptox.KDFParams{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32})
	assert.Equal(t, want, key)
}

func TestHash_SaltedPerCall(t *testing.T) {
	v := NewArgon2Verifier(testParams)

	h1, err := v.Hash("Secret123!")
	require.NoError(t, err)
	h2, err := v.Hash("Secret123!")
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}

func TestVerify_UsesEncodedParams(t *testing.T) {
	h, err := NewArgon2Verifier(testParams).Hash("Secret123!")
	require.NoError(t, err)

	// a verifier configured differently must still honour stored params
	assert.True(t, NewArgon2Verifier(DefaultParams).Verify(h, "Secret123!"))
}

func TestVerify_Malformed(t *testing.T) {
	v := NewArgon2Verifier(testParams)

	for _, h := range []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$!!!$aGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$c2FsdA$",
	} {
		assert.False(t, v.Verify(h, "Secret123!"), h)
	}
}

func TestHash_WeakPassword(t *testing.T) {
	v := NewArgon2Verifier(testParams)

	_, err := v.Hash("password")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrWeakCredential)
}
