package password

import (
	"encoding/base64"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	encoded, err := Hash("container-to-hamburg")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=65536,t=1,p=4$"))

	require.True(t, Verify("container-to-hamburg", encoded))
	require.False(t, Verify("container-to-rotterdam", encoded))
	require.False(t, NeedsRehash(encoded))

	again, err := Hash("container-to-hamburg")
	require.NoError(t, err)
	require.NotEqual(t, encoded, again)
}

func TestVerifyRejectsMalformed(t *testing.T) {
	for _, encoded := range []string{
		"",
		"plain",
		"$argon2i$v=19$m=65536,t=1,p=4$c2FsdA$a2V5",
		"$argon2id$v=18$m=65536,t=1,p=4$c2FsdA$a2V5",
		"$argon2id$v=19$m=0,t=1,p=4$c2FsdA$a2V5",
		"$argon2id$v=19$m=65536,t=1,p=4$!!$a2V5",
	} {
		require.False(t, Verify("anything", encoded), encoded)
		require.True(t, NeedsRehash(encoded), encoded)
	}
}

func TestNeedsRehashOnOlderSettings(t *testing.T) {
	weaker := params{memory: 32 * 1024, time: 1, threads: 2}
	salt := []byte("0123456789abcdef")
	key := weaker.derive("pw-12345678", salt, keyLength)
	encoded := fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		weaker.memory, weaker.time, weaker.threads, b64(salt), b64(key))

	require.True(t, Verify("pw-12345678", encoded))
	require.True(t, NeedsRehash(encoded))
}

func TestValidate(t *testing.T) {
	require.ErrorIs(t, Validate(" short  "), ErrTooShort)
	require.ErrorIs(t, Validate(strings.Repeat("x", MaxLength+1)), ErrTooLong)
	require.NoError(t, Validate("zoll-und-fracht"))
	require.NoError(t, Validate("ÄÖÜäöüßé"))
}

func b64(b []byte) string {
	return base64.RawStdEncoding.EncodeToString(b)
}
