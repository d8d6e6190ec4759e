package crypto

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRandBytes_LengthAndUniqueness(t *testing.T) {
	t.Parallel()

	const n = 64
	a, err := RandBytes(n)
	require.NoError(t, err)
	require.Len(t, a, n)
	b, err := RandBytes(n)
	require.NoError(t, err)
	require.False(t, bytes.Equal(a, b), "two subsequent RandBytes are equal")
	require.False(t, bytes.Equal(a, make([]byte, n)), "RandBytes returned all zeros")
}

func TestHashSecret_SaltedEncoding(t *testing.T) {
	t.Parallel()

	h1, err := HashSecret("p@ssw0rd")
	require.NoError(t, err)
	h2, err := HashSecret("p@ssw0rd")
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(h1, "$argon2id$v=19$m=65536,t=3,p=1$"), h1)
	require.NotEqual(t, h1, h2, "fresh salt per hash")
}

func TestVerifySecret(t *testing.T) {
	t.Parallel()

	enc, err := HashSecret("correct horse battery staple")
	require.NoError(t, err)

	ok, err := VerifySecret("correct horse battery staple", enc)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = VerifySecret("wrong", enc)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = VerifySecret("", enc)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVerifySecret_Malformed(t *testing.T) {
	t.Parallel()

	for _, enc := range []string{
		"",
		"plain",
		"$bcrypt$v=19$m=1,t=1,p=1$AAAA$AAAA",
		"$argon2id$v=18$m=65536,t=3,p=1$AAAA$AAAA",
		"$argon2id$v=19$garbage$AAAA$AAAA",
		"$argon2id$v=19$m=65536,t=3,p=1$!!!$AAAA",
		"$argon2id$v=19$m=65536,t=3,p=1$AAAA$",
	} {
		_, err := VerifySecret("x", enc)
		require.ErrorIs(t, err, ErrMalformedHash, enc)
	}
}
