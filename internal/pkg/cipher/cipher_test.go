package cipher

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCipher(t *testing.T) *ChallengeCipher {
	t.Helper()
	key, err := GenerateKey()
	require.NoError(t, err)
	c, err := NewFromHex(key)
	require.NoError(t, err)
	return c
}

func TestRoundTrip(t *testing.T) {
	c := newTestCipher(t)
	for _, s := range []string{"000000", "123456", "999999", "", "0123456789abcdef", "a longer value spanning blocks"} {
		env, err := c.Encrypt(s)
		require.NoError(t, err)
		got, err := c.Decrypt(env)
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
}

func TestEncrypt_FreshIVPerCall(t *testing.T) {
	c := newTestCipher(t)
	a, err := c.Encrypt("123456")
	require.NoError(t, err)
	b, err := c.Encrypt("123456")
	require.NoError(t, err)

	ivA, _, _ := strings.Cut(a, ":")
	ivB, _, _ := strings.Cut(b, ":")
	assert.NotEqual(t, ivA, ivB)
	assert.NotEqual(t, a, b)
}

func TestDecrypt_Malformed(t *testing.T) {
	c := newTestCipher(t)
	valid, err := c.Encrypt("123456")
	require.NoError(t, err)
	iv, ct, _ := strings.Cut(valid, ":")

	cases := map[string]string{
		"no delimiter":  iv + ct,
		"bad iv hex":    "zz" + iv[2:] + ":" + ct,
		"short iv":      iv[:8] + ":" + ct,
		"bad ct hex":    iv + ":" + "xyz",
		"partial block": iv + ":" + ct[:10],
		"empty ct":      iv + ":",
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := c.Decrypt(env)
			var ce *Error
			require.Error(t, err)
			assert.True(t, errors.As(err, &ce))
		})
	}
}

func TestDecrypt_WrongKeyFailsOrMismatches(t *testing.T) {
	a := newTestCipher(t)
	b := newTestCipher(t)
	env, err := a.Encrypt("123456")
	require.NoError(t, err)
	got, err := b.Decrypt(env)
	if err == nil {
		assert.NotEqual(t, "123456", got)
	}
}

func TestNew_RejectsBadKeyLength(t *testing.T) {
	_, err := New([]byte("short"))
	assert.Error(t, err)
	_, err = NewFromHex("not-hex")
	assert.Error(t, err)
}
