package secretbox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestNew_RejectsBadKeys(t *testing.T) {
	t.Parallel()

	for _, k := range []string{"", "zz", strings.Repeat("ab", 16), strings.Repeat("ab", 33)} {
		_, err := New(k)
		require.ErrorIs(t, err, ErrInvalidKey, "key %q", k)
	}
}

func TestSealOpen(t *testing.T) {
	t.Parallel()

	box, err := New(testKey)
	require.NoError(t, err)

	secret := []byte("access-sandbox-2f1b8c")
	ad := []byte("item-42")

	sealed, err := box.Seal(secret, ad)
	require.NoError(t, err)
	require.NotContains(t, string(sealed), string(secret))

	again, err := box.Seal(secret, ad)
	require.NoError(t, err)
	require.NotEqual(t, sealed, again, "nonce должен быть случайным")

	plain, err := box.Open(sealed, ad)
	require.NoError(t, err)
	require.Equal(t, secret, plain)
}

func TestOpen_DetectsTamperingAndForeignOwner(t *testing.T) {
	t.Parallel()

	box, err := New(testKey)
	require.NoError(t, err)

	sealed, err := box.Seal([]byte("access-token"), []byte("item-1"))
	require.NoError(t, err)

	_, err = box.Open(sealed, []byte("item-2"))
	require.ErrorIs(t, err, ErrMalformed)

	tampered := append([]byte(nil), sealed...)
	tampered[len(tampered)-1] ^= 0xff
	_, err = box.Open(tampered, []byte("item-1"))
	require.ErrorIs(t, err, ErrMalformed)

	_, err = box.Open(sealed[:10], []byte("item-1"))
	require.ErrorIs(t, err, ErrMalformed)
}
