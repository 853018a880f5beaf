package transportcrypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/curve25519"
)

func TestSealOpenRoundTrip(t *testing.T) {
	aliceSK, alicePK, err := GenerateX25519Keypair()
	require.NoError(t, err)
	bobSK, bobPK, err := GenerateX25519Keypair()
	require.NoError(t, err)

	plaintext := []byte("ephemeral secret payload")
	ciphertext, err := Seal(aliceSK, bobPK, plaintext)
	require.NoError(t, err)

	opened, err := Open(bobSK, alicePK, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestOpenRejectsTamperedCiphertext(t *testing.T) {
	aliceSK, alicePK, err := GenerateX25519Keypair()
	require.NoError(t, err)
	bobSK, bobPK, err := GenerateX25519Keypair()
	require.NoError(t, err)

	ciphertext, err := Seal(aliceSK, bobPK, []byte("data"))
	require.NoError(t, err)
	ciphertext[0] ^= 0xFF

	_, err = Open(bobSK, alicePK, ciphertext)
	assert.Error(t, err)
}

func TestDeriveAEADMatchesBasepointPublicKey(t *testing.T) {
	priv, pub, err := GenerateX25519Keypair()
	require.NoError(t, err)

	recomputed, err := curve25519.X25519(priv, curve25519.Basepoint)
	require.NoError(t, err)
	assert.Equal(t, pub, recomputed)
}
