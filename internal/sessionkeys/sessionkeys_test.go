package sessionkeys

import (
	"crypto/ed25519"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/curve25519"

	"github.com/arkaitz-dev/hashrand-go/config"
	"github.com/arkaitz-dev/hashrand-go/internal/keymaterial"
)

func testKeys(t *testing.T) *keymaterial.KeySet {
	t.Helper()
	hex32 := func(b byte) string {
		buf := make([]byte, 32)
		for i := range buf {
			buf[i] = b
		}
		return hex.EncodeToString(buf)
	}
	cfg := &config.KeySetConfig{
		JWTSecret:                  hex.EncodeToString([]byte("jwt-secret")),
		Argon2Salt:                 hex32(0x01),
		MagicLinkHMACKey:           hex32(0x02),
		UserIDHMACKey:              hex32(0x03),
		UserIDArgon2Compression:    hex32(0x04),
		ChaChaEncryptionKey:        hex32(0x05),
		AccessTokenCipherKey:       hex32(0x06),
		AccessTokenNonceKey:        hex32(0x07),
		AccessTokenHMACKey:         hex32(0x08),
		RefreshTokenCipherKey:      hex32(0x09),
		RefreshTokenNonceKey:       hex32(0x0a),
		RefreshTokenHMACKey:        hex32(0x0b),
		PrehashCipherKey:           hex32(0x0c),
		PrehashNonceKey:            hex32(0x0d),
		PrehashHMACKey:             hex32(0x0e),
		Ed25519DerivationKey:       hex32(0x0f),
		SharedSecretChecksumKey:    hex32(0x10),
		SharedSecretDBIndexKey:     hex32(0x11),
		SharedSecretURLCipherKey:   hex32(0x12),
		SharedSecretContentKey:     hex32(0x13),
		UserPrivkeyIndexKey:        hex32(0x14),
		UserPrivkeyEncryptionKey:   hex32(0x15),
		MLinkContentCipher:         hex.EncodeToString([]byte("legacy-cipher")),
		MLinkContentNonce:          hex.EncodeToString([]byte("123456789012")),
		MLinkContentSalt:           hex.EncodeToString([]byte("legacy-salt")),
		EncryptedMlinkTokenHashKey: hex32(0x16),
	}
	ks, err := keymaterial.Load(cfg)
	require.NoError(t, err)
	return ks
}

func TestDeriveIsDeterministic(t *testing.T) {
	keys := testKeys(t)
	userID := []byte("0123456789abcdef")
	_, clientPub, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	a, err := Derive(keys, userID, clientPub)
	require.NoError(t, err)
	b, err := Derive(keys, userID, clientPub)
	require.NoError(t, err)

	assert.Equal(t, []byte(a.Ed25519Priv), []byte(b.Ed25519Priv))
	assert.Equal(t, a.X25519Priv, b.X25519Priv)
	assert.Equal(t, a.X25519Pub, b.X25519Pub)
}

func TestDeriveDiffersAcrossClientKeys(t *testing.T) {
	keys := testKeys(t)
	userID := []byte("0123456789abcdef")
	_, clientPubA, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	_, clientPubB, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	a, err := Derive(keys, userID, clientPubA)
	require.NoError(t, err)
	b, err := Derive(keys, userID, clientPubB)
	require.NoError(t, err)

	assert.NotEqual(t, []byte(a.Ed25519Pub), []byte(b.Ed25519Pub))
}

func TestEd25519ToX25519ConversionAgreesPublicAndPrivatePaths(t *testing.T) {
	keys := testKeys(t)
	userID := []byte("0123456789abcdef")
	_, clientPub, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	server, err := Derive(keys, userID, clientPub)
	require.NoError(t, err)

	x25519PubFromPriv, err := curve25519.X25519(server.X25519Priv, curve25519.Basepoint)
	require.NoError(t, err)
	assert.Equal(t, server.X25519Pub, x25519PubFromPriv)

	x25519PubFromEdPub, err := Ed25519PublicToX25519(server.Ed25519Pub)
	require.NoError(t, err)
	assert.Equal(t, server.X25519Pub, x25519PubFromEdPub)
}
