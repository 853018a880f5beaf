package keymaterial

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkaitz-dev/hashrand-go/config"
)

func hex32(b byte) string {
	buf := make([]byte, 32)
	for i := range buf {
		buf[i] = b
	}
	return hex.EncodeToString(buf)
}

func validKeySetConfig() *config.KeySetConfig {
	return &config.KeySetConfig{
		JWTSecret:                  hex.EncodeToString([]byte("legacy-jwt-secret")),
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
}

func TestLoadDecodesAllFields(t *testing.T) {
	ks, err := Load(validKeySetConfig())
	require.NoError(t, err)

	assert.Len(t, ks.Argon2Salt, 32)
	assert.Len(t, ks.UserIDHMACKey, 32)
	assert.Len(t, ks.Ed25519DerivationKey, 32)
	assert.Equal(t, []byte("legacy-jwt-secret"), ks.JWTSecret)
}

func TestLoadRejectsInvalidHex(t *testing.T) {
	cfg := validKeySetConfig()
	cfg.UserIDHMACKey = "not-hex"

	_, err := Load(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user_id_hmac_key")
}

func TestLoadRejectsWrongLength(t *testing.T) {
	cfg := validKeySetConfig()
	cfg.Ed25519DerivationKey = hex.EncodeToString([]byte("too-short"))

	_, err := Load(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ed25519_derivation_key")
}

func TestLoadRejectsEmptyKey(t *testing.T) {
	cfg := validKeySetConfig()
	cfg.MagicLinkHMACKey = ""

	_, err := Load(cfg)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "magic_link_hmac_key"))
}
