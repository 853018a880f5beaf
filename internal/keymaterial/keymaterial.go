// Package keymaterial decodes the hex-encoded MasterKeySet from config into
// the fixed-length byte slices every crypto package in this service consumes
// as a domain_key. Decoding and length validation happen once, at process
// startup; nothing downstream re-parses hex or re-validates lengths.
package keymaterial

import (
	"encoding/hex"
	"fmt"

	"github.com/arkaitz-dev/hashrand-go/config"
)

// domainKeyLen is the length every Blake3-keyed domain separator in the
// MasterKeySet is expected to decode to. It is not a cryptographic minimum
// for Blake3 itself (the pseudonymizer re-hashes short inputs down to 32
// bytes on its own); it is a configuration-hygiene check that catches a
// truncated or mistyped hex string before it becomes an unrelated, silently
// "valid" domain key.
const domainKeyLen = 32

// KeySet holds every decoded key from the MasterKeySet. Fields are grouped
// to mirror config.KeySetConfig.
type KeySet struct {
	JWTSecret  []byte // legacy JWT signing secret; variable length
	Argon2Salt []byte

	MagicLinkHMACKey        []byte
	UserIDHMACKey           []byte
	UserIDArgon2Compression []byte
	ChaChaEncryptionKey     []byte

	AccessTokenCipherKey []byte
	AccessTokenNonceKey  []byte
	AccessTokenHMACKey   []byte

	RefreshTokenCipherKey []byte
	RefreshTokenNonceKey  []byte
	RefreshTokenHMACKey   []byte

	PrehashCipherKey []byte
	PrehashNonceKey  []byte
	PrehashHMACKey   []byte

	Ed25519DerivationKey []byte

	SharedSecretChecksumKey  []byte
	SharedSecretDBIndexKey   []byte
	SharedSecretURLCipherKey []byte
	SharedSecretContentKey   []byte

	UserPrivkeyIndexKey      []byte
	UserPrivkeyEncryptionKey []byte

	// Legacy magic-link content crypto; decoded but unused by the current
	// (pure Blake3-KDF) magic-link path. See internal/magiclink.
	MLinkContentCipher []byte
	MLinkContentNonce  []byte
	MLinkContentSalt   []byte

	EncryptedMlinkTokenHashKey []byte
}

// field couples a KeySetConfig hex string with the destination slice and
// whether its length must be exactly domainKeyLen.
type field struct {
	name   string
	hexStr string
	dst    *[]byte
	fixed  bool
}

// Load decodes every hex field in cfg into a KeySet, failing fast on the
// first malformed or wrong-length value so startup never proceeds with a
// partially-usable key set.
func Load(cfg *config.KeySetConfig) (*KeySet, error) {
	ks := &KeySet{}

	fields := []field{
		{"jwt_secret", cfg.JWTSecret, &ks.JWTSecret, false},
		{"argon2_salt", cfg.Argon2Salt, &ks.Argon2Salt, true},

		{"magic_link_hmac_key", cfg.MagicLinkHMACKey, &ks.MagicLinkHMACKey, true},
		{"user_id_hmac_key", cfg.UserIDHMACKey, &ks.UserIDHMACKey, true},
		{"user_id_argon2_compression", cfg.UserIDArgon2Compression, &ks.UserIDArgon2Compression, true},
		{"chacha_encryption_key", cfg.ChaChaEncryptionKey, &ks.ChaChaEncryptionKey, true},

		{"access_token_cipher_key", cfg.AccessTokenCipherKey, &ks.AccessTokenCipherKey, true},
		{"access_token_nonce_key", cfg.AccessTokenNonceKey, &ks.AccessTokenNonceKey, true},
		{"access_token_hmac_key", cfg.AccessTokenHMACKey, &ks.AccessTokenHMACKey, true},

		{"refresh_token_cipher_key", cfg.RefreshTokenCipherKey, &ks.RefreshTokenCipherKey, true},
		{"refresh_token_nonce_key", cfg.RefreshTokenNonceKey, &ks.RefreshTokenNonceKey, true},
		{"refresh_token_hmac_key", cfg.RefreshTokenHMACKey, &ks.RefreshTokenHMACKey, true},

		{"prehash_cipher_key", cfg.PrehashCipherKey, &ks.PrehashCipherKey, true},
		{"prehash_nonce_key", cfg.PrehashNonceKey, &ks.PrehashNonceKey, true},
		{"prehash_hmac_key", cfg.PrehashHMACKey, &ks.PrehashHMACKey, true},

		{"ed25519_derivation_key", cfg.Ed25519DerivationKey, &ks.Ed25519DerivationKey, true},

		{"shared_secret_checksum_key", cfg.SharedSecretChecksumKey, &ks.SharedSecretChecksumKey, true},
		{"shared_secret_db_index_key", cfg.SharedSecretDBIndexKey, &ks.SharedSecretDBIndexKey, true},
		{"shared_secret_url_cipher_key", cfg.SharedSecretURLCipherKey, &ks.SharedSecretURLCipherKey, true},
		{"shared_secret_content_key", cfg.SharedSecretContentKey, &ks.SharedSecretContentKey, true},

		{"user_privkey_index_key", cfg.UserPrivkeyIndexKey, &ks.UserPrivkeyIndexKey, true},
		{"user_privkey_encryption_key", cfg.UserPrivkeyEncryptionKey, &ks.UserPrivkeyEncryptionKey, true},

		{"mlink_content_cipher", cfg.MLinkContentCipher, &ks.MLinkContentCipher, false},
		{"mlink_content_nonce", cfg.MLinkContentNonce, &ks.MLinkContentNonce, false},
		{"mlink_content_salt", cfg.MLinkContentSalt, &ks.MLinkContentSalt, false},

		{"encrypted_mlink_token_hash_key", cfg.EncryptedMlinkTokenHashKey, &ks.EncryptedMlinkTokenHashKey, true},
	}

	for _, f := range fields {
		decoded, err := hex.DecodeString(f.hexStr)
		if err != nil {
			return nil, fmt.Errorf("keymaterial: %s: invalid hex: %w", f.name, err)
		}
		if len(decoded) == 0 {
			return nil, fmt.Errorf("keymaterial: %s: empty key", f.name)
		}
		if f.fixed && len(decoded) != domainKeyLen {
			return nil, fmt.Errorf("keymaterial: %s: expected %d bytes, got %d", f.name, domainKeyLen, len(decoded))
		}
		*f.dst = decoded
	}

	return ks, nil
}
