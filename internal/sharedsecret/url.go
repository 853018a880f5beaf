package sharedsecret

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/chacha20"

	"github.com/arkaitz-dev/hashrand-go/internal/keymaterial"
	"github.com/arkaitz-dev/hashrand-go/internal/pseudo"
)

// Role distinguishes the sender's and receiver's view of the same shared
// secret. A sender shard never carries a read budget; a receiver shard does.
type Role byte

const (
	RoleSender Role = iota
	RoleReceiver
)

// Storage string matches the plain "sender"/"receiver" values pkg/storage
// persists in SharedSecretShard.Role.
func (r Role) Storage() string {
	if r == RoleSender {
		return "sender"
	}
	return "receiver"
}

func (r Role) String() string {
	return r.Storage()
}

const (
	checksumLen   = 7
	hash40Len     = 40
	urlCipherCtx  = "URL_CIPHER_V1"
	dbIndexOutLen = 32
)

// buildHash40 assembles the 40-byte plaintext that, once encrypted, becomes
// the URL path segment a client sees: reference_hash || user_id ||
// checksum7 || role_byte.
func buildHash40(keys *keymaterial.KeySet, referenceHash, userID []byte, role Role) []byte {
	checksum := pseudo.KeyedVariable(keys.SharedSecretChecksumKey, concat(referenceHash, userID), checksumLen)

	out := make([]byte, 0, hash40Len)
	out = append(out, referenceHash...)
	out = append(out, userID...)
	out = append(out, checksum...)
	out = append(out, byte(role))
	return out
}

// urlCipherKeyNonce derives the fixed key/nonce pair used to obfuscate
// hash_40. The nonce must be fixed (not random) because the 40-byte URL has
// no room to carry one alongside the ciphertext; the pair is derived purely
// from configuration, so it never varies at runtime.
func urlCipherKeyNonce(keys *keymaterial.KeySet) (key, nonce []byte) {
	material := pseudo.KeyedVariable(keys.SharedSecretURLCipherKey, []byte(urlCipherCtx), chacha20.KeySize+chacha20.NonceSize)
	return material[:chacha20.KeySize], material[chacha20.KeySize:]
}

func urlStreamXOR(keys *keymaterial.KeySet, data []byte) ([]byte, error) {
	key, nonce := urlCipherKeyNonce(keys)
	cipher, err := chacha20.NewUnauthenticatedCipher(key, nonce)
	if err != nil {
		return nil, fmt.Errorf("sharedsecret: building url cipher: %w", err)
	}
	out := make([]byte, len(data))
	cipher.XORKeyStream(out, data)
	return out, nil
}

// EncryptHash40 obfuscates a 40-byte hash_40 plaintext into the 40-byte
// value exposed in shared-secret URLs.
func EncryptHash40(keys *keymaterial.KeySet, hash40 []byte) ([]byte, error) {
	return urlStreamXOR(keys, hash40)
}

// DecryptHash40 reverses EncryptHash40; the stream cipher is its own
// inverse.
func DecryptHash40(keys *keymaterial.KeySet, encrypted []byte) ([]byte, error) {
	return urlStreamXOR(keys, encrypted)
}

// parsedHash40 is the decoded, already-decrypted form of a URL hash.
type parsedHash40 struct {
	ReferenceHash []byte
	UserID        []byte
	Checksum      []byte
	Role          Role
}

// ParseHash40 decrypts and splits a 40-byte URL hash into its fields. It does
// not verify the checksum; callers must do that against the caller's own
// expectations (L1 validation).
func ParseHash40(keys *keymaterial.KeySet, encrypted []byte) (*parsedHash40, error) {
	if len(encrypted) != hash40Len {
		return nil, fmt.Errorf("sharedsecret: hash must be %d bytes, got %d", hash40Len, len(encrypted))
	}
	plain, err := DecryptHash40(keys, encrypted)
	if err != nil {
		return nil, err
	}
	return &parsedHash40{
		ReferenceHash: plain[0:16],
		UserID:        plain[16:32],
		Checksum:      plain[32:39],
		Role:          Role(plain[39]),
	}, nil
}

// VerifyChecksum recomputes checksum7 for (referenceHash, userID) and
// compares it in constant time against the checksum embedded in a parsed
// hash.
func VerifyChecksum(keys *keymaterial.KeySet, p *parsedHash40) bool {
	expected := pseudo.KeyedVariable(keys.SharedSecretChecksumKey, concat(p.ReferenceHash, p.UserID), checksumLen)
	return subtle.ConstantTimeCompare(expected, p.Checksum) == 1
}

// DeriveDBIndex derives the opaque storage key a (reference_hash, user_id)
// pair maps to. It is independent of role: sender and receiver shards for
// the same secret share one tracking row but have their own db_index-keyed
// shards.
func DeriveDBIndex(keys *keymaterial.KeySet, referenceHash, userID []byte) []byte {
	return pseudo.KeyedVariable(keys.SharedSecretDBIndexKey, concat(referenceHash, userID), dbIndexOutLen)
}

func concat(parts ...[]byte) []byte {
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	out := make([]byte, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
