// Package token implements the 96-byte custom token codec: a fixed-layout,
// Base58-transported envelope combining a stream-encrypted 64-byte claims
// block with a circularly-bound, stream-encrypted 32-byte prehash seed.
// Access and refresh tokens share this exact codec; only the key bundle
// and duration passed in by the caller differ.
package token

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/chacha20"

	"github.com/arkaitz-dev/hashrand-go/internal/pseudo"
)

const (
	// prehashLen is N, the configured length of the intermediate prehash
	// value absorbed by the AEAD key/nonce derivation.
	prehashLen = 32

	claimsWithoutMACLen = 16 + 32 + 8 // user_id + pub + exp_ns_be
	macLen              = 8
	claimsLen           = claimsWithoutMACLen + macLen // 64

	prehashSeedLen = 32
	tokenLen       = prehashSeedLen + claimsLen // 96

	seedBindingContext = "prehash_seed_binding_v1"
)

// Claims is the typed payload every token carries.
type Claims struct {
	UserID    []byte // 16 bytes
	Pub       []byte // 32 bytes, client ed25519 public key this token is bound to
	ExpiresAt time.Time
}

// KeyBundle is the per-token-kind key material and lifetime. Access and
// refresh tokens each get their own KeyBundle built from the same
// MasterKeySet shape; only the underlying key values and Duration differ.
type KeyBundle struct {
	CipherKey []byte
	NonceKey  []byte
	HMACKey   []byte
	Duration  time.Duration
}

// ErrTokenExpired is returned when the token decodes and verifies
// correctly but its exp has passed.
var ErrTokenExpired = errors.New("token: expired")

// ErrTokenInvalid collapses every other decode failure: bad Base58, wrong
// length, MAC mismatch, or corrupted ciphertext. Callers must never
// receive a more specific reason, to avoid leaking an oracle.
var ErrTokenInvalid = errors.New("token: invalid")

// Encode serializes claims into the 96-byte token layout and Base58-encodes
// it for transport.
func Encode(claims Claims, bundle KeyBundle) (string, error) {
	if len(claims.UserID) != 16 {
		return "", fmt.Errorf("token: user_id must be 16 bytes, got %d", len(claims.UserID))
	}
	if len(claims.Pub) != 32 {
		return "", fmt.Errorf("token: pub must be 32 bytes, got %d", len(claims.Pub))
	}

	prehashSeed := make([]byte, prehashSeedLen)
	if _, err := rand.Read(prehashSeed); err != nil {
		return "", fmt.Errorf("token: generate prehash seed: %w", err)
	}

	claimsBytes := serializeClaims(claims, bundle.HMACKey)

	prehash := pseudo.KeyedVariable(bundle.HMACKey, prehashSeed, prehashLen)
	aeadKey, aeadNonce := deriveAEADFromPrehash(bundle.CipherKey, bundle.NonceKey, prehash)

	encryptedClaims, err := chachaXOR(aeadKey, aeadNonce, claimsBytes)
	if err != nil {
		return "", fmt.Errorf("token: encrypt claims: %w", err)
	}

	encryptedSeed, err := bindPrehashSeed(prehashSeed, encryptedClaims)
	if err != nil {
		return "", fmt.Errorf("token: encrypt prehash seed: %w", err)
	}

	out := make([]byte, 0, tokenLen)
	out = append(out, encryptedSeed...)
	out = append(out, encryptedClaims...)
	return base58.Encode(out), nil
}

// Decode reverses Encode: it decrypts the circularly-bound halves, verifies
// the inner MAC, and checks expiry.
func Decode(tokenStr string, bundle KeyBundle) (Claims, error) {
	raw, err := base58.Decode(tokenStr)
	if err != nil || len(raw) != tokenLen {
		return Claims{}, ErrTokenInvalid
	}

	encryptedSeed := raw[:prehashSeedLen]
	encryptedClaims := raw[prehashSeedLen:]

	// bindPrehashSeed is a stream cipher; encryption and decryption are
	// the same XOR operation keyed by the (unmodified) ciphertext half.
	prehashSeed, err := bindPrehashSeed(encryptedSeed, encryptedClaims)
	if err != nil {
		return Claims{}, ErrTokenInvalid
	}

	prehash := pseudo.KeyedVariable(bundle.HMACKey, prehashSeed, prehashLen)
	aeadKey, aeadNonce := deriveAEADFromPrehash(bundle.CipherKey, bundle.NonceKey, prehash)

	claimsBytes, err := chachaXOR(aeadKey, aeadNonce, encryptedClaims)
	if err != nil {
		return Claims{}, ErrTokenInvalid
	}

	claims, ok := parseAndVerifyClaims(claimsBytes, bundle.HMACKey)
	if !ok {
		return Claims{}, ErrTokenInvalid
	}

	if claims.ExpiresAt.Before(time.Now()) {
		return Claims{}, ErrTokenExpired
	}
	return claims, nil
}

// ValidateAccessThenRefresh tries accessBundle first, then refreshBundle,
// preferring any ErrTokenExpired signal across the two attempts so the
// caller can distinguish "expired, try to refresh" from "corrupt, reject
// outright".
func ValidateAccessThenRefresh(tokenStr string, accessBundle, refreshBundle KeyBundle) (Claims, error) {
	claims, accessErr := Decode(tokenStr, accessBundle)
	if accessErr == nil {
		return claims, nil
	}

	claims, refreshErr := Decode(tokenStr, refreshBundle)
	if refreshErr == nil {
		return claims, nil
	}

	if errors.Is(accessErr, ErrTokenExpired) || errors.Is(refreshErr, ErrTokenExpired) {
		return Claims{}, ErrTokenExpired
	}
	return Claims{}, ErrTokenInvalid
}

func serializeClaims(claims Claims, hmacKey []byte) []byte {
	withoutMAC := make([]byte, claimsWithoutMACLen)
	copy(withoutMAC[0:16], claims.UserID)
	copy(withoutMAC[16:48], claims.Pub)
	binary.BigEndian.PutUint64(withoutMAC[48:56], uint64(claims.ExpiresAt.UnixNano()))

	mac := pseudo.KeyedVariable(hmacKey, withoutMAC, macLen)

	out := make([]byte, 0, claimsLen)
	out = append(out, withoutMAC...)
	out = append(out, mac...)
	return out
}

func parseAndVerifyClaims(claimsBytes, hmacKey []byte) (Claims, bool) {
	if len(claimsBytes) != claimsLen {
		return Claims{}, false
	}
	withoutMAC := claimsBytes[:claimsWithoutMACLen]
	gotMAC := claimsBytes[claimsWithoutMACLen:]

	wantMAC := pseudo.KeyedVariable(hmacKey, withoutMAC, macLen)
	if !constantTimeEqual(gotMAC, wantMAC) {
		return Claims{}, false
	}

	userID := append([]byte(nil), withoutMAC[0:16]...)
	pub := append([]byte(nil), withoutMAC[16:48]...)
	expNs := binary.BigEndian.Uint64(withoutMAC[48:56])

	return Claims{
		UserID:    userID,
		Pub:       pub,
		ExpiresAt: time.Unix(0, int64(expNs)),
	}, true
}

// deriveAEADFromPrehash computes the claims-field AEAD key/nonce from the
// per-kind cipher/nonce keys absorbing prehash.
func deriveAEADFromPrehash(cipherKey, nonceKey, prehash []byte) (key, nonce []byte) {
	key = pseudo.KeyedVariable(cipherKey, prehash, 32)
	nonce = pseudo.KeyedVariable(nonceKey, prehash, 12)
	return key, nonce
}

// chachaXOR applies the raw ChaCha20 keystream (no Poly1305 tag) so the
// claims field stays exactly 64 bytes in and out; the inner 8-byte
// pseudonymizer MAC is this layer's sole authentication check.
func chachaXOR(key, nonce, data []byte) ([]byte, error) {
	cipher, err := chacha20.NewUnauthenticatedCipher(key, nonce)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	cipher.XORKeyStream(out, data)
	return out, nil
}

// bindPrehashSeed derives a key/nonce from encryptedClaims (the ciphertext
// of the other half) and stream-XORs seedHalf with it. Because both
// encode and decode derive the key from the same encryptedClaims bytes,
// this single function both encrypts and decrypts: tampering with either
// half of the token changes a different input to this circular binding
// and destroys decryption of the other.
func bindPrehashSeed(seedHalf, encryptedClaims []byte) ([]byte, error) {
	keyMaterial := pseudo.KeyedVariable(encryptedClaims, []byte(seedBindingContext), 44)
	key, nonce := keyMaterial[:32], keyMaterial[32:44]
	return chachaXOR(key, nonce, seedHalf)
}

func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
