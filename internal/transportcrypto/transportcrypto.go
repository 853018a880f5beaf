// Package transportcrypto implements the ECDH-derived AEAD used to move
// ephemeral secrets between client and server end-to-end, bypassing
// whatever is stored at rest in the database even when a Bearer session
// already authenticates the request.
package transportcrypto

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"

	"github.com/zeebo/blake3"
)

// sharedSecretContext is the hard-coded 26-byte ASCII domain separator
// mixed into every derivation. It must never change without a versioned
// field: the scheme is deterministic given (ss, context), which is safe
// only because this constant prevents reuse across unrelated purposes.
const sharedSecretContext = "SharedSecretKeyMaterial_v1"

const (
	aeadKeyLen   = chacha20poly1305.KeySize
	aeadNonceLen = chacha20poly1305.NonceSize
	derivedLen   = aeadKeyLen + aeadNonceLen
)

// deriveAEAD computes (aead_key, aead_nonce) from an X25519 shared secret.
// sharedSecret is already exactly 32 bytes (the X25519 output) and is used
// directly as the keyed-Blake3 key.
func deriveAEAD(sharedSecret []byte) (key, nonce []byte) {
	h, err := blake3.NewKeyed(sharedSecret)
	if err != nil {
		panic("transportcrypto: keyed blake3 hasher rejected 32-byte key: " + err.Error())
	}
	h.Write([]byte(sharedSecretContext))

	derived := make([]byte, derivedLen)
	if _, err := h.Digest().Read(derived); err != nil {
		panic("transportcrypto: blake3 XOF read failed: " + err.Error())
	}
	return derived[:aeadKeyLen], derived[aeadKeyLen:]
}

// Seal computes the X25519 shared secret between myPriv and theirPub,
// derives an AEAD key/nonce, and encrypts plaintext.
func Seal(myPriv, theirPub, plaintext []byte) ([]byte, error) {
	ss, err := curve25519.X25519(myPriv, theirPub)
	if err != nil {
		return nil, fmt.Errorf("transportcrypto: compute shared secret: %w", err)
	}

	key, nonce := deriveAEAD(ss)
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("transportcrypto: init aead: %w", err)
	}
	return aead.Seal(nil, nonce, plaintext, nil), nil
}

// Open reverses Seal.
func Open(myPriv, theirPub, ciphertext []byte) ([]byte, error) {
	ss, err := curve25519.X25519(myPriv, theirPub)
	if err != nil {
		return nil, fmt.Errorf("transportcrypto: compute shared secret: %w", err)
	}

	key, nonce := deriveAEAD(ss)
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("transportcrypto: init aead: %w", err)
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("transportcrypto: decrypt: %w", err)
	}
	return plaintext, nil
}

// GenerateX25519Keypair generates a fresh ephemeral X25519 keypair, for
// components (tests, or one-off client simulations) that need one outside
// the per-session derivation in internal/sessionkeys.
func GenerateX25519Keypair() (priv, pub []byte, err error) {
	priv = make([]byte, 32)
	if _, err := rand.Read(priv); err != nil {
		return nil, nil, fmt.Errorf("transportcrypto: generate private key: %w", err)
	}
	pub, err = curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, nil, fmt.Errorf("transportcrypto: derive public key: %w", err)
	}
	return priv, pub, nil
}
