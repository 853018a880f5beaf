// Package sessionkeys derives the server's per-session Ed25519 and X25519
// keypairs. Both are pure functions of (user_id, client_pub_key) and the
// process-wide Ed25519 derivation key: there is nothing to store per
// session, because re-deriving from the same inputs always yields the same
// keys.
package sessionkeys

import (
	"crypto/ed25519"
	"crypto/sha512"
	"fmt"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/curve25519"

	"github.com/arkaitz-dev/hashrand-go/internal/keymaterial"
	"github.com/arkaitz-dev/hashrand-go/internal/pseudo"
)

// ServerKeys is the full server keypair bundle for one (user_id,
// client_pub_key) session.
type ServerKeys struct {
	Ed25519Priv ed25519.PrivateKey
	Ed25519Pub  ed25519.PublicKey
	X25519Priv  []byte // 32 bytes, clamped
	X25519Pub   []byte // 32 bytes
}

// Derive computes the server's deterministic session keypairs from userID
// and the client's Ed25519 public key.
func Derive(keys *keymaterial.KeySet, userID, clientEd25519Pub []byte) (*ServerKeys, error) {
	seed := pseudo.KeyedVariable(keys.Ed25519DerivationKey, append(append([]byte(nil), userID...), clientEd25519Pub...), ed25519.SeedSize)

	ed25519Priv := ed25519.NewKeyFromSeed(seed)
	ed25519Pub := ed25519Priv.Public().(ed25519.PublicKey)

	x25519Priv := clampScalar(sha512Sum(ed25519Priv.Seed())[:32])
	x25519Pub, err := curve25519.X25519(x25519Priv, curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("sessionkeys: derive x25519 public key: %w", err)
	}

	return &ServerKeys{
		Ed25519Priv: ed25519Priv,
		Ed25519Pub:  ed25519Pub,
		X25519Priv:  x25519Priv,
		X25519Pub:   x25519Pub,
	}, nil
}

// Ed25519PublicToX25519 converts an Ed25519 public key to its X25519
// Montgomery-form counterpart per RFC 7748 (decompress the Edwards y
// coordinate, map to Montgomery u). This is the public-key-only path used
// to cross-check key derivation without access to the private scalar.
func Ed25519PublicToX25519(pub ed25519.PublicKey) ([]byte, error) {
	point, err := new(edwards25519.Point).SetBytes(pub)
	if err != nil {
		return nil, fmt.Errorf("sessionkeys: invalid ed25519 public key: %w", err)
	}
	return point.BytesMontgomery(), nil
}

// Ed25519SecretToX25519 converts an Ed25519 seed to its corresponding
// clamped X25519 private scalar (first half of SHA-512 of the seed,
// clamped per RFC 7748/X25519).
func Ed25519SecretToX25519(seed []byte) []byte {
	return clampScalar(sha512Sum(seed)[:32])
}

func sha512Sum(data []byte) [64]byte {
	return sha512.Sum512(data)
}

func clampScalar(scalar []byte) []byte {
	out := append([]byte(nil), scalar...)
	out[0] &= 248
	out[31] &= 127
	out[31] |= 64
	return out
}
