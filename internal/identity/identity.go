// Package identity derives the pseudonymous 16-byte user_id that every
// other subsystem uses as the sole identifier for a human account. An
// email address is never stored; this pipeline is the one place it is
// ever touched, and it is one-way.
package identity

import (
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/arkaitz-dev/hashrand-go/internal/keymaterial"
	"github.com/arkaitz-dev/hashrand-go/internal/pseudo"
	"github.com/zeebo/blake3"
)

// Argon2id tuning for the user_id pipeline. These are a fixed, documented
// contract: changing any of them changes every existing user_id.
const (
	argon2Time    = 2
	argon2MemKiB  = 19456
	argon2Threads = 1
	argon2KeyLen  = 32
)

// UserIDLen is the length of a derived user_id.
const UserIDLen = 16

// DeriveUserID runs the five-step pipeline that turns an email address into
// a pseudonymous user_id. The same email always yields the same user_id;
// there is no way to recover the email from the result.
func DeriveUserID(keys *keymaterial.KeySet, email string) []byte {
	userID, _ := DeriveUserIDWithIntermediate(keys, email)
	return userID
}

// DeriveUserIDWithIntermediate runs the same pipeline as DeriveUserID but
// also returns the step-4 Argon2id output (p3). internal/magiclink needs
// this intermediate value to derive a user's db_index without re-running
// the (deliberately expensive) Argon2id step a second time.
func DeriveUserIDWithIntermediate(keys *keymaterial.KeySet, email string) (userID, argon2Output []byte) {
	normalized := strings.TrimSpace(strings.ToLower(email))

	p1 := blake3XOF([]byte(normalized), 64)

	p2 := pseudo.KeyedVariable(keys.UserIDHMACKey, p1, 32)
	dynamicSalt := pseudo.KeyedVariable(keys.Argon2Salt, p1, 32)

	p3 := argon2.IDKey(p2, dynamicSalt, argon2Time, argon2MemKiB, argon2Threads, argon2KeyLen)

	userID = pseudo.KeyedVariable(keys.UserIDArgon2Compression, p3, UserIDLen)
	return userID, p3
}

// blake3XOF is the unkeyed Blake3 extendable-output hash of data, read for
// outLen bytes.
func blake3XOF(data []byte, outLen int) []byte {
	h := blake3.New()
	h.Write(data)

	out := make([]byte, outLen)
	digest := h.Digest()
	if _, err := digest.Read(out); err != nil {
		panic("identity: blake3 XOF read failed: " + err.Error())
	}
	return out
}
