// Package magiclink implements the single-use email capability state
// machine: issue, consume, and sweep. It wraps internal/identity,
// internal/pseudo, internal/sessionkeys, internal/transportcrypto, and
// pkg/storage's MagicLinkStore/UserPrivkeyStore into the business logic
// described for the magic-link engine.
package magiclink

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/arkaitz-dev/hashrand-go/internal/apierr"
	"github.com/arkaitz-dev/hashrand-go/internal/identity"
	"github.com/arkaitz-dev/hashrand-go/internal/keymaterial"
	"github.com/arkaitz-dev/hashrand-go/internal/pseudo"
	"github.com/arkaitz-dev/hashrand-go/internal/sessionkeys"
	"github.com/arkaitz-dev/hashrand-go/internal/transportcrypto"
	"github.com/arkaitz-dev/hashrand-go/pkg/storage"
)

const (
	rawLen           = identity.UserIDLen + 8 + 8 // user_id + exp_ns_be + hmac8 = 32
	innerAEADContext = "magic_link_inner_payload_v1"
	tokenHashContext = "magic_link_token_hash_v1"
	privkeyCtxLen    = 64
)

// Engine is the magic-link business-logic service.
type Engine struct {
	keys       *keymaterial.KeySet
	links      storage.MagicLinkStore
	privkeys   storage.UserPrivkeyStore
	innerTTL   time.Duration
	storageTTL time.Duration
}

// New builds a magic-link Engine. innerTTL bounds the fine-grained (ns)
// expiry checked at consume time; storageTTL is the coarser, hour-grained
// expiry the sweeper acts on and must be >= innerTTL.
func New(keys *keymaterial.KeySet, links storage.MagicLinkStore, privkeys storage.UserPrivkeyStore, innerTTL, storageTTL time.Duration) *Engine {
	return &Engine{keys: keys, links: links, privkeys: privkeys, innerTTL: innerTTL, storageTTL: storageTTL}
}

// IssueInput collects everything Issue needs from the login request.
type IssueInput struct {
	Email            string
	ClientEd25519Pub []byte // 32 bytes
	ClientX25519Pub  []byte // 32 bytes
	UIHost           string
	NextPath         string

	// EmailLang is carried through for a caller-supplied email renderer
	// (out of scope here); it is never persisted or used in the capability
	// itself.
	EmailLang string
}

// Issue derives the user's identity, builds and stores the capability
// payload, and returns the capability string to embed in the delivered
// URL (callers compose "<ui_host>/?magiclink=<capability>" themselves, per
// the wire endpoint table).
func (e *Engine) Issue(ctx context.Context, in IssueInput) (capability string, err error) {
	if len(in.ClientEd25519Pub) != 32 || len(in.ClientX25519Pub) != 32 {
		return "", apierr.New(apierr.KindBadRequest, apierr.TagBadRequest, "client public keys must be 32 bytes")
	}

	userID, argon2Output := identity.DeriveUserIDWithIntermediate(e.keys, in.Email)

	expNs := time.Now().Add(e.innerTTL).UnixNano()
	expNsBE := make([]byte, 8)
	binary.BigEndian.PutUint64(expNsBE, uint64(expNs))

	hmac8 := pseudo.KeyedVariable(e.keys.MagicLinkHMACKey, append(append([]byte(nil), userID...), expNsBE...), 8)

	raw := make([]byte, 0, rawLen)
	raw = append(raw, userID...)
	raw = append(raw, expNsBE...)
	raw = append(raw, hmac8...)

	nonceSecret := pseudo.KeyedVariable(e.keys.ChaChaEncryptionKey, raw, 44)
	nonce, secret := nonceSecret[:12], nonceSecret[12:44]

	encryptedRaw, err := chachaStreamXOR(secret, nonce, raw)
	if err != nil {
		return "", apierr.Wrap(apierr.KindInternal, apierr.TagInternal, "encrypt magic link raw", err)
	}

	dbIndex := pseudo.KeyedVariable(e.keys.UserPrivkeyIndexKey, argon2Output, 16)
	if err := e.ensurePrivkeyContext(ctx, dbIndex); err != nil {
		return "", err
	}

	inner := serializeInnerPayload(nonce, secret, dbIndex, in.ClientEd25519Pub, in.ClientX25519Pub, in.UIHost, in.NextPath)

	encryptedPayload, err := sealInnerPayload(encryptedRaw, inner)
	if err != nil {
		return "", apierr.Wrap(apierr.KindInternal, apierr.TagInternal, "seal magic link payload", err)
	}

	tokenHash := pseudo.KeyedVariable(encryptedRaw, []byte(tokenHashContext), 16)

	if err := e.links.Create(ctx, &storage.MagicLink{
		TokenHash:        tokenHash,
		ExpiresAt:        time.Now().Add(e.storageTTL),
		EncryptedPayload: encryptedPayload,
	}); err != nil {
		return "", apierr.Wrap(apierr.KindInternal, apierr.TagInternal, "store magic link", err)
	}

	return base58.Encode(encryptedRaw), nil
}

// ConsumeResult is everything the HTTP layer needs to mint tokens and sign
// the response after a successful consume.
type ConsumeResult struct {
	UserID                     []byte
	NextPath                   string
	ClientEd25519Pub           []byte
	ClientX25519Pub            []byte
	UIHost                     string
	EncryptedPrivkeyContextB64 string
}

// Consume redeems a capability exactly once.
func (e *Engine) Consume(ctx context.Context, capability string) (*ConsumeResult, error) {
	encryptedRaw, err := base58.Decode(capability)
	if err != nil || len(encryptedRaw) != 32 {
		return nil, apierr.New(apierr.KindNotFound, apierr.TagLinkNotFound, "magic link not found")
	}

	tokenHash := pseudo.KeyedVariable(encryptedRaw, []byte(tokenHashContext), 16)

	link, err := e.links.Consume(ctx, tokenHash)
	if err != nil {
		if err == storage.ErrNotFound {
			return nil, apierr.New(apierr.KindNotFound, apierr.TagLinkNotFound, "magic link not found")
		}
		return nil, apierr.Wrap(apierr.KindInternal, apierr.TagInternal, "consume magic link", err)
	}

	inner, err := openInnerPayload(encryptedRaw, link.EncryptedPayload)
	if err != nil {
		return nil, apierr.New(apierr.KindNotFound, apierr.TagLinkNotFound, "magic link not found")
	}

	nonce, secret, dbIndex, clientEd25519Pub, clientX25519Pub, uiHost, nextPath, err := parseInnerPayload(inner)
	if err != nil {
		return nil, apierr.New(apierr.KindNotFound, apierr.TagLinkNotFound, "magic link not found")
	}

	raw, err := chachaStreamXOR(secret, nonce, encryptedRaw)
	if err != nil {
		return nil, apierr.New(apierr.KindNotFound, apierr.TagLinkNotFound, "magic link not found")
	}

	userID := raw[0:16]
	expNsBE := raw[16:24]
	gotHMAC := raw[24:32]

	wantHMAC := pseudo.KeyedVariable(e.keys.MagicLinkHMACKey, raw[0:24], 8)
	if subtle.ConstantTimeCompare(gotHMAC, wantHMAC) != 1 {
		return nil, apierr.New(apierr.KindNotFound, apierr.TagLinkNotFound, "magic link not found")
	}

	expNs := int64(binary.BigEndian.Uint64(expNsBE))
	if expNs <= time.Now().UnixNano() {
		return nil, apierr.New(apierr.KindNotFound, apierr.TagLinkNotFound, "magic link not found")
	}

	privCtxPlaintext, err := e.loadPrivkeyContext(ctx, dbIndex)
	if err != nil {
		return nil, err
	}

	serverKeys, err := sessionkeys.Derive(e.keys, userID, clientEd25519Pub)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, apierr.TagInternal, "derive server session keys", err)
	}

	sealed, err := transportcrypto.Seal(serverKeys.X25519Priv, clientX25519Pub, privCtxPlaintext)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, apierr.TagInternal, "seal privkey context", err)
	}

	return &ConsumeResult{
		UserID:                     userID,
		NextPath:                   nextPath,
		ClientEd25519Pub:           clientEd25519Pub,
		ClientX25519Pub:            clientX25519Pub,
		UIHost:                     uiHost,
		EncryptedPrivkeyContextB64: base64.StdEncoding.EncodeToString(sealed),
	}, nil
}

// Sweep deletes magic links whose coarse expiry has passed.
func (e *Engine) Sweep(ctx context.Context) (int64, error) {
	return e.links.DeleteExpired(ctx, time.Now())
}

func (e *Engine) ensurePrivkeyContext(ctx context.Context, dbIndex []byte) error {
	plaintext := make([]byte, privkeyCtxLen)
	if _, err := rand.Read(plaintext); err != nil {
		return apierr.Wrap(apierr.KindInternal, apierr.TagInternal, "generate privkey context", err)
	}

	ciphertext, err := sealPrivkeyContext(e.keys, dbIndex, plaintext)
	if err != nil {
		return apierr.Wrap(apierr.KindInternal, apierr.TagInternal, "seal privkey context", err)
	}

	if _, err := e.privkeys.GetOrCreate(ctx, dbIndex, ciphertext); err != nil {
		return apierr.Wrap(apierr.KindInternal, apierr.TagInternal, "ensure privkey context", err)
	}
	return nil
}

func (e *Engine) loadPrivkeyContext(ctx context.Context, dbIndex []byte) ([]byte, error) {
	// GetOrCreate only creates when absent; by consume time the row was
	// already created at issue time, so the candidate bytes here are
	// never used, but a value must still be supplied.
	placeholder := make([]byte, privkeyCtxLen)

	row, err := e.privkeys.GetOrCreate(ctx, dbIndex, placeholder)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, apierr.TagInternal, "load privkey context", err)
	}

	plaintext, err := openPrivkeyContext(e.keys, dbIndex, row.EncryptedPrivkey)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, apierr.TagInternal, "decrypt privkey context", err)
	}
	return plaintext, nil
}

func sealPrivkeyContext(keys *keymaterial.KeySet, dbIndex, plaintext []byte) ([]byte, error) {
	keyNonce := pseudo.KeyedVariable(keys.UserPrivkeyEncryptionKey, dbIndex, 44)
	aead, err := chacha20poly1305.New(keyNonce[:32])
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, keyNonce[32:44], plaintext, nil), nil
}

func openPrivkeyContext(keys *keymaterial.KeySet, dbIndex, ciphertext []byte) ([]byte, error) {
	keyNonce := pseudo.KeyedVariable(keys.UserPrivkeyEncryptionKey, dbIndex, 44)
	aead, err := chacha20poly1305.New(keyNonce[:32])
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, keyNonce[32:44], ciphertext, nil)
}

func sealInnerPayload(encryptedRaw, inner []byte) ([]byte, error) {
	keyNonce := pseudo.KeyedVariable(encryptedRaw, []byte(innerAEADContext), 44)
	aead, err := chacha20poly1305.New(keyNonce[:32])
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, keyNonce[32:44], inner, nil), nil
}

func openInnerPayload(encryptedRaw, ciphertext []byte) ([]byte, error) {
	keyNonce := pseudo.KeyedVariable(encryptedRaw, []byte(innerAEADContext), 44)
	aead, err := chacha20poly1305.New(keyNonce[:32])
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, keyNonce[32:44], ciphertext, nil)
}

// chachaStreamXOR is the raw ChaCha20 keystream (no Poly1305 tag), used for
// the fixed-length, self-authenticating (via the inner HMAC) encryption of
// the 32-byte raw magic-link payload.
func chachaStreamXOR(key, nonce, data []byte) ([]byte, error) {
	cipher, err := chacha20.NewUnauthenticatedCipher(key, nonce)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	cipher.XORKeyStream(out, data)
	return out, nil
}

func serializeInnerPayload(nonce, secret, dbIndex, ed25519Pub, x25519Pub []byte, uiHost, nextPath string) []byte {
	out := make([]byte, 0, 12+32+16+32+32+2+len(uiHost)+len(nextPath))
	out = append(out, nonce...)
	out = append(out, secret...)
	out = append(out, dbIndex...)
	out = append(out, ed25519Pub...)
	out = append(out, x25519Pub...)

	hostLen := make([]byte, 2)
	binary.BigEndian.PutUint16(hostLen, uint16(len(uiHost)))
	out = append(out, hostLen...)
	out = append(out, []byte(uiHost)...)
	out = append(out, []byte(nextPath)...)
	return out
}

// parseInnerPayload splits the inner payload back into its fields. db_index
// is 16 bytes, matching the UserPrivkeyContext.db_index column width.
func parseInnerPayload(inner []byte) (nonce, secret, dbIndex, ed25519Pub, x25519Pub []byte, uiHost, nextPath string, err error) {
	const fixedLen = 12 + 32 + 16 + 32 + 32 + 2
	if len(inner) < fixedLen {
		return nil, nil, nil, nil, nil, "", "", fmt.Errorf("magiclink: inner payload too short")
	}

	nonce = inner[0:12]
	secret = inner[12:44]
	dbIndex = inner[44:60]
	ed25519Pub = inner[60:92]
	x25519Pub = inner[92:124]
	hostLen := int(binary.BigEndian.Uint16(inner[124:126]))

	if len(inner) < 126+hostLen {
		return nil, nil, nil, nil, nil, "", "", fmt.Errorf("magiclink: inner payload truncated")
	}

	uiHost = string(inner[126 : 126+hostLen])
	nextPath = string(inner[126+hostLen:])
	return nonce, secret, dbIndex, ed25519Pub, x25519Pub, uiHost, nextPath, nil
}
