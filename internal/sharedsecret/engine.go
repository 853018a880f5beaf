// Package sharedsecret implements the two-layer ephemeral secret-sharing
// engine: a Layer-2 tracking row holding the AEAD-sealed logical secret
// once per (sender, receiver) pair, and a Layer-1 shard per role giving
// each side its own encrypted key material and expiry. A sender shard
// never carries a read budget; a receiver shard is consumed down to zero
// and then deleted.
package sharedsecret

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"time"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/arkaitz-dev/hashrand-go/internal/apierr"
	"github.com/arkaitz-dev/hashrand-go/internal/keymaterial"
	"github.com/arkaitz-dev/hashrand-go/internal/pseudo"
	"github.com/arkaitz-dev/hashrand-go/pkg/storage"
)

const keyMaterialLen = 44 // 12-byte nonce || 32-byte key, used both as the
// tracking row's own AEAD key material and as the logical payload's
// envelope key.

// Engine wires the cryptographic derivations in this package to a
// storage.SharedSecretStore.
type Engine struct {
	keys  *keymaterial.KeySet
	store storage.SharedSecretStore
}

// New builds an Engine over the given shared-secret storage backend.
func New(keys *keymaterial.KeySet, store storage.SharedSecretStore) *Engine {
	return &Engine{keys: keys, store: store}
}

// CreateInput describes a new shared secret to mint.
type CreateInput struct {
	SenderUserID   []byte
	ReceiverUserID []byte
	SenderEmail    string
	ReceiverEmail  string
	EncryptedSecret []byte
	OTP            string
	MaxReads       int
	TTL            time.Duration
}

// CreateResult carries the two URL hashes a caller hands to the sender and
// the receiver respectively.
type CreateResult struct {
	ReferenceHash    []byte
	SenderURLHash    []byte
	ReceiverURLHash  []byte
}

// Create mints a shared secret: one tracking row and two role shards,
// written in that order so a crash after the tracking row but before a
// shard leaves a secret an L3 read-check would still reject cleanly.
func (e *Engine) Create(ctx context.Context, in CreateInput) (*CreateResult, error) {
	referenceHash := make([]byte, 16)
	if _, err := rand.Read(referenceHash); err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, apierr.TagInternal, "generating reference hash", err)
	}
	keyMat := make([]byte, keyMaterialLen)
	if _, err := rand.Read(keyMat); err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, apierr.TagInternal, "generating key material", err)
	}

	now := time.Now()
	payload := logicalPayload{
		SenderEmail:     in.SenderEmail,
		ReceiverEmail:   in.ReceiverEmail,
		EncryptedSecret: in.EncryptedSecret,
		KeyMaterial:     keyMat,
		OTP:             in.OTP,
		CreatedAt:       now,
		ReferenceHash:   referenceHash,
		MaxReads:        in.MaxReads,
	}

	encryptedPayload, err := sealWithKeyMaterial(keyMat, serializeLogicalPayload(payload))
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, apierr.TagInternal, "sealing shared secret payload", err)
	}

	expiresAt := now.Add(in.TTL)

	if err := e.store.CreateTracking(ctx, &storage.SharedSecretTracking{
		ReferenceHash:    referenceHash,
		PendingReads:     in.MaxReads,
		ExpiresAt:        expiresAt,
		EncryptedPayload: encryptedPayload,
	}); err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, apierr.TagInternal, "creating tracking row", err)
	}

	senderDBIndex := DeriveDBIndex(e.keys, referenceHash, in.SenderUserID)
	if err := e.createShard(ctx, senderDBIndex, keyMat, expiresAt, RoleSender); err != nil {
		return nil, err
	}

	receiverDBIndex := DeriveDBIndex(e.keys, referenceHash, in.ReceiverUserID)
	if err := e.createShard(ctx, receiverDBIndex, keyMat, expiresAt, RoleReceiver); err != nil {
		return nil, err
	}

	senderHash40 := buildHash40(e.keys, referenceHash, in.SenderUserID, RoleSender)
	senderURLHash, err := EncryptHash40(e.keys, senderHash40)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, apierr.TagInternal, "encrypting sender url hash", err)
	}

	receiverHash40 := buildHash40(e.keys, referenceHash, in.ReceiverUserID, RoleReceiver)
	receiverURLHash, err := EncryptHash40(e.keys, receiverHash40)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, apierr.TagInternal, "encrypting receiver url hash", err)
	}

	return &CreateResult{
		ReferenceHash:   referenceHash,
		SenderURLHash:   senderURLHash,
		ReceiverURLHash: receiverURLHash,
	}, nil
}

func (e *Engine) createShard(ctx context.Context, dbIndex, keyMat []byte, expiresAt time.Time, role Role) error {
	encrypted, err := shardKeyMaterialXOR(e.keys, dbIndex, keyMat)
	if err != nil {
		return apierr.Wrap(apierr.KindInternal, apierr.TagInternal, "encrypting shard key material", err)
	}
	if err := e.store.CreateShard(ctx, &storage.SharedSecretShard{
		ID:                   dbIndex,
		EncryptedKeyMaterial: encrypted,
		ExpiresAt:            expiresAt,
		Role:                 role.Storage(),
	}); err != nil {
		return apierr.Wrap(apierr.KindInternal, apierr.TagInternal, "creating shard", err)
	}
	return nil
}

// resolved is the fully validated, decrypted state backing a Read,
// ConfirmRead, or Delete call.
type resolved struct {
	parsed  *parsedHash40
	dbIndex []byte
	shard   *storage.SharedSecretShard
	payload logicalPayload
}

// resolve runs the three-layer validation shared by Read and ConfirmRead:
// L1 checksum, L2 ownership against requestingUserID, L3 tracking-row
// existence (cascading a shard delete on failure), then shard expiry and
// payload decryption.
func (e *Engine) resolve(ctx context.Context, urlHash, requestingUserID []byte) (*resolved, error) {
	parsed, err := ParseHash40(e.keys, urlHash)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindBadRequest, apierr.TagBadRequest, "malformed shared secret url", err)
	}

	if !VerifyChecksum(e.keys, parsed) {
		return nil, apierr.New(apierr.KindBadRequest, apierr.TagInvalidChecksum, "checksum mismatch")
	}

	if subtle.ConstantTimeCompare(parsed.UserID, requestingUserID) != 1 {
		return nil, apierr.New(apierr.KindForbidden, apierr.TagForbidden, "url does not belong to caller")
	}

	dbIndex := DeriveDBIndex(e.keys, parsed.ReferenceHash, parsed.UserID)

	tracking, err := e.store.GetTracking(ctx, parsed.ReferenceHash)
	if err != nil {
		_ = e.store.DeleteShard(ctx, dbIndex)
		return nil, apierr.New(apierr.KindGone, apierr.TagSecretDeleted, "shared secret no longer exists")
	}

	shard, err := e.store.GetShard(ctx, dbIndex)
	if err != nil {
		return nil, apierr.New(apierr.KindGone, apierr.TagSecretDeleted, "shared secret no longer exists")
	}

	if time.Now().After(shard.ExpiresAt) {
		_ = e.store.DeleteShard(ctx, dbIndex)
		return nil, apierr.New(apierr.KindGone, apierr.TagExpired, "shared secret shard has expired")
	}

	keyMat, err := shardKeyMaterialXOR(e.keys, dbIndex, shard.EncryptedKeyMaterial)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, apierr.TagInternal, "decrypting shard key material", err)
	}

	plaintext, err := openWithKeyMaterial(keyMat, tracking.EncryptedPayload)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, apierr.TagInternal, "opening shared secret payload", err)
	}

	payload, err := parseLogicalPayload(plaintext)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, apierr.TagInternal, "parsing shared secret payload", err)
	}

	if subtle.ConstantTimeCompare(payload.ReferenceHash, parsed.ReferenceHash) != 1 {
		return nil, apierr.New(apierr.KindInternal, apierr.TagInternal, "reference hash mismatch in sealed payload")
	}

	return &resolved{parsed: parsed, dbIndex: dbIndex, shard: shard, payload: payload}, nil
}

func (e *Engine) checkOTP(r *resolved, providedOTP string) error {
	if r.parsed.Role != RoleReceiver || r.payload.OTP == "" {
		return nil
	}
	if providedOTP == "" {
		return apierr.New(apierr.KindUnauthorized, apierr.TagOTPRequired, "an otp is required to read this secret")
	}
	if subtle.ConstantTimeCompare([]byte(providedOTP), []byte(r.payload.OTP)) != 1 {
		return apierr.New(apierr.KindUnauthorized, apierr.TagInvalidOTP, "incorrect otp")
	}
	return nil
}

// ReadResult is the caller-facing view of a shared secret. OTP and ReadAt
// are only populated for the sender's role; the receiver never sees the
// OTP value back.
type ReadResult struct {
	Role            Role
	SenderEmail     string
	ReceiverEmail   string
	EncryptedSecret []byte
	CreatedAt       time.Time
	MaxReads        int
	OTP             string
	ReadAt          *time.Time
}

// Read performs an idempotent lookup: it never mutates pending_reads or
// read_at. Confirming consumption of a read is ConfirmRead's job.
func (e *Engine) Read(ctx context.Context, urlHash, requestingUserID []byte, providedOTP string) (*ReadResult, error) {
	r, err := e.resolve(ctx, urlHash, requestingUserID)
	if err != nil {
		return nil, err
	}
	if err := e.checkOTP(r, providedOTP); err != nil {
		return nil, err
	}

	result := &ReadResult{
		Role:            r.parsed.Role,
		SenderEmail:     r.payload.SenderEmail,
		ReceiverEmail:   r.payload.ReceiverEmail,
		EncryptedSecret: r.payload.EncryptedSecret,
		CreatedAt:       r.payload.CreatedAt,
		MaxReads:        r.payload.MaxReads,
	}

	if r.parsed.Role == RoleSender {
		result.OTP = r.payload.OTP
		tracking, err := e.store.GetTracking(ctx, r.parsed.ReferenceHash)
		if err == nil {
			result.ReadAt = tracking.ReadAt
		}
	}

	return result, nil
}

// ConfirmRead marks a secret as read and, for the receiver role only,
// atomically decrements the remaining read budget, deleting the receiver
// shard once it reaches zero. The sender role never mutates the counter:
// a sender shard has no read budget to spend.
func (e *Engine) ConfirmRead(ctx context.Context, urlHash, requestingUserID []byte, providedOTP string) error {
	r, err := e.resolve(ctx, urlHash, requestingUserID)
	if err != nil {
		return err
	}
	if err := e.checkOTP(r, providedOTP); err != nil {
		return err
	}

	if err := e.store.MarkRead(ctx, r.parsed.ReferenceHash, time.Now()); err != nil {
		return apierr.Wrap(apierr.KindInternal, apierr.TagInternal, "marking secret as read", err)
	}

	if r.parsed.Role != RoleReceiver {
		return nil
	}

	tracking, err := e.store.DecrementPendingReads(ctx, r.parsed.ReferenceHash)
	if err != nil {
		return apierr.Wrap(apierr.KindInternal, apierr.TagInternal, "decrementing pending reads", err)
	}
	if tracking.PendingReads <= 0 {
		if err := e.store.DeleteShard(ctx, r.dbIndex); err != nil {
			return apierr.Wrap(apierr.KindInternal, apierr.TagInternal, "deleting exhausted receiver shard", err)
		}
	}
	return nil
}

// Delete removes a shared secret from one side's perspective. A receiver
// may only delete their own shard, and only while reads remain (once
// exhausted, ConfirmRead has already removed it). A sender's delete is
// unconditional and removes the tracking row outright, which makes any
// outstanding receiver shard fail its next L3 check and get swept.
func (e *Engine) Delete(ctx context.Context, urlHash, requestingUserID []byte) error {
	r, err := e.resolve(ctx, urlHash, requestingUserID)
	if err != nil {
		return err
	}

	if r.parsed.Role == RoleSender {
		if err := e.store.DeleteShard(ctx, r.dbIndex); err != nil {
			return apierr.Wrap(apierr.KindInternal, apierr.TagInternal, "deleting sender shard", err)
		}
		if err := e.store.DeleteTracking(ctx, r.parsed.ReferenceHash); err != nil {
			return apierr.Wrap(apierr.KindInternal, apierr.TagInternal, "deleting tracking row", err)
		}
		return nil
	}

	tracking, err := e.store.GetTracking(ctx, r.parsed.ReferenceHash)
	if err != nil {
		return apierr.New(apierr.KindGone, apierr.TagSecretDeleted, "shared secret no longer exists")
	}
	if tracking.PendingReads <= 0 {
		return apierr.New(apierr.KindGone, apierr.TagSecretDeleted, "shared secret no longer exists")
	}
	if err := e.store.DeleteShard(ctx, r.dbIndex); err != nil {
		return apierr.Wrap(apierr.KindInternal, apierr.TagInternal, "deleting receiver shard", err)
	}
	return nil
}

// Sweep removes every expired shard and tracking row, shards first so a
// concurrent reader never observes a tracking row with no matching shard
// left to decrypt.
func (e *Engine) Sweep(ctx context.Context) (shardsRemoved, trackingRemoved int64, err error) {
	return e.store.DeleteExpired(ctx, time.Now())
}

// shardKeyMaterialXOR encrypts (or decrypts; the stream cipher is its own
// inverse) a shard's 44-byte key material under a key/nonce pair derived
// from that shard's own db_index.
func shardKeyMaterialXOR(keys *keymaterial.KeySet, dbIndex, data []byte) ([]byte, error) {
	derived := pseudo.KeyedVariable(keys.SharedSecretContentKey, dbIndex, chacha20.KeySize+chacha20.NonceSize)
	cipher, err := chacha20.NewUnauthenticatedCipher(derived[:chacha20.KeySize], derived[chacha20.KeySize:])
	if err != nil {
		return nil, fmt.Errorf("sharedsecret: building shard cipher: %w", err)
	}
	out := make([]byte, len(data))
	cipher.XORKeyStream(out, data)
	return out, nil
}

// sealWithKeyMaterial AEAD-seals plaintext using a 44-byte key material
// blob laid out as 12-byte nonce || 32-byte key.
func sealWithKeyMaterial(keyMat, plaintext []byte) ([]byte, error) {
	if len(keyMat) != keyMaterialLen {
		return nil, fmt.Errorf("sharedsecret: key material must be %d bytes, got %d", keyMaterialLen, len(keyMat))
	}
	nonce := keyMat[:12]
	key := keyMat[12:]
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonce, plaintext, nil), nil
}

// openWithKeyMaterial reverses sealWithKeyMaterial.
func openWithKeyMaterial(keyMat, ciphertext []byte) ([]byte, error) {
	if len(keyMat) != keyMaterialLen {
		return nil, fmt.Errorf("sharedsecret: key material must be %d bytes, got %d", keyMaterialLen, len(keyMat))
	}
	nonce := keyMat[:12]
	key := keyMat[12:]
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, nonce, ciphertext, nil)
}
