package authmw

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkaitz-dev/hashrand-go/config"
	"github.com/arkaitz-dev/hashrand-go/internal/apierr"
	"github.com/arkaitz-dev/hashrand-go/internal/envelope"
	"github.com/arkaitz-dev/hashrand-go/internal/keymaterial"
	"github.com/arkaitz-dev/hashrand-go/internal/sessionkeys"
	"github.com/arkaitz-dev/hashrand-go/internal/token"
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

const (
	testAccessDuration  = 30 * time.Minute
	testRefreshDuration = 3 * time.Hour
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return New(testKeys(t), testAccessDuration, testRefreshDuration, nil)
}

func userID(b byte) []byte {
	id := make([]byte, 16)
	for i := range id {
		id[i] = b
	}
	return id
}

func TestResolveRejectsSimultaneousTokens(t *testing.T) {
	engine := newTestEngine(t)
	_, err := engine.Resolve(context.Background(), Request{BearerToken: "x", RefreshCookie: "y"})
	require.Error(t, err)
	apiErr, ok := err.(*apierr.Error)
	require.True(t, ok)
	assert.Equal(t, apierr.TagConflictingAuth, apiErr.Tag)
}

func TestResolveRejectsMissingAuth(t *testing.T) {
	engine := newTestEngine(t)
	_, err := engine.Resolve(context.Background(), Request{})
	require.Error(t, err)
	apiErr, ok := err.(*apierr.Error)
	require.True(t, ok)
	assert.Equal(t, apierr.TagMissingAuth, apiErr.Tag)
}

func TestResolveValidAccessToken(t *testing.T) {
	engine := newTestEngine(t)
	_, clientPub, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	now := time.Now()
	accessToken, err := token.Encode(token.Claims{
		UserID:    userID(0x01),
		Pub:       clientPub,
		ExpiresAt: now.Add(testAccessDuration),
	}, engine.accessBundle())
	require.NoError(t, err)

	result, err := engine.Resolve(context.Background(), Request{BearerToken: accessToken, Now: now})
	require.NoError(t, err)
	assert.Equal(t, ActionValid, result.Action)
	assert.Empty(t, result.NewAccessToken)
}

func TestResolveProactiveRenewal(t *testing.T) {
	engine := newTestEngine(t)
	_, clientPub, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	now := time.Now()
	// Less than 1/3 of the access duration remains (2/3 threshold).
	accessToken, err := token.Encode(token.Claims{
		UserID:    userID(0x01),
		Pub:       clientPub,
		ExpiresAt: now.Add(testAccessDuration / 10),
	}, engine.accessBundle())
	require.NoError(t, err)

	result, err := engine.Resolve(context.Background(), Request{BearerToken: accessToken, Now: now})
	require.NoError(t, err)
	assert.Equal(t, ActionProactiveRenewal, result.Action)
	assert.NotEmpty(t, result.NewAccessToken)
}

func TestResolveDualExpiryWithNoRefreshCookie(t *testing.T) {
	engine := newTestEngine(t)
	_, clientPub, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	now := time.Now()
	expiredAccess, err := token.Encode(token.Claims{
		UserID:    userID(0x01),
		Pub:       clientPub,
		ExpiresAt: now.Add(-time.Minute),
	}, engine.accessBundle())
	require.NoError(t, err)

	_, err = engine.Resolve(context.Background(), Request{BearerToken: expiredAccess, Now: now})
	require.Error(t, err)
	apiErr, ok := err.(*apierr.Error)
	require.True(t, ok)
	assert.Equal(t, apierr.TagDualExpiry, apiErr.Tag)
}

func TestResolveTramoOneMintsAccessOnly(t *testing.T) {
	engine := newTestEngine(t)
	_, clientPub, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	userID := userID(0x01)

	now := time.Now()
	expiredAccess, err := token.Encode(token.Claims{
		UserID:    userID,
		Pub:       clientPub,
		ExpiresAt: now.Add(-time.Minute),
	}, engine.accessBundle())
	require.NoError(t, err)

	// refresh freshly issued: elapsed since issuance is ~0, well inside the
	// first third of refreshDuration.
	refreshToken, err := token.Encode(token.Claims{
		UserID:    userID,
		Pub:       clientPub,
		ExpiresAt: now.Add(testRefreshDuration),
	}, engine.refreshBundle())
	require.NoError(t, err)

	result, err := engine.Resolve(context.Background(), Request{
		BearerToken:   expiredAccess,
		RefreshCookie: refreshToken,
		Now:           now,
	})
	require.NoError(t, err)
	assert.Equal(t, ActionMintedAccess, result.Action)
	assert.NotEmpty(t, result.NewAccessToken)
	assert.Empty(t, result.NewRefreshToken)
	assert.Empty(t, result.SetCookies)
}

func TestResolveTramoTwoRequiresSignedBody(t *testing.T) {
	engine := newTestEngine(t)
	_, clientPub, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	userID := userID(0x01)

	now := time.Now()
	expiredAccess, err := token.Encode(token.Claims{
		UserID:    userID,
		Pub:       clientPub,
		ExpiresAt: now.Add(-time.Minute),
	}, engine.accessBundle())
	require.NoError(t, err)

	// refresh issued testRefreshDuration/2 ago: past the first third.
	refreshIssuedAt := now.Add(-testRefreshDuration / 2)
	refreshToken, err := token.Encode(token.Claims{
		UserID:    userID,
		Pub:       clientPub,
		ExpiresAt: refreshIssuedAt.Add(testRefreshDuration),
	}, engine.refreshBundle())
	require.NoError(t, err)

	_, err = engine.Resolve(context.Background(), Request{
		BearerToken:   expiredAccess,
		RefreshCookie: refreshToken,
		Now:           now,
	})
	require.Error(t, err)
	apiErr, ok := err.(*apierr.Error)
	require.True(t, ok)
	assert.Equal(t, apierr.TagBadRequest, apiErr.Tag)
}

func TestResolveTramoTwoRotatesKeysAndSignsWithOldKey(t *testing.T) {
	engine := newTestEngine(t)
	clientPriv, clientPub, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	uid := userID(0x01)

	now := time.Now()
	expiredAccess, err := token.Encode(token.Claims{
		UserID:    uid,
		Pub:       clientPub,
		ExpiresAt: now.Add(-time.Minute),
	}, engine.accessBundle())
	require.NoError(t, err)

	refreshIssuedAt := now.Add(-testRefreshDuration * 9 / 10)
	refreshToken, err := token.Encode(token.Claims{
		UserID:    uid,
		Pub:       clientPub,
		ExpiresAt: refreshIssuedAt.Add(testRefreshDuration),
	}, engine.refreshBundle())
	require.NoError(t, err)

	_, newClientPub, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	newX25519Pub := make([]byte, 32)
	for i := range newX25519Pub {
		newX25519Pub[i] = 0x99
	}

	signedBody, err := envelope.SignRequest(clientPriv, map[string]string{
		"new_pub_key":        hex.EncodeToString(newClientPub),
		"new_x25519_pub_key": hex.EncodeToString(newX25519Pub),
	})
	require.NoError(t, err)

	result, err := engine.Resolve(context.Background(), Request{
		BearerToken:   expiredAccess,
		RefreshCookie: refreshToken,
		SignedBody:    signedBody,
		Now:           now,
	})
	require.NoError(t, err)
	assert.Equal(t, ActionRotated, result.Action)
	assert.NotEmpty(t, result.NewAccessToken)
	assert.NotEmpty(t, result.NewRefreshToken)
	require.Len(t, result.SetCookies, 1)
	assert.Equal(t, RefreshCookieName, result.SetCookies[0].Name)
	assert.NotEmpty(t, result.NewServerPubKeyHex)

	oldServerKeys, err := sessionkeys.Derive(testKeys(t), uid, clientPub)
	require.NoError(t, err)
	assert.Equal(t, []byte(oldServerKeys.Ed25519Pub), []byte(result.ServerKeys.Ed25519Pub))

	newServerKeys, err := sessionkeys.Derive(testKeys(t), uid, newClientPub)
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(newServerKeys.Ed25519Pub), result.NewServerPubKeyHex)
	assert.NotEqual(t, result.NewServerPubKeyHex, hex.EncodeToString(result.ServerKeys.Ed25519Pub))
}

func TestResolveAcceptsLegacyJWT(t *testing.T) {
	keys := testKeys(t)
	engine := New(keys, testAccessDuration, testRefreshDuration, nil)

	_, clientPub, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	uid := userID(0x07)

	claims := legacyClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserIDHex: hex.EncodeToString(uid),
		PubHex:    hex.EncodeToString(clientPub),
	}
	legacyToken := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := legacyToken.SignedString([]byte(keys.JWTSecret))
	require.NoError(t, err)

	result, err := engine.Resolve(context.Background(), Request{BearerToken: signed})
	require.NoError(t, err)
	assert.Equal(t, ActionValid, result.Action)
	assert.Equal(t, uid, []byte(result.Claims.UserID))
}

func TestResolveRejectsGarbageBearerToken(t *testing.T) {
	engine := newTestEngine(t)
	_, err := engine.Resolve(context.Background(), Request{BearerToken: "not-a-real-token"})
	require.Error(t, err)
}
