// Package authmw implements the per-request Bearer/refresh-cookie state
// machine: validate the access token, fall back to the refresh cookie on
// expiry, and rotate session keys once the refresh token is past its first
// third of life. It never decides what the handler's business logic does;
// it only resolves which Claims a request authenticates as and what new
// tokens/cookies/signing key the response should carry.
package authmw

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"github.com/arkaitz-dev/hashrand-go/internal/apierr"
	"github.com/arkaitz-dev/hashrand-go/internal/envelope"
	"github.com/arkaitz-dev/hashrand-go/internal/keymaterial"
	"github.com/arkaitz-dev/hashrand-go/internal/sessionkeys"
	"github.com/arkaitz-dev/hashrand-go/internal/token"
	"github.com/arkaitz-dev/hashrand-go/pkg/storage"
)

// RefreshCookieName is the cookie the refresh token travels in. The access
// token never rides in a cookie; it is always the Authorization: Bearer
// header.
const RefreshCookieName = "refresh_token"

// Action records which branch of the state machine a request took, so
// callers can log or meter it without re-deriving it from the Result.
type Action int

const (
	ActionValid Action = iota
	ActionProactiveRenewal
	ActionMintedAccess
	ActionRotated
)

// Engine resolves authentication state for incoming requests. UserKeys is
// optional: when set, a key-rotation request also appends the new public
// keys to the append-mostly key history (Sistema B); when nil, rotation
// still succeeds but the caller is responsible for persisting the new keys.
type Engine struct {
	keys            *keymaterial.KeySet
	accessDuration  time.Duration
	refreshDuration time.Duration
	userKeys        storage.UserKeyStore
}

// New builds an Engine. accessDuration/refreshDuration come from
// config.TokenConfig.
func New(keys *keymaterial.KeySet, accessDuration, refreshDuration time.Duration, userKeys storage.UserKeyStore) *Engine {
	return &Engine{
		keys:            keys,
		accessDuration:  accessDuration,
		refreshDuration: refreshDuration,
		userKeys:        userKeys,
	}
}

// Request is the minimal per-call input the middleware needs, extracted by
// the HTTP layer from headers/cookies/body.
type Request struct {
	BearerToken   string // "" if the Authorization header was absent
	RefreshCookie string // "" if the cookie was absent
	// SignedBody carries the caller's envelope.SignedRequest when the
	// request is (or might need to be) a Tramo-2/3 rotation: a body signed
	// by the CURRENT client Ed25519 key, whose payload decodes to
	// rotationPayload.
	SignedBody *envelope.SignedRequest
	Now        time.Time
}

// rotationPayload is the decoded shape of SignedBody.Payload on the
// rotation path.
type rotationPayload struct {
	NewPubKeyHex       string `json:"new_pub_key"`
	NewX25519PubKeyHex string `json:"new_x25519_pub_key"`
}

// Result is what a resolved request carries forward: the authenticated
// Claims, any freshly minted tokens/cookies, and the server keypair the
// response must be signed with.
type Result struct {
	Claims Claims
	Action Action

	NewAccessToken  string
	NewRefreshToken string
	SetCookies      []*http.Cookie

	// ServerKeys is the keypair the response must be signed with. On a
	// rotation it is deliberately the OLD keypair (derived from the old
	// client pub), even though NewServerPubKeyHex describes the new one:
	// the client cannot verify a response signed by a key it doesn't know
	// yet.
	ServerKeys *sessionkeys.ServerKeys
	// NewServerPubKeyHex is only set on ActionRotated; it rides inside the
	// signed response payload (§4.4 rotation variant), signed by the OLD
	// key above.
	NewServerPubKeyHex string
}

// Claims mirrors token.Claims; re-exported under this package so callers
// need not import internal/token for the common case.
type Claims = token.Claims

// Resolve runs the full state machine described in spec.md §4.9.
func (e *Engine) Resolve(ctx context.Context, req Request) (*Result, error) {
	hasBearer := req.BearerToken != ""
	hasRefreshCookie := req.RefreshCookie != ""

	if hasBearer && hasRefreshCookie {
		return nil, apierr.New(apierr.KindForbidden, apierr.TagConflictingAuth, "request must not present both a bearer token and a refresh cookie")
	}
	if !hasBearer {
		return nil, apierr.New(apierr.KindUnauthorized, apierr.TagMissingAuth, "missing authentication")
	}

	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}

	claims, err := token.Decode(req.BearerToken, e.accessBundle())
	if err == nil {
		return e.resolveValid(claims, now)
	}
	if !errors.Is(err, token.ErrTokenExpired) {
		if legacyClaims, ok := e.verifyLegacyJWT(req.BearerToken); ok {
			return e.resolveValid(legacyClaims, now)
		}
		return nil, apierr.Wrap(apierr.KindUnauthorized, apierr.TagTokenExpired, "invalid access token", err)
	}

	return e.resolveExpired(req, now)
}

func (e *Engine) resolveValid(claims token.Claims, now time.Time) (*Result, error) {
	serverKeys, err := sessionkeys.Derive(e.keys, claims.UserID, claims.Pub)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, apierr.TagInternal, "deriving server session keys", err)
	}

	result := &Result{Claims: claims, Action: ActionValid, ServerKeys: serverKeys}

	remaining := claims.ExpiresAt.Sub(now)
	if remaining > 0 && remaining < (e.accessDuration*2)/3 {
		renewed := token.Claims{UserID: claims.UserID, Pub: claims.Pub, ExpiresAt: now.Add(e.accessDuration)}
		newAccessToken, err := token.Encode(renewed, e.accessBundle())
		if err != nil {
			return nil, apierr.Wrap(apierr.KindInternal, apierr.TagInternal, "minting proactive-renewal access token", err)
		}
		result.Action = ActionProactiveRenewal
		result.NewAccessToken = newAccessToken
	}

	return result, nil
}

func (e *Engine) resolveExpired(req Request, now time.Time) (*Result, error) {
	if !req.hasRefreshCookie() {
		return nil, apierr.New(apierr.KindUnauthorized, apierr.TagDualExpiry, "access token expired and no refresh token present")
	}

	refreshClaims, err := token.Decode(req.RefreshCookie, e.refreshBundle())
	if err != nil {
		return nil, apierr.New(apierr.KindUnauthorized, apierr.TagDualExpiry, "refresh token invalid or expired")
	}

	refreshIssuedAt := refreshClaims.ExpiresAt.Add(-e.refreshDuration)
	elapsed := now.Sub(refreshIssuedAt)
	third := e.refreshDuration / 3

	if elapsed <= third {
		return e.mintAccessOnly(refreshClaims, now)
	}
	return e.rotate(req, refreshClaims, now)
}

// mintAccessOnly is the Tramo-1/3 branch: a new access token preserving the
// existing refresh_exp, no cookie rotation, no key rotation.
func (e *Engine) mintAccessOnly(refreshClaims token.Claims, now time.Time) (*Result, error) {
	newClaims := token.Claims{UserID: refreshClaims.UserID, Pub: refreshClaims.Pub, ExpiresAt: now.Add(e.accessDuration)}
	newAccessToken, err := token.Encode(newClaims, e.accessBundle())
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, apierr.TagInternal, "minting refreshed access token", err)
	}

	serverKeys, err := sessionkeys.Derive(e.keys, newClaims.UserID, newClaims.Pub)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, apierr.TagInternal, "deriving server session keys", err)
	}

	return &Result{
		Claims:         newClaims,
		Action:         ActionMintedAccess,
		NewAccessToken: newAccessToken,
		ServerKeys:     serverKeys,
	}, nil
}

// rotate is the Tramo-2/3 branch: the caller must supply a signed body
// naming new client keys. New access and refresh tokens are bound to the
// new Ed25519 key; the response is signed with the OLD server key, with
// the NEW server_pub_key riding inside the signed payload, per the
// rotation variant of §4.4. This is deliberate: the caller cannot verify a
// response signed by a key it has not yet learned the server side of.
func (e *Engine) rotate(req Request, refreshClaims token.Claims, now time.Time) (*Result, error) {
	if req.SignedBody == nil {
		return nil, apierr.New(apierr.KindBadRequest, apierr.TagBadRequest, "key rotation requires a signed body with new_pub_key and new_x25519_pub_key")
	}

	oldServerKeys, err := sessionkeys.Derive(e.keys, refreshClaims.UserID, refreshClaims.Pub)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, apierr.TagInternal, "deriving old server session keys", err)
	}

	var payload rotationPayload
	if err := envelope.Verify(ed25519.PublicKey(refreshClaims.Pub), req.SignedBody.Payload, req.SignedBody.Signature, &payload); err != nil {
		return nil, apierr.Wrap(apierr.KindForbidden, apierr.TagForbidden, "rotation body signature invalid", err)
	}

	newPub, err := decodeHexPublicKey(payload.NewPubKeyHex)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindBadRequest, apierr.TagBadRequest, "new_pub_key must be 64 hex characters", err)
	}
	newX25519Pub, err := decodeHexPublicKey(payload.NewX25519PubKeyHex)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindBadRequest, apierr.TagBadRequest, "new_x25519_pub_key must be 64 hex characters", err)
	}

	newServerKeys, err := sessionkeys.Derive(e.keys, refreshClaims.UserID, newPub)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, apierr.TagInternal, "deriving new server session keys", err)
	}

	newAccessClaims := token.Claims{UserID: refreshClaims.UserID, Pub: newPub, ExpiresAt: now.Add(e.accessDuration)}
	newRefreshClaims := token.Claims{UserID: refreshClaims.UserID, Pub: newPub, ExpiresAt: now.Add(e.refreshDuration)}

	newAccessToken, err := token.Encode(newAccessClaims, e.accessBundle())
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, apierr.TagInternal, "minting rotated access token", err)
	}
	newRefreshToken, err := token.Encode(newRefreshClaims, e.refreshBundle())
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, apierr.TagInternal, "minting rotated refresh token", err)
	}

	if e.userKeys != nil {
		_ = e.userKeys.AddEd25519Key(context.Background(), refreshClaims.UserID, hex.EncodeToString(newPub))
		_ = e.userKeys.AddX25519Key(context.Background(), refreshClaims.UserID, hex.EncodeToString(newX25519Pub))
	}

	return &Result{
		Claims:          newAccessClaims,
		Action:          ActionRotated,
		NewAccessToken:  newAccessToken,
		NewRefreshToken: newRefreshToken,
		SetCookies: []*http.Cookie{
			deleteRefreshCookie(),
			refreshCookie(newRefreshToken, e.refreshDuration),
		},
		ServerKeys:         oldServerKeys,
		NewServerPubKeyHex: hex.EncodeToString(newServerKeys.Ed25519Pub),
	}, nil
}

func (e *Engine) accessBundle() token.KeyBundle {
	return token.KeyBundle{
		CipherKey: e.keys.AccessTokenCipherKey,
		NonceKey:  e.keys.AccessTokenNonceKey,
		HMACKey:   e.keys.AccessTokenHMACKey,
		Duration:  e.accessDuration,
	}
}

func (e *Engine) refreshBundle() token.KeyBundle {
	return token.KeyBundle{
		CipherKey: e.keys.RefreshTokenCipherKey,
		NonceKey:  e.keys.RefreshTokenNonceKey,
		HMACKey:   e.keys.RefreshTokenHMACKey,
		Duration:  e.refreshDuration,
	}
}

func (r Request) hasRefreshCookie() bool {
	return r.RefreshCookie != ""
}

func decodeHexPublicKey(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) != ed25519.PublicKeySize {
		return nil, errors.New("authmw: public key must be 32 bytes")
	}
	return b, nil
}

func refreshCookie(value string, duration time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     RefreshCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(duration.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	}
}

// deleteRefreshCookie expires the prior refresh cookie immediately. Rotation
// emits this ahead of the new cookie so the response carries two distinct
// Set-Cookie headers (delete old, set new) rather than relying on the
// client to overwrite one cookie with another.
func deleteRefreshCookie() *http.Cookie {
	return &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	}
}
