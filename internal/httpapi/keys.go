package httpapi

import (
	"encoding/hex"
	"net/http"

	"github.com/arkaitz-dev/hashrand-go/internal/apierr"
	"github.com/arkaitz-dev/hashrand-go/internal/envelope"
	"github.com/arkaitz-dev/hashrand-go/internal/metrics"
)

const maxUserKeysLimit = 10

// rotateKeysPayload is the signed body of POST /api/keys/rotate: either or
// both fields may be present, matching the append-mostly, idempotent-on-
// (user_id, pub_key) semantics of the Sistema B tables.
type rotateKeysPayload struct {
	Ed25519PubKeyHex string `json:"ed25519_pub_key"`
	X25519PubKeyHex  string `json:"x25519_pub_key"`
}

// handleKeysRotate publishes permanent user public keys (Sistema B). The
// caller authenticates the usual way (Bearer or refresh+signed body); the
// keys published here are independent of, and longer-lived than, the
// per-session keypair carried in the access token.
func (s *Server) handleKeysRotate(w http.ResponseWriter, r *http.Request) {
	signedReq, err := decodeSignedRequest(r)
	if err != nil {
		apierr.WriteHTTP(w, err)
		return
	}

	authResult, err := s.resolveAuth(r, signedReq)
	if err != nil {
		apierr.WriteHTTP(w, err)
		return
	}

	var payload rotateKeysPayload
	if err := envelope.Verify(authResult.Claims.Pub, signedReq.Payload, signedReq.Signature, &payload); err != nil {
		apierr.WriteHTTP(w, apierr.New(apierr.KindUnauthorized, apierr.TagForbidden, "signature verification failed"))
		return
	}
	if payload.Ed25519PubKeyHex == "" && payload.X25519PubKeyHex == "" {
		apierr.WriteHTTP(w, apierr.New(apierr.KindBadRequest, apierr.TagBadRequest, "no keys to rotate"))
		return
	}

	userID := authResult.Claims.UserID
	if payload.Ed25519PubKeyHex != "" {
		if _, err := hex.DecodeString(payload.Ed25519PubKeyHex); err != nil {
			apierr.WriteHTTP(w, apierr.New(apierr.KindBadRequest, apierr.TagBadRequest, "invalid ed25519_pub_key"))
			return
		}
		if err := s.store.UserKeys().AddEd25519Key(r.Context(), userID, payload.Ed25519PubKeyHex); err != nil {
			apierr.WriteHTTP(w, apierr.Wrap(apierr.KindInternal, apierr.TagInternal, "add ed25519 key", err))
			return
		}
	}
	if payload.X25519PubKeyHex != "" {
		if _, err := hex.DecodeString(payload.X25519PubKeyHex); err != nil {
			apierr.WriteHTTP(w, apierr.New(apierr.KindBadRequest, apierr.TagBadRequest, "invalid x25519_pub_key"))
			return
		}
		if err := s.store.UserKeys().AddX25519Key(r.Context(), userID, payload.X25519PubKeyHex); err != nil {
			apierr.WriteHTTP(w, apierr.Wrap(apierr.KindInternal, apierr.TagInternal, "add x25519 key", err))
			return
		}
	}
	metrics.KeyRotations.Inc()

	applyCookies(w, authResult)
	writeSigned(w, authResult.ServerKeys.Ed25519Priv, map[string]string{"status": "OK"})
}

// handleUserKeys implements GET /api/user/keys/?target_user=<hex16>&signature=…,
// fetching the latest published keys of each kind for target_user. The
// signature is raw (over the literal "target_user=<hex>" query content),
// matching the same bare-signature wire shape as the shared-secret GET
// endpoints rather than an envelope.
func (s *Server) handleUserKeys(w http.ResponseWriter, r *http.Request) {
	authResult, err := s.resolveAuth(r, nil)
	if err != nil {
		apierr.WriteHTTP(w, err)
		return
	}

	targetUserHex := r.URL.Query().Get("target_user")
	if err := verifyRawSignature(authResult.Claims.Pub, "target_user="+targetUserHex, r.URL.Query().Get("signature")); err != nil {
		apierr.WriteHTTP(w, err)
		return
	}

	targetUserID, err := hex.DecodeString(targetUserHex)
	if err != nil || len(targetUserID) != 16 {
		apierr.WriteHTTP(w, apierr.New(apierr.KindBadRequest, apierr.TagBadRequest, "invalid target_user"))
		return
	}

	ed25519Keys, err := s.store.UserKeys().LatestEd25519Keys(r.Context(), targetUserID, maxUserKeysLimit)
	if err != nil {
		apierr.WriteHTTP(w, apierr.Wrap(apierr.KindInternal, apierr.TagInternal, "fetch ed25519 keys", err))
		return
	}
	x25519Keys, err := s.store.UserKeys().LatestX25519Keys(r.Context(), targetUserID, maxUserKeysLimit)
	if err != nil {
		apierr.WriteHTTP(w, apierr.Wrap(apierr.KindInternal, apierr.TagInternal, "fetch x25519 keys", err))
		return
	}

	ed25519Out := make([]map[string]interface{}, 0, len(ed25519Keys))
	for _, k := range ed25519Keys {
		ed25519Out = append(ed25519Out, map[string]interface{}{
			"pub_key":    k.PubKey,
			"created_at": k.CreatedAt.Unix(),
		})
	}
	x25519Out := make([]map[string]interface{}, 0, len(x25519Keys))
	for _, k := range x25519Keys {
		x25519Out = append(x25519Out, map[string]interface{}{
			"pub_key":    k.PubKey,
			"created_at": k.CreatedAt.Unix(),
		})
	}

	applyCookies(w, authResult)
	writeSigned(w, authResult.ServerKeys.Ed25519Priv, map[string]interface{}{
		"ed25519_keys": ed25519Out,
		"x25519_keys":  x25519Out,
	})
}
