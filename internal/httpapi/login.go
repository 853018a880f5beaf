package httpapi

import (
	"crypto/ed25519"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/arkaitz-dev/hashrand-go/internal/apierr"
	"github.com/arkaitz-dev/hashrand-go/internal/authmw"
	"github.com/arkaitz-dev/hashrand-go/internal/envelope"
	"github.com/arkaitz-dev/hashrand-go/internal/identity"
	"github.com/arkaitz-dev/hashrand-go/internal/magiclink"
	"github.com/arkaitz-dev/hashrand-go/internal/metrics"
	"github.com/arkaitz-dev/hashrand-go/internal/sessionkeys"
	"github.com/arkaitz-dev/hashrand-go/internal/token"
)

// loginIssuePayload is the signed body of POST /api/login/.
type loginIssuePayload struct {
	Email        string `json:"email"`
	UIHost       string `json:"ui_host"`
	Next         string `json:"next"`
	EmailLang    string `json:"email_lang"`
	PubKeyHex    string `json:"pub_key"`
	X25519PubHex string `json:"x25519_pub_key"`
}

// handleLogin dispatches POST (issue a magic link) and GET (consume one)
// onto the same path, matching the wire endpoint table's single `/api/login/`
// entry for both verbs.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleLoginIssue(w, r)
	case http.MethodGet:
		s.handleLoginConsume(w, r)
	default:
		apierr.WriteHTTP(w, apierr.New(apierr.KindBadRequest, apierr.TagBadRequest, "method not allowed"))
	}
}

func (s *Server) handleLoginIssue(w http.ResponseWriter, r *http.Request) {
	signedReq, err := decodeSignedRequest(r)
	if err != nil {
		apierr.WriteHTTP(w, err)
		return
	}

	var payload loginIssuePayload
	if err := envelope.DecodePayload(signedReq.Payload, &payload); err != nil {
		apierr.WriteHTTP(w, apierr.Wrap(apierr.KindBadRequest, apierr.TagBadRequest, "malformed login payload", err))
		return
	}

	clientEd25519Pub, err := hex.DecodeString(payload.PubKeyHex)
	if err != nil || len(clientEd25519Pub) != ed25519.PublicKeySize {
		apierr.WriteHTTP(w, apierr.New(apierr.KindBadRequest, apierr.TagBadRequest, "invalid pub_key"))
		return
	}
	clientX25519Pub, err := hex.DecodeString(payload.X25519PubHex)
	if err != nil || len(clientX25519Pub) != 32 {
		apierr.WriteHTTP(w, apierr.New(apierr.KindBadRequest, apierr.TagBadRequest, "invalid x25519_pub_key"))
		return
	}

	// At login the client has not been issued a session yet: the payload's
	// own embedded pub_key IS the verification key (AuthSourcePubKey), per
	// the strict mutual-exclusion rule — there is no Bearer token to be
	// conflicting with here.
	if err := envelope.Verify(ed25519.PublicKey(clientEd25519Pub), signedReq.Payload, signedReq.Signature, nil); err != nil {
		apierr.WriteHTTP(w, apierr.New(apierr.KindUnauthorized, apierr.TagForbidden, "signature verification failed"))
		return
	}

	if _, err := s.magicLink.Issue(r.Context(), magiclink.IssueInput{
		Email:            payload.Email,
		ClientEd25519Pub: clientEd25519Pub,
		ClientX25519Pub:  clientX25519Pub,
		UIHost:           payload.UIHost,
		NextPath:         payload.Next,
		EmailLang:        payload.EmailLang,
	}); err != nil {
		apierr.WriteHTTP(w, err)
		return
	}
	metrics.MagicLinksIssued.Inc()

	// Re-deriving user_id here (rather than threading it back out of
	// Issue) costs a second Argon2id pass on this rate-limited path, in
	// exchange for keeping the magic-link engine's signature focused on
	// what it actually needs to do: issue a capability.
	userID := identity.DeriveUserID(s.keys, payload.Email)
	serverKeys, err := sessionkeys.Derive(s.keys, userID, clientEd25519Pub)
	if err != nil {
		apierr.WriteHTTP(w, apierr.Wrap(apierr.KindInternal, apierr.TagInternal, "derive server keys", err))
		return
	}

	writeSigned(w, serverKeys.Ed25519Priv, map[string]string{
		"status":         "OK",
		"server_pub_key": hex.EncodeToString(serverKeys.Ed25519Pub),
	})
}

func (s *Server) handleLoginConsume(w http.ResponseWriter, r *http.Request) {
	capability := r.URL.Query().Get("magiclink")
	if capability == "" {
		apierr.WriteHTTP(w, apierr.New(apierr.KindBadRequest, apierr.TagBadRequest, "missing magiclink capability"))
		return
	}

	result, err := s.magicLink.Consume(r.Context(), capability)
	if err != nil {
		metrics.MagicLinksConsumed.WithLabelValues("not_found").Inc()
		apierr.WriteHTTP(w, err)
		return
	}
	metrics.MagicLinksConsumed.WithLabelValues("ok").Inc()

	serverKeys, err := sessionkeys.Derive(s.keys, result.UserID, result.ClientEd25519Pub)
	if err != nil {
		apierr.WriteHTTP(w, apierr.Wrap(apierr.KindInternal, apierr.TagInternal, "derive server keys", err))
		return
	}

	accessClaims := token.Claims{UserID: result.UserID, Pub: result.ClientEd25519Pub, ExpiresAt: time.Now().Add(s.cfg.Tokens.AccessTokenDuration())}
	refreshClaims := token.Claims{UserID: result.UserID, Pub: result.ClientEd25519Pub, ExpiresAt: time.Now().Add(s.cfg.Tokens.RefreshTokenDuration())}

	accessToken, err := token.Encode(accessClaims, s.accessBundle())
	if err != nil {
		apierr.WriteHTTP(w, apierr.Wrap(apierr.KindInternal, apierr.TagInternal, "mint access token", err))
		return
	}
	refreshToken, err := token.Encode(refreshClaims, s.refreshBundle())
	if err != nil {
		apierr.WriteHTTP(w, apierr.Wrap(apierr.KindInternal, apierr.TagInternal, "mint refresh token", err))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authmw.RefreshCookieName,
		Value:    refreshToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(s.cfg.Tokens.RefreshTokenDuration().Seconds()),
		Domain:   result.UIHost,
	})

	writeSigned(w, serverKeys.Ed25519Priv, map[string]interface{}{
		"access_token":              accessToken,
		"username":                  hex.EncodeToString(result.UserID),
		"refresh_expires_at":        refreshClaims.ExpiresAt.Unix(),
		"server_pub_key":            hex.EncodeToString(serverKeys.Ed25519Pub),
		"server_x25519_pub_key":     hex.EncodeToString(serverKeys.X25519Pub),
		"encrypted_privkey_context": result.EncryptedPrivkeyContextB64,
		"next":                      result.NextPath,
	})
}
