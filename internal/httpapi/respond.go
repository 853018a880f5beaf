package httpapi

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/arkaitz-dev/hashrand-go/internal/apierr"
	"github.com/arkaitz-dev/hashrand-go/internal/authmw"
	"github.com/arkaitz-dev/hashrand-go/internal/envelope"
	"github.com/arkaitz-dev/hashrand-go/internal/token"
)

// accessBundle and refreshBundle build the token.KeyBundle the handlers
// that mint fresh tokens directly (login consume) need. authmw keeps its
// own private equivalents for the tokens it mints during the refresh
// state machine; these are the httpapi-side counterpart for the one path
// (magic-link consume) that mints a token pair outside that middleware.
func (s *Server) accessBundle() token.KeyBundle {
	return token.KeyBundle{
		CipherKey: s.keys.AccessTokenCipherKey,
		NonceKey:  s.keys.AccessTokenNonceKey,
		HMACKey:   s.keys.AccessTokenHMACKey,
		Duration:  s.cfg.Tokens.AccessTokenDuration(),
	}
}

func (s *Server) refreshBundle() token.KeyBundle {
	return token.KeyBundle{
		CipherKey: s.keys.RefreshTokenCipherKey,
		NonceKey:  s.keys.RefreshTokenNonceKey,
		HMACKey:   s.keys.RefreshTokenHMACKey,
		Duration:  s.cfg.Tokens.RefreshTokenDuration(),
	}
}

// withLimiter wraps h with the per-client-IP sliding-window check; a
// rejected request never reaches the handler or its engines.
func (s *Server) withLimiter(endpoint string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(clientIP(r)) {
			apierr.WriteHTTP(w, apierr.New(apierr.KindRateLimited, apierr.TagRateLimited, "too many requests"))
			return
		}
		h(w, r)
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeJSON encodes v as the body with a 200 status. Failed handlers should
// use apierr.WriteHTTP instead.
func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeSigned signs v with priv and writes the resulting SignedResponse.
func writeSigned(w http.ResponseWriter, priv ed25519.PrivateKey, v interface{}) {
	signed, err := envelope.Sign(priv, v)
	if err != nil {
		apierr.WriteHTTP(w, apierr.Wrap(apierr.KindInternal, apierr.TagInternal, "sign response", err))
		return
	}
	writeJSON(w, signed)
}

// decodeSignedRequest parses the JSON body as an envelope.SignedRequest.
func decodeSignedRequest(r *http.Request) (*envelope.SignedRequest, error) {
	var req envelope.SignedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, apierr.Wrap(apierr.KindBadRequest, apierr.TagBadRequest, "malformed request body", err)
	}
	return &req, nil
}

// applyCookies sets every cookie an authmw.Result asks for.
func applyCookies(w http.ResponseWriter, result *authmw.Result) {
	for _, c := range result.SetCookies {
		http.SetCookie(w, c)
	}
}

// resolveAuth extracts the Bearer token and refresh cookie from r and runs
// the auth-middleware state machine. signedBody is only consulted on the
// Tramo-2/3 rotation path; callers outside /api/refresh pass nil, which
// means a request that lands on an expired access token without a fresh
// refresh call simply fails closed rather than attempting key rotation
// against an unrelated request payload.
func (s *Server) resolveAuth(r *http.Request, signedBody *envelope.SignedRequest) (*authmw.Result, error) {
	bearer := ""
	if h := r.Header.Get("Authorization"); len(h) > 7 && h[:7] == "Bearer " {
		bearer = h[7:]
	}

	refreshCookie := ""
	if c, err := r.Cookie(authmw.RefreshCookieName); err == nil {
		refreshCookie = c.Value
	}

	return s.auth.Resolve(r.Context(), authmw.Request{
		BearerToken:   bearer,
		RefreshCookie: refreshCookie,
		SignedBody:    signedBody,
		Now:           time.Now(),
	})
}

// verifyRawSignature checks a Base64URL Ed25519 signature directly over a
// literal message string, for the handful of GET endpoints whose wire
// shape is a bare "?...&signature=..." query rather than a JSON envelope.
func verifyRawSignature(pub ed25519.PublicKey, message, signatureB64 string) error {
	sig, err := base64.RawURLEncoding.DecodeString(signatureB64)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return apierr.New(apierr.KindUnauthorized, apierr.TagForbidden, "invalid signature")
	}
	if !ed25519.Verify(pub, []byte(message), sig) {
		return apierr.New(apierr.KindUnauthorized, apierr.TagForbidden, "signature verification failed")
	}
	return nil
}
