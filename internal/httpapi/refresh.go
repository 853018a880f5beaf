package httpapi

import (
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/arkaitz-dev/hashrand-go/internal/apierr"
	"github.com/arkaitz-dev/hashrand-go/internal/authmw"
	"github.com/arkaitz-dev/hashrand-go/internal/envelope"
	"github.com/arkaitz-dev/hashrand-go/internal/metrics"
)

// handleRefresh drives the auth-middleware state machine explicitly: the
// body, if present, is the Tramo-2/3 rotation payload (new_pub_key,
// new_x25519_pub_key), never a business payload.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var signedBody *envelope.SignedRequest
	raw, _ := io.ReadAll(r.Body)
	if len(raw) > 0 {
		var req envelope.SignedRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			apierr.WriteHTTP(w, apierr.Wrap(apierr.KindBadRequest, apierr.TagBadRequest, "malformed refresh body", err))
			return
		}
		signedBody = &req
	}

	result, err := s.resolveAuth(r, signedBody)
	if err != nil {
		metrics.AuthMiddlewareRequests.WithLabelValues("", "false", "error").Inc()
		apierr.WriteHTTP(w, err)
		return
	}
	applyCookies(w, result)
	if result.Action == authmw.ActionRotated {
		metrics.KeyRotations.Inc()
	}

	body := map[string]interface{}{}
	if result.NewAccessToken != "" {
		body["access_token"] = result.NewAccessToken
	}
	if result.NewServerPubKeyHex != "" {
		body["server_pub_key"] = result.NewServerPubKeyHex
	}
	if result.ServerKeys != nil {
		body["server_x25519_pub_key"] = hex.EncodeToString(result.ServerKeys.X25519Pub)
	}

	signingKey := result.ServerKeys.Ed25519Priv
	writeSigned(w, signingKey, body)
}
