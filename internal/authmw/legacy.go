package authmw

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/arkaitz-dev/hashrand-go/internal/identity"
	"github.com/arkaitz-dev/hashrand-go/internal/token"
)

// legacyClaims is the claim shape carried by access tokens minted before
// the custom 96-byte codec (§4.5) replaced a plain HMAC-signed JWT. It is
// verify-only: nothing in this service issues one of these anymore.
type legacyClaims struct {
	jwt.RegisteredClaims
	UserIDHex string `json:"user_id"`
	PubHex    string `json:"pub"`
}

// verifyLegacyJWT accepts a pre-migration Bearer token, HMAC-verified
// against the configured legacy secret. It is tried only after the current
// token codec has already rejected the value outright (not merely
// expired), so a legacy token never masks a corrupted current-format one.
func (e *Engine) verifyLegacyJWT(tokenStr string) (token.Claims, bool) {
	if len(e.keys.JWTSecret) == 0 {
		return token.Claims{}, false
	}

	parsed, err := jwt.ParseWithClaims(tokenStr, &legacyClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("authmw: unexpected legacy jwt signing method %v", t.Header["alg"])
		}
		return e.keys.JWTSecret, nil
	})
	if err != nil || parsed == nil || !parsed.Valid {
		return token.Claims{}, false
	}

	claims, ok := parsed.Claims.(*legacyClaims)
	if !ok {
		return token.Claims{}, false
	}

	userID, err := hex.DecodeString(claims.UserIDHex)
	if err != nil || len(userID) != identity.UserIDLen {
		return token.Claims{}, false
	}
	pub, err := hex.DecodeString(claims.PubHex)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return token.Claims{}, false
	}

	expiresAt := time.Now()
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	return token.Claims{UserID: userID, Pub: pub, ExpiresAt: expiresAt}, true
}
