package envelope

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loginPayload struct {
	Email string `json:"email"`
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	signed, err := SignRequest(priv, loginPayload{Email: "user@example.com"})
	require.NoError(t, err)

	var out loginPayload
	require.NoError(t, Verify(pub, signed.Payload, signed.Signature, &out))
	assert.Equal(t, "user@example.com", out.Email)
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	signed, err := SignRequest(priv, loginPayload{Email: "user@example.com"})
	require.NoError(t, err)

	tampered, err := EncodePayload(loginPayload{Email: "attacker@example.com"})
	require.NoError(t, err)

	err = Verify(pub, tampered, signed.Signature, &loginPayload{})
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	otherPub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	signed, err := SignRequest(priv, loginPayload{Email: "user@example.com"})
	require.NoError(t, err)

	err = Verify(otherPub, signed.Payload, signed.Signature, &loginPayload{})
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestSignProducesBase58Signature(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	signed, err := Sign(priv, loginPayload{Email: "user@example.com"})
	require.NoError(t, err)

	sig, err := decodeResponseSignature(signed.Signature)
	require.NoError(t, err)
	assert.Len(t, sig, ed25519.SignatureSize)
}

func TestResolveAuthSourceRejectsNone(t *testing.T) {
	_, err := ResolveAuthSource(RequestAuthInputs{})
	assert.ErrorIs(t, err, ErrAmbiguousAuthSource)
}

func TestResolveAuthSourceRejectsBoth(t *testing.T) {
	_, err := ResolveAuthSource(RequestAuthInputs{HasBearer: true, PayloadHasPub: true})
	assert.ErrorIs(t, err, ErrAmbiguousAuthSource)
}

func TestResolveAuthSourceAcceptsBearerAlone(t *testing.T) {
	src, err := ResolveAuthSource(RequestAuthInputs{HasBearer: true})
	require.NoError(t, err)
	assert.Equal(t, AuthSourceBearer, src)
}

func TestResolveAuthSourceAcceptsPubKeyAlone(t *testing.T) {
	src, err := ResolveAuthSource(RequestAuthInputs{PayloadHasPub: true})
	require.NoError(t, err)
	assert.Equal(t, AuthSourcePubKey, src)
}

func TestResolveAuthSourceAcceptsMagicLinkAlone(t *testing.T) {
	src, err := ResolveAuthSource(RequestAuthInputs{PayloadHasLink: true})
	require.NoError(t, err)
	assert.Equal(t, AuthSourceMagicLink, src)
}

func TestResolveAuthSourceRejectsPubAndLink(t *testing.T) {
	_, err := ResolveAuthSource(RequestAuthInputs{PayloadHasPub: true, PayloadHasLink: true})
	assert.ErrorIs(t, err, ErrAmbiguousAuthSource)
}
