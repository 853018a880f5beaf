// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package envelope

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	"github.com/mr-tron/base58"
)

// SignedRequest is the wire shape of every authenticated request body.
type SignedRequest struct {
	Payload   string `json:"payload"`
	Signature string `json:"signature"` // hex
}

// SignedResponse is the wire shape of every response body.
type SignedResponse struct {
	Payload   string `json:"payload"`
	Signature string `json:"signature"` // Base58
}

// Sign canonicalizes value, Base64URL-encodes it, and signs the encoded
// string with priv. The returned envelope carries the encoded payload and
// its Base58 Ed25519 signature, matching the response-side wire convention.
func Sign(priv ed25519.PrivateKey, value interface{}) (*SignedResponse, error) {
	payload, err := EncodePayload(value)
	if err != nil {
		return nil, err
	}

	sig := ed25519.Sign(priv, []byte(payload))
	return &SignedResponse{
		Payload:   payload,
		Signature: base58.Encode(sig),
	}, nil
}

// SignRequest is Sign's request-side counterpart: the payload encoding is
// identical, but the signature is hex rather than Base58, matching the
// request-side wire convention.
func SignRequest(priv ed25519.PrivateKey, value interface{}) (*SignedRequest, error) {
	payload, err := EncodePayload(value)
	if err != nil {
		return nil, err
	}

	sig := ed25519.Sign(priv, []byte(payload))
	return &SignedRequest{
		Payload:   payload,
		Signature: hex.EncodeToString(sig),
	}, nil
}

// Verify checks that signature over payload verifies under pub, then
// decodes payload into out. signature is hex, matching the request-side
// wire convention every caller of Verify checks against. The signature
// MUST cover the exact Base64URL payload string, never the decoded JSON.
func Verify(pub ed25519.PublicKey, payload, signature string, out interface{}) error {
	sig, err := decodeRequestSignature(signature)
	if err != nil {
		return err
	}

	if len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("envelope: invalid public key size %d", len(pub))
	}

	if !ed25519.Verify(pub, []byte(payload), sig) {
		return ErrBadSignature
	}

	if out == nil {
		return nil
	}
	return DecodePayload(payload, out)
}

// ErrBadSignature is returned when a signature fails Ed25519 verification.
var ErrBadSignature = fmt.Errorf("envelope: signature verification failed")

func decodeRequestSignature(encoded string) ([]byte, error) {
	sig, err := hex.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("envelope: decode signature: %w", err)
	}
	if len(sig) != ed25519.SignatureSize {
		return nil, fmt.Errorf("envelope: invalid signature size %d", len(sig))
	}
	return sig, nil
}

// decodeResponseSignature decodes a Base58 response signature, the
// counterpart a client-side verifier would use against SignedResponse.
func decodeResponseSignature(encoded string) ([]byte, error) {
	sig, err := base58.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("envelope: decode signature: %w", err)
	}
	if len(sig) != ed25519.SignatureSize {
		return nil, fmt.Errorf("envelope: invalid signature size %d", len(sig))
	}
	return sig, nil
}
