// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

// Package envelope implements the signed-request/signed-response wire
// envelope: canonical JSON serialization, Base64URL encoding, and
// Ed25519 signing/verification over the encoded string.
package envelope

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
)

// Canonicalize recursively sorts object keys lexicographically and
// re-emits compact JSON with no extra whitespace. Arrays preserve their
// original order; primitives are unchanged. Both signer and verifier
// operate on this exact byte sequence, never on the original JSON, so
// whitespace or key-order differences in transport never affect the
// signature.
func Canonicalize(value interface{}) ([]byte, error) {
	normalized, err := normalize(value)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, normalized); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// normalize round-trips value through encoding/json so struct values with
// json tags are reduced to the same map[string]interface{}/[]interface{}
// shape a raw payload would decode to.
func normalize(value interface{}) (interface{}, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal for canonicalization: %w", err)
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	var out interface{}
	if err := decoder.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode for canonicalization: %w", err)
	}
	return out, nil
}

func writeCanonical(buf *bytes.Buffer, value interface{}) error {
	switch v := value.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyBytes, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(keyBytes)
			buf.WriteByte(':')
			if err := writeCanonical(buf, v[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil

	case []interface{}:
		buf.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil

	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(encoded)
		return nil
	}
}

// EncodePayload canonicalizes value and Base64URL-encodes it (no padding).
func EncodePayload(value interface{}) (string, error) {
	canon, err := Canonicalize(value)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(canon), nil
}

// DecodePayload reverses EncodePayload, decoding the Base64URL string and
// unmarshalling the resulting JSON into out.
func DecodePayload(encoded string, out interface{}) error {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("decode base64url payload: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	return nil
}
