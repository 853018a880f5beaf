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

// Package pseudo implements the Blake3-keyed variable-length pseudonymizer
// that every other crypto component in this service builds on: a single
// deterministic primitive for turning (domain_key, data) into an
// arbitrary-length output stream, with the domain_key acting as a hard
// domain separator between unrelated uses of the same data.
package pseudo

import (
	"github.com/mr-tron/base58"
	"github.com/zeebo/blake3"
)

// KeyedVariable derives outLen bytes deterministically from domainKey and
// data. Two calls with the same (domainKey, data, outLen) always agree; two
// calls that differ only in domainKey are independent; and the output for a
// given (domainKey, data) is a single XOF stream, so reading a short prefix
// is always a prefix of a longer read.
//
// Steps, per the derivation this package implements:
//  1. domainKey is Base58-encoded; the resulting string is the Blake3 KDF
//     "context" string, fixing a domain separator per use-case.
//  2. key_material is data itself when len(data) >= 32, otherwise the
//     32-byte Blake3 hash of data (Blake3's KDF material needs >= 32 bytes).
//  3. deterministic_key = Blake3.DeriveKey(context, key_material) (32 bytes).
//  4. A Blake3 hasher keyed with deterministic_key absorbs data; its output
//     is read as an XOF for outLen bytes.
func KeyedVariable(domainKey, data []byte, outLen int) []byte {
	context := base58.Encode(domainKey)

	keyMaterial := data
	if len(data) < 32 {
		sum := blake3.Sum256(data)
		keyMaterial = sum[:]
	}

	deterministicKey := blake3.DeriveKey(context, keyMaterial, make([]byte, 32))

	hasher, err := blake3.NewKeyed(deterministicKey)
	if err != nil {
		// deterministicKey is always exactly 32 bytes, the only way
		// NewKeyed can fail; this indicates a broken invariant above.
		panic("pseudo: keyed blake3 hasher rejected 32-byte key: " + err.Error())
	}
	hasher.Write(data)

	out := make([]byte, outLen)
	digest := hasher.Digest()
	if _, err := digest.Read(out); err != nil {
		panic("pseudo: blake3 XOF read failed: " + err.Error())
	}
	return out
}
