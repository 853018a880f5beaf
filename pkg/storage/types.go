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

package storage

import "time"

// User is the pseudonymous account row keyed by the 16-byte derived
// user_id; it carries no personal data.
type User struct {
	UserID    []byte    `json:"user_id"`
	LoggedIn  bool      `json:"logged_in"`
	CreatedAt time.Time `json:"created_at"`
}

// UserEd25519Key is one row of a user's append-mostly Ed25519 public key
// history (Sistema B).
type UserEd25519Key struct {
	UserID    []byte    `json:"user_id"`
	PubKey    string    `json:"pub_key"`
	CreatedAt time.Time `json:"created_at"`
}

// UserX25519Key is the X25519 counterpart of UserEd25519Key.
type UserX25519Key struct {
	UserID    []byte    `json:"user_id"`
	PubKey    string    `json:"pub_key"`
	CreatedAt time.Time `json:"created_at"`
}

// UserPrivkeyContext holds the per-user 64-byte encrypted context blob
// indexed by db_index, used to bootstrap the client-side private key
// envelope during magic-link consumption.
type UserPrivkeyContext struct {
	DBIndex          []byte `json:"db_index"`
	EncryptedPrivkey []byte `json:"encrypted_privkey"`
}

// MagicLink is a single-use capability row.
type MagicLink struct {
	TokenHash        []byte    `json:"token_hash"`
	ExpiresAt        time.Time `json:"expires_at"`
	EncryptedPayload []byte    `json:"encrypted_payload"`
}

// SharedSecretShard is one role's Layer-1 row for a shared secret: the
// per-record key material, encrypted under a stream cipher keyed from
// its own db_index.
type SharedSecretShard struct {
	ID                   []byte    `json:"id"`
	EncryptedKeyMaterial []byte    `json:"encrypted_key_material"`
	ExpiresAt            time.Time `json:"expires_at"`
	Role                 string    `json:"role"` // "sender" or "receiver"
}

// SharedSecretTracking is the Layer-2 row shared by both roles: pending
// read count, read timestamp, and the AEAD-sealed logical secret payload.
type SharedSecretTracking struct {
	ReferenceHash    []byte     `json:"reference_hash"`
	PendingReads     int        `json:"pending_reads"`
	ReadAt           *time.Time `json:"read_at,omitempty"`
	ExpiresAt        time.Time  `json:"expires_at"`
	EncryptedPayload []byte     `json:"encrypted_payload"`
}
