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

// Package memory implements pkg/storage with in-process maps, for tests
// and single-instance development use.
package memory

import (
	"context"
	"sync"

	"github.com/arkaitz-dev/hashrand-go/pkg/storage"
)

// Store implements storage.Store with in-memory storage.
type Store struct {
	mu sync.RWMutex

	users         map[string]*storage.User
	ed25519Keys   map[string][]*storage.UserEd25519Key
	x25519Keys    map[string][]*storage.UserX25519Key
	privkeyCtx    map[string]*storage.UserPrivkeyContext
	magicLinks    map[string]*storage.MagicLink
	shards        map[string]*storage.SharedSecretShard
	tracking      map[string]*storage.SharedSecretTracking

	userStore          *UserStore
	userKeyStore       *UserKeyStore
	userPrivkeyStore   *UserPrivkeyStore
	magicLinkStore     *MagicLinkStore
	sharedSecretStore  *SharedSecretStore
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	s := &Store{
		users:       make(map[string]*storage.User),
		ed25519Keys: make(map[string][]*storage.UserEd25519Key),
		x25519Keys:  make(map[string][]*storage.UserX25519Key),
		privkeyCtx:  make(map[string]*storage.UserPrivkeyContext),
		magicLinks:  make(map[string]*storage.MagicLink),
		shards:      make(map[string]*storage.SharedSecretShard),
		tracking:    make(map[string]*storage.SharedSecretTracking),
	}

	s.userStore = &UserStore{store: s}
	s.userKeyStore = &UserKeyStore{store: s}
	s.userPrivkeyStore = &UserPrivkeyStore{store: s}
	s.magicLinkStore = &MagicLinkStore{store: s}
	s.sharedSecretStore = &SharedSecretStore{store: s}

	return s
}

func (s *Store) Users() storage.UserStore                { return s.userStore }
func (s *Store) UserKeys() storage.UserKeyStore           { return s.userKeyStore }
func (s *Store) UserPrivkeys() storage.UserPrivkeyStore   { return s.userPrivkeyStore }
func (s *Store) MagicLinks() storage.MagicLinkStore       { return s.magicLinkStore }
func (s *Store) SharedSecrets() storage.SharedSecretStore { return s.sharedSecretStore }

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }

// Ping always succeeds for the in-memory store.
func (s *Store) Ping(ctx context.Context) error { return nil }
