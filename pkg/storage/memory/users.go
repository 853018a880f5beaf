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

package memory

import (
	"context"
	"sort"
	"time"

	"github.com/arkaitz-dev/hashrand-go/pkg/storage"
)

// UserStore implements storage.UserStore in memory.
type UserStore struct {
	store *Store
}

func (s *UserStore) Touch(ctx context.Context, userID []byte, loggedIn bool) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	key := string(userID)
	if existing, ok := s.store.users[key]; ok {
		existing.LoggedIn = loggedIn
		return nil
	}

	s.store.users[key] = &storage.User{
		UserID:    append([]byte(nil), userID...),
		LoggedIn:  loggedIn,
		CreatedAt: time.Now(),
	}
	return nil
}

func (s *UserStore) Get(ctx context.Context, userID []byte) (*storage.User, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()

	u, ok := s.store.users[string(userID)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

// UserKeyStore implements storage.UserKeyStore in memory.
type UserKeyStore struct {
	store *Store
}

func (s *UserKeyStore) AddEd25519Key(ctx context.Context, userID []byte, pubKey string) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	key := string(userID)
	for _, existing := range s.store.ed25519Keys[key] {
		if existing.PubKey == pubKey {
			return nil
		}
	}
	s.store.ed25519Keys[key] = append(s.store.ed25519Keys[key], &storage.UserEd25519Key{
		UserID:    append([]byte(nil), userID...),
		PubKey:    pubKey,
		CreatedAt: time.Now(),
	})
	return nil
}

func (s *UserKeyStore) AddX25519Key(ctx context.Context, userID []byte, pubKey string) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	key := string(userID)
	for _, existing := range s.store.x25519Keys[key] {
		if existing.PubKey == pubKey {
			return nil
		}
	}
	s.store.x25519Keys[key] = append(s.store.x25519Keys[key], &storage.UserX25519Key{
		UserID:    append([]byte(nil), userID...),
		PubKey:    pubKey,
		CreatedAt: time.Now(),
	})
	return nil
}

func (s *UserKeyStore) LatestEd25519Keys(ctx context.Context, userID []byte, limit int) ([]*storage.UserEd25519Key, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()

	keys := append([]*storage.UserEd25519Key(nil), s.store.ed25519Keys[string(userID)]...)
	sort.Slice(keys, func(i, j int) bool { return keys[i].CreatedAt.After(keys[j].CreatedAt) })
	if len(keys) > limit {
		keys = keys[:limit]
	}
	return keys, nil
}

func (s *UserKeyStore) LatestX25519Keys(ctx context.Context, userID []byte, limit int) ([]*storage.UserX25519Key, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()

	keys := append([]*storage.UserX25519Key(nil), s.store.x25519Keys[string(userID)]...)
	sort.Slice(keys, func(i, j int) bool { return keys[i].CreatedAt.After(keys[j].CreatedAt) })
	if len(keys) > limit {
		keys = keys[:limit]
	}
	return keys, nil
}

// UserPrivkeyStore implements storage.UserPrivkeyStore in memory.
type UserPrivkeyStore struct {
	store *Store
}

func (s *UserPrivkeyStore) GetOrCreate(ctx context.Context, dbIndex []byte, newEncryptedPrivkey []byte) (*storage.UserPrivkeyContext, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	key := string(dbIndex)
	if existing, ok := s.store.privkeyCtx[key]; ok {
		copied := *existing
		return &copied, nil
	}

	ctxRow := &storage.UserPrivkeyContext{
		DBIndex:          append([]byte(nil), dbIndex...),
		EncryptedPrivkey: append([]byte(nil), newEncryptedPrivkey...),
	}
	s.store.privkeyCtx[key] = ctxRow

	copied := *ctxRow
	return &copied, nil
}
