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
	"time"

	"github.com/arkaitz-dev/hashrand-go/pkg/storage"
)

// SharedSecretStore implements storage.SharedSecretStore in memory.
type SharedSecretStore struct {
	store *Store
}

func (s *SharedSecretStore) CreateShard(ctx context.Context, shard *storage.SharedSecretShard) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	copied := *shard
	s.store.shards[string(shard.ID)] = &copied
	return nil
}

func (s *SharedSecretStore) GetShard(ctx context.Context, id []byte) (*storage.SharedSecretShard, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()

	shard, ok := s.store.shards[string(id)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *shard
	return &copied, nil
}

func (s *SharedSecretStore) DeleteShard(ctx context.Context, id []byte) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	delete(s.store.shards, string(id))
	return nil
}

func (s *SharedSecretStore) CreateTracking(ctx context.Context, tracking *storage.SharedSecretTracking) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	copied := *tracking
	s.store.tracking[string(tracking.ReferenceHash)] = &copied
	return nil
}

func (s *SharedSecretStore) GetTracking(ctx context.Context, referenceHash []byte) (*storage.SharedSecretTracking, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()

	t, ok := s.store.tracking[string(referenceHash)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *t
	return &copied, nil
}

// DecrementPendingReads emulates the database's atomic RETURNING
// decrement under the store's single mutex, so concurrent goroutines
// calling this method never race on the same counter.
func (s *SharedSecretStore) DecrementPendingReads(ctx context.Context, referenceHash []byte) (*storage.SharedSecretTracking, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	t, ok := s.store.tracking[string(referenceHash)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if t.PendingReads > 0 {
		t.PendingReads--
	}
	copied := *t
	return &copied, nil
}

func (s *SharedSecretStore) MarkRead(ctx context.Context, referenceHash []byte, at time.Time) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	t, ok := s.store.tracking[string(referenceHash)]
	if !ok {
		return storage.ErrNotFound
	}
	if t.ReadAt == nil {
		readAt := at
		t.ReadAt = &readAt
	}
	return nil
}

func (s *SharedSecretStore) DeleteTracking(ctx context.Context, referenceHash []byte) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	delete(s.store.tracking, string(referenceHash))
	return nil
}

func (s *SharedSecretStore) DeleteExpired(ctx context.Context, now time.Time) (int64, int64, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	var shardsRemoved, trackingRemoved int64
	for key, shard := range s.store.shards {
		if !shard.ExpiresAt.After(now) {
			delete(s.store.shards, key)
			shardsRemoved++
		}
	}
	for key, t := range s.store.tracking {
		if !t.ExpiresAt.After(now) {
			delete(s.store.tracking, key)
			trackingRemoved++
		}
	}
	return shardsRemoved, trackingRemoved, nil
}
