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

// MagicLinkStore implements storage.MagicLinkStore in memory.
type MagicLinkStore struct {
	store *Store
}

func (s *MagicLinkStore) Create(ctx context.Context, link *storage.MagicLink) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	copied := *link
	s.store.magicLinks[string(link.TokenHash)] = &copied
	return nil
}

func (s *MagicLinkStore) Consume(ctx context.Context, tokenHash []byte) (*storage.MagicLink, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	key := string(tokenHash)
	link, ok := s.store.magicLinks[key]
	if !ok || !link.ExpiresAt.After(time.Now()) {
		return nil, storage.ErrNotFound
	}
	delete(s.store.magicLinks, key)

	copied := *link
	return &copied, nil
}

func (s *MagicLinkStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	var removed int64
	for key, link := range s.store.magicLinks {
		if !link.ExpiresAt.After(now) {
			delete(s.store.magicLinks, key)
			removed++
		}
	}
	return removed, nil
}
