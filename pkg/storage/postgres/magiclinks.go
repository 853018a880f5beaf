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

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arkaitz-dev/hashrand-go/pkg/storage"
)

// MagicLinkStore implements storage.MagicLinkStore for PostgreSQL.
type MagicLinkStore struct {
	db *pgxpool.Pool
}

func (s *MagicLinkStore) Create(ctx context.Context, link *storage.MagicLink) error {
	query := `
		INSERT INTO magiclinks (token_hash, expires_at, encrypted_payload)
		VALUES ($1, $2, $3)
	`
	_, err := s.db.Exec(ctx, query, link.TokenHash, link.ExpiresAt, link.EncryptedPayload)
	if err != nil {
		return fmt.Errorf("create magic link: %w", err)
	}
	return nil
}

// Consume atomically deletes and returns a magic link in a single
// DELETE...RETURNING statement, so two concurrent consumers can never
// both observe a live row. An already-expired row is left for the
// sweeper and reported as not found here.
func (s *MagicLinkStore) Consume(ctx context.Context, tokenHash []byte) (*storage.MagicLink, error) {
	query := `
		DELETE FROM magiclinks WHERE token_hash = $1 AND expires_at > $2
		RETURNING token_hash, expires_at, encrypted_payload
	`
	var link storage.MagicLink
	err := s.db.QueryRow(ctx, query, tokenHash, time.Now()).Scan(&link.TokenHash, &link.ExpiresAt, &link.EncryptedPayload)
	if err == pgx.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("consume magic link: %w", err)
	}
	return &link, nil
}

func (s *MagicLinkStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM magiclinks WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired magic links: %w", err)
	}
	return tag.RowsAffected(), nil
}
