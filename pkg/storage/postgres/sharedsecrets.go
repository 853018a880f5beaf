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

// SharedSecretStore implements storage.SharedSecretStore for PostgreSQL.
type SharedSecretStore struct {
	db *pgxpool.Pool
}

func (s *SharedSecretStore) CreateShard(ctx context.Context, shard *storage.SharedSecretShard) error {
	query := `
		INSERT INTO shared_secrets (id, encrypted_payload, expires_at, role)
		VALUES ($1, $2, $3, $4)
	`
	_, err := s.db.Exec(ctx, query, shard.ID, shard.EncryptedKeyMaterial, shard.ExpiresAt, shard.Role)
	if err != nil {
		return fmt.Errorf("create shared secret shard: %w", err)
	}
	return nil
}

func (s *SharedSecretStore) GetShard(ctx context.Context, id []byte) (*storage.SharedSecretShard, error) {
	query := `SELECT id, encrypted_payload, expires_at, role FROM shared_secrets WHERE id = $1`

	var shard storage.SharedSecretShard
	err := s.db.QueryRow(ctx, query, id).Scan(&shard.ID, &shard.EncryptedKeyMaterial, &shard.ExpiresAt, &shard.Role)
	if err == pgx.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get shared secret shard: %w", err)
	}
	return &shard, nil
}

func (s *SharedSecretStore) DeleteShard(ctx context.Context, id []byte) error {
	_, err := s.db.Exec(ctx, `DELETE FROM shared_secrets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete shared secret shard: %w", err)
	}
	return nil
}

func (s *SharedSecretStore) CreateTracking(ctx context.Context, tracking *storage.SharedSecretTracking) error {
	query := `
		INSERT INTO shared_secrets_tracking (reference_hash, pending_reads, read_at, expires_at, encrypted_payload)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.Exec(ctx, query,
		tracking.ReferenceHash, tracking.PendingReads, tracking.ReadAt, tracking.ExpiresAt, tracking.EncryptedPayload)
	if err != nil {
		return fmt.Errorf("create shared secret tracking: %w", err)
	}
	return nil
}

func (s *SharedSecretStore) GetTracking(ctx context.Context, referenceHash []byte) (*storage.SharedSecretTracking, error) {
	query := `
		SELECT reference_hash, pending_reads, read_at, expires_at, encrypted_payload
		FROM shared_secrets_tracking WHERE reference_hash = $1
	`
	var t storage.SharedSecretTracking
	err := s.db.QueryRow(ctx, query, referenceHash).Scan(
		&t.ReferenceHash, &t.PendingReads, &t.ReadAt, &t.ExpiresAt, &t.EncryptedPayload)
	if err == pgx.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get shared secret tracking: %w", err)
	}
	return &t, nil
}

// DecrementPendingReads decrements pending_reads in the same statement
// that reads it back, using RETURNING so the read-then-write is atomic
// at the database level rather than requiring an application-side lock.
// pending_reads never goes below zero.
func (s *SharedSecretStore) DecrementPendingReads(ctx context.Context, referenceHash []byte) (*storage.SharedSecretTracking, error) {
	query := `
		UPDATE shared_secrets_tracking
		SET pending_reads = GREATEST(pending_reads - 1, 0)
		WHERE reference_hash = $1
		RETURNING reference_hash, pending_reads, read_at, expires_at, encrypted_payload
	`
	var t storage.SharedSecretTracking
	err := s.db.QueryRow(ctx, query, referenceHash).Scan(
		&t.ReferenceHash, &t.PendingReads, &t.ReadAt, &t.ExpiresAt, &t.EncryptedPayload)
	if err == pgx.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("decrement pending reads: %w", err)
	}
	return &t, nil
}

func (s *SharedSecretStore) MarkRead(ctx context.Context, referenceHash []byte, at time.Time) error {
	query := `
		UPDATE shared_secrets_tracking
		SET read_at = $2
		WHERE reference_hash = $1 AND read_at IS NULL
	`
	_, err := s.db.Exec(ctx, query, referenceHash, at)
	if err != nil {
		return fmt.Errorf("mark shared secret read: %w", err)
	}
	return nil
}

func (s *SharedSecretStore) DeleteTracking(ctx context.Context, referenceHash []byte) error {
	_, err := s.db.Exec(ctx, `DELETE FROM shared_secrets_tracking WHERE reference_hash = $1`, referenceHash)
	if err != nil {
		return fmt.Errorf("delete shared secret tracking: %w", err)
	}
	return nil
}

func (s *SharedSecretStore) DeleteExpired(ctx context.Context, now time.Time) (int64, int64, error) {
	shardTag, err := s.db.Exec(ctx, `DELETE FROM shared_secrets WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, 0, fmt.Errorf("delete expired shared secret shards: %w", err)
	}

	trackingTag, err := s.db.Exec(ctx, `DELETE FROM shared_secrets_tracking WHERE expires_at <= $1`, now)
	if err != nil {
		return shardTag.RowsAffected(), 0, fmt.Errorf("delete expired shared secret tracking: %w", err)
	}

	return shardTag.RowsAffected(), trackingTag.RowsAffected(), nil
}
