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

// UserStore implements storage.UserStore for PostgreSQL.
type UserStore struct {
	db *pgxpool.Pool
}

// Touch creates the user row if absent, or updates logged_in if present.
func (s *UserStore) Touch(ctx context.Context, userID []byte, loggedIn bool) error {
	query := `
		INSERT INTO users (user_id, logged_in, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET logged_in = EXCLUDED.logged_in
	`
	_, err := s.db.Exec(ctx, query, userID, loggedIn, time.Now())
	if err != nil {
		return fmt.Errorf("touch user: %w", err)
	}
	return nil
}

// Get retrieves a user by ID.
func (s *UserStore) Get(ctx context.Context, userID []byte) (*storage.User, error) {
	query := `SELECT user_id, logged_in, created_at FROM users WHERE user_id = $1`

	var u storage.User
	err := s.db.QueryRow(ctx, query, userID).Scan(&u.UserID, &u.LoggedIn, &u.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// UserKeyStore implements storage.UserKeyStore for PostgreSQL.
type UserKeyStore struct {
	db *pgxpool.Pool
}

func (s *UserKeyStore) AddEd25519Key(ctx context.Context, userID []byte, pubKey string) error {
	query := `
		INSERT INTO user_ed25519_keys (user_id, pub_key, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, pub_key) DO NOTHING
	`
	_, err := s.db.Exec(ctx, query, userID, pubKey, time.Now())
	if err != nil {
		return fmt.Errorf("add ed25519 key: %w", err)
	}
	return nil
}

func (s *UserKeyStore) AddX25519Key(ctx context.Context, userID []byte, pubKey string) error {
	query := `
		INSERT INTO user_x25519_keys (user_id, pub_key, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, pub_key) DO NOTHING
	`
	_, err := s.db.Exec(ctx, query, userID, pubKey, time.Now())
	if err != nil {
		return fmt.Errorf("add x25519 key: %w", err)
	}
	return nil
}

func (s *UserKeyStore) LatestEd25519Keys(ctx context.Context, userID []byte, limit int) ([]*storage.UserEd25519Key, error) {
	query := `
		SELECT user_id, pub_key, created_at FROM user_ed25519_keys
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2
	`
	rows, err := s.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list ed25519 keys: %w", err)
	}
	defer rows.Close()

	var out []*storage.UserEd25519Key
	for rows.Next() {
		var k storage.UserEd25519Key
		if err := rows.Scan(&k.UserID, &k.PubKey, &k.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ed25519 key: %w", err)
		}
		out = append(out, &k)
	}
	return out, rows.Err()
}

func (s *UserKeyStore) LatestX25519Keys(ctx context.Context, userID []byte, limit int) ([]*storage.UserX25519Key, error) {
	query := `
		SELECT user_id, pub_key, created_at FROM user_x25519_keys
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2
	`
	rows, err := s.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list x25519 keys: %w", err)
	}
	defer rows.Close()

	var out []*storage.UserX25519Key
	for rows.Next() {
		var k storage.UserX25519Key
		if err := rows.Scan(&k.UserID, &k.PubKey, &k.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan x25519 key: %w", err)
		}
		out = append(out, &k)
	}
	return out, rows.Err()
}

// UserPrivkeyStore implements storage.UserPrivkeyStore for PostgreSQL.
type UserPrivkeyStore struct {
	db *pgxpool.Pool
}

func (s *UserPrivkeyStore) GetOrCreate(ctx context.Context, dbIndex []byte, newEncryptedPrivkey []byte) (*storage.UserPrivkeyContext, error) {
	query := `
		INSERT INTO user_privkey_context (db_index, encrypted_privkey)
		VALUES ($1, $2)
		ON CONFLICT (db_index) DO UPDATE SET db_index = user_privkey_context.db_index
		RETURNING db_index, encrypted_privkey
	`
	var ctxRow storage.UserPrivkeyContext
	err := s.db.QueryRow(ctx, query, dbIndex, newEncryptedPrivkey).Scan(&ctxRow.DBIndex, &ctxRow.EncryptedPrivkey)
	if err != nil {
		return nil, fmt.Errorf("get or create privkey context: %w", err)
	}
	return &ctxRow, nil
}
