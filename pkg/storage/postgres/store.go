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

// Package postgres implements pkg/storage on top of a PostgreSQL database
// via pgx.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arkaitz-dev/hashrand-go/pkg/storage"
)

// Store implements storage.Store for PostgreSQL.
type Store struct {
	pool *pgxpool.Pool

	users         *UserStore
	userKeys      *UserKeyStore
	userPrivkeys  *UserPrivkeyStore
	magicLinks    *MagicLinkStore
	sharedSecrets *SharedSecretStore
}

// NewStore creates a new PostgreSQL store from a connection string.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{pool: pool}
	s.users = &UserStore{db: pool}
	s.userKeys = &UserKeyStore{db: pool}
	s.userPrivkeys = &UserPrivkeyStore{db: pool}
	s.magicLinks = &MagicLinkStore{db: pool}
	s.sharedSecrets = &SharedSecretStore{db: pool}

	return s, nil
}

func (s *Store) Users() storage.UserStore                 { return s.users }
func (s *Store) UserKeys() storage.UserKeyStore            { return s.userKeys }
func (s *Store) UserPrivkeys() storage.UserPrivkeyStore    { return s.userPrivkeys }
func (s *Store) MagicLinks() storage.MagicLinkStore        { return s.magicLinks }
func (s *Store) SharedSecrets() storage.SharedSecretStore  { return s.sharedSecrets }

// Close closes the database connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
