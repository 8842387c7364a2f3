/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
	"go.uber.org/multierr"
)

var (
	ErrSessionClosed  = errors.New("database: session is closed")
	ErrTxNotStarted   = errors.New("database: transaction not started")
	ErrTxAlreadyBegun = errors.New("database: transaction already begun")
)

// Session is a unit of work bound to one pooled connection. A session is
// used by a single goroutine and must be closed by whoever opened it.
type Session interface {
	// ID identifies the session in logs.
	ID() string

	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	// Close releases the connection back to the pool, rolling back a
	// transaction that is still open.
	Close() error
	IsOpen() bool
	InTransaction() bool

	// DB returns the live transaction once Begin succeeded, otherwise the
	// bare connection.
	DB() bun.IDB

	// Table returns Bun's mapping metadata for model, a struct pointer or
	// struct type.
	Table(model interface{}) *schema.Table
}

// SessionFactory opens sessions against a shared database.
type SessionFactory interface {
	OpenSession(ctx context.Context) (Session, error)
}

type bunSessionFactory struct {
	resolve func() *bun.DB
	logger  Logger
}

// NewSessionFactory returns a SessionFactory that checks connections out
// of db's pool.
func NewSessionFactory(db *bun.DB) SessionFactory {
	return &bunSessionFactory{resolve: func() *bun.DB { return db }, logger: GetLogger()}
}

// NewManagedSessionFactory returns a SessionFactory that asks manager for
// its current database on every OpenSession, so sessions keep working
// after the manager reconnects.
func NewManagedSessionFactory(manager AbstractDatabaseManager) SessionFactory {
	return &bunSessionFactory{resolve: manager.GetDB, logger: GetLogger()}
}

func (f *bunSessionFactory) OpenSession(ctx context.Context) (Session, error) {
	db := f.resolve()
	if db == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	s := &bunSession{
		id:     uuid.NewString(),
		db:     db,
		conn:   conn,
		logger: f.logger,
		open:   true,
	}
	f.logger.Debug("Session opened", "session", s.id)
	return s, nil
}

type bunSession struct {
	id     string
	db     *bun.DB
	conn   bun.Conn
	tx     *bun.Tx
	logger Logger
	mu     sync.Mutex
	open   bool
}

func (s *bunSession) ID() string { return s.id }

func (s *bunSession) Begin(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return ErrSessionClosed
	}
	if s.tx != nil {
		return ErrTxAlreadyBegun
	}
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	s.tx = &tx
	return nil
}

func (s *bunSession) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx == nil {
		return ErrTxNotStarted
	}
	err := s.tx.Commit()
	s.tx = nil
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *bunSession) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rollbackLocked()
}

func (s *bunSession) rollbackLocked() error {
	if s.tx == nil {
		return ErrTxNotStarted
	}
	err := s.tx.Rollback()
	s.tx = nil
	if err != nil {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	return nil
}

func (s *bunSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return ErrSessionClosed
	}
	s.open = false

	var rbErr error
	if s.tx != nil {
		s.logger.Warn("Closing session with an open transaction, rolling back", "session", s.id)
		rbErr = s.rollbackLocked()
	}
	if err := s.conn.Close(); err != nil {
		return multierr.Append(fmt.Errorf("failed to release connection: %w", err), rbErr)
	}
	s.logger.Debug("Session closed", "session", s.id)
	return rbErr
}

func (s *bunSession) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *bunSession) InTransaction() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx != nil
}

func (s *bunSession) DB() bun.IDB {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx != nil {
		return s.tx
	}
	return &s.conn
}

func (s *bunSession) Table(model interface{}) *schema.Table {
	typ, ok := model.(reflect.Type)
	if !ok {
		typ = reflect.TypeOf(model)
	}
	for typ.Kind() == reflect.Ptr || typ.Kind() == reflect.Slice {
		typ = typ.Elem()
	}
	return s.db.Table(typ)
}
