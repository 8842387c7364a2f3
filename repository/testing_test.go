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

package repository

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tomoncle/gendao/database"
	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID       int64   `bun:"id,pk,autoincrement"`
	Name     string  `bun:"name,notnull"`
	Email    string  `bun:"email,unique"`
	Age      int     `bun:"age"`
	Nickname *string `bun:"nickname"`
}

// ghost is mapped but its table is never created.
type ghost struct {
	bun.BaseModel `bun:"table:ghosts"`

	ID int64 `bun:"id,pk,autoincrement"`
}

func strPtr(s string) *string { return &s }

// openTestDB connects a file-backed sqlite database with a users table.
func openTestDB(t *testing.T) *bun.DB {
	t.Helper()
	manager := database.NewDatabaseManager(&database.ConnectionConfig{
		Type:   "sqlite",
		DBName: filepath.Join(t.TempDir(), "test"),
	})
	require.NoError(t, manager.Connect(context.Background()))
	t.Cleanup(func() { _ = manager.Disconnect() })

	db := manager.GetDB()
	require.NoError(t, database.CreateTables(context.Background(), db, database.NewModelAdapter((*User)(nil), 0)))
	return db
}

// countingFactory records every session it opens.
type countingFactory struct {
	inner database.SessionFactory

	// closeErr, when set, is returned by Close after the real close ran.
	closeErr error

	mu       sync.Mutex
	sessions []*countingSession
}

func newCountingFactory(db *bun.DB) *countingFactory {
	return &countingFactory{inner: database.NewSessionFactory(db)}
}

func (f *countingFactory) OpenSession(ctx context.Context) (database.Session, error) {
	s, err := f.inner.OpenSession(ctx)
	if err != nil {
		return nil, err
	}
	cs := &countingSession{Session: s, closeErr: f.closeErr}
	f.mu.Lock()
	f.sessions = append(f.sessions, cs)
	f.mu.Unlock()
	return cs, nil
}

func (f *countingFactory) opened() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

func (f *countingFactory) last() *countingSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[len(f.sessions)-1]
}

// requireAllClosedOnce fails unless every opened session was closed exactly once.
func (f *countingFactory) requireAllClosedOnce(t *testing.T) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, s := range f.sessions {
		require.Equalf(t, 1, s.closes, "session %d closed %d times", i, s.closes)
	}
}

type countingSession struct {
	database.Session

	closeErr  error
	closes    int
	commits   int
	rollbacks int
}

func (s *countingSession) Commit() error {
	s.commits++
	return s.Session.Commit()
}

func (s *countingSession) Rollback() error {
	s.rollbacks++
	return s.Session.Rollback()
}

func (s *countingSession) Close() error {
	s.closes++
	err := s.Session.Close()
	if s.closeErr != nil {
		return s.closeErr
	}
	return err
}
