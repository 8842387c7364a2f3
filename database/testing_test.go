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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type widget struct {
	bun.BaseModel `bun:"table:widgets,alias:w"`

	ID   int64  `bun:"id,pk,autoincrement"`
	Name string `bun:"name,notnull"`
}

func sqliteConfig(t *testing.T) *ConnectionConfig {
	t.Helper()
	return &ConnectionConfig{
		Type:   "sqlite",
		DBName: filepath.Join(t.TempDir(), "test"),
	}
}

// openTestDB connects a file-backed sqlite database with a widgets table.
func openTestDB(t *testing.T) *bun.DB {
	t.Helper()
	manager := NewDatabaseManager(sqliteConfig(t))
	require.NoError(t, manager.Connect(context.Background()))
	t.Cleanup(func() { _ = manager.Disconnect() })

	db := manager.GetDB()
	require.NoError(t, CreateTables(context.Background(), db, NewModelAdapter((*widget)(nil), 0)))
	return db
}

func countWidgets(t *testing.T, db *bun.DB) int {
	t.Helper()
	n, err := db.NewSelect().Model((*widget)(nil)).Count(context.Background())
	require.NoError(t, err)
	return n
}
