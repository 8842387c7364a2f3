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

package gendao

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/gendao/database"
	"github.com/tomoncle/gendao/repository"
	"github.com/tomoncle/gendao/types"
	"github.com/uptrace/bun"
)

type Book struct {
	bun.BaseModel `bun:"table:books,alias:b"`

	ID     int64  `bun:"id,pk,autoincrement"`
	Title  string `bun:"title,notnull"`
	Author string `bun:"author"`
	Pages  int    `bun:"pages"`

	Tags types.JsonArray `bun:"tags,type:json"`
}

func init() {
	database.RegisteredModel(database.NewModelAdapter((*Book)(nil), 0))
}

func initTestDB(t *testing.T) {
	t.Helper()
	_, err := database.InitDB(&database.Config{
		ConnectionConfig: database.ConnectionConfig{
			Type:   "sqlite",
			DBName: filepath.Join(t.TempDir(), "books"),
		},
		SchemaConfig: database.SchemaConfig{CreateTablesOnStartup: true},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.CloseDB() })
}

func TestDaoBeforeInitDB(t *testing.T) {
	dao := NewDao[Book]()
	_, err := dao.All(context.Background())
	assert.True(t, repository.IsOperationFailed(err))
}

func TestDaoLifecycle(t *testing.T) {
	dao := NewDao[Book]()
	initTestDB(t)
	ctx := context.Background()

	book := &Book{
		Title:  "The Go Programming Language",
		Author: "Donovan",
		Pages:  380,
		Tags:   types.JsonArray{{"topic": "language"}, {"edition": "first"}},
	}
	require.NoError(t, dao.Save(ctx, book))
	require.NoError(t, dao.SaveAll(ctx,
		&Book{Title: "Concurrency in Go", Author: "Cox-Buday", Pages: 238},
		&Book{Title: "Learning Go", Author: "Bodner", Pages: 375},
	))

	got, err := dao.Get(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, book, got)

	book.Pages = 400
	require.NoError(t, dao.Update(ctx, book))
	got, err = dao.Get(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 400, got.Pages)

	found, err := dao.SearchByField(ctx, "author", "Bodner")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Learning Go", found[0].Title)

	long, err := dao.List(ctx, types.NewQueryFilter("pages > ?", 300))
	require.NoError(t, err)
	assert.Len(t, long, 2)

	count, err := dao.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	page, err := dao.Page(ctx, types.NewPageRequestWithOrders(1, 2, "pages DESC"))
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.True(t, page.HasNext())
	require.Len(t, page.Items, 2)
	assert.Equal(t, book.ID, page.Items[0].ID)

	require.NoError(t, dao.Delete(ctx, book.ID))
	assert.True(t, repository.IsNotFound(dao.Delete(ctx, book.ID)))

	require.NoError(t, dao.DeleteAll(ctx))
	all, err := dao.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestDaoRunCustom(t *testing.T) {
	initTestDB(t)
	ctx := context.Background()
	dao := NewDao[Book]()

	titles, err := RunCustom(ctx, dao, func(ctx context.Context, s database.Session) ([]string, error) {
		if _, err := s.DB().NewInsert().Model(&Book{Title: "Go in Action"}).Exec(ctx); err != nil {
			return nil, err
		}
		var titles []string
		err := s.DB().NewSelect().Model((*Book)(nil)).Column("title").Scan(ctx, &titles)
		return titles, err
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Go in Action"}, titles)

	_, err = RunCustom[Book, int](ctx, dao, nil)
	assert.True(t, repository.IsInvalidArgument(err))
}

func TestDaoWithFactory(t *testing.T) {
	initTestDB(t)
	dao := NewDaoWithFactory[Book](database.GetSessionFactory())

	require.NoError(t, dao.Save(context.Background(), &Book{Title: "Go Brain Teasers"}))
	all, err := dao.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.NotNil(t, dao.Repository().SessionFactory())
}

func TestDaoFollowsReinitializedDatabase(t *testing.T) {
	ctx := context.Background()
	dao := NewDao[Book]()

	initTestDB(t)
	require.NoError(t, dao.Save(ctx, &Book{Title: "first database"}))
	all, err := dao.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	initTestDB(t)
	all, err = dao.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	require.NoError(t, dao.Save(ctx, &Book{Title: "second database"}))
	found, err := dao.SearchByField(ctx, "title", "second database")
	require.NoError(t, err)
	assert.Len(t, found, 1)
}
