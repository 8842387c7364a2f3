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
	"sync"

	"github.com/tomoncle/gendao/database"
	"github.com/tomoncle/gendao/repository"
	"github.com/tomoncle/gendao/types"
)

type Dao[T any] interface {
	// Save inserts a new entity.
	Save(ctx context.Context, model *T) error

	// SaveAll inserts several entities in one transaction.
	SaveAll(ctx context.Context, models ...*T) error

	// Upsert inserts models, updating fields of rows that conflict on
	// conflictKeys (the primary key when empty).
	Upsert(ctx context.Context, fields []string, conflictKeys []string, models ...*T) error

	// Update modifies an existing entity; nil is rejected.
	Update(ctx context.Context, model *T) error

	// Get returns the entity with the identifier, or nil when absent.
	Get(ctx context.Context, id any) (*T, error)

	// All returns all entities.
	All(ctx context.Context) ([]*T, error)

	// Delete removes the entity with the identifier.
	Delete(ctx context.Context, id any) error

	// DeleteAll removes every entity of the type.
	DeleteAll(ctx context.Context) error

	// SearchByField returns the entities whose field equals value.
	SearchByField(ctx context.Context, field string, value any) ([]*T, error)

	// List returns entities that match the provided filter.
	List(ctx context.Context, filter *types.QueryFilter) ([]*T, error)

	// Count returns the number of entities matching filter.
	Count(ctx context.Context, filter *types.QueryFilter) (int, error)

	// Page returns a paginated list of entities.
	Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error)

	// Repository exposes the underlying repository, e.g. for RunCustom.
	Repository() repository.Repository[T]
}

type baseDaoImpl[T any] struct {
	mu      sync.Mutex
	repo    repository.Repository[T]
	factory database.SessionFactory
	pinned  bool
}

// NewDao returns a Dao bound to the global session factory. The binding is
// resolved on every call, so a Dao may be declared before database.InitDB
// and follows the database when InitDB runs again.
func NewDao[T any]() Dao[T] {
	return &baseDaoImpl[T]{}
}

// NewDaoWithFactory returns a Dao bound to factory.
func NewDaoWithFactory[T any](factory database.SessionFactory) Dao[T] {
	return &baseDaoImpl[T]{repo: repository.NewRepository[T](factory), factory: factory, pinned: true}
}

func (d *baseDaoImpl[T]) baseRepo() repository.Repository[T] {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pinned {
		return d.repo
	}
	factory := database.GetSessionFactory()
	if d.repo == nil || d.factory != factory {
		d.repo = repository.NewRepository[T](factory)
		d.factory = factory
	}
	return d.repo
}

func (d *baseDaoImpl[T]) Repository() repository.Repository[T] { return d.baseRepo() }

func (d *baseDaoImpl[T]) Save(ctx context.Context, model *T) error {
	return d.baseRepo().Create(ctx, model)
}

func (d *baseDaoImpl[T]) SaveAll(ctx context.Context, models ...*T) error {
	return d.baseRepo().CreateBatch(ctx, models...)
}

func (d *baseDaoImpl[T]) Upsert(ctx context.Context, fields []string, conflictKeys []string, models ...*T) error {
	return d.baseRepo().Upsert(ctx, fields, conflictKeys, models...)
}

func (d *baseDaoImpl[T]) Update(ctx context.Context, model *T) error {
	return d.baseRepo().Update(ctx, model)
}

func (d *baseDaoImpl[T]) Get(ctx context.Context, id any) (*T, error) {
	return d.baseRepo().FindByID(ctx, id)
}

func (d *baseDaoImpl[T]) All(ctx context.Context) ([]*T, error) {
	return d.baseRepo().FindAll(ctx)
}

func (d *baseDaoImpl[T]) Delete(ctx context.Context, id any) error {
	return d.baseRepo().DeleteByID(ctx, id)
}

func (d *baseDaoImpl[T]) DeleteAll(ctx context.Context) error {
	return d.baseRepo().DeleteAll(ctx)
}

func (d *baseDaoImpl[T]) SearchByField(ctx context.Context, field string, value any) ([]*T, error) {
	return d.baseRepo().SearchByField(ctx, field, value)
}

func (d *baseDaoImpl[T]) List(ctx context.Context, filter *types.QueryFilter) ([]*T, error) {
	return d.baseRepo().List(ctx, filter)
}

func (d *baseDaoImpl[T]) Count(ctx context.Context, filter *types.QueryFilter) (int, error) {
	return d.baseRepo().Count(ctx, filter)
}

func (d *baseDaoImpl[T]) Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error) {
	return d.baseRepo().Page(ctx, page)
}

// RunCustom runs fn against the live unit of work of dao's database.
func RunCustom[T, R any](ctx context.Context, dao Dao[T], fn func(ctx context.Context, session database.Session) (R, error)) (R, error) {
	var work repository.Work[R]
	if fn != nil {
		work = repository.WorkFunc[R](fn)
	}
	return repository.RunCustom[T, R](ctx, dao.Repository(), work)
}
