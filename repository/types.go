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

	"github.com/tomoncle/gendao/database"
	"github.com/tomoncle/gendao/types"
)

// CrudRepository defines basic CRUD operations for a generic entity type.
// Each call runs in its own unit of work.
type CrudRepository[T any] interface {
	Create(ctx context.Context, entity *T) error

	// Update fails with ErrInvalidArgument for a nil entity.
	Update(ctx context.Context, entity *T) error

	// FindByID returns (nil, nil) when no row has the identifier.
	FindByID(ctx context.Context, id any) (*T, error)

	FindAll(ctx context.Context) ([]*T, error)

	// DeleteByID fails with ErrNotFound when no row has the identifier.
	DeleteByID(ctx context.Context, id any) error

	DeleteAll(ctx context.Context) error
}

// SearchRepository defines field and filter based lookups.
type SearchRepository[T any] interface {
	// SearchByField returns the entities whose column equals value. field is
	// a Go field name or a column name of T; anything else is rejected with
	// ErrInvalidArgument.
	SearchByField(ctx context.Context, field string, value any) ([]*T, error)

	List(ctx context.Context, filter *types.QueryFilter) ([]*T, error)

	Count(ctx context.Context, filter *types.QueryFilter) (int, error)
}

// BatchRepository writes several entities in one unit of work.
type BatchRepository[T any] interface {
	CreateBatch(ctx context.Context, entities ...*T) error

	// Upsert inserts entities, updating fields of rows that conflict on
	// conflictKeys (the primary key when empty). fields and conflictKeys are
	// resolved like SearchByField's field.
	Upsert(ctx context.Context, fields []string, conflictKeys []string, entities ...*T) error
}

// PageQueryRepository defines pagination functionality for listing entities.
type PageQueryRepository[T any] interface {
	Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error)
}

// Repository combines every repository operation and exposes the session
// factory for RunCustom.
type Repository[T any] interface {
	CrudRepository[T]
	SearchRepository[T]
	BatchRepository[T]
	PageQueryRepository[T]
	SessionFactory() database.SessionFactory
}
