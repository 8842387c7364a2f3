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
	"database/sql"
	"reflect"
	"strings"

	"github.com/pkg/errors"
	"github.com/tomoncle/gendao/database"
	"github.com/tomoncle/gendao/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"
	"github.com/uptrace/bun/schema"
)

type baseRepositoryImpl[T any] struct {
	factory database.SessionFactory
	name    string
}

// NewRepository returns a generic repository whose operations each run in
// a unit of work opened from factory. T must be a Bun model struct.
func NewRepository[T any](factory database.SessionFactory) Repository[T] {
	return &baseRepositoryImpl[T]{factory: factory, name: entityName[T]()}
}

func entityName[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().Name()
}

func (r *baseRepositoryImpl[T]) SessionFactory() database.SessionFactory { return r.factory }

func (r *baseRepositoryImpl[T]) op(name string) string { return r.name + "." + name }

// exec runs fn in a unit of work with no result value.
func (r *baseRepositoryImpl[T]) exec(ctx context.Context, op string, fn func(ctx context.Context, s database.Session) error) error {
	_, err := Execute(ctx, r.factory, r.op(op), WorkFunc[struct{}](func(ctx context.Context, s database.Session) (struct{}, error) {
		return struct{}{}, fn(ctx, s)
	}))
	return err
}

func (r *baseRepositoryImpl[T]) Create(ctx context.Context, entity *T) error {
	if entity == nil {
		return errors.WithMessagef(ErrInvalidArgument, "%s to create cannot be nil", r.name)
	}
	return r.exec(ctx, "create", func(ctx context.Context, s database.Session) error {
		_, err := s.DB().NewInsert().Model(entity).Exec(ctx)
		return err
	})
}

func (r *baseRepositoryImpl[T]) CreateBatch(ctx context.Context, entities ...*T) error {
	if len(entities) == 0 {
		return nil
	}
	for i, entity := range entities {
		if entity == nil {
			return errors.WithMessagef(ErrInvalidArgument, "%s at index %d cannot be nil", r.name, i)
		}
	}
	batch := make([]*T, len(entities))
	copy(batch, entities)
	return r.exec(ctx, "create_batch", func(ctx context.Context, s database.Session) error {
		_, err := s.DB().NewInsert().Model(&batch).Exec(ctx)
		return err
	})
}

// Upsert inserts entities and, on a conflict over conflictKeys (the primary
// key when empty), updates fields of the existing row instead.
func (r *baseRepositoryImpl[T]) Upsert(ctx context.Context, fields []string, conflictKeys []string, entities ...*T) error {
	if len(entities) == 0 {
		return nil
	}
	if len(fields) == 0 {
		return errors.WithMessagef(ErrInvalidArgument, "%s upsert needs at least one field to update", r.name)
	}
	for i, entity := range entities {
		if entity == nil {
			return errors.WithMessagef(ErrInvalidArgument, "%s at index %d cannot be nil", r.name, i)
		}
	}
	batch := make([]*T, len(entities))
	copy(batch, entities)
	return r.exec(ctx, "upsert", func(ctx context.Context, s database.Session) error {
		table := s.Table((*T)(nil))
		columns, err := r.resolveColumns(table, fields)
		if err != nil {
			return err
		}
		keys := table.PKs
		if len(conflictKeys) > 0 {
			if keys, err = r.resolveColumns(table, conflictKeys); err != nil {
				return err
			}
		}

		db := s.DB()
		query := db.NewInsert().Model(&batch)
		features := db.Dialect().Features()
		switch {
		case features.Has(feature.InsertOnConflict):
			query = query.On("CONFLICT (" + joinColumns(keys, "?") + ") DO UPDATE").
				Set(joinColumns(columns, "? = EXCLUDED.?"))
		case features.Has(feature.InsertOnDuplicateKey):
			query = query.On("DUPLICATE KEY UPDATE " + joinColumns(columns, "? = VALUES(?)"))
		default:
			return errors.Errorf("%s dialect does not support upsert", db.Dialect().Name())
		}
		_, err = query.Exec(ctx)
		return err
	})
}

func (r *baseRepositoryImpl[T]) Update(ctx context.Context, entity *T) error {
	if entity == nil {
		return errors.WithMessagef(ErrInvalidArgument, "%s to update cannot be nil", r.name)
	}
	return r.exec(ctx, "update", func(ctx context.Context, s database.Session) error {
		_, err := s.DB().NewUpdate().Model(entity).WherePK().Exec(ctx)
		return err
	})
}

func (r *baseRepositoryImpl[T]) FindByID(ctx context.Context, id any) (*T, error) {
	return Execute(ctx, r.factory, r.op("find_by_id"), WorkFunc[*T](func(ctx context.Context, s database.Session) (*T, error) {
		return r.selectByID(ctx, s, id)
	}))
}

// selectByID returns (nil, nil) when no row matches.
func (r *baseRepositoryImpl[T]) selectByID(ctx context.Context, s database.Session, id any) (*T, error) {
	pk, err := r.primaryKey(s)
	if err != nil {
		return nil, err
	}
	entity := new(T)
	err = s.DB().NewSelect().Model(entity).Where("?TableAlias.? = ?", pk.SQLName, id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entity, nil
}

func (r *baseRepositoryImpl[T]) FindAll(ctx context.Context) ([]*T, error) {
	return r.List(ctx, nil)
}

func (r *baseRepositoryImpl[T]) DeleteByID(ctx context.Context, id any) error {
	return r.exec(ctx, "delete_by_id", func(ctx context.Context, s database.Session) error {
		entity, err := r.selectByID(ctx, s, id)
		if err != nil {
			return err
		}
		if entity == nil {
			return errors.WithMessagef(ErrNotFound, "%s with id %v", r.name, id)
		}
		_, err = s.DB().NewDelete().Model(entity).WherePK().Exec(ctx)
		return err
	})
}

func (r *baseRepositoryImpl[T]) DeleteAll(ctx context.Context) error {
	return r.exec(ctx, "delete_all", func(ctx context.Context, s database.Session) error {
		_, err := s.DB().NewDelete().Model((*T)(nil)).Where("1 = 1").Exec(ctx)
		return err
	})
}

func (r *baseRepositoryImpl[T]) SearchByField(ctx context.Context, field string, value any) ([]*T, error) {
	return Execute(ctx, r.factory, r.op("search_by_field"), WorkFunc[[]*T](func(ctx context.Context, s database.Session) ([]*T, error) {
		column := lookupColumn(s.Table((*T)(nil)), field)
		if column == nil {
			return nil, errors.WithMessagef(ErrInvalidArgument, "%s has no field %q", r.name, field)
		}

		entities := make([]*T, 0)
		query := s.DB().NewSelect().Model(&entities)
		if isNilValue(value) {
			query = query.Where("?TableAlias.? IS NULL", column.SQLName)
		} else {
			query = query.Where("?TableAlias.? = ?", column.SQLName, value)
		}
		if err := query.Scan(ctx); err != nil {
			return nil, err
		}
		return entities, nil
	}))
}

func (r *baseRepositoryImpl[T]) List(ctx context.Context, filter *types.QueryFilter) ([]*T, error) {
	op := "list"
	if filter == nil {
		op = "find_all"
	}
	return Execute(ctx, r.factory, r.op(op), WorkFunc[[]*T](func(ctx context.Context, s database.Session) ([]*T, error) {
		entities := make([]*T, 0)
		query := applyFilter(s.DB().NewSelect().Model(&entities), filter)
		if err := query.Scan(ctx); err != nil {
			return nil, err
		}
		return entities, nil
	}))
}

func (r *baseRepositoryImpl[T]) Count(ctx context.Context, filter *types.QueryFilter) (int, error) {
	return Execute(ctx, r.factory, r.op("count"), WorkFunc[int](func(ctx context.Context, s database.Session) (int, error) {
		return applyFilter(s.DB().NewSelect().Model((*T)(nil)), filter).Count(ctx)
	}))
}

func (r *baseRepositoryImpl[T]) Page(ctx context.Context, pageRequest *types.PageRequest) (*types.Pagination[T], error) {
	if pageRequest == nil {
		return nil, errors.WithMessage(ErrInvalidArgument, "page request cannot be nil")
	}
	return Execute(ctx, r.factory, r.op("page"), WorkFunc[*types.Pagination[T]](func(ctx context.Context, s database.Session) (*types.Pagination[T], error) {
		pagination := types.NewDefaultPagination[T](pageRequest.GetPage(), pageRequest.GetPageSize())

		total, err := applyFilter(s.DB().NewSelect().Model((*T)(nil)), pageRequest.GetFilter()).Count(ctx)
		if err != nil || total == 0 {
			return pagination, err
		}

		entities := make([]*T, 0, pageRequest.GetPageSize())
		err = applyFilter(s.DB().NewSelect().Model(&entities), pageRequest.GetFilter()).
			Order(pageRequest.GetOrders()...).
			Offset(pageRequest.GetOffset()).
			Limit(pageRequest.GetPageSize()).
			Scan(ctx)
		if err != nil {
			return nil, err
		}
		pagination.Total = total
		pagination.Items = entities
		return pagination, nil
	}))
}

// RunCustom runs work in a unit of work opened from repo's session factory.
// The work gets the live session and its transaction; the outcome is
// committed as a whole or rolled back as a whole, and multi-step work
// gets no partial rollback beyond that.
func RunCustom[T, R any](ctx context.Context, repo Repository[T], work Work[R]) (R, error) {
	if work == nil {
		var zero R
		return zero, errors.WithMessage(ErrInvalidArgument, "work cannot be nil")
	}
	return Execute(ctx, repo.SessionFactory(), entityName[T]()+".run_custom", work)
}

func (r *baseRepositoryImpl[T]) primaryKey(s database.Session) (*schema.Field, error) {
	table := s.Table((*T)(nil))
	if len(table.PKs) != 1 {
		return nil, errors.WithMessagef(ErrInvalidArgument, "%s must have exactly one primary key, has %d", r.name, len(table.PKs))
	}
	return table.PKs[0], nil
}

// lookupColumn resolves field against the mapped columns of table, by
// column name or Go field name. Only mapped columns are ever placed in SQL.
func lookupColumn(table *schema.Table, field string) *schema.Field {
	field = strings.TrimSpace(field)
	if field == "" {
		return nil
	}
	for _, f := range table.Fields {
		if f.Name == field {
			return f
		}
	}
	for _, f := range table.Fields {
		if strings.EqualFold(f.GoName, field) {
			return f
		}
	}
	return nil
}

func (r *baseRepositoryImpl[T]) resolveColumns(table *schema.Table, fields []string) ([]*schema.Field, error) {
	columns := make([]*schema.Field, 0, len(fields))
	for _, field := range fields {
		column := lookupColumn(table, field)
		if column == nil {
			return nil, errors.WithMessagef(ErrInvalidArgument, "%s has no field %q", r.name, field)
		}
		columns = append(columns, column)
	}
	return columns, nil
}

// joinColumns renders pattern once per column, replacing every "?" with
// the quoted column name.
func joinColumns(columns []*schema.Field, pattern string) string {
	parts := make([]string, len(columns))
	for i, column := range columns {
		parts[i] = strings.ReplaceAll(pattern, "?", string(column.SQLName))
	}
	return strings.Join(parts, ", ")
}

// isNilValue reports whether value is nil or a nil pointer, map, slice or
// interface, all of which search for NULL.
func isNilValue(value any) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return false
}

func applyFilter(query *bun.SelectQuery, filter *types.QueryFilter) *bun.SelectQuery {
	if filter == nil || filter.Schema == "" {
		return query
	}
	return query.Where(filter.Schema, filter.Args...)
}
