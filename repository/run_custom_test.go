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
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/gendao/database"
)

func TestRunCustomCommits(t *testing.T) {
	ctx := context.Background()
	factory := newCountingFactory(openTestDB(t))
	repo := NewRepository[User](factory)

	n, err := RunCustom[User](ctx, repo, WorkFunc[int](func(ctx context.Context, s database.Session) (int, error) {
		assert.True(t, s.InTransaction())
		for i := 0; i < 2; i++ {
			if _, err := s.DB().NewInsert().Model(newUser(i)).Exec(ctx); err != nil {
				return 0, err
			}
		}
		return s.DB().NewSelect().Model((*User)(nil)).Count(ctx)
	}))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := repo.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	factory.requireAllClosedOnce(t)
}

func TestRunCustomRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	factory := newCountingFactory(openTestDB(t))
	repo := NewRepository[User](factory)
	stop := errors.New("stop")

	_, err := RunCustom[User](ctx, repo, WorkFunc[struct{}](func(ctx context.Context, s database.Session) (struct{}, error) {
		if _, err := s.DB().NewInsert().Model(newUser(1)).Exec(ctx); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, stop
	}))
	assert.ErrorIs(t, err, stop)

	var oe *OperationError
	require.True(t, errors.As(err, &oe))
	assert.Equal(t, "User.run_custom", oe.Op)

	count, err := repo.Count(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, count)
	factory.requireAllClosedOnce(t)
}

func TestRunCustomRollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	factory := newCountingFactory(openTestDB(t))
	repo := NewRepository[User](factory)

	assert.Panics(t, func() {
		_, _ = RunCustom[User](ctx, repo, WorkFunc[int](func(ctx context.Context, s database.Session) (int, error) {
			if _, err := s.DB().NewInsert().Model(newUser(1)).Exec(ctx); err != nil {
				return 0, err
			}
			panic("interrupted")
		}))
	})

	count, err := repo.Count(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Equal(t, 1, factory.sessions[0].rollbacks)
	factory.requireAllClosedOnce(t)
}

func TestRunCustomNilWork(t *testing.T) {
	factory := newCountingFactory(openTestDB(t))
	repo := NewRepository[User](factory)

	_, err := RunCustom[User, int](context.Background(), repo, nil)
	assert.True(t, IsInvalidArgument(err))
	assert.Zero(t, factory.opened())
}

func TestCloseFailureKeepsPrimaryError(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	seedUsers(t, NewRepository[User](database.NewSessionFactory(db)), 1)

	factory := newCountingFactory(db)
	factory.closeErr = errors.New("release failed")
	repo := NewRepository[User](factory)

	err := repo.DeleteByID(ctx, int64(404))
	assert.True(t, IsNotFound(err))
	var oe *OperationError
	require.True(t, errors.As(err, &oe))
	require.Error(t, oe.Cleanup)
	assert.Contains(t, oe.Cleanup.Error(), "release failed")

	all, err := repo.FindAll(ctx)
	assert.Nil(t, all)
	assert.True(t, IsOperationFailed(err))
	assert.Contains(t, err.Error(), "release failed")
	factory.requireAllClosedOnce(t)
}
