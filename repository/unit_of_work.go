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

	"github.com/pkg/errors"
	"github.com/tomoncle/gendao/database"
)

// Work is an operation applied to a live unit of work. The session is
// already inside a transaction; Work must not commit, roll back or close it.
type Work[R any] interface {
	Apply(ctx context.Context, session database.Session) (R, error)
}

// WorkFunc adapts a function to Work.
type WorkFunc[R any] func(ctx context.Context, session database.Session) (R, error)

func (f WorkFunc[R]) Apply(ctx context.Context, session database.Session) (R, error) {
	return f(ctx, session)
}

// Execute runs work inside a unit of work opened from factory:
//
//	open session -> begin -> work -> commit, or rollback on error/panic -> close
//
// The session is closed exactly once on every path. Business errors
// (ErrInvalidArgument, ErrNotFound) are returned as they are; any other
// failure is reported as an *OperationError. A rollback or close failure
// is attached to the first error, never substituted for it.
func Execute[R any](ctx context.Context, factory database.SessionFactory, op string, work Work[R]) (result R, err error) {
	var zero R
	logger := database.GetLogger()

	if factory == nil {
		return zero, &OperationError{Op: op, Err: errors.New("no session factory configured")}
	}

	session, err := factory.OpenSession(ctx)
	if err != nil {
		err = newOperationError(op, nil, errors.Wrap(err, "open session"))
		logger.Error("Unit of work failed", "op", op, "error", err)
		return zero, err
	}

	defer func() {
		if !session.IsOpen() {
			return
		}
		if closeErr := session.Close(); closeErr != nil {
			closeErr = errors.Wrap(closeErr, "close session")
			logger.Error("Failed to close session", "op", op, "session", session.ID(), "error", closeErr)
			err = withCleanup(op, session, err, closeErr)
			if err != nil {
				result = zero
			}
		}
	}()

	if err = session.Begin(ctx); err != nil {
		err = newOperationError(op, session, errors.Wrap(err, "begin transaction"))
		logger.Error("Unit of work failed", "op", op, "session", session.ID(), "error", err)
		return zero, err
	}

	result, err = apply(ctx, session, work)
	if err != nil {
		if rbErr := session.Rollback(); rbErr != nil {
			err = withCleanup(op, session, err, errors.Wrap(rbErr, "rollback"))
		}
		if !isBusinessError(err) {
			err = newOperationError(op, session, err)
			logger.Error("Unit of work failed", "op", op, "session", session.ID(), "error", err)
		}
		return zero, err
	}

	if err = session.Commit(); err != nil {
		err = newOperationError(op, session, errors.Wrap(err, "commit"))
		logger.Error("Unit of work failed", "op", op, "session", session.ID(), "error", err)
		return zero, err
	}
	return result, nil
}

// apply runs work and rolls the transaction back before re-raising a panic.
func apply[R any](ctx context.Context, session database.Session, work Work[R]) (R, error) {
	panicked := true
	defer func() {
		if panicked && session.InTransaction() {
			_ = session.Rollback()
		}
	}()
	result, err := work.Apply(ctx, session)
	panicked = false
	return result, err
}
