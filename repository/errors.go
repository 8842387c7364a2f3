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
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/tomoncle/gendao/database"
	"go.uber.org/multierr"
)

var (
	// ErrInvalidArgument is returned for a nil entity or an unknown field.
	ErrInvalidArgument = errors.New("repository: invalid argument")

	// ErrNotFound is returned when deleting an identifier with no row.
	ErrNotFound = errors.New("repository: entity not found")

	// ErrOperationFailed matches every *OperationError.
	ErrOperationFailed = errors.New("repository: operation failed")
)

// OperationError reports a failed unit of work. Err is the first failure
// and is what errors.Unwrap returns; Cleanup holds rollback or session
// release failures that happened afterwards.
type OperationError struct {
	Op        string
	SessionID string
	Kind      database.SQLError
	Err       error
	Cleanup   error
}

func (e *OperationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "repository: %s failed", e.Op)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.Cleanup != nil {
		b.WriteString(" (cleanup: ")
		b.WriteString(e.Cleanup.Error())
		b.WriteString(")")
	}
	return b.String()
}

func (e *OperationError) Unwrap() error { return e.Err }

func (e *OperationError) Is(target error) bool { return target == ErrOperationFailed }

// IsInvalidArgument reports whether err is or wraps ErrInvalidArgument.
func IsInvalidArgument(err error) bool { return errors.Is(err, ErrInvalidArgument) }

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsOperationFailed reports whether err came from a failed unit of work.
func IsOperationFailed(err error) bool { return errors.Is(err, ErrOperationFailed) }

func isBusinessError(err error) bool {
	return errors.Is(err, ErrInvalidArgument) || errors.Is(err, ErrNotFound)
}

func newOperationError(op string, session database.Session, err error) *OperationError {
	var oe *OperationError
	if errors.As(err, &oe) {
		return oe
	}
	e := &OperationError{Op: op, Err: err}
	if session != nil {
		e.SessionID = session.ID()
	}
	_, e.Kind = database.IsSqlError(err)
	return e
}

// withCleanup attaches a cleanup failure to err without replacing it.
func withCleanup(op string, session database.Session, err, cleanup error) error {
	if cleanup == nil {
		return err
	}
	if err == nil {
		return newOperationError(op, session, cleanup)
	}
	oe := newOperationError(op, session, err)
	oe.Cleanup = multierr.Append(oe.Cleanup, cleanup)
	return oe
}
