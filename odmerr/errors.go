// Copyright 2025 The QuickODM Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package odmerr defines the uniform error taxonomy shared by every backend.
// Errors are kinds, never driver-native types: adapters map whatever their
// driver raises into one of these kinds before it crosses the bus.
package odmerr

import (
	"errors"
	"fmt"

	"github.com/quickodm/quickodm/internal/i18n"
)

// Kind is the stable identifier of an error class. Kinds are wire-visible and
// must not change between releases.
type Kind string

const (
	KindConnection      Kind = "connection"
	KindValidation      Kind = "validation"
	KindNotFound        Kind = "not_found"
	KindTableNotExist   Kind = "table_not_exist"
	KindDuplicateKey    Kind = "duplicate_key"
	KindQuery           Kind = "query"
	KindPoolExhausted   Kind = "pool_exhausted"
	KindConfig          Kind = "config"
	KindLockedOperation Kind = "locked_operation"
	KindUnsupported     Kind = "unsupported_on_backend"
)

// Error is the single error type surfaced by the ODM. Detail fields are
// populated per kind: Field for validation and duplicate-key errors, Table for
// table-missing errors, Op/Backend for unsupported operations.
type Error struct {
	Kind    Kind
	Field   string
	Table   string
	Op      string
	Backend string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches two taxonomy errors by kind, so callers can write
// errors.Is(err, &odmerr.Error{Kind: odmerr.KindNotFound}).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf extracts the taxonomy kind of err, or "" if err is not an ODM error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func Connection(alias string, cause error) *Error {
	return &Error{Kind: KindConnection, Message: i18n.T(i18n.KeyConnectionFailed, alias), Cause: cause}
}

func Validation(field, detail string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: i18n.T(i18n.KeyValidationFailed, field, detail)}
}

func NotFound() *Error {
	return &Error{Kind: KindNotFound, Message: i18n.T(i18n.KeyNotFound)}
}

func TableNotExist(table string) *Error {
	return &Error{Kind: KindTableNotExist, Table: table, Message: i18n.T(i18n.KeyTableNotExist, table)}
}

func DuplicateKey(field string) *Error {
	return &Error{Kind: KindDuplicateKey, Field: field, Message: i18n.T(i18n.KeyDuplicateKey, field)}
}

func Query(detail string, cause error) *Error {
	return &Error{Kind: KindQuery, Message: i18n.T(i18n.KeyQueryFailed, detail), Cause: cause}
}

func PoolExhausted(alias string) *Error {
	return &Error{Kind: KindPoolExhausted, Message: i18n.T(i18n.KeyPoolExhausted, alias)}
}

func Config(detail string) *Error {
	return &Error{Kind: KindConfig, Message: i18n.T(i18n.KeyConfigInvalid, detail)}
}

func LockedOperation() *Error {
	return &Error{Kind: KindLockedOperation, Message: i18n.T(i18n.KeyLockedOperation)}
}

func Unsupported(op, backend string) *Error {
	return &Error{Kind: KindUnsupported, Op: op, Backend: backend, Message: i18n.T(i18n.KeyUnsupported, op, backend)}
}

func UnknownAlias(alias string) *Error {
	return &Error{Kind: KindConfig, Message: i18n.T(i18n.KeyAliasUnknown, alias)}
}

func DuplicateAlias(alias string) *Error {
	return &Error{Kind: KindConfig, Message: i18n.T(i18n.KeyAliasDuplicate, alias)}
}
