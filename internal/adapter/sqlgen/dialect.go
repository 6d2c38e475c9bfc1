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

// Package sqlgen lowers the query algebra and model metadata into dialect
// specific SQL. Everything here is a pure function over its inputs so the
// lowering rules are testable without a database server.
package sqlgen

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/quickodm/quickodm/odmerr"
	"github.com/quickodm/quickodm/schema"
	"github.com/quickodm/quickodm/value"
)

// Dialect selects the SQL flavor of a relational backend.
type Dialect int

const (
	SQLite Dialect = iota
	MySQL
	Postgres
)

func (d Dialect) String() string {
	switch d {
	case SQLite:
		return "sqlite"
	case MySQL:
		return "mysql"
	case Postgres:
		return "postgres"
	}
	return "unknown"
}

// Placeholder renders the n-th (1-based) bind placeholder.
func (d Dialect) Placeholder(n int) string {
	if d == Postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// QuoteIdent quotes a table or column identifier.
func (d Dialect) QuoteIdent(name string) string {
	if d == MySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

const (
	mysqlDatetimeLayout = "2006-01-02 15:04:05.000000"
	// Fixed fraction width keeps lexical order equal to instant order for
	// text-stored datetimes.
	sqliteDatetimeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// bind converts v into a driver argument for the dialect, honoring the field
// definition when one is known. The returned cast suffix, when non-empty, is
// appended to the placeholder (PostgreSQL UUID casts).
func bind(d Dialect, field string, def *schema.FieldDefinition, v value.Value) (arg any, cast string, err error) {
	if def != nil {
		cv, cerr := schema.Coerce(v, def.Type)
		if cerr != nil {
			return nil, "", odmerr.Validation(field, cerr.Error())
		}
		v = cv
	}
	switch v.Kind() {
	case value.KindNull:
		return nil, "", nil
	case value.KindBool:
		b, _ := v.AsBool()
		return b, "", nil
	case value.KindInt:
		i, _ := v.AsInt()
		return i, "", nil
	case value.KindFloat:
		f, _ := v.AsFloat()
		return f, "", nil
	case value.KindString:
		s, _ := v.AsString()
		// A textual UUID against a declared UUID column gets parsed here so
		// a malformed literal fails as validation, not inside the driver.
		if def != nil && def.Type.Kind == schema.FieldUUID {
			u, perr := uuid.Parse(s)
			if perr != nil {
				return nil, "", odmerr.Validation(field, fmt.Sprintf("%q is not a valid uuid", s))
			}
			if d == Postgres {
				return u.String(), "::uuid", nil
			}
			return u.String(), "", nil
		}
		return s, "", nil
	case value.KindBytes:
		bs, _ := v.AsBytes()
		return bs, "", nil
	case value.KindDateTime:
		t, _ := v.AsTime()
		switch d {
		case Postgres:
			return t, "", nil
		case MySQL:
			return t.UTC().Format(mysqlDatetimeLayout), "", nil
		default:
			return t.UTC().Format(sqliteDatetimeLayout), "", nil
		}
	case value.KindUUID:
		u, _ := v.AsUUID()
		if d == Postgres {
			return u.String(), "::uuid", nil
		}
		return u.String(), "", nil
	case value.KindArray:
		arr, _ := v.AsArray()
		text, aerr := value.EncodeArrayText(arr)
		if aerr != nil {
			return nil, "", odmerr.Validation(field, aerr.Error())
		}
		return text, "", nil
	case value.KindObject, value.KindJSON:
		return jsonText(v)
	default:
		return nil, "", odmerr.Validation(field, fmt.Sprintf("kind %s cannot be bound", v.Kind()))
	}
}

func jsonText(v value.Value) (any, string, error) {
	if raw, ok := v.AsJSON(); ok {
		return string(raw), "", nil
	}
	text, err := marshalJSON(value.ToAny(v))
	if err != nil {
		return nil, "", err
	}
	return text, "", nil
}

// escapeLike escapes the LIKE metacharacters in a literal operand. Backslash
// is the escape character on every dialect we emit (SQLite gets an explicit
// ESCAPE clause).
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

func likeSuffix(d Dialect) string {
	if d == SQLite {
		return ` ESCAPE '\'`
	}
	return ""
}
