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

package sqlgen

import (
	"fmt"
	"strings"

	"github.com/quickodm/quickodm/config"
	"github.com/quickodm/quickodm/schema"
)

// idColumn renders the primary-key column for the identifier strategy.
func idColumn(d Dialect, ids config.IDStrategyKind) string {
	if ids == config.AutoIncrement {
		switch d {
		case MySQL:
			return "BIGINT PRIMARY KEY AUTO_INCREMENT"
		case Postgres:
			return "BIGSERIAL PRIMARY KEY"
		default:
			return "INTEGER PRIMARY KEY AUTOINCREMENT"
		}
	}
	if ids == config.UUIDStrategy && d == Postgres {
		return "UUID PRIMARY KEY"
	}
	// MySQL cannot index an unbounded TEXT key; string strategies get a
	// bounded varchar there.
	if d == MySQL {
		return "VARCHAR(64) PRIMARY KEY"
	}
	return "TEXT PRIMARY KEY"
}

// columnType renders the storage type of a declared field.
func columnType(d Dialect, t schema.FieldType) string {
	switch t.Kind {
	case schema.FieldString:
		if t.MaxLength != nil && d != SQLite {
			return fmt.Sprintf("VARCHAR(%d)", *t.MaxLength)
		}
		return "TEXT"
	case schema.FieldInteger:
		if d == SQLite {
			return "INTEGER"
		}
		return "BIGINT"
	case schema.FieldFloat:
		switch d {
		case Postgres:
			return "DOUBLE PRECISION"
		case MySQL:
			return "DOUBLE"
		default:
			return "REAL"
		}
	case schema.FieldBoolean:
		if d == SQLite {
			return "INTEGER"
		}
		return "BOOLEAN"
	case schema.FieldDateTime:
		switch d {
		case Postgres:
			return "TIMESTAMP WITH TIME ZONE"
		case MySQL:
			return "DATETIME(6)"
		default:
			// RFC3339 text; lexical order equals instant order in UTC.
			return "TEXT"
		}
	case schema.FieldUUID:
		if d == Postgres {
			return "UUID"
		}
		return "CHAR(36)"
	case schema.FieldBytes:
		if d == Postgres {
			return "BYTEA"
		}
		return "BLOB"
	case schema.FieldArray, schema.FieldObject, schema.FieldJSON:
		switch d {
		case Postgres:
			return "JSONB"
		case MySQL:
			return "JSON"
		default:
			return "TEXT"
		}
	case schema.FieldReference:
		if d == MySQL {
			return "VARCHAR(64)"
		}
		return "TEXT"
	default:
		return "TEXT"
	}
}

// BuildCreateTable synthesizes the CREATE TABLE statement for a model. The
// id column comes first, typed by the identifier strategy; remaining columns
// follow declaration order.
func BuildCreateTable(d Dialect, meta *schema.ModelMeta, ids config.IDStrategyKind) string {
	cols := []string{d.QuoteIdent(schema.IDField) + " " + idColumn(d, ids)}
	for _, f := range meta.Fields {
		if f.Name == schema.IDField {
			continue
		}
		col := d.QuoteIdent(f.Name) + " " + columnType(d, f.Def.Type)
		if f.Def.Required {
			col += " NOT NULL"
		}
		if f.Def.Unique {
			col += " UNIQUE"
		}
		cols = append(cols, col)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		d.QuoteIdent(meta.Collection), strings.Join(cols, ", "))
}

// BuildCreateIndexes synthesizes index statements in declared order: first
// the composite indexes, then single-field indexes for fields flagged
// indexed. MySQL has no IF NOT EXISTS for indexes; the adapter tolerates the
// duplicate-index error instead.
func BuildCreateIndexes(d Dialect, meta *schema.ModelMeta) []string {
	ifNotExists := "IF NOT EXISTS "
	if d == MySQL {
		ifNotExists = ""
	}
	var stmts []string
	emit := func(name string, fields []string, unique bool) {
		cols := make([]string, len(fields))
		for i, f := range fields {
			cols[i] = d.QuoteIdent(f)
		}
		kw := "INDEX"
		if unique {
			kw = "UNIQUE INDEX"
		}
		stmts = append(stmts, fmt.Sprintf("CREATE %s %s%s ON %s (%s)",
			kw, ifNotExists, d.QuoteIdent(name), d.QuoteIdent(meta.Collection), strings.Join(cols, ", ")))
	}
	for _, idx := range meta.Indexes {
		name := idx.Name
		if name == "" {
			name = fmt.Sprintf("idx_%s_%s", meta.Collection, strings.Join(idx.Fields, "_"))
		}
		emit(name, idx.Fields, idx.Unique)
	}
	for _, f := range meta.Fields {
		if f.Def.Indexed && !f.Def.Unique {
			emit(fmt.Sprintf("idx_%s_%s", meta.Collection, f.Name), []string{f.Name}, false)
		}
	}
	return stmts
}
