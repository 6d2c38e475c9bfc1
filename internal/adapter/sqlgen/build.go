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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/quickodm/quickodm/config"
	"github.com/quickodm/quickodm/odmerr"
	"github.com/quickodm/quickodm/query"
	"github.com/quickodm/quickodm/schema"
	"github.com/quickodm/quickodm/value"
)

// Statement is a parameterized SQL statement with positional binds.
type Statement struct {
	SQL  string
	Args []any
}

// FieldResolver looks up the definition of a queried field. It returns false
// for fields the lowering should bind generically (procedure expressions, the
// id column).
type FieldResolver func(name string) (*schema.FieldDefinition, bool)

// IDFieldDef synthesizes the definition of the id column for an identifier
// strategy: integer for backend-issued ids, uuid for the uuid strategy, and
// text for object-id and snowflake ids.
func IDFieldDef(ids config.IDStrategyKind) *schema.FieldDefinition {
	switch ids {
	case config.AutoIncrement:
		return &schema.FieldDefinition{Type: schema.FieldType{Kind: schema.FieldInteger}}
	case config.UUIDStrategy:
		return &schema.FieldDefinition{Type: schema.FieldType{Kind: schema.FieldUUID}}
	case config.ObjectID, config.Snowflake:
		return &schema.FieldDefinition{Type: schema.FieldType{Kind: schema.FieldString}}
	}
	return nil
}

// Resolver resolves a model's declared fields plus the id column per the
// alias's identifier strategy.
func Resolver(meta *schema.ModelMeta, ids config.IDStrategyKind) FieldResolver {
	return func(name string) (*schema.FieldDefinition, bool) {
		if def, ok := meta.Field(name); ok {
			return &def, true
		}
		if name == schema.IDField {
			if def := IDFieldDef(ids); def != nil {
				return def, true
			}
		}
		return nil, false
	}
}

type binder struct {
	d    Dialect
	args []any
	n    int
}

func (b *binder) add(arg any, cast string) string {
	b.n++
	b.args = append(b.args, arg)
	return b.d.Placeholder(b.n) + cast
}

func marshalJSON(x any) (string, error) {
	out, err := json.Marshal(x)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Where lowers conditions into a predicate without the leading WHERE keyword.
// An empty condition list returns "".
func (b *binder) where(resolve FieldResolver, conds []query.Condition) (string, error) {
	if len(conds) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(conds))
	for _, c := range conds {
		p, err := b.condition(resolve, c)
		if err != nil {
			return "", err
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, " AND "), nil
}

func (b *binder) condition(resolve FieldResolver, c query.Condition) (string, error) {
	var def *schema.FieldDefinition
	if resolve != nil {
		def, _ = resolve(c.Field)
	}
	col := b.d.QuoteIdent(c.Field)

	switch c.Op {
	case query.Eq, query.Ne, query.Lt, query.Lte, query.Gt, query.Gte:
		arg, cast, err := bind(b.d, c.Field, def, c.Value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s %s", col, sqlCmp(c.Op), b.add(arg, cast)), nil

	case query.In, query.NotIn:
		return b.inList(col, c, def)

	case query.Contains, query.StartsWith, query.EndsWith:
		return b.match(col, c, def)

	case query.Exists:
		want, ok := c.Value.AsBool()
		if !ok {
			return "", odmerr.Validation(c.Field, "exists operator requires a boolean operand")
		}
		if want {
			return col + " IS NOT NULL", nil
		}
		return col + " IS NULL", nil

	case query.Regex:
		s, ok := c.Value.AsString()
		if !ok {
			return "", odmerr.Validation(c.Field, "regex operator requires a string operand")
		}
		switch b.d {
		case MySQL:
			return fmt.Sprintf("%s REGEXP %s", col, b.add(s, "")), nil
		case Postgres:
			return fmt.Sprintf("%s ~ %s", col, b.add(s, "")), nil
		default:
			return "", odmerr.Unsupported("regex", b.d.String())
		}

	default:
		return "", odmerr.Validation(c.Field, fmt.Sprintf("operator %s is not lowerable", c.Op))
	}
}

func sqlCmp(op query.Operator) string {
	switch op {
	case query.Eq:
		return "="
	case query.Ne:
		return "<>"
	case query.Lt:
		return "<"
	case query.Lte:
		return "<="
	case query.Gt:
		return ">"
	case query.Gte:
		return ">="
	}
	return "="
}

// inList lowers In/NotIn. An empty In list is a constant-false predicate so
// every backend uniformly returns zero rows; an empty NotIn excludes nothing.
func (b *binder) inList(col string, c query.Condition, def *schema.FieldDefinition) (string, error) {
	elems, ok := c.Value.AsArray()
	if !ok {
		return "", odmerr.Validation(c.Field, "in operator requires an array operand")
	}
	if len(elems) == 0 {
		if c.Op == query.In {
			return "1 = 0", nil
		}
		return "1 = 1", nil
	}
	var elemDef *schema.FieldDefinition
	if def != nil {
		if def.Type.Kind == schema.FieldArray && def.Type.Element != nil {
			elemDef = &schema.FieldDefinition{Type: *def.Type.Element}
		} else {
			elemDef = def
		}
	}
	phs := make([]string, len(elems))
	for i, e := range elems {
		arg, cast, err := bind(b.d, c.Field, elemDef, e)
		if err != nil {
			return "", err
		}
		phs[i] = b.add(arg, cast)
	}
	kw := "IN"
	if c.Op == query.NotIn {
		kw = "NOT IN"
	}
	return fmt.Sprintf("%s %s (%s)", col, kw, strings.Join(phs, ", ")), nil
}

// match lowers Contains/StartsWith/EndsWith. On array fields all three mean
// element membership against the quoted-element encoding; on strings they are
// case-sensitive LIKE predicates.
func (b *binder) match(col string, c query.Condition, def *schema.FieldDefinition) (string, error) {
	if def != nil && def.Type.Kind == schema.FieldArray {
		repr, err := value.ElementRepr(c.Value)
		if err != nil {
			return "", odmerr.Validation(c.Field, err.Error())
		}
		quoted, err := marshalJSON(repr)
		if err != nil {
			return "", err
		}
		// The stored encoding quotes every element, so the pattern carries the
		// quotes too and a 1 can never match a stored 12.
		pattern := "%" + escapeLike(quoted) + "%"
		return fmt.Sprintf("%s LIKE %s%s", col, b.add(pattern, ""), likeSuffix(b.d)), nil
	}

	s, ok := c.Value.AsString()
	if !ok {
		return "", odmerr.Validation(c.Field, fmt.Sprintf("%s requires a string operand", c.Op))
	}
	var pattern string
	switch c.Op {
	case query.Contains:
		pattern = "%" + escapeLike(s) + "%"
	case query.StartsWith:
		pattern = escapeLike(s) + "%"
	case query.EndsWith:
		pattern = "%" + escapeLike(s)
	}
	return fmt.Sprintf("%s LIKE %s%s", col, b.add(pattern, ""), likeSuffix(b.d)), nil
}

func projection(d Dialect, opts query.Options) string {
	if len(opts.Projection) == 0 {
		return "*"
	}
	cols := make([]string, len(opts.Projection))
	for i, f := range opts.Projection {
		cols[i] = d.QuoteIdent(f)
	}
	return strings.Join(cols, ", ")
}

func orderBy(d Dialect, sort []query.SortSpec) string {
	if len(sort) == 0 {
		return ""
	}
	keys := make([]string, len(sort))
	for i, s := range sort {
		dir := "ASC"
		if s.Dir == query.Desc {
			dir = "DESC"
		}
		keys[i] = d.QuoteIdent(s.Field) + " " + dir
	}
	return " ORDER BY " + strings.Join(keys, ", ")
}

// limitOffset renders pagination. Limit 0 means unbounded; dialects that
// cannot express OFFSET without LIMIT get their no-limit sentinel.
func limitOffset(d Dialect, opts query.Options) string {
	if opts.Limit <= 0 && opts.Offset <= 0 {
		return ""
	}
	var sb strings.Builder
	switch {
	case opts.Limit > 0:
		fmt.Fprintf(&sb, " LIMIT %d", opts.Limit)
	case d == SQLite:
		sb.WriteString(" LIMIT -1")
	case d == MySQL:
		sb.WriteString(" LIMIT 18446744073709551615")
	}
	if opts.Offset > 0 {
		fmt.Fprintf(&sb, " OFFSET %d", opts.Offset)
	}
	return sb.String()
}

// BuildSelect lowers a find into a parameterized SELECT.
func BuildSelect(d Dialect, meta *schema.ModelMeta, ids config.IDStrategyKind, conds []query.Condition, opts query.Options) (Statement, error) {
	b := &binder{d: d}
	where, err := b.where(Resolver(meta, ids), conds)
	if err != nil {
		return Statement{}, err
	}
	sql := fmt.Sprintf("SELECT %s FROM %s", projection(d, opts), d.QuoteIdent(meta.Collection))
	if where != "" {
		sql += " WHERE " + where
	}
	sql += orderBy(d, opts.Sort)
	sql += limitOffset(d, opts)
	return Statement{SQL: sql, Args: b.args}, nil
}

// BuildSelectByID lowers a primary-key lookup.
func BuildSelectByID(d Dialect, meta *schema.ModelMeta, ids config.IDStrategyKind, id value.Value) (Statement, error) {
	b := &binder{d: d}
	def, _ := Resolver(meta, ids)(schema.IDField)
	arg, cast, err := bind(d, schema.IDField, def, id)
	if err != nil {
		return Statement{}, err
	}
	sql := fmt.Sprintf("SELECT * FROM %s WHERE %s = %s",
		d.QuoteIdent(meta.Collection), d.QuoteIdent(schema.IDField), b.add(arg, cast))
	return Statement{SQL: sql, Args: b.args}, nil
}

// BuildInsert lowers an insert over the record's populated fields in declared
// order. returning, when non-empty, appends a RETURNING clause (PostgreSQL
// backend-issued ids).
func BuildInsert(d Dialect, meta *schema.ModelMeta, ids config.IDStrategyKind, record value.Object, returning string) (Statement, error) {
	b := &binder{d: d}
	var cols, phs []string

	appendField := func(name string, def *schema.FieldDefinition) error {
		v, ok := record[name]
		if !ok || v.IsNull() {
			return nil
		}
		arg, cast, err := bind(d, name, def, v)
		if err != nil {
			return err
		}
		cols = append(cols, d.QuoteIdent(name))
		phs = append(phs, b.add(arg, cast))
		return nil
	}

	if err := appendField(schema.IDField, IDFieldDef(ids)); err != nil {
		return Statement{}, err
	}
	for _, f := range meta.Fields {
		if f.Name == schema.IDField {
			continue
		}
		def := f.Def
		if err := appendField(f.Name, &def); err != nil {
			return Statement{}, err
		}
	}
	if len(cols) == 0 {
		return Statement{}, odmerr.Validation(meta.Collection, "insert has no populated fields")
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.QuoteIdent(meta.Collection), strings.Join(cols, ", "), strings.Join(phs, ", "))
	if returning != "" {
		sql += " RETURNING " + d.QuoteIdent(returning)
	}
	return Statement{SQL: sql, Args: b.args}, nil
}

// BuildUpdate lowers a patch update. Patch fields are validated against the
// schema; the id column cannot be patched.
func BuildUpdate(d Dialect, meta *schema.ModelMeta, ids config.IDStrategyKind, conds []query.Condition, patch value.Object) (Statement, error) {
	b := &binder{d: d}
	var sets []string
	for _, f := range meta.Fields {
		if f.Name == schema.IDField {
			continue
		}
		v, ok := patch[f.Name]
		if !ok {
			continue
		}
		def := f.Def
		arg, cast, err := bind(d, f.Name, &def, v)
		if err != nil {
			return Statement{}, err
		}
		sets = append(sets, fmt.Sprintf("%s = %s", d.QuoteIdent(f.Name), b.add(arg, cast)))
	}
	if len(sets) == 0 {
		return Statement{}, odmerr.Validation(meta.Collection, "update patch is empty")
	}
	for name := range patch {
		if name == schema.IDField {
			return Statement{}, odmerr.Validation(schema.IDField, "identifier cannot be patched")
		}
		if _, ok := meta.Field(name); !ok {
			return Statement{}, odmerr.Validation(name, fmt.Sprintf("field is not declared on model %q", meta.Collection))
		}
	}
	where, err := b.where(Resolver(meta, ids), conds)
	if err != nil {
		return Statement{}, err
	}
	sql := fmt.Sprintf("UPDATE %s SET %s", d.QuoteIdent(meta.Collection), strings.Join(sets, ", "))
	if where != "" {
		sql += " WHERE " + where
	}
	return Statement{SQL: sql, Args: b.args}, nil
}

// BuildDelete lowers a conditional delete.
func BuildDelete(d Dialect, meta *schema.ModelMeta, ids config.IDStrategyKind, conds []query.Condition) (Statement, error) {
	b := &binder{d: d}
	where, err := b.where(Resolver(meta, ids), conds)
	if err != nil {
		return Statement{}, err
	}
	sql := "DELETE FROM " + d.QuoteIdent(meta.Collection)
	if where != "" {
		sql += " WHERE " + where
	}
	return Statement{SQL: sql, Args: b.args}, nil
}

// BuildCount lowers a conditional count.
func BuildCount(d Dialect, meta *schema.ModelMeta, ids config.IDStrategyKind, conds []query.Condition) (Statement, error) {
	b := &binder{d: d}
	where, err := b.where(Resolver(meta, ids), conds)
	if err != nil {
		return Statement{}, err
	}
	sql := "SELECT COUNT(*) FROM " + d.QuoteIdent(meta.Collection)
	if where != "" {
		sql += " WHERE " + where
	}
	return Statement{SQL: sql, Args: b.args}, nil
}

// BuildTableExists probes the catalog for a table name.
func BuildTableExists(d Dialect, table string) Statement {
	switch d {
	case MySQL:
		return Statement{
			SQL:  "SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?",
			Args: []any{table},
		}
	case Postgres:
		return Statement{
			SQL:  "SELECT tablename FROM pg_tables WHERE schemaname = 'public' AND tablename = $1",
			Args: []any{table},
		}
	default:
		return Statement{
			SQL:  "SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
			Args: []any{table},
		}
	}
}
