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
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/quickodm/quickodm/config"
	"github.com/quickodm/quickodm/odmerr"
	"github.com/quickodm/quickodm/query"
	"github.com/quickodm/quickodm/schema"
	"github.com/quickodm/quickodm/value"
)

func intPtr(i int) *int { return &i }

func userMeta() *schema.ModelMeta {
	return &schema.ModelMeta{
		Collection: "users",
		Fields: []schema.Field{
			{Name: "name", Def: schema.StringField(intPtr(100), nil, "").WithRequired()},
			{Name: "age", Def: schema.IntegerField(nil, nil)},
			{Name: "email", Def: schema.StringField(nil, nil, "").WithUnique()},
			{Name: "created_at", Def: schema.DateTimeField("")},
			{Name: "tags", Def: schema.ArrayField(schema.FieldType{Kind: schema.FieldString}, nil, nil)},
			{Name: "scores", Def: schema.ArrayField(schema.FieldType{Kind: schema.FieldInteger}, nil, nil)},
		},
	}
}

func TestPlaceholders(t *testing.T) {
	if got := SQLite.Placeholder(3); got != "?" {
		t.Errorf("sqlite placeholder = %q", got)
	}
	if got := Postgres.Placeholder(3); got != "$3" {
		t.Errorf("postgres placeholder = %q", got)
	}
}

func TestBuildSelectSimple(t *testing.T) {
	stmt, err := BuildSelect(SQLite, userMeta(), config.UUIDStrategy,
		[]query.Condition{query.Cond("age", query.Gte, value.Int(18))},
		query.Options{Sort: []query.SortSpec{{Field: "name", Dir: query.Desc}}, Limit: 10, Offset: 5},
	)
	if err != nil {
		t.Fatalf("BuildSelect: %v", err)
	}
	want := `SELECT * FROM "users" WHERE "age" >= ? ORDER BY "name" DESC LIMIT 10 OFFSET 5`
	if stmt.SQL != want {
		t.Errorf("SQL = %s, want %s", stmt.SQL, want)
	}
	if diff := cmp.Diff([]any{int64(18)}, stmt.Args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestEmptyInIsConstantFalse(t *testing.T) {
	for _, d := range []Dialect{SQLite, MySQL, Postgres} {
		stmt, err := BuildSelect(d, userMeta(), config.UUIDStrategy,
			[]query.Condition{query.Cond("age", query.In, value.Array())}, query.Options{})
		if err != nil {
			t.Fatalf("%s: %v", d, err)
		}
		if !strings.Contains(stmt.SQL, "1 = 0") {
			t.Errorf("%s: empty In should lower to constant false, got %s", d, stmt.SQL)
		}
		if len(stmt.Args) != 0 {
			t.Errorf("%s: empty In should bind nothing", d)
		}
	}
}

// Datetime range predicates accept both instants and RFC3339 strings and
// bind the column's stored form.
func TestDatetimeRangeLowering(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		operand value.Value
	}{
		{"instant", value.Time(base.Add(4 * time.Hour))},
		{"rfc3339 string", value.String("2024-06-01T04:00:00Z")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			stmt, err := BuildSelect(SQLite, userMeta(), config.AutoIncrement,
				[]query.Condition{query.Cond("created_at", query.Gte, tc.operand)}, query.Options{})
			if err != nil {
				t.Fatalf("BuildSelect: %v", err)
			}
			want := []any{"2024-06-01T04:00:00.000000000Z"}
			if diff := cmp.Diff(want, stmt.Args); diff != "" {
				t.Errorf("args mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPostgresUUIDCast(t *testing.T) {
	meta := &schema.ModelMeta{
		Collection: "users",
		Fields: []schema.Field{
			{Name: "name", Def: schema.StringField(nil, nil, "")},
		},
	}
	stmt, err := BuildSelectByID(Postgres, meta, config.UUIDStrategy,
		value.String("550e8400-e29b-41d4-a716-446655440000"))
	if err != nil {
		t.Fatalf("BuildSelectByID: %v", err)
	}
	if !strings.Contains(stmt.SQL, "$1::uuid") {
		t.Errorf("expected uuid cast, got %s", stmt.SQL)
	}

	_, err = BuildSelectByID(Postgres, meta, config.UUIDStrategy, value.String("not-a-uuid"))
	if !odmerr.IsKind(err, odmerr.KindValidation) {
		t.Errorf("malformed uuid should fail validation, got %v", err)
	}
	var oe *odmerr.Error
	if errors.As(err, &oe) && oe.Field != schema.IDField {
		t.Errorf("validation error field = %q, want id", oe.Field)
	}
}

// Array membership predicates wrap the probe in its quoted form so numeric
// prefixes cannot false-positive.
func TestArrayMembershipPattern(t *testing.T) {
	stmt, err := BuildSelect(SQLite, userMeta(), config.AutoIncrement,
		[]query.Condition{query.Cond("scores", query.Contains, value.Int(1))}, query.Options{})
	if err != nil {
		t.Fatalf("BuildSelect: %v", err)
	}
	if !strings.Contains(stmt.SQL, `"scores" LIKE ?`) {
		t.Errorf("expected LIKE predicate, got %s", stmt.SQL)
	}
	if diff := cmp.Diff([]any{`%"1"%`}, stmt.Args); diff != "" {
		t.Errorf("pattern mismatch (-want +got):\n%s", diff)
	}
}

func TestStringMatchOperators(t *testing.T) {
	tests := []struct {
		op   query.Operator
		want string
	}{
		{query.Contains, "%ru%"},
		{query.StartsWith, "ru%"},
		{query.EndsWith, "%ru"},
	}
	for _, tc := range tests {
		t.Run(tc.op.String(), func(t *testing.T) {
			stmt, err := BuildSelect(MySQL, userMeta(), config.AutoIncrement,
				[]query.Condition{query.Cond("name", tc.op, value.String("ru"))}, query.Options{})
			if err != nil {
				t.Fatalf("BuildSelect: %v", err)
			}
			if diff := cmp.Diff([]any{tc.want}, stmt.Args); diff != "" {
				t.Errorf("pattern mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLikeOperandsAreEscaped(t *testing.T) {
	stmt, err := BuildSelect(SQLite, userMeta(), config.AutoIncrement,
		[]query.Condition{query.Cond("name", query.Contains, value.String("50%_off"))}, query.Options{})
	if err != nil {
		t.Fatalf("BuildSelect: %v", err)
	}
	if diff := cmp.Diff([]any{`%50\%\_off%`}, stmt.Args); diff != "" {
		t.Errorf("pattern mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(stmt.SQL, `ESCAPE '\'`) {
		t.Errorf("sqlite LIKE needs an explicit escape clause: %s", stmt.SQL)
	}
}

func TestRegexUnsupportedOnSQLite(t *testing.T) {
	_, err := BuildSelect(SQLite, userMeta(), config.AutoIncrement,
		[]query.Condition{query.Cond("name", query.Regex, value.String("^a"))}, query.Options{})
	if !odmerr.IsKind(err, odmerr.KindUnsupported) {
		t.Errorf("expected unsupported error, got %v", err)
	}
}

func TestBuildInsertOrdersColumns(t *testing.T) {
	record := value.Object{
		"id":   value.String("abc"),
		"age":  value.Int(30),
		"name": value.String("ada"),
	}
	stmt, err := BuildInsert(SQLite, userMeta(), config.Snowflake, record, "")
	if err != nil {
		t.Fatalf("BuildInsert: %v", err)
	}
	want := `INSERT INTO "users" ("id", "name", "age") VALUES (?, ?, ?)`
	if stmt.SQL != want {
		t.Errorf("SQL = %s, want %s", stmt.SQL, want)
	}
}

func TestBuildInsertReturning(t *testing.T) {
	stmt, err := BuildInsert(Postgres, userMeta(), config.AutoIncrement,
		value.Object{"name": value.String("ada")}, "id")
	if err != nil {
		t.Fatalf("BuildInsert: %v", err)
	}
	if !strings.HasSuffix(stmt.SQL, `RETURNING "id"`) {
		t.Errorf("missing returning clause: %s", stmt.SQL)
	}
}

func TestBuildUpdateRejectsIDPatch(t *testing.T) {
	_, err := BuildUpdate(SQLite, userMeta(), config.UUIDStrategy, nil,
		value.Object{"id": value.String("x"), "name": value.String("y")})
	if !odmerr.IsKind(err, odmerr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestCreateTableDDL(t *testing.T) {
	meta := userMeta()
	tests := []struct {
		name     string
		d        Dialect
		ids      config.IDStrategyKind
		contains []string
	}{
		{"sqlite autoincrement", SQLite, config.AutoIncrement, []string{
			`"id" INTEGER PRIMARY KEY AUTOINCREMENT`,
			`"name" TEXT NOT NULL`,
			`"email" TEXT UNIQUE`,
			`"created_at" TEXT`,
			`"tags" TEXT`,
		}},
		{"postgres uuid", Postgres, config.UUIDStrategy, []string{
			`"id" UUID PRIMARY KEY`,
			`"name" VARCHAR(100) NOT NULL`,
			`"created_at" TIMESTAMP WITH TIME ZONE`,
			`"tags" JSONB`,
		}},
		{"mysql snowflake", MySQL, config.Snowflake, []string{
			"`id` VARCHAR(64) PRIMARY KEY",
			"`age` BIGINT",
			"`created_at` DATETIME(6)",
			"`tags` JSON",
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ddl := BuildCreateTable(tc.d, meta, tc.ids)
			if !strings.HasPrefix(ddl, "CREATE TABLE IF NOT EXISTS") {
				t.Errorf("DDL must be idempotent: %s", ddl)
			}
			for _, frag := range tc.contains {
				if !strings.Contains(ddl, frag) {
					t.Errorf("DDL missing %q:\n%s", frag, ddl)
				}
			}
		})
	}
}

func TestCreateIndexes(t *testing.T) {
	meta := userMeta()
	meta.Indexes = []schema.IndexDefinition{
		{Fields: []string{"name", "age"}, Unique: true, Name: "uniq_name_age"},
	}
	meta.Fields[1].Def = meta.Fields[1].Def.WithIndexed()

	stmts := BuildCreateIndexes(SQLite, meta)
	if len(stmts) != 2 {
		t.Fatalf("got %d statements, want 2: %v", len(stmts), stmts)
	}
	if !strings.Contains(stmts[0], `CREATE UNIQUE INDEX IF NOT EXISTS "uniq_name_age"`) {
		t.Errorf("composite index malformed: %s", stmts[0])
	}
	if !strings.Contains(stmts[1], `"idx_users_age"`) {
		t.Errorf("single-field index malformed: %s", stmts[1])
	}

	mysqlStmts := BuildCreateIndexes(MySQL, meta)
	if strings.Contains(mysqlStmts[0], "IF NOT EXISTS") {
		t.Errorf("mysql does not support IF NOT EXISTS for indexes: %s", mysqlStmts[0])
	}
}
