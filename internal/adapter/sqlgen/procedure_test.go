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
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/quickodm/quickodm/procedure"
	"github.com/quickodm/quickodm/query"
	"github.com/quickodm/quickodm/schema"
	"github.com/quickodm/quickodm/value"
)

func joinConfig(t *testing.T) *procedure.Config {
	t.Helper()
	users := &schema.ModelMeta{Collection: "users", Fields: []schema.Field{
		{Name: "name", Def: schema.StringField(nil, nil, "")},
	}}
	orders := &schema.ModelMeta{Collection: "orders", Fields: []schema.Field{
		{Name: "user_id", Def: schema.ReferenceField("users")},
		{Name: "amount", Def: schema.FloatField(nil, nil)},
	}}
	cfg, err := procedure.NewBuilder("user_orders", "main").
		WithDependency(users).
		WithJoin(orders, "users.id", "orders.user_id", procedure.Left).
		WithField("user_id", "users.id").
		WithField("user_name", "users.name").
		WithField("order_amount", "orders.amount").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return cfg
}

func TestBuildProcedureTemplate(t *testing.T) {
	template, err := BuildProcedureTemplate(joinConfig(t))
	if err != nil {
		t.Fatalf("BuildProcedureTemplate: %v", err)
	}
	for _, frag := range []string{
		"FROM users",
		"LEFT JOIN orders ON users.id = orders.user_id",
		"orders.amount AS order_amount",
		"{WHERE}", "{GROUP_BY}", "{HAVING}", "{ORDER_BY}", "{LIMIT}", "{OFFSET}",
	} {
		if !strings.Contains(template, frag) {
			t.Errorf("template missing %q:\n%s", frag, template)
		}
	}
}

func TestFillProcedureTemplate(t *testing.T) {
	template, err := BuildProcedureTemplate(joinConfig(t))
	if err != nil {
		t.Fatalf("BuildProcedureTemplate: %v", err)
	}
	stmt, err := FillProcedureTemplate(Postgres, template,
		[]query.Condition{query.Cond("order_amount", query.Gt, value.Float(100))},
		query.Options{Sort: []query.SortSpec{{Field: "user_name", Dir: query.Asc}}, Limit: 20, Offset: 40},
	)
	if err != nil {
		t.Fatalf("FillProcedureTemplate: %v", err)
	}
	for _, frag := range []string{
		`WHERE "order_amount" > $1`,
		`ORDER BY "user_name" ASC`,
		"LIMIT 20",
		"OFFSET 40",
	} {
		if !strings.Contains(stmt.SQL, frag) {
			t.Errorf("filled SQL missing %q:\n%s", frag, stmt.SQL)
		}
	}
	if strings.Contains(stmt.SQL, "{") {
		t.Errorf("unfilled placeholder remains:\n%s", stmt.SQL)
	}
	if diff := cmp.Diff([]any{float64(100)}, stmt.Args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}

// The same template serves many variants; an empty call fills every
// placeholder with nothing.
func TestFillProcedureTemplateEmptyCall(t *testing.T) {
	template, err := BuildProcedureTemplate(joinConfig(t))
	if err != nil {
		t.Fatalf("BuildProcedureTemplate: %v", err)
	}
	stmt, err := FillProcedureTemplate(SQLite, template, nil, query.Options{})
	if err != nil {
		t.Fatalf("FillProcedureTemplate: %v", err)
	}
	if strings.Contains(stmt.SQL, "{") || strings.Contains(stmt.SQL, "WHERE") {
		t.Errorf("empty call should leave a bare select:\n%s", stmt.SQL)
	}
	if len(stmt.Args) != 0 {
		t.Errorf("empty call binds nothing, got %v", stmt.Args)
	}
}
