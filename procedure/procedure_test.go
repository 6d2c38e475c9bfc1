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

package procedure

import (
	"errors"
	"testing"

	"github.com/quickodm/quickodm/odmerr"
	"github.com/quickodm/quickodm/schema"
)

func usersMeta() *schema.ModelMeta {
	return &schema.ModelMeta{Collection: "users", Fields: []schema.Field{
		{Name: "name", Def: schema.StringField(nil, nil, "")},
	}}
}

func TestBuilderAssemblesConfig(t *testing.T) {
	orders := &schema.ModelMeta{Collection: "orders", Fields: []schema.Field{
		{Name: "user_id", Def: schema.ReferenceField("users")},
	}}
	cfg, err := NewBuilder("user_orders", "main").
		WithDependency(usersMeta()).
		WithJoin(orders, "users.id", "orders.user_id", Inner).
		WithField("user_name", "users.name").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if cfg.BaseTable() != "users" {
		t.Errorf("BaseTable = %q, want users", cfg.BaseTable())
	}
	if len(cfg.Dependencies) != 2 || len(cfg.Joins) != 1 {
		t.Errorf("unexpected shape: %d deps, %d joins", len(cfg.Dependencies), len(cfg.Joins))
	}
	if cfg.Joins[0].Type.String() != "INNER JOIN" {
		t.Errorf("join type = %q", cfg.Joins[0].Type)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		wantField string
	}{
		{"empty name", Config{Database: "d", Fields: map[string]string{"a": "a"},
			Dependencies: []*schema.ModelMeta{usersMeta()}}, "procedure_name"},
		{"empty database", Config{Name: "p", Fields: map[string]string{"a": "a"},
			Dependencies: []*schema.ModelMeta{usersMeta()}}, "database"},
		{"no fields", Config{Name: "p", Database: "d",
			Dependencies: []*schema.ModelMeta{usersMeta()}}, "fields"},
		{"no dependencies", Config{Name: "p", Database: "d",
			Fields: map[string]string{"a": "a"}}, "dependencies"},
		{"empty join endpoint", Config{Name: "p", Database: "d",
			Fields:       map[string]string{"a": "a"},
			Dependencies: []*schema.ModelMeta{usersMeta()},
			Joins:        []Join{{Table: "orders", LocalField: "", ForeignField: "x"}}}, "join_fields"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			var oe *odmerr.Error
			if !errors.As(err, &oe) || oe.Kind != odmerr.KindValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
			if oe.Field != tc.wantField {
				t.Errorf("error field = %q, want %q", oe.Field, tc.wantField)
			}
		})
	}
}
