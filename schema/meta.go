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

package schema

import (
	"fmt"
)

// IDField is the reserved name of the primary identifier on every model. Its
// runtime type is fixed by the identifier strategy of the model's alias.
const IDField = "id"

// IndexDefinition declares a (possibly composite) index.
type IndexDefinition struct {
	Fields []string
	Unique bool
	Name   string
}

// Field pairs a name with its definition; ModelMeta keeps fields ordered as
// declared, which fixes DDL column order.
type Field struct {
	Name string
	Def  FieldDefinition
}

// ModelMeta binds a model to its collection, alias, ordered fields, and
// indexes. Metadata is immutable once registered.
type ModelMeta struct {
	Collection string
	Database   string // alias; "" resolves to the default alias at runtime
	Fields     []Field
	Indexes    []IndexDefinition
}

// Field looks a definition up by name.
func (m *ModelMeta) Field(name string) (FieldDefinition, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f.Def, true
		}
	}
	return FieldDefinition{}, false
}

// FieldNames returns the declared field names in order.
func (m *ModelMeta) FieldNames() []string {
	names := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		names[i] = f.Name
	}
	return names
}

// Check verifies the metadata is self-consistent: non-empty collection, no
// duplicate fields, index fields that exist.
func (m *ModelMeta) Check() error {
	if m.Collection == "" {
		return fmt.Errorf("model has no collection name")
	}
	seen := make(map[string]bool, len(m.Fields))
	for _, f := range m.Fields {
		if seen[f.Name] {
			return fmt.Errorf("duplicate field %q in model %q", f.Name, m.Collection)
		}
		seen[f.Name] = true
	}
	for _, idx := range m.Indexes {
		if len(idx.Fields) == 0 {
			return fmt.Errorf("index %q of model %q has no fields", idx.Name, m.Collection)
		}
		for _, fn := range idx.Fields {
			if !seen[fn] && fn != IDField {
				return fmt.Errorf("index %q of model %q references unknown field %q", idx.Name, m.Collection, fn)
			}
		}
	}
	return nil
}
