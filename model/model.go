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

// Package model binds Go structs to the ODM. A model declares its metadata
// once; the first reference registers it process-wide, and a generic Manager
// offers the static operation surface while Save/Delete work per instance.
package model

import (
	"bytes"
	"encoding/json"
	"reflect"
	"sync"

	"github.com/quickodm/quickodm/odmerr"
	"github.com/quickodm/quickodm/schema"
	"github.com/quickodm/quickodm/value"
)

// Model is implemented by every persistable struct. ModelMeta must be
// callable on the zero value and return the same metadata every time; field
// names in the metadata match the struct's json tags.
type Model interface {
	ModelMeta() *schema.ModelMeta
}

var registry sync.Map // reflect.Type → *schema.ModelMeta

// Meta returns the registered metadata of T, registering it on first
// reference. Metadata is immutable after registration.
func Meta[T Model]() (*schema.ModelMeta, error) {
	var zero T
	t := reflect.TypeOf(zero)
	if cached, ok := registry.Load(t); ok {
		return cached.(*schema.ModelMeta), nil
	}
	meta := zero.ModelMeta()
	if err := meta.Check(); err != nil {
		return nil, odmerr.Config(err.Error())
	}
	actual, _ := registry.LoadOrStore(t, meta)
	return actual.(*schema.ModelMeta), nil
}

// Encode lowers a model instance into a record. Struct fields bridge through
// their json encoding; the schema's validation and coercion run later at
// save time.
func Encode(m Model) (value.Object, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, odmerr.Validation("", err.Error())
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, odmerr.Validation("", err.Error())
	}

	meta := m.ModelMeta()
	out := make(value.Object, len(raw))
	for name, x := range raw {
		if name != schema.IDField {
			if _, ok := meta.Field(name); !ok {
				continue
			}
		}
		v := value.FromAny(x)
		if v.IsNull() {
			continue
		}
		out[name] = v
	}
	return out, nil
}

// Decode fills a model instance from a record, bridging through json. out is
// a pointer to the instance.
func Decode(record value.Object, out any) error {
	plain := make(map[string]any, len(record))
	for k, v := range record {
		plain[k] = value.ToAny(v)
	}
	data, err := json.Marshal(plain)
	if err != nil {
		return odmerr.Query("record is not representable", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return odmerr.Query("record does not fit model", err)
	}
	return nil
}
