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

package model

import (
	"context"

	"github.com/quickodm/quickodm/odm"
	"github.com/quickodm/quickodm/query"
	"github.com/quickodm/quickodm/schema"
	"github.com/quickodm/quickodm/value"
)

// Manager is the static operation surface of a model type over a bus.
type Manager[T Model] struct {
	bus *odm.Manager
}

// NewManager builds the manager for T.
func NewManager[T Model](bus *odm.Manager) Manager[T] {
	return Manager[T]{bus: bus}
}

// Save inserts an instance, assigning its id per the alias strategy, and
// returns the id.
func (mg Manager[T]) Save(ctx context.Context, m T) (value.Value, error) {
	meta, err := Meta[T]()
	if err != nil {
		return value.Null(), err
	}
	record, err := Encode(m)
	if err != nil {
		return value.Null(), err
	}
	return mg.bus.Save(ctx, meta, record)
}

// Find returns every matching instance.
func (mg Manager[T]) Find(ctx context.Context, conds []query.Condition, opts query.Options) ([]T, error) {
	meta, err := Meta[T]()
	if err != nil {
		return nil, err
	}
	records, err := mg.bus.Find(ctx, meta, conds, opts)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(records))
	for _, rec := range records {
		var m T
		if err := Decode(rec, &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// FindByID returns the instance with the given id, or nil when missing.
func (mg Manager[T]) FindByID(ctx context.Context, id value.Value) (*T, error) {
	meta, err := Meta[T]()
	if err != nil {
		return nil, err
	}
	record, err := mg.bus.FindByID(ctx, meta, id)
	if err != nil || record == nil {
		return nil, err
	}
	var m T
	if err := Decode(record, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Update patches every matching record and returns the affected count.
func (mg Manager[T]) Update(ctx context.Context, conds []query.Condition, patch value.Object) (int64, error) {
	meta, err := Meta[T]()
	if err != nil {
		return 0, err
	}
	return mg.bus.Update(ctx, meta, conds, patch)
}

// Delete removes every matching record and returns the removed count.
func (mg Manager[T]) Delete(ctx context.Context, conds []query.Condition) (int64, error) {
	meta, err := Meta[T]()
	if err != nil {
		return 0, err
	}
	return mg.bus.Delete(ctx, meta, conds)
}

// DeleteInstance removes one saved instance by its encoded id.
func (mg Manager[T]) DeleteInstance(ctx context.Context, m T) (int64, error) {
	record, err := Encode(m)
	if err != nil {
		return 0, err
	}
	id, ok := record[schema.IDField]
	if !ok {
		return 0, nil
	}
	return mg.Delete(ctx, []query.Condition{query.Cond(schema.IDField, query.Eq, id)})
}

// Count returns the number of matching records.
func (mg Manager[T]) Count(ctx context.Context, conds []query.Condition) (int64, error) {
	meta, err := Meta[T]()
	if err != nil {
		return 0, err
	}
	return mg.bus.Count(ctx, meta, conds)
}

// Exists reports whether any record matches.
func (mg Manager[T]) Exists(ctx context.Context, conds []query.Condition) (bool, error) {
	meta, err := Meta[T]()
	if err != nil {
		return false, err
	}
	return mg.bus.Exists(ctx, meta, conds)
}
