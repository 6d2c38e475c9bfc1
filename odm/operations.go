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

package odm

import (
	"context"

	"github.com/quickodm/quickodm/internal/adapter"
	"github.com/quickodm/quickodm/odmerr"
	"github.com/quickodm/quickodm/procedure"
	"github.com/quickodm/quickodm/query"
	"github.com/quickodm/quickodm/schema"
	"github.com/quickodm/quickodm/value"
)

// ensureTable performs the one-shot lazy creation for a model on its alias.
// Success is cached; the adapter's per-table lock makes the racy first use
// safe.
func (m *Manager) ensureTable(ctx context.Context, meta *schema.ModelMeta) error {
	p, err := m.pools.Get(meta.Database)
	if err != nil {
		return err
	}
	key := p.Config.Alias + "\x00" + meta.Collection
	if _, done := m.ensured.Load(key); done {
		return nil
	}
	_, err = m.dispatch(ctx, meta.Database, DDL, func(ctx context.Context, ad adapter.Adapter) (any, error) {
		return nil, ad.EnsureTable(ctx, meta)
	})
	if err != nil {
		return err
	}
	m.ensured.Store(key, struct{}{})
	return nil
}

// Save validates and inserts a record, assigning an application-generated id
// when the record carries none, and returns the record's id.
func (m *Manager) Save(ctx context.Context, meta *schema.ModelMeta, record value.Object) (value.Value, error) {
	p, err := m.pools.Get(meta.Database)
	if err != nil {
		return value.Null(), err
	}
	validated, err := schema.ValidateRecord(meta, record)
	if err != nil {
		return value.Null(), err
	}
	if id, ok := validated[schema.IDField]; (!ok || id.IsNull()) && !p.IDGen.BackendIssued() {
		validated[schema.IDField] = p.IDGen.Next()
	}
	if err := m.ensureTable(ctx, meta); err != nil {
		return value.Null(), err
	}
	res, err := m.dispatch(ctx, meta.Database, Create, func(ctx context.Context, ad adapter.Adapter) (any, error) {
		return ad.Insert(ctx, meta, validated)
	})
	if err != nil {
		return value.Null(), err
	}
	return res.(value.Value), nil
}

// Find returns every record matching the conditions.
func (m *Manager) Find(ctx context.Context, meta *schema.ModelMeta, conds []query.Condition, opts query.Options) ([]value.Object, error) {
	res, err := m.dispatch(ctx, meta.Database, Read, func(ctx context.Context, ad adapter.Adapter) (any, error) {
		return ad.Find(ctx, meta, conds, opts)
	})
	if err != nil {
		return nil, err
	}
	return res.([]value.Object), nil
}

// FindByID returns the record with the given id, or nil when it does not
// exist.
func (m *Manager) FindByID(ctx context.Context, meta *schema.ModelMeta, id value.Value) (value.Object, error) {
	res, err := m.dispatch(ctx, meta.Database, Read, func(ctx context.Context, ad adapter.Adapter) (any, error) {
		return ad.FindByID(ctx, meta, id)
	})
	if err != nil {
		if odmerr.IsKind(err, odmerr.KindNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return res.(value.Object), nil
}

// Update applies a validated patch to every matching record and returns the
// affected count.
func (m *Manager) Update(ctx context.Context, meta *schema.ModelMeta, conds []query.Condition, patch value.Object) (int64, error) {
	validated := make(value.Object, len(patch))
	for name, v := range patch {
		def, ok := meta.Field(name)
		if !ok {
			return 0, odmerr.Validation(name, "field is not declared on model "+meta.Collection)
		}
		cv, err := schema.Validate(name, v, def)
		if err != nil {
			return 0, err
		}
		validated[name] = cv
	}
	res, err := m.dispatch(ctx, meta.Database, Update, func(ctx context.Context, ad adapter.Adapter) (any, error) {
		return ad.Update(ctx, meta, conds, validated)
	})
	if err != nil {
		return 0, err
	}
	return res.(int64), nil
}

// Delete removes every matching record and returns the removed count.
func (m *Manager) Delete(ctx context.Context, meta *schema.ModelMeta, conds []query.Condition) (int64, error) {
	res, err := m.dispatch(ctx, meta.Database, Delete, func(ctx context.Context, ad adapter.Adapter) (any, error) {
		return ad.Delete(ctx, meta, conds)
	})
	if err != nil {
		return 0, err
	}
	return res.(int64), nil
}

// Count returns the number of matching records.
func (m *Manager) Count(ctx context.Context, meta *schema.ModelMeta, conds []query.Condition) (int64, error) {
	res, err := m.dispatch(ctx, meta.Database, CountOrExists, func(ctx context.Context, ad adapter.Adapter) (any, error) {
		return ad.Count(ctx, meta, conds)
	})
	if err != nil {
		return 0, err
	}
	return res.(int64), nil
}

// Exists reports whether any record matches.
func (m *Manager) Exists(ctx context.Context, meta *schema.ModelMeta, conds []query.Condition) (bool, error) {
	n, err := m.Count(ctx, meta, conds)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// EnsureTable exposes explicit table creation through the bus.
func (m *Manager) EnsureTable(ctx context.Context, meta *schema.ModelMeta) error {
	return m.ensureTable(ctx, meta)
}

// DropTable removes a table or collection on an alias.
func (m *Manager) DropTable(ctx context.Context, alias, table string) error {
	_, err := m.dispatch(ctx, alias, DDL, func(ctx context.Context, ad adapter.Adapter) (any, error) {
		return nil, ad.DropTable(ctx, table)
	})
	if err == nil {
		m.forgetEnsured(alias, table)
	}
	return err
}

func (m *Manager) forgetEnsured(alias, table string) {
	if p, perr := m.pools.Get(alias); perr == nil {
		m.ensured.Delete(p.Config.Alias + "\x00" + table)
	}
}

// TableExists probes for a table or collection on an alias.
func (m *Manager) TableExists(ctx context.Context, alias, table string) (bool, error) {
	res, err := m.dispatch(ctx, alias, CountOrExists, func(ctx context.Context, ad adapter.Adapter) (any, error) {
		return ad.TableExists(ctx, table)
	})
	if err != nil {
		return false, err
	}
	return res.(bool), nil
}

// CreateProcedure registers a virtual table on its configured alias and
// returns the generated template. Document aliases reject it.
func (m *Manager) CreateProcedure(ctx context.Context, cfg *procedure.Config) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	for _, dep := range cfg.Dependencies {
		if err := m.ensureTable(ctx, dep); err != nil {
			return "", err
		}
	}
	res, err := m.dispatch(ctx, cfg.Database, DDL, func(ctx context.Context, ad adapter.Adapter) (any, error) {
		return ad.CreateProcedure(ctx, cfg)
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

// CallProcedure runs a registered virtual table with per-call conditions.
func (m *Manager) CallProcedure(ctx context.Context, alias, name string, conds []query.Condition, opts query.Options) ([]value.Object, error) {
	res, err := m.dispatch(ctx, alias, Read, func(ctx context.Context, ad adapter.Adapter) (any, error) {
		return ad.CallProcedure(ctx, name, conds, opts)
	})
	if err != nil {
		return nil, err
	}
	return res.([]value.Object), nil
}
