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

// Package quickodm is the process-global entry point of the ODM: declare
// databases during the init phase, then persist and query models through the
// request bus. Importing this package links every backend adapter.
package quickodm

import (
	"context"
	"os"
	"sync"

	"go.opentelemetry.io/otel"

	"github.com/quickodm/quickodm/config"
	"github.com/quickodm/quickodm/log"
	"github.com/quickodm/quickodm/odm"
	"github.com/quickodm/quickodm/pool"
	"github.com/quickodm/quickodm/procedure"
	"github.com/quickodm/quickodm/query"
	"github.com/quickodm/quickodm/schema"
	"github.com/quickodm/quickodm/value"

	// Backend adapters register themselves on import.
	_ "github.com/quickodm/quickodm/internal/adapter/mongodb"
	_ "github.com/quickodm/quickodm/internal/adapter/mysql"
	_ "github.com/quickodm/quickodm/internal/adapter/postgres"
	_ "github.com/quickodm/quickodm/internal/adapter/sqlite"
)

var (
	globalMu  sync.Mutex
	globalBus *odm.Manager
)

// Init creates the process-global manager. Passing a nil logger installs a
// standard text logger at info level. Init is idempotent; the first call
// wins.
func Init(logger log.Logger) *odm.Manager {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalBus != nil {
		return globalBus
	}
	if logger == nil {
		logger, _ = log.NewStdLogger(os.Stdout, os.Stderr, log.Info)
	}
	tracer := otel.Tracer("github.com/quickodm/quickodm")
	globalBus = odm.NewManager(pool.NewManager(logger, tracer), logger)
	return globalBus
}

// Manager returns the global bus, initializing it with defaults when needed.
func Manager() *odm.Manager {
	globalMu.Lock()
	bus := globalBus
	globalMu.Unlock()
	if bus != nil {
		return bus
	}
	return Init(nil)
}

// AddDatabase registers an alias on the global manager. It fails with a
// locked-operation error once any data-plane call has happened.
func AddDatabase(ctx context.Context, cfg config.DatabaseConfig) error {
	return Manager().Pools().AddDatabase(ctx, cfg)
}

// RemoveDatabase drops an alias during the init phase.
func RemoveDatabase(ctx context.Context, alias string) error {
	return Manager().Pools().RemoveDatabase(ctx, alias)
}

// SetDefaultAlias selects the alias models without a declared database use.
func SetDefaultAlias(alias string) error {
	return Manager().Pools().SetDefaultAlias(alias)
}

// Save persists a record for meta and returns its id.
func Save(ctx context.Context, meta *schema.ModelMeta, record value.Object) (value.Value, error) {
	return Manager().Save(ctx, meta, record)
}

// Find returns every record of meta matching the conditions.
func Find(ctx context.Context, meta *schema.ModelMeta, conds []query.Condition, opts query.Options) ([]value.Object, error) {
	return Manager().Find(ctx, meta, conds, opts)
}

// FindByID returns the record with the given id, or nil when missing.
func FindByID(ctx context.Context, meta *schema.ModelMeta, id value.Value) (value.Object, error) {
	return Manager().FindByID(ctx, meta, id)
}

// Update patches matching records and returns the affected count.
func Update(ctx context.Context, meta *schema.ModelMeta, conds []query.Condition, patch value.Object) (int64, error) {
	return Manager().Update(ctx, meta, conds, patch)
}

// Delete removes matching records and returns the removed count.
func Delete(ctx context.Context, meta *schema.ModelMeta, conds []query.Condition) (int64, error) {
	return Manager().Delete(ctx, meta, conds)
}

// Count returns the number of matching records.
func Count(ctx context.Context, meta *schema.ModelMeta, conds []query.Condition) (int64, error) {
	return Manager().Count(ctx, meta, conds)
}

// Exists reports whether any record of meta matches.
func Exists(ctx context.Context, meta *schema.ModelMeta, conds []query.Condition) (bool, error) {
	return Manager().Exists(ctx, meta, conds)
}

// TableExists probes a table or collection on an alias.
func TableExists(ctx context.Context, alias, table string) (bool, error) {
	return Manager().TableExists(ctx, alias, table)
}

// DropTable removes a table or collection on an alias.
func DropTable(ctx context.Context, alias, table string) error {
	return Manager().DropTable(ctx, alias, table)
}

// CreateProcedure registers a virtual table (relational aliases only).
func CreateProcedure(ctx context.Context, cfg *procedure.Config) (string, error) {
	return Manager().CreateProcedure(ctx, cfg)
}

// CallProcedure runs a registered virtual table with per-call conditions.
func CallProcedure(ctx context.Context, alias, name string, conds []query.Condition, opts query.Options) ([]value.Object, error) {
	return Manager().CallProcedure(ctx, alias, name, conds, opts)
}

// Close shuts the global manager down and forgets it, returning the process
// to the init phase.
func Close(ctx context.Context) error {
	globalMu.Lock()
	bus := globalBus
	globalBus = nil
	globalMu.Unlock()
	if bus == nil {
		return nil
	}
	return bus.Close(ctx)
}
