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

// Package adapter defines the uniform operation contract every backend
// implements, and the registry that maps a configured database type onto its
// implementation.
package adapter

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/quickodm/quickodm/config"
	"github.com/quickodm/quickodm/log"
	"github.com/quickodm/quickodm/odmerr"
	"github.com/quickodm/quickodm/procedure"
	"github.com/quickodm/quickodm/query"
	"github.com/quickodm/quickodm/schema"
	"github.com/quickodm/quickodm/value"
)

// Adapter is the backend contract. Every operation returns uniform results;
// driver-native errors never escape an adapter. No operation creates a table
// implicitly — creation goes through EnsureTable, which is gated by a
// per-table lock inside each adapter.
type Adapter interface {
	Backend() string

	EnsureTable(ctx context.Context, meta *schema.ModelMeta) error
	DropTable(ctx context.Context, table string) error
	TableExists(ctx context.Context, table string) (bool, error)

	Insert(ctx context.Context, meta *schema.ModelMeta, record value.Object) (value.Value, error)
	FindByID(ctx context.Context, meta *schema.ModelMeta, id value.Value) (value.Object, error)
	Find(ctx context.Context, meta *schema.ModelMeta, conds []query.Condition, opts query.Options) ([]value.Object, error)
	Update(ctx context.Context, meta *schema.ModelMeta, conds []query.Condition, patch value.Object) (int64, error)
	Delete(ctx context.Context, meta *schema.ModelMeta, conds []query.Condition) (int64, error)
	Count(ctx context.Context, meta *schema.ModelMeta, conds []query.Condition) (int64, error)

	// CreateProcedure registers a virtual table and returns its template.
	// CallProcedure runs a registered template with per-call conditions.
	// Document backends reject both with an unsupported-on-backend error.
	CreateProcedure(ctx context.Context, cfg *procedure.Config) (string, error)
	CallProcedure(ctx context.Context, name string, conds []query.Condition, opts query.Options) ([]value.Object, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Factory creates an adapter from a validated configuration.
type Factory func(ctx context.Context, cfg config.DatabaseConfig, logger log.Logger, tracer trace.Tracer) (Adapter, error)

var registry = make(map[config.DatabaseType]Factory)

// Register associates a database type with its factory. It is called from
// init() in each backend package and returns false when the type is taken.
func Register(t config.DatabaseType, f Factory) bool {
	if _, exists := registry[t]; exists {
		return false
	}
	registry[t] = f
	return true
}

// New builds the adapter for cfg's database type.
func New(ctx context.Context, cfg config.DatabaseConfig, logger log.Logger, tracer trace.Tracer) (Adapter, error) {
	f, ok := registry[cfg.Type]
	if !ok {
		return nil, odmerr.Config(fmt.Sprintf("unknown database type %q", cfg.Type))
	}
	return f(ctx, cfg, logger, tracer)
}

// InitConnectionSpan starts a span tracing backend connection creation.
func InitConnectionSpan(ctx context.Context, tracer trace.Tracer, backend, alias string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "quickodm/connect",
		trace.WithAttributes(
			attribute.String("quickodm.backend", backend),
			attribute.String("quickodm.alias", alias),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}
