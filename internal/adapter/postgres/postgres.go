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

// Package postgres implements the adapter contract over a pgx connection
// pool. It shares the SQL lowering and cell decoding of the relational
// family but executes through pgx rather than database/sql.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/trace"

	"github.com/quickodm/quickodm/config"
	"github.com/quickodm/quickodm/internal/adapter"
	"github.com/quickodm/quickodm/internal/adapter/relational"
	"github.com/quickodm/quickodm/internal/adapter/sqlgen"
	"github.com/quickodm/quickodm/log"
	"github.com/quickodm/quickodm/odmerr"
	"github.com/quickodm/quickodm/procedure"
	"github.com/quickodm/quickodm/query"
	"github.com/quickodm/quickodm/schema"
	"github.com/quickodm/quickodm/value"
)

const Kind = "postgres"

func init() {
	if !adapter.Register(config.PostgreSQLType, New) {
		panic(fmt.Sprintf("adapter %q already registered", Kind))
	}
}

// Adapter executes statements through a pgx pool.
type Adapter struct {
	pool   *pgxpool.Pool
	ids    config.IDStrategy
	logger log.Logger

	mu         sync.Mutex
	tableLocks map[string]*sync.Mutex

	procMu     sync.Mutex
	procedures map[string]string
}

// New connects a pgx pool for cfg and returns its adapter.
func New(ctx context.Context, cfg config.DatabaseConfig, logger log.Logger, tracer trace.Tracer) (adapter.Adapter, error) {
	ctx, span := adapter.InitConnectionSpan(ctx, tracer, Kind, cfg.Alias)
	defer span.End()

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		url.QueryEscape(cfg.Connection.User),
		url.QueryEscape(cfg.Connection.Password),
		cfg.Connection.Host,
		cfg.Connection.Port,
		cfg.Connection.Database,
	)
	pc, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, odmerr.Connection(cfg.Alias, err)
	}
	pc.MaxConns = int32(cfg.Pool.MaxConnections)
	pc.MinConns = int32(cfg.Pool.MinConnections)
	pc.MaxConnLifetime = cfg.Pool.MaxLifetime()
	pc.MaxConnIdleTime = cfg.Pool.IdleTimeout()
	if cfg.Pool.KeepaliveIntervalMs > 0 {
		pc.HealthCheckPeriod = cfg.Pool.KeepaliveInterval()
	}
	pc.ConnConfig.ConnectTimeout = cfg.Pool.ConnectionTimeout()

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, odmerr.Connection(cfg.Alias, err)
	}
	if err := adapter.PingWithRetry(ctx, cfg.Pool, pool.Ping); err != nil {
		pool.Close()
		return nil, odmerr.Connection(cfg.Alias, err)
	}

	if logger == nil {
		logger = log.Discard()
	}
	return &Adapter{
		pool:       pool,
		ids:        cfg.IDStrategy,
		logger:     logger,
		tableLocks: make(map[string]*sync.Mutex),
		procedures: make(map[string]string),
	}, nil
}

func (a *Adapter) Backend() string { return Kind }

func (a *Adapter) wrap(err error, table string) error {
	if err == nil {
		return nil
	}
	if odmerr.KindOf(err) != "" {
		return err
	}
	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		switch pe.Code {
		case "42P01": // undefined_table
			return odmerr.TableNotExist(table)
		case "23505": // unique_violation: Detail "Key (email)=(a@b) already exists."
			field := pe.ConstraintName
			if d := pe.Detail; strings.HasPrefix(d, "Key (") {
				if i := strings.Index(d, ")"); i > len("Key (") {
					field = d[len("Key ("):i]
				}
			}
			return odmerr.DuplicateKey(field)
		}
	}
	return odmerr.Query(err.Error(), err)
}

func (a *Adapter) lockFor(table string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, ok := a.tableLocks[table]
	if !ok {
		m = &sync.Mutex{}
		a.tableLocks[table] = m
	}
	return m
}

func (a *Adapter) EnsureTable(ctx context.Context, meta *schema.ModelMeta) error {
	lock := a.lockFor(meta.Collection)
	lock.Lock()
	defer lock.Unlock()

	exists, err := a.TableExists(ctx, meta.Collection)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	ddl := sqlgen.BuildCreateTable(sqlgen.Postgres, meta, a.ids.Kind)
	if _, err := a.pool.Exec(ctx, ddl); err != nil {
		return a.wrap(err, meta.Collection)
	}
	for _, stmt := range sqlgen.BuildCreateIndexes(sqlgen.Postgres, meta) {
		if _, err := a.pool.Exec(ctx, stmt); err != nil {
			return a.wrap(err, meta.Collection)
		}
	}
	a.logger.InfoContext(ctx, "created table", "backend", Kind, "table", meta.Collection)
	return nil
}

func (a *Adapter) DropTable(ctx context.Context, table string) error {
	_, err := a.pool.Exec(ctx, "DROP TABLE IF EXISTS "+sqlgen.Postgres.QuoteIdent(table))
	return a.wrap(err, table)
}

func (a *Adapter) TableExists(ctx context.Context, table string) (bool, error) {
	stmt := sqlgen.BuildTableExists(sqlgen.Postgres, table)
	rows, err := a.pool.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return false, a.wrap(err, table)
	}
	defer rows.Close()
	exists := rows.Next()
	if err := rows.Err(); err != nil {
		return false, a.wrap(err, table)
	}
	return exists, nil
}

func (a *Adapter) Insert(ctx context.Context, meta *schema.ModelMeta, record value.Object) (value.Value, error) {
	returning := ""
	if a.ids.Kind == config.AutoIncrement {
		returning = schema.IDField
	}
	stmt, err := sqlgen.BuildInsert(sqlgen.Postgres, meta, a.ids.Kind, record, returning)
	if err != nil {
		return value.Null(), err
	}
	if returning != "" {
		var id int64
		if err := a.pool.QueryRow(ctx, stmt.SQL, stmt.Args...).Scan(&id); err != nil {
			return value.Null(), a.wrap(err, meta.Collection)
		}
		return value.Int(id), nil
	}
	if _, err := a.pool.Exec(ctx, stmt.SQL, stmt.Args...); err != nil {
		return value.Null(), a.wrap(err, meta.Collection)
	}
	id, ok := record[schema.IDField]
	if !ok {
		return value.Null(), odmerr.Validation(schema.IDField, "application-generated id is missing")
	}
	return id, nil
}

func (a *Adapter) FindByID(ctx context.Context, meta *schema.ModelMeta, id value.Value) (value.Object, error) {
	stmt, err := sqlgen.BuildSelectByID(sqlgen.Postgres, meta, a.ids.Kind, id)
	if err != nil {
		return nil, err
	}
	objs, err := a.queryObjects(ctx, meta, stmt)
	if err != nil {
		return nil, err
	}
	if len(objs) == 0 {
		return nil, odmerr.NotFound()
	}
	return objs[0], nil
}

func (a *Adapter) Find(ctx context.Context, meta *schema.ModelMeta, conds []query.Condition, opts query.Options) ([]value.Object, error) {
	stmt, err := sqlgen.BuildSelect(sqlgen.Postgres, meta, a.ids.Kind, conds, opts)
	if err != nil {
		return nil, err
	}
	return a.queryObjects(ctx, meta, stmt)
}

func (a *Adapter) Update(ctx context.Context, meta *schema.ModelMeta, conds []query.Condition, patch value.Object) (int64, error) {
	stmt, err := sqlgen.BuildUpdate(sqlgen.Postgres, meta, a.ids.Kind, conds, patch)
	if err != nil {
		return 0, err
	}
	tag, err := a.pool.Exec(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return 0, a.wrap(err, meta.Collection)
	}
	return tag.RowsAffected(), nil
}

func (a *Adapter) Delete(ctx context.Context, meta *schema.ModelMeta, conds []query.Condition) (int64, error) {
	stmt, err := sqlgen.BuildDelete(sqlgen.Postgres, meta, a.ids.Kind, conds)
	if err != nil {
		return 0, err
	}
	tag, err := a.pool.Exec(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return 0, a.wrap(err, meta.Collection)
	}
	return tag.RowsAffected(), nil
}

func (a *Adapter) Count(ctx context.Context, meta *schema.ModelMeta, conds []query.Condition) (int64, error) {
	stmt, err := sqlgen.BuildCount(sqlgen.Postgres, meta, a.ids.Kind, conds)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := a.pool.QueryRow(ctx, stmt.SQL, stmt.Args...).Scan(&n); err != nil {
		return 0, a.wrap(err, meta.Collection)
	}
	return n, nil
}

func (a *Adapter) CreateProcedure(ctx context.Context, cfg *procedure.Config) (string, error) {
	template, err := sqlgen.BuildProcedureTemplate(cfg)
	if err != nil {
		return "", err
	}
	a.procMu.Lock()
	a.procedures[cfg.Name] = template
	a.procMu.Unlock()
	a.logger.DebugContext(ctx, "registered procedure template", "backend", Kind, "procedure", cfg.Name)
	return template, nil
}

func (a *Adapter) CallProcedure(ctx context.Context, name string, conds []query.Condition, opts query.Options) ([]value.Object, error) {
	a.procMu.Lock()
	template, ok := a.procedures[name]
	a.procMu.Unlock()
	if !ok {
		return nil, odmerr.NotFound()
	}
	stmt, err := sqlgen.FillProcedureTemplate(sqlgen.Postgres, template, conds, opts)
	if err != nil {
		return nil, err
	}
	return a.queryObjects(ctx, nil, stmt)
}

func (a *Adapter) Ping(ctx context.Context) error {
	return a.wrap(a.pool.Ping(ctx), "")
}

func (a *Adapter) Close(ctx context.Context) error {
	a.pool.Close()
	return nil
}

func (a *Adapter) queryObjects(ctx context.Context, meta *schema.ModelMeta, stmt sqlgen.Statement) ([]value.Object, error) {
	table := ""
	if meta != nil {
		table = meta.Collection
	}
	rows, err := a.pool.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, a.wrap(err, table)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []value.Object
	for rows.Next() {
		cells, err := rows.Values()
		if err != nil {
			return nil, a.wrap(err, table)
		}
		obj := make(value.Object, len(cells))
		for i, fd := range fields {
			v, err := decodeCell(cells[i], fd.Name, meta, a.ids.Kind)
			if err != nil {
				return nil, err
			}
			obj[fd.Name] = v
		}
		out = append(out, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, a.wrap(err, table)
	}
	return out, nil
}

// decodeCell adjusts for pgx's native decoding — json/jsonb columns arrive
// as decoded Go data, not text — then defers to the shared relational
// decoding.
func decodeCell(raw any, col string, meta *schema.ModelMeta, ids config.IDStrategyKind) (value.Value, error) {
	if meta != nil {
		if def, ok := meta.Field(col); ok {
			switch raw.(type) {
			case map[string]any, []any:
				switch def.Type.Kind {
				case schema.FieldArray, schema.FieldObject, schema.FieldJSON:
					text, err := json.Marshal(raw)
					if err != nil {
						return value.Null(), odmerr.Query(fmt.Sprintf("column %q holds malformed json", col), err)
					}
					return relational.DecodeCell(string(text), col, meta, ids)
				}
			}
		}
	}
	return relational.DecodeCell(raw, col, meta, ids)
}
