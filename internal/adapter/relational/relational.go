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

// Package relational is the shared database/sql core behind the SQLite and
// MySQL adapters: statement lowering via sqlgen, per-table creation locks,
// row decoding back into the value model, and driver error mapping.
package relational

import (
	"context"
	"database/sql"
	"strings"
	"sync"

	"github.com/quickodm/quickodm/config"
	"github.com/quickodm/quickodm/internal/adapter/sqlgen"
	"github.com/quickodm/quickodm/log"
	"github.com/quickodm/quickodm/odmerr"
	"github.com/quickodm/quickodm/procedure"
	"github.com/quickodm/quickodm/query"
	"github.com/quickodm/quickodm/schema"
	"github.com/quickodm/quickodm/value"
)

// ErrorMapper classifies a driver error into the taxonomy. table is the
// statement's target, best effort. Returning nil falls back to a generic
// query error.
type ErrorMapper func(err error, table string) error

// Core implements the adapter contract over a *sql.DB.
type Core struct {
	DB      *sql.DB
	Dialect sqlgen.Dialect
	Kind    string
	IDs     config.IDStrategy
	Logger  log.Logger
	MapErr  ErrorMapper

	mu         sync.Mutex
	tableLocks map[string]*sync.Mutex

	procMu     sync.Mutex
	procedures map[string]string
}

// NewCore wires a core around an opened pool.
func NewCore(db *sql.DB, dialect sqlgen.Dialect, kind string, ids config.IDStrategy, logger log.Logger, mapErr ErrorMapper) *Core {
	if logger == nil {
		logger = log.Discard()
	}
	return &Core{
		DB:         db,
		Dialect:    dialect,
		Kind:       kind,
		IDs:        ids,
		Logger:     logger,
		MapErr:     mapErr,
		tableLocks: make(map[string]*sync.Mutex),
		procedures: make(map[string]string),
	}
}

func (c *Core) Backend() string { return c.Kind }

func (c *Core) wrap(err error, table string) error {
	if err == nil {
		return nil
	}
	if odmerr.KindOf(err) != "" {
		return err
	}
	if c.MapErr != nil {
		if mapped := c.MapErr(err, table); mapped != nil {
			return mapped
		}
	}
	return odmerr.Query(err.Error(), err)
}

// lockFor returns the creation mutex of a table, allocating it on first use.
func (c *Core) lockFor(table string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.tableLocks[table]
	if !ok {
		m = &sync.Mutex{}
		c.tableLocks[table] = m
	}
	return m
}

// EnsureTable creates the model's table and indexes if missing. The
// per-table lock serializes concurrent first uses so exactly one CREATE is
// issued.
func (c *Core) EnsureTable(ctx context.Context, meta *schema.ModelMeta) error {
	lock := c.lockFor(meta.Collection)
	lock.Lock()
	defer lock.Unlock()

	exists, err := c.TableExists(ctx, meta.Collection)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	ddl := sqlgen.BuildCreateTable(c.Dialect, meta, c.IDs.Kind)
	if _, err := c.DB.ExecContext(ctx, ddl); err != nil {
		return c.wrap(err, meta.Collection)
	}
	for _, stmt := range sqlgen.BuildCreateIndexes(c.Dialect, meta) {
		if _, err := c.DB.ExecContext(ctx, stmt); err != nil {
			if isDuplicateIndex(err) {
				continue
			}
			return c.wrap(err, meta.Collection)
		}
	}
	c.Logger.InfoContext(ctx, "created table", "backend", c.Kind, "table", meta.Collection)
	return nil
}

// isDuplicateIndex recognizes the MySQL duplicate-index error; index
// creation elsewhere uses IF NOT EXISTS.
func isDuplicateIndex(err error) bool {
	return strings.Contains(err.Error(), "Duplicate key name")
}

func (c *Core) DropTable(ctx context.Context, table string) error {
	_, err := c.DB.ExecContext(ctx, "DROP TABLE IF EXISTS "+c.Dialect.QuoteIdent(table))
	return c.wrap(err, table)
}

func (c *Core) TableExists(ctx context.Context, table string) (bool, error) {
	stmt := sqlgen.BuildTableExists(c.Dialect, table)
	var name string
	err := c.DB.QueryRowContext(ctx, stmt.SQL, stmt.Args...).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, c.wrap(err, table)
	}
	return true, nil
}

// Insert writes a record. For backend-issued identifiers the new id comes
// from the driver; application-generated ids must already be present on the
// record.
func (c *Core) Insert(ctx context.Context, meta *schema.ModelMeta, record value.Object) (value.Value, error) {
	stmt, err := sqlgen.BuildInsert(c.Dialect, meta, c.IDs.Kind, record, "")
	if err != nil {
		return value.Null(), err
	}
	res, err := c.DB.ExecContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return value.Null(), c.wrap(err, meta.Collection)
	}
	if c.IDs.Kind == config.AutoIncrement {
		id, err := res.LastInsertId()
		if err != nil {
			return value.Null(), c.wrap(err, meta.Collection)
		}
		return value.Int(id), nil
	}
	id, ok := record[schema.IDField]
	if !ok {
		return value.Null(), odmerr.Validation(schema.IDField, "application-generated id is missing")
	}
	return id, nil
}

func (c *Core) FindByID(ctx context.Context, meta *schema.ModelMeta, id value.Value) (value.Object, error) {
	stmt, err := sqlgen.BuildSelectByID(c.Dialect, meta, c.IDs.Kind, id)
	if err != nil {
		return nil, err
	}
	rows, err := c.queryObjects(ctx, meta, stmt)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, odmerr.NotFound()
	}
	return rows[0], nil
}

func (c *Core) Find(ctx context.Context, meta *schema.ModelMeta, conds []query.Condition, opts query.Options) ([]value.Object, error) {
	stmt, err := sqlgen.BuildSelect(c.Dialect, meta, c.IDs.Kind, conds, opts)
	if err != nil {
		return nil, err
	}
	return c.queryObjects(ctx, meta, stmt)
}

func (c *Core) Update(ctx context.Context, meta *schema.ModelMeta, conds []query.Condition, patch value.Object) (int64, error) {
	stmt, err := sqlgen.BuildUpdate(c.Dialect, meta, c.IDs.Kind, conds, patch)
	if err != nil {
		return 0, err
	}
	res, err := c.DB.ExecContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return 0, c.wrap(err, meta.Collection)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, c.wrap(err, meta.Collection)
	}
	return n, nil
}

func (c *Core) Delete(ctx context.Context, meta *schema.ModelMeta, conds []query.Condition) (int64, error) {
	stmt, err := sqlgen.BuildDelete(c.Dialect, meta, c.IDs.Kind, conds)
	if err != nil {
		return 0, err
	}
	res, err := c.DB.ExecContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return 0, c.wrap(err, meta.Collection)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, c.wrap(err, meta.Collection)
	}
	return n, nil
}

func (c *Core) Count(ctx context.Context, meta *schema.ModelMeta, conds []query.Condition) (int64, error) {
	stmt, err := sqlgen.BuildCount(c.Dialect, meta, c.IDs.Kind, conds)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := c.DB.QueryRowContext(ctx, stmt.SQL, stmt.Args...).Scan(&n); err != nil {
		return 0, c.wrap(err, meta.Collection)
	}
	return n, nil
}

// CreateProcedure registers the virtual-table template under its name.
func (c *Core) CreateProcedure(ctx context.Context, cfg *procedure.Config) (string, error) {
	template, err := sqlgen.BuildProcedureTemplate(cfg)
	if err != nil {
		return "", err
	}
	c.procMu.Lock()
	c.procedures[cfg.Name] = template
	c.procMu.Unlock()
	c.Logger.DebugContext(ctx, "registered procedure template", "backend", c.Kind, "procedure", cfg.Name)
	return template, nil
}

// CallProcedure fills a registered template and runs it. Result rows decode
// generically since projected expressions carry no schema.
func (c *Core) CallProcedure(ctx context.Context, name string, conds []query.Condition, opts query.Options) ([]value.Object, error) {
	c.procMu.Lock()
	template, ok := c.procedures[name]
	c.procMu.Unlock()
	if !ok {
		return nil, odmerr.NotFound()
	}
	stmt, err := sqlgen.FillProcedureTemplate(c.Dialect, template, conds, opts)
	if err != nil {
		return nil, err
	}
	return c.queryObjects(ctx, nil, stmt)
}

func (c *Core) Ping(ctx context.Context) error {
	return c.wrap(c.DB.PingContext(ctx), "")
}

func (c *Core) Close(ctx context.Context) error {
	return c.DB.Close()
}

// queryObjects runs a select and decodes every row. meta may be nil for
// schema-less (procedure) results.
func (c *Core) queryObjects(ctx context.Context, meta *schema.ModelMeta, stmt sqlgen.Statement) ([]value.Object, error) {
	table := ""
	if meta != nil {
		table = meta.Collection
	}
	rows, err := c.DB.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, c.wrap(err, table)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, c.wrap(err, table)
	}
	var out []value.Object
	for rows.Next() {
		cells := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, c.wrap(err, table)
		}
		obj := make(value.Object, len(cols))
		for i, col := range cols {
			v, err := DecodeCell(cells[i], col, meta, c.IDs.Kind)
			if err != nil {
				return nil, err
			}
			obj[col] = v
		}
		out = append(out, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, c.wrap(err, table)
	}
	return out, nil
}
