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

// Package sqlite wires the cgo-free SQLite driver into the relational core.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"

	_ "modernc.org/sqlite"

	"github.com/quickodm/quickodm/config"
	"github.com/quickodm/quickodm/internal/adapter"
	"github.com/quickodm/quickodm/internal/adapter/relational"
	"github.com/quickodm/quickodm/internal/adapter/sqlgen"
	"github.com/quickodm/quickodm/log"
	"github.com/quickodm/quickodm/odmerr"
)

const Kind = "sqlite"

func init() {
	if !adapter.Register(config.SQLiteType, New) {
		panic(fmt.Sprintf("adapter %q already registered", Kind))
	}
}

// New opens the SQLite database declared by cfg and returns its adapter.
func New(ctx context.Context, cfg config.DatabaseConfig, logger log.Logger, tracer trace.Tracer) (adapter.Adapter, error) {
	ctx, span := adapter.InitConnectionSpan(ctx, tracer, Kind, cfg.Alias)
	defer span.End()

	path := cfg.Connection.Path
	memory := path == ":memory:" || strings.Contains(path, "mode=memory")
	if !memory && !cfg.Connection.CreateIfMissing {
		if _, err := os.Stat(path); err != nil {
			return nil, odmerr.Connection(cfg.Alias, fmt.Errorf("database file %q does not exist", path))
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, odmerr.Connection(cfg.Alias, err)
	}

	if memory {
		// Each pooled connection of an in-memory database would otherwise see
		// its own empty database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.Pool.MaxConnections)
		db.SetMaxIdleConns(cfg.Pool.MinConnections)
		db.SetConnMaxLifetime(cfg.Pool.MaxLifetime())
		db.SetConnMaxIdleTime(cfg.Pool.IdleTimeout())
	}

	if err := adapter.PingWithRetry(ctx, cfg.Pool, db.PingContext); err != nil {
		db.Close()
		return nil, odmerr.Connection(cfg.Alias, err)
	}

	return relational.NewCore(db, sqlgen.SQLite, Kind, cfg.IDStrategy, logger, mapError), nil
}

func mapError(err error, table string) error {
	msg := err.Error()
	if strings.Contains(msg, "no such table") {
		if table == "" {
			table = afterLast(msg, ": ")
		}
		return odmerr.TableNotExist(table)
	}
	if strings.Contains(msg, "UNIQUE constraint failed") {
		// "UNIQUE constraint failed: users.email"
		qualified := afterLast(msg, ": ")
		return odmerr.DuplicateKey(afterLast(qualified, "."))
	}
	return nil
}

func afterLast(s, sep string) string {
	if i := strings.LastIndex(s, sep); i >= 0 {
		return s[i+len(sep):]
	}
	return s
}
