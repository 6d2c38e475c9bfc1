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

// Package mysql wires the MySQL driver into the relational core.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel/trace"

	"github.com/quickodm/quickodm/config"
	"github.com/quickodm/quickodm/internal/adapter"
	"github.com/quickodm/quickodm/internal/adapter/relational"
	"github.com/quickodm/quickodm/internal/adapter/sqlgen"
	"github.com/quickodm/quickodm/log"
	"github.com/quickodm/quickodm/odmerr"
)

const Kind = "mysql"

func init() {
	if !adapter.Register(config.MySQLType, New) {
		panic(fmt.Sprintf("adapter %q already registered", Kind))
	}
}

// New opens a MySQL pool for cfg and returns its adapter.
func New(ctx context.Context, cfg config.DatabaseConfig, logger log.Logger, tracer trace.Tracer) (adapter.Adapter, error) {
	ctx, span := adapter.InitConnectionSpan(ctx, tracer, Kind, cfg.Alias)
	defer span.End()

	mc := gomysql.NewConfig()
	mc.User = cfg.Connection.User
	mc.Passwd = cfg.Connection.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", cfg.Connection.Host, cfg.Connection.Port)
	mc.DBName = cfg.Connection.Database
	mc.ParseTime = true
	mc.Loc = time.UTC

	db, err := sql.Open("mysql", mc.FormatDSN())
	if err != nil {
		return nil, odmerr.Connection(cfg.Alias, err)
	}

	db.SetMaxOpenConns(cfg.Pool.MaxConnections)
	db.SetMaxIdleConns(cfg.Pool.MinConnections)
	db.SetConnMaxLifetime(cfg.Pool.MaxLifetime())
	db.SetConnMaxIdleTime(cfg.Pool.IdleTimeout())

	if err := adapter.PingWithRetry(ctx, cfg.Pool, db.PingContext); err != nil {
		db.Close()
		return nil, odmerr.Connection(cfg.Alias, err)
	}

	return relational.NewCore(db, sqlgen.MySQL, Kind, cfg.IDStrategy, logger, mapError), nil
}

func mapError(err error, table string) error {
	var me *gomysql.MySQLError
	if !errors.As(err, &me) {
		return nil
	}
	switch me.Number {
	case 1146: // ER_NO_SUCH_TABLE
		return odmerr.TableNotExist(table)
	case 1062: // ER_DUP_ENTRY: "Duplicate entry 'x' for key 'users.email'"
		field := me.Message
		if i := strings.LastIndex(field, "for key '"); i >= 0 {
			field = strings.TrimSuffix(field[i+len("for key '"):], "'")
			if j := strings.LastIndex(field, "."); j >= 0 {
				field = field[j+1:]
			}
		}
		return odmerr.DuplicateKey(field)
	}
	return nil
}
