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

package config

// DefaultPool returns a moderate pool shape for tests and examples. Library
// consumers are expected to declare their own.
func DefaultPool() PoolConfig {
	return PoolConfig{
		MaxConnections:       10,
		MinConnections:       1,
		ConnectionTimeoutMs:  5000,
		IdleTimeoutMs:        60000,
		MaxLifetimeMs:        1800000,
		HealthCheckTimeoutMs: 3000,
		KeepaliveIntervalMs:  30000,
		MaxRetries:           3,
		RetryIntervalMs:      500,
	}
}

// SQLite builds a SQLite alias configuration. Use path ":memory:" for an
// in-process database.
func SQLite(alias, path string, createIfMissing bool, pool PoolConfig, ids IDStrategy) DatabaseConfig {
	return DatabaseConfig{
		Alias: alias,
		Type:  SQLiteType,
		Connection: ConnectionConfig{
			Path:            path,
			CreateIfMissing: createIfMissing,
		},
		Pool:       pool,
		IDStrategy: ids,
	}
}

// MySQL builds a MySQL alias configuration.
func MySQL(alias, host string, port int, user, password, database string, pool PoolConfig, ids IDStrategy) DatabaseConfig {
	return DatabaseConfig{
		Alias: alias,
		Type:  MySQLType,
		Connection: ConnectionConfig{
			Host:     host,
			Port:     port,
			User:     user,
			Password: password,
			Database: database,
		},
		Pool:       pool,
		IDStrategy: ids,
	}
}

// Postgres builds a PostgreSQL alias configuration.
func Postgres(alias, host string, port int, user, password, database string, pool PoolConfig, ids IDStrategy) DatabaseConfig {
	return DatabaseConfig{
		Alias: alias,
		Type:  PostgreSQLType,
		Connection: ConnectionConfig{
			Host:     host,
			Port:     port,
			User:     user,
			Password: password,
			Database: database,
		},
		Pool:       pool,
		IDStrategy: ids,
	}
}

// MongoDB builds a MongoDB alias configuration.
func MongoDB(alias, host string, port int, user, password, database string, pool PoolConfig, ids IDStrategy) DatabaseConfig {
	return DatabaseConfig{
		Alias: alias,
		Type:  MongoDBType,
		Connection: ConnectionConfig{
			Host:     host,
			Port:     port,
			User:     user,
			Password: password,
			Database: database,
		},
		Pool:       pool,
		IDStrategy: ids,
	}
}
