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

// Package config declares the database, pool, and identifier-strategy
// configuration surface. Every knob is explicit: nothing is defaulted at the
// API boundary, though builder sugar exists for common shapes.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/quickodm/quickodm/odmerr"
)

// DatabaseType names a supported backend.
type DatabaseType string

const (
	SQLiteType     DatabaseType = "sqlite"
	MySQLType      DatabaseType = "mysql"
	PostgreSQLType DatabaseType = "postgres"
	MongoDBType    DatabaseType = "mongodb"
)

// IDStrategyKind selects how identifiers are allocated for every model on an
// alias.
type IDStrategyKind string

const (
	AutoIncrement IDStrategyKind = "auto_increment"
	UUIDStrategy  IDStrategyKind = "uuid"
	ObjectID      IDStrategyKind = "object_id"
	Snowflake     IDStrategyKind = "snowflake"
)

// IDStrategy fixes the runtime type and allocation source of the id field.
// MachineID and DatacenterID apply to the snowflake kind only.
type IDStrategy struct {
	Kind         IDStrategyKind `yaml:"kind" validate:"required,oneof=auto_increment uuid object_id snowflake"`
	MachineID    int64          `yaml:"machineId" validate:"min=0,max=31"`
	DatacenterID int64          `yaml:"datacenterId" validate:"min=0,max=31"`
}

// PoolConfig exposes the seven timing knobs of a connection pool. Durations
// are milliseconds in configuration files.
type PoolConfig struct {
	MaxConnections       int   `yaml:"maxConnections" validate:"required,min=1"`
	MinConnections       int   `yaml:"minConnections" validate:"min=0"`
	ConnectionTimeoutMs  int64 `yaml:"connectionTimeoutMs" validate:"required,min=1"`
	IdleTimeoutMs        int64 `yaml:"idleTimeoutMs" validate:"min=0"`
	MaxLifetimeMs        int64 `yaml:"maxLifetimeMs" validate:"min=0"`
	HealthCheckTimeoutMs int64 `yaml:"healthCheckTimeoutMs" validate:"min=0"`
	KeepaliveIntervalMs  int64 `yaml:"keepaliveIntervalMs" validate:"min=0"`
	MaxRetries           int   `yaml:"maxRetries" validate:"min=0"`
	RetryIntervalMs      int64 `yaml:"retryIntervalMs" validate:"min=0"`
}

func (p PoolConfig) ConnectionTimeout() time.Duration {
	return time.Duration(p.ConnectionTimeoutMs) * time.Millisecond
}

func (p PoolConfig) IdleTimeout() time.Duration {
	return time.Duration(p.IdleTimeoutMs) * time.Millisecond
}

func (p PoolConfig) MaxLifetime() time.Duration {
	return time.Duration(p.MaxLifetimeMs) * time.Millisecond
}

func (p PoolConfig) HealthCheckTimeout() time.Duration {
	return time.Duration(p.HealthCheckTimeoutMs) * time.Millisecond
}

func (p PoolConfig) KeepaliveInterval() time.Duration {
	return time.Duration(p.KeepaliveIntervalMs) * time.Millisecond
}

func (p PoolConfig) RetryInterval() time.Duration {
	return time.Duration(p.RetryIntervalMs) * time.Millisecond
}

// TLSConfig configures transport security for network backends.
type TLSConfig struct {
	Enabled            bool   `yaml:"enabled"`
	CAFile             string `yaml:"caFile"`
	CertFile           string `yaml:"certFile"`
	KeyFile            string `yaml:"keyFile"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify"`
}

// CompressionConfig enables wire compression where the driver supports it
// (MongoDB zstd).
type CompressionConfig struct {
	Enabled bool `yaml:"enabled"`
	Level   int  `yaml:"level" validate:"min=0,max=22"`
}

// CacheConfig is an optional read-through cache declaration for an alias.
type CacheConfig struct {
	Enabled    bool  `yaml:"enabled"`
	TTLSeconds int64 `yaml:"ttlSeconds" validate:"min=0"`
	MaxEntries int   `yaml:"maxEntries" validate:"min=0"`
}

// ConnectionConfig is the tagged union of per-backend connection parameters,
// keyed by the owning DatabaseConfig's type. SQLite uses Path and
// CreateIfMissing; network backends use Host/Port/User/Password/Database;
// the Mongo-specific members stay nil elsewhere.
type ConnectionConfig struct {
	// SQLite
	Path            string `yaml:"path"`
	CreateIfMissing bool   `yaml:"createIfMissing"`

	// Network backends
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`

	// MongoDB
	AuthSource       string             `yaml:"authSource"`
	DirectConnection bool               `yaml:"directConnection"`
	TLS              *TLSConfig         `yaml:"tls"`
	Compression      *CompressionConfig `yaml:"compression"`
	Options          map[string]string  `yaml:"options"`
}

// DatabaseConfig declares one named backend.
type DatabaseConfig struct {
	Alias      string           `yaml:"alias" validate:"required"`
	Type       DatabaseType     `yaml:"type" validate:"required,oneof=sqlite mysql postgres mongodb"`
	Connection ConnectionConfig `yaml:"connection"`
	Pool       PoolConfig       `yaml:"pool"`
	Cache      *CacheConfig     `yaml:"cache"`
	IDStrategy IDStrategy       `yaml:"idStrategy"`
}

var validate = validator.New()

// Validate checks struct tags plus the per-type connection invariants.
func (c *DatabaseConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return odmerr.Config(err.Error())
	}
	switch c.Type {
	case SQLiteType:
		if c.Connection.Path == "" {
			return odmerr.Config(fmt.Sprintf("alias %q: sqlite requires a path", c.Alias))
		}
	case MySQLType, PostgreSQLType:
		if c.Connection.Host == "" || c.Connection.Port == 0 || c.Connection.Database == "" {
			return odmerr.Config(fmt.Sprintf("alias %q: %s requires host, port, and database", c.Alias, c.Type))
		}
	case MongoDBType:
		if c.Connection.Host == "" || c.Connection.Port == 0 || c.Connection.Database == "" {
			return odmerr.Config(fmt.Sprintf("alias %q: mongodb requires host, port, and database", c.Alias))
		}
		if c.IDStrategy.Kind == AutoIncrement {
			return odmerr.Config(fmt.Sprintf("alias %q: auto_increment ids are relational-only", c.Alias))
		}
	}
	return nil
}
