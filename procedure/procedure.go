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

// Package procedure declares cross-table projections ("virtual tables") that
// relational adapters lower to SQL templates. Document backends reject them.
package procedure

import (
	"github.com/quickodm/quickodm/odmerr"
	"github.com/quickodm/quickodm/schema"
)

// JoinType selects the SQL join flavor.
type JoinType int

const (
	Inner JoinType = iota
	Left
	Right
	Full
)

func (j JoinType) String() string {
	switch j {
	case Inner:
		return "INNER JOIN"
	case Left:
		return "LEFT JOIN"
	case Right:
		return "RIGHT JOIN"
	case Full:
		return "FULL OUTER JOIN"
	}
	return "JOIN"
}

// Join relates a joined table to the running projection. LocalField and
// ForeignField are fully qualified ("table.column").
type Join struct {
	Table        string
	LocalField   string
	ForeignField string
	Type         JoinType
}

// Config declares a named virtual table: a base model, its joined models, and
// a projection of alias → SQL expression.
type Config struct {
	Name         string
	Database     string
	Dependencies []*schema.ModelMeta
	Joins        []Join
	Fields       map[string]string
}

// Validate rejects configurations that cannot produce a well-formed template.
func (c *Config) Validate() error {
	if c.Name == "" {
		return odmerr.Validation("procedure_name", "procedure name must not be empty")
	}
	if c.Database == "" {
		return odmerr.Validation("database", "database alias must not be empty")
	}
	if len(c.Fields) == 0 {
		return odmerr.Validation("fields", "at least one projected field is required")
	}
	if len(c.Dependencies) == 0 {
		return odmerr.Validation("dependencies", "at least one dependency table is required")
	}
	for _, j := range c.Joins {
		if j.LocalField == "" || j.ForeignField == "" {
			return odmerr.Validation("join_fields", "join endpoints must not be empty")
		}
	}
	return nil
}

// BaseTable returns the first dependency's collection, the FROM table.
func (c *Config) BaseTable() string {
	if len(c.Dependencies) == 0 {
		return ""
	}
	return c.Dependencies[0].Collection
}

// Builder assembles a Config through chained calls.
type Builder struct {
	cfg Config
}

// NewBuilder starts a builder for the named procedure on the given alias.
func NewBuilder(name, database string) *Builder {
	return &Builder{cfg: Config{
		Name:     name,
		Database: database,
		Fields:   make(map[string]string),
	}}
}

// WithDependency appends a dependency table; the first becomes the base.
func (b *Builder) WithDependency(meta *schema.ModelMeta) *Builder {
	b.cfg.Dependencies = append(b.cfg.Dependencies, meta)
	return b
}

// WithJoin joins meta's collection on localField = foreignField.
func (b *Builder) WithJoin(meta *schema.ModelMeta, localField, foreignField string, jt JoinType) *Builder {
	b.cfg.Dependencies = append(b.cfg.Dependencies, meta)
	b.cfg.Joins = append(b.cfg.Joins, Join{
		Table:        meta.Collection,
		LocalField:   localField,
		ForeignField: foreignField,
		Type:         jt,
	})
	return b
}

// WithField projects expression under alias.
func (b *Builder) WithField(alias, expression string) *Builder {
	b.cfg.Fields[alias] = expression
	return b
}

// Build validates and returns the configuration.
func (b *Builder) Build() (*Config, error) {
	cfg := b.cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
