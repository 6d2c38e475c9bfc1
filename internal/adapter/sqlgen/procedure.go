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

package sqlgen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/quickodm/quickodm/procedure"
	"github.com/quickodm/quickodm/query"
)

// Template placeholders filled per call, so one generated virtual table
// serves any WHERE/ORDER/LIMIT variant without regenerating DDL.
const (
	phWhere   = "{WHERE}"
	phGroupBy = "{GROUP_BY}"
	phHaving  = "{HAVING}"
	phOrderBy = "{ORDER_BY}"
	phLimit   = "{LIMIT}"
	phOffset  = "{OFFSET}"
)

// BuildProcedureTemplate lowers a virtual-table declaration into a SQL
// template with per-call placeholders. Projected aliases are emitted in
// sorted order so the template is deterministic.
func BuildProcedureTemplate(cfg *procedure.Config) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	aliases := make([]string, 0, len(cfg.Fields))
	for alias := range cfg.Fields {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	fields := make([]string, len(aliases))
	for i, alias := range aliases {
		expr := cfg.Fields[alias]
		if alias == expr {
			fields[i] = expr
		} else {
			fields[i] = fmt.Sprintf("%s AS %s", expr, alias)
		}
	}

	var joins strings.Builder
	for _, j := range cfg.Joins {
		fmt.Fprintf(&joins, " %s %s ON %s = %s", j.Type, j.Table, j.LocalField, j.ForeignField)
	}

	return fmt.Sprintf("SELECT %s FROM %s%s%s%s%s%s%s%s",
		strings.Join(fields, ", "),
		cfg.BaseTable(),
		joins.String(),
		phWhere, phGroupBy, phHaving, phOrderBy, phLimit, phOffset), nil
}

// FillProcedureTemplate substitutes per-call fragments into a template.
// Condition fields resolve against the projection, so operands bind
// generically.
func FillProcedureTemplate(d Dialect, template string, conds []query.Condition, opts query.Options) (Statement, error) {
	b := &binder{d: d}
	where, err := b.where(nil, conds)
	if err != nil {
		return Statement{}, err
	}
	if where != "" {
		where = " WHERE " + where
	}

	var limit, offset string
	if lo := limitOffset(d, opts); lo != "" {
		// limitOffset renders both clauses together; split them across the
		// two placeholders to keep the template shape.
		if i := strings.Index(lo, " OFFSET"); i > 0 {
			limit, offset = lo[:i], lo[i:]
		} else if strings.HasPrefix(lo, " OFFSET") {
			offset = lo
		} else {
			limit = lo
		}
	}

	sql := template
	sql = strings.Replace(sql, phWhere, where, 1)
	sql = strings.Replace(sql, phGroupBy, "", 1)
	sql = strings.Replace(sql, phHaving, "", 1)
	sql = strings.Replace(sql, phOrderBy, orderBy(d, opts.Sort), 1)
	sql = strings.Replace(sql, phLimit, limit, 1)
	sql = strings.Replace(sql, phOffset, offset, 1)
	return Statement{SQL: sql, Args: b.args}, nil
}
