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

// Package query defines the backend-neutral query algebra. Adapters lower a
// (conditions, options) pair into parameterized SQL or a MongoDB filter.
package query

import (
	"github.com/quickodm/quickodm/value"
)

// Operator enumerates the comparison operators of the algebra.
type Operator int

const (
	Eq Operator = iota
	Ne
	Lt
	Lte
	Gt
	Gte
	In
	NotIn
	Contains
	StartsWith
	EndsWith
	Exists
	Regex
)

func (o Operator) String() string {
	switch o {
	case Eq:
		return "eq"
	case Ne:
		return "ne"
	case Lt:
		return "lt"
	case Lte:
		return "lte"
	case Gt:
		return "gt"
	case Gte:
		return "gte"
	case In:
		return "in"
	case NotIn:
		return "not_in"
	case Contains:
		return "contains"
	case StartsWith:
		return "starts_with"
	case EndsWith:
		return "ends_with"
	case Exists:
		return "exists"
	case Regex:
		return "regex"
	default:
		return "unknown"
	}
}

// Condition is one predicate over a field. For In/NotIn, Value is an array;
// for Exists, Value is a boolean.
type Condition struct {
	Field string
	Op    Operator
	Value value.Value
}

// Cond is shorthand for building a condition.
func Cond(field string, op Operator, v value.Value) Condition {
	return Condition{Field: field, Op: op, Value: v}
}

// Direction of a sort key.
type Direction int

const (
	Asc Direction = iota
	Desc
)

// SortSpec orders results by one field.
type SortSpec struct {
	Field string
	Dir   Direction
}

// Options carries sort, pagination, and projection. Limit 0 means unbounded.
// Stability of sorting across equal keys is backend-defined.
type Options struct {
	Sort       []SortSpec
	Limit      int64
	Offset     int64
	Projection []string
}
