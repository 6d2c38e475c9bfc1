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

// Package schema holds field definitions, model metadata, and the validation
// and coercion rules that bind runtime values to declared fields.
package schema

import (
	"github.com/quickodm/quickodm/value"
)

// FieldKind enumerates the declarable field types.
type FieldKind int

const (
	FieldString FieldKind = iota
	FieldInteger
	FieldFloat
	FieldBoolean
	FieldDateTime
	FieldUUID
	FieldBytes
	FieldArray
	FieldObject
	FieldJSON
	FieldReference
)

func (k FieldKind) String() string {
	switch k {
	case FieldString:
		return "string"
	case FieldInteger:
		return "integer"
	case FieldFloat:
		return "float"
	case FieldBoolean:
		return "boolean"
	case FieldDateTime:
		return "datetime"
	case FieldUUID:
		return "uuid"
	case FieldBytes:
		return "bytes"
	case FieldArray:
		return "array"
	case FieldObject:
		return "object"
	case FieldJSON:
		return "json"
	case FieldReference:
		return "reference"
	default:
		return "unknown"
	}
}

// FieldType carries the kind plus its per-kind constraints. Unused constraint
// pointers stay nil.
type FieldType struct {
	Kind      FieldKind
	MaxLength *int
	MinLength *int
	Pattern   string
	MinInt    *int64
	MaxInt    *int64
	MinFloat  *float64
	MaxFloat  *float64
	Timezone  string
	Element   *FieldType
	MaxItems  *int
	MinItems  *int
	Fields    map[string]FieldDefinition
	Target    string
}

// FieldDefinition is a FieldType plus the declaration flags and the optional
// default value.
type FieldDefinition struct {
	Type     FieldType
	Required bool
	Unique   bool
	Indexed  bool
	Default  *value.Value
}

// WithRequired marks the field as mandatory.
func (d FieldDefinition) WithRequired() FieldDefinition {
	d.Required = true
	return d
}

// WithUnique marks the field as unique; relational backends enforce it with a
// unique index, the document backend with a unique collection index.
func (d FieldDefinition) WithUnique() FieldDefinition {
	d.Unique = true
	return d
}

// WithIndexed requests a single-field index.
func (d FieldDefinition) WithIndexed() FieldDefinition {
	d.Indexed = true
	return d
}

// WithDefault sets the value applied when a record omits the field.
func (d FieldDefinition) WithDefault(v value.Value) FieldDefinition {
	d.Default = &v
	return d
}

// StringField declares a string field. Nil bounds mean unconstrained; pattern
// is an optional anchored-or-not regular expression.
func StringField(maxLen, minLen *int, pattern string) FieldDefinition {
	return FieldDefinition{Type: FieldType{Kind: FieldString, MaxLength: maxLen, MinLength: minLen, Pattern: pattern}}
}

func IntegerField(min, max *int64) FieldDefinition {
	return FieldDefinition{Type: FieldType{Kind: FieldInteger, MinInt: min, MaxInt: max}}
}

func FloatField(min, max *float64) FieldDefinition {
	return FieldDefinition{Type: FieldType{Kind: FieldFloat, MinFloat: min, MaxFloat: max}}
}

func BooleanField() FieldDefinition {
	return FieldDefinition{Type: FieldType{Kind: FieldBoolean}}
}

// DateTimeField declares a datetime field. tz, when non-empty, is the display
// offset applied on read-back; storage is always the absolute instant.
func DateTimeField(tz string) FieldDefinition {
	return FieldDefinition{Type: FieldType{Kind: FieldDateTime, Timezone: tz}}
}

func UUIDField() FieldDefinition {
	return FieldDefinition{Type: FieldType{Kind: FieldUUID}}
}

func BytesField() FieldDefinition {
	return FieldDefinition{Type: FieldType{Kind: FieldBytes}}
}

func JSONField() FieldDefinition {
	return FieldDefinition{Type: FieldType{Kind: FieldJSON}}
}

// ArrayField declares a homogeneous array of elem with optional size bounds.
func ArrayField(elem FieldType, maxItems, minItems *int) FieldDefinition {
	e := elem
	return FieldDefinition{Type: FieldType{Kind: FieldArray, Element: &e, MaxItems: maxItems, MinItems: minItems}}
}

func ObjectField(fields map[string]FieldDefinition) FieldDefinition {
	return FieldDefinition{Type: FieldType{Kind: FieldObject, Fields: fields}}
}

// ReferenceField declares a foreign reference to another collection. The
// stored value is the referenced record's identifier.
func ReferenceField(target string) FieldDefinition {
	return FieldDefinition{Type: FieldType{Kind: FieldReference, Target: target}}
}
