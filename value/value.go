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

// Package value defines the single runtime value type that spans every
// backend. A Value is a tagged union; conversions between kinds are always
// explicit and never truncate.
package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind tags the active variant of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindDateTime
	KindUUID
	KindArray
	KindObject
	KindJSON
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindDateTime:
		return "datetime"
	case KindUUID:
		return "uuid"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindJSON:
		return "json"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is the tagged union. The zero Value is Null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string // string payload; for DateTime it carries the display offset
	bs   []byte
	t    time.Time
	u    uuid.UUID
	arr  []Value
	obj  map[string]Value
	raw  json.RawMessage
}

// Object is a record: an unordered mapping of field name to Value; field order
// comes from the model's metadata, not from the map.
type Object = map[string]Value

func Null() Value              { return Value{kind: KindNull} }
func Bool(b bool) Value        { return Value{kind: KindBool, b: b} }
func Int(i int64) Value        { return Value{kind: KindInt, i: i} }
func Float(f float64) Value    { return Value{kind: KindFloat, f: f} }
func String(s string) Value    { return Value{kind: KindString, s: s} }
func Bytes(b []byte) Value     { return Value{kind: KindBytes, bs: b} }
func UUID(u uuid.UUID) Value   { return Value{kind: KindUUID, u: u} }
func Array(vs ...Value) Value  { return Value{kind: KindArray, arr: vs} }
func ObjectOf(m Object) Value  { return Value{kind: KindObject, obj: m} }
func JSON(raw []byte) Value    { return Value{kind: KindJSON, raw: json.RawMessage(raw)} }

// Time builds a DateTime value normalized to an absolute instant. The display
// offset of t is retained for relational round-trip but never affects the
// stored instant.
func Time(t time.Time) Value {
	v := Value{kind: KindDateTime, t: t.UTC()}
	if _, off := t.Zone(); off != 0 {
		v.s = t.Format("-07:00")
	}
	return v
}

// TimeWithOffset builds a DateTime value with an explicit display offset such
// as "+08:00". The instant is still normalized to UTC.
func TimeWithOffset(t time.Time, offset string) Value {
	return Value{kind: KindDateTime, t: t.UTC(), s: offset}
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }
func (v Value) AsFloat() (float64, bool) { return v.f, v.kind == KindFloat }
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }
func (v Value) AsBytes() ([]byte, bool) { return v.bs, v.kind == KindBytes }
func (v Value) AsTime() (time.Time, bool) { return v.t, v.kind == KindDateTime }
func (v Value) AsUUID() (uuid.UUID, bool) { return v.u, v.kind == KindUUID }
func (v Value) AsArray() ([]Value, bool) { return v.arr, v.kind == KindArray }
func (v Value) AsObject() (Object, bool) { return v.obj, v.kind == KindObject }

func (v Value) AsJSON() (json.RawMessage, bool) { return v.raw, v.kind == KindJSON }

// Offset reports the display offset of a DateTime value, "" when none was
// declared.
func (v Value) Offset() string {
	if v.kind != KindDateTime {
		return ""
	}
	return v.s
}

// Equal compares two values structurally. DateTime values compare by instant,
// ignoring display offsets.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindInt:
		return a.i == b.i
	case KindFloat:
		return a.f == b.f
	case KindString:
		return a.s == b.s
	case KindBytes:
		return bytes.Equal(a.bs, b.bs)
	case KindDateTime:
		return a.t.Equal(b.t)
	case KindUUID:
		return a.u == b.u
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(a.obj) != len(b.obj) {
			return false
		}
		for k, av := range a.obj {
			bv, ok := b.obj[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	case KindJSON:
		return bytes.Equal(a.raw, b.raw)
	default:
		return false
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindString:
		return v.s
	case KindBytes:
		return fmt.Sprintf("bytes(%d)", len(v.bs))
	case KindDateTime:
		return v.t.Format(time.RFC3339Nano)
	case KindUUID:
		return v.u.String()
	case KindArray:
		return fmt.Sprintf("array(%d)", len(v.arr))
	case KindObject:
		return fmt.Sprintf("object(%d)", len(v.obj))
	case KindJSON:
		return string(v.raw)
	default:
		return "invalid"
	}
}
