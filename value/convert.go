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

package value

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ToAny lowers a Value into plain Go data suitable for encoding/json and for
// driver binding of document backends. DateTime becomes an RFC3339 string,
// UUID its textual form.
func ToAny(v Value) any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindBytes:
		return v.bs
	case KindDateTime:
		return v.t.Format(time.RFC3339Nano)
	case KindUUID:
		return v.u.String()
	case KindArray:
		out := make([]any, len(v.arr))
		for i, e := range v.arr {
			out[i] = ToAny(e)
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.obj))
		for k, e := range v.obj {
			out[k] = ToAny(e)
		}
		return out
	case KindJSON:
		return v.raw
	default:
		return nil
	}
}

// FromAny lifts plain Go data into a Value. It accepts the types produced by
// encoding/json (with and without UseNumber), the driver scan types of the
// relational backends, and native time/uuid values.
func FromAny(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case bool:
		return Bool(t)
	case int:
		return Int(int64(t))
	case int32:
		return Int(int64(t))
	case int64:
		return Int(t)
	case uint64:
		return Int(int64(t))
	case float32:
		return Float(float64(t))
	case float64:
		return Float(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i)
		}
		f, _ := t.Float64()
		return Float(f)
	case string:
		return String(t)
	case []byte:
		return Bytes(t)
	case json.RawMessage:
		return JSON(t)
	case time.Time:
		return Time(t)
	case uuid.UUID:
		return UUID(t)
	case []any:
		vs := make([]Value, len(t))
		for i, e := range t {
			vs[i] = FromAny(e)
		}
		return Array(vs...)
	case map[string]any:
		m := make(Object, len(t))
		for k, e := range t {
			m[k] = FromAny(e)
		}
		return ObjectOf(m)
	default:
		return String(fmt.Sprintf("%v", t))
	}
}

// ElementRepr renders a scalar array element as its canonical text, without
// quotes. EncodeArrayText stores every element as a quoted string — "42",
// "true", "rust" — so that a
// substring predicate over the stored JSON text cannot match a numeric prefix
// of a longer element (1 must not match 12).
func ElementRepr(v Value) (string, error) {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b), nil
	case KindInt:
		return strconv.FormatInt(v.i, 10), nil
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64), nil
	case KindString:
		return v.s, nil
	case KindDateTime:
		return v.t.Format(time.RFC3339Nano), nil
	case KindUUID:
		return v.u.String(), nil
	default:
		return "", fmt.Errorf("array element kind %s has no canonical representation", v.kind)
	}
}

// EncodeArrayText serializes an array for relational storage: a JSON array in
// which every element, whatever its declared type, is a quoted string.
func EncodeArrayText(elems []Value) (string, error) {
	reprs := make([]string, len(elems))
	for i, e := range elems {
		r, err := ElementRepr(e)
		if err != nil {
			return "", err
		}
		reprs[i] = r
	}
	out, err := json.Marshal(reprs)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// DecodeArrayText parses the quoted-string encoding back into typed elements.
func DecodeArrayText(text string, elem Kind) ([]Value, error) {
	var reprs []string
	if err := json.Unmarshal([]byte(text), &reprs); err != nil {
		return nil, fmt.Errorf("malformed array text: %w", err)
	}
	out := make([]Value, len(reprs))
	for i, r := range reprs {
		v, err := elementFromRepr(r, elem)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func elementFromRepr(r string, elem Kind) (Value, error) {
	switch elem {
	case KindString:
		return String(r), nil
	case KindBool:
		b, err := strconv.ParseBool(r)
		if err != nil {
			return Value{}, fmt.Errorf("array element %q is not a bool", r)
		}
		return Bool(b), nil
	case KindInt:
		i, err := strconv.ParseInt(r, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("array element %q is not an integer", r)
		}
		return Int(i), nil
	case KindFloat:
		f, err := strconv.ParseFloat(r, 64)
		if err != nil {
			return Value{}, fmt.Errorf("array element %q is not a float", r)
		}
		return Float(f), nil
	case KindDateTime:
		t, err := time.Parse(time.RFC3339Nano, r)
		if err != nil {
			return Value{}, fmt.Errorf("array element %q is not a datetime", r)
		}
		return Time(t), nil
	case KindUUID:
		u, err := uuid.Parse(r)
		if err != nil {
			return Value{}, fmt.Errorf("array element %q is not a uuid", r)
		}
		return UUID(u), nil
	default:
		return Value{}, fmt.Errorf("array element kind %s cannot be decoded from text", elem)
	}
}
