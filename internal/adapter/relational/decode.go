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

package relational

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/quickodm/quickodm/config"
	"github.com/quickodm/quickodm/odmerr"
	"github.com/quickodm/quickodm/schema"
	"github.com/quickodm/quickodm/value"
)

// DecodeCell reconstructs a Value from a scanned cell. The declared field
// type drives the reconstruction; columns without a declaration (procedure
// projections) decode generically. The PostgreSQL adapter shares this path.
func DecodeCell(raw any, col string, meta *schema.ModelMeta, ids config.IDStrategyKind) (value.Value, error) {
	if raw == nil {
		return value.Null(), nil
	}
	if col == schema.IDField && meta != nil {
		return decodeID(raw, ids)
	}
	var def *schema.FieldDefinition
	if meta != nil {
		if d, ok := meta.Field(col); ok {
			def = &d
		}
	}
	if def == nil {
		return decodeGeneric(raw), nil
	}
	return decodeTyped(raw, col, def)
}

func decodeID(raw any, ids config.IDStrategyKind) (value.Value, error) {
	switch ids {
	case config.AutoIncrement:
		switch t := raw.(type) {
		case int64:
			return value.Int(t), nil
		case []byte:
			i, err := strconv.ParseInt(string(t), 10, 64)
			if err != nil {
				return value.Null(), odmerr.Query(fmt.Sprintf("malformed id cell %q", t), err)
			}
			return value.Int(i), nil
		}
	default:
		// Textual strategies round-trip as strings; PostgreSQL's native UUID
		// scans as [16]byte through pgx.
		switch t := raw.(type) {
		case string:
			return value.String(t), nil
		case []byte:
			if len(t) == 16 && ids == config.UUIDStrategy {
				u, err := uuid.FromBytes(t)
				if err == nil {
					return value.String(u.String()), nil
				}
			}
			return value.String(string(t)), nil
		case [16]byte:
			return value.String(uuid.UUID(t).String()), nil
		}
	}
	return decodeGeneric(raw), nil
}

func decodeTyped(raw any, col string, def *schema.FieldDefinition) (value.Value, error) {
	t := def.Type
	switch t.Kind {
	case schema.FieldString, schema.FieldReference:
		return value.String(cellString(raw)), nil

	case schema.FieldInteger:
		switch v := raw.(type) {
		case int64:
			return value.Int(v), nil
		case []byte, string:
			i, err := strconv.ParseInt(cellString(raw), 10, 64)
			if err != nil {
				return value.Null(), odmerr.Query(fmt.Sprintf("column %q is not an integer", col), err)
			}
			return value.Int(i), nil
		case float64:
			return value.Int(int64(v)), nil
		}

	case schema.FieldFloat:
		switch v := raw.(type) {
		case float64:
			return value.Float(v), nil
		case int64:
			return value.Float(float64(v)), nil
		case []byte, string:
			f, err := strconv.ParseFloat(cellString(raw), 64)
			if err != nil {
				return value.Null(), odmerr.Query(fmt.Sprintf("column %q is not a float", col), err)
			}
			return value.Float(f), nil
		}

	case schema.FieldBoolean:
		switch v := raw.(type) {
		case bool:
			return value.Bool(v), nil
		case int64:
			return value.Bool(v != 0), nil
		case []byte, string:
			s := cellString(raw)
			return value.Bool(s == "1" || s == "true"), nil
		}

	case schema.FieldDateTime:
		switch v := raw.(type) {
		case time.Time:
			return withOffset(value.Time(v), t.Timezone), nil
		case []byte, string:
			parsed, err := schema.ParseDateTime(cellString(raw))
			if err != nil {
				return value.Null(), odmerr.Query(fmt.Sprintf("column %q holds a malformed datetime", col), err)
			}
			return withOffset(parsed, t.Timezone), nil
		}

	case schema.FieldUUID:
		switch v := raw.(type) {
		case [16]byte:
			return value.UUID(uuid.UUID(v)), nil
		case []byte:
			if len(v) == 16 {
				if u, err := uuid.FromBytes(v); err == nil {
					return value.UUID(u), nil
				}
			}
			u, err := uuid.Parse(string(v))
			if err != nil {
				return value.Null(), odmerr.Query(fmt.Sprintf("column %q holds a malformed uuid", col), err)
			}
			return value.UUID(u), nil
		case string:
			u, err := uuid.Parse(v)
			if err != nil {
				return value.Null(), odmerr.Query(fmt.Sprintf("column %q holds a malformed uuid", col), err)
			}
			return value.UUID(u), nil
		}

	case schema.FieldBytes:
		if v, ok := raw.([]byte); ok {
			return value.Bytes(v), nil
		}
		return value.Bytes([]byte(cellString(raw))), nil

	case schema.FieldArray:
		elem := value.KindString
		if t.Element != nil {
			elem = elementKind(t.Element.Kind)
		}
		arr, err := value.DecodeArrayText(cellString(raw), elem)
		if err != nil {
			return value.Null(), odmerr.Query(fmt.Sprintf("column %q holds a malformed array", col), err)
		}
		return value.Array(arr...), nil

	case schema.FieldObject:
		var m map[string]any
		if err := json.Unmarshal([]byte(cellString(raw)), &m); err != nil {
			return value.Null(), odmerr.Query(fmt.Sprintf("column %q holds a malformed object", col), err)
		}
		return value.FromAny(m), nil

	case schema.FieldJSON:
		return value.JSON([]byte(cellString(raw))), nil
	}
	return decodeGeneric(raw), nil
}

func elementKind(k schema.FieldKind) value.Kind {
	switch k {
	case schema.FieldInteger:
		return value.KindInt
	case schema.FieldFloat:
		return value.KindFloat
	case schema.FieldBoolean:
		return value.KindBool
	case schema.FieldDateTime:
		return value.KindDateTime
	case schema.FieldUUID:
		return value.KindUUID
	default:
		return value.KindString
	}
}

func withOffset(v value.Value, tz string) value.Value {
	if tz == "" {
		return v
	}
	t, _ := v.AsTime()
	return value.TimeWithOffset(t, tz)
}

func cellString(raw any) string {
	switch t := raw.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func decodeGeneric(raw any) value.Value {
	switch t := raw.(type) {
	case []byte:
		return value.String(string(t))
	default:
		return value.FromAny(raw)
	}
}
