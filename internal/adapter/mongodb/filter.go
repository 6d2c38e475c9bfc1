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

package mongodb

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/quickodm/quickodm/config"
	"github.com/quickodm/quickodm/odmerr"
	"github.com/quickodm/quickodm/query"
	"github.com/quickodm/quickodm/schema"
	"github.com/quickodm/quickodm/value"
)

// idKey is the document store's identifier field; the value model's id field
// maps onto it at the adapter boundary.
const idKey = "_id"

func fieldKey(name string) string {
	if name == schema.IDField {
		return idKey
	}
	return name
}

// toBSON lowers a Value into its driver-native form. UUIDs become binary
// subtype 4, datetimes native instants, arrays native lists.
func toBSON(v value.Value) any {
	switch v.Kind() {
	case value.KindNull:
		return nil
	case value.KindBool:
		b, _ := v.AsBool()
		return b
	case value.KindInt:
		i, _ := v.AsInt()
		return i
	case value.KindFloat:
		f, _ := v.AsFloat()
		return f
	case value.KindString:
		s, _ := v.AsString()
		return s
	case value.KindBytes:
		bs, _ := v.AsBytes()
		return bson.Binary{Subtype: 0x00, Data: bs}
	case value.KindDateTime:
		t, _ := v.AsTime()
		return t
	case value.KindUUID:
		u, _ := v.AsUUID()
		return bson.Binary{Subtype: 0x04, Data: u[:]}
	case value.KindArray:
		arr, _ := v.AsArray()
		out := make(bson.A, len(arr))
		for i, e := range arr {
			out[i] = toBSON(e)
		}
		return out
	case value.KindObject:
		obj, _ := v.AsObject()
		out := make(bson.M, len(obj))
		for k, e := range obj {
			out[k] = toBSON(e)
		}
		return out
	case value.KindJSON:
		raw, _ := v.AsJSON()
		var doc any
		if err := bson.UnmarshalExtJSON(raw, false, &doc); err != nil {
			return string(raw)
		}
		return doc
	default:
		return nil
	}
}

// fromBSON lifts a decoded driver value back into the value model.
func fromBSON(x any) value.Value {
	switch t := x.(type) {
	case nil:
		return value.Null()
	case bson.Binary:
		if t.Subtype == 0x04 && len(t.Data) == 16 {
			if u, err := uuid.FromBytes(t.Data); err == nil {
				return value.UUID(u)
			}
		}
		return value.Bytes(t.Data)
	case bson.DateTime:
		return value.Time(t.Time())
	case time.Time:
		return value.Time(t)
	case bson.ObjectID:
		return value.String(t.Hex())
	case int32:
		return value.Int(int64(t))
	case bson.A:
		vs := make([]value.Value, len(t))
		for i, e := range t {
			vs[i] = fromBSON(e)
		}
		return value.Array(vs...)
	case bson.M:
		m := make(value.Object, len(t))
		for k, e := range t {
			m[k] = fromBSON(e)
		}
		return value.ObjectOf(m)
	case bson.D:
		m := make(value.Object, len(t))
		for _, e := range t {
			m[e.Key] = fromBSON(e.Value)
		}
		return value.ObjectOf(m)
	default:
		return value.FromAny(x)
	}
}

// bindCondValue validates and coerces an operand against its declared field
// before lowering, mirroring the relational bind path.
func bindCondValue(meta *schema.ModelMeta, ids config.IDStrategyKind, c query.Condition) (value.Value, error) {
	if c.Field == schema.IDField {
		return c.Value, nil
	}
	def, ok := meta.Field(c.Field)
	if !ok {
		return c.Value, nil
	}
	t := def.Type
	if t.Kind == schema.FieldArray && t.Element != nil {
		// Membership predicates compare against one element.
		t = *t.Element
	}
	switch c.Op {
	case query.Exists:
		// The operand is a presence flag, not a field value.
		return c.Value, nil
	case query.In, query.NotIn:
		// The operand is a list; each element is coerced against the field.
		elem := t
		t = schema.FieldType{Kind: schema.FieldArray, Element: &elem}
	}
	cv, err := schema.Coerce(c.Value, t)
	if err != nil {
		return value.Value{}, odmerr.Validation(c.Field, err.Error())
	}
	return cv, nil
}

// idToBSON converts an id value into its stored form per the alias strategy:
// object-id hex strings become native ObjectIDs.
func idToBSON(ids config.IDStrategyKind, v value.Value) (any, error) {
	if ids == config.ObjectID {
		s, ok := v.AsString()
		if !ok {
			return nil, odmerr.Validation(schema.IDField, "object id must be a 24-hex string")
		}
		oid, err := bson.ObjectIDFromHex(s)
		if err != nil {
			return nil, odmerr.Validation(schema.IDField, fmt.Sprintf("%q is not a valid object id", s))
		}
		return oid, nil
	}
	return toBSON(v), nil
}

// BuildFilter lowers conditions into a filter document.
func BuildFilter(meta *schema.ModelMeta, ids config.IDStrategyKind, conds []query.Condition) (bson.D, error) {
	filter := bson.D{}
	for _, c := range conds {
		key := fieldKey(c.Field)
		cv, err := bindCondValue(meta, ids, c)
		if err != nil {
			return nil, err
		}

		lowerOperand := func(v value.Value) (any, error) {
			if c.Field == schema.IDField {
				return idToBSON(ids, v)
			}
			return toBSON(v), nil
		}

		switch c.Op {
		case query.Eq, query.Ne, query.Lt, query.Lte, query.Gt, query.Gte:
			operand, err := lowerOperand(cv)
			if err != nil {
				return nil, err
			}
			filter = append(filter, bson.E{Key: key, Value: bson.M{mongoCmp(c.Op): operand}})

		case query.In, query.NotIn:
			elems, ok := cv.AsArray()
			if !ok {
				return nil, odmerr.Validation(c.Field, "in operator requires an array operand")
			}
			list := make(bson.A, len(elems))
			for i, e := range elems {
				operand, err := lowerOperand(e)
				if err != nil {
					return nil, err
				}
				list[i] = operand
			}
			op := "$in"
			if c.Op == query.NotIn {
				op = "$nin"
			}
			// An empty $in list matches nothing, which is exactly the uniform
			// In([]) behavior.
			filter = append(filter, bson.E{Key: key, Value: bson.M{op: list}})

		case query.Contains, query.StartsWith, query.EndsWith:
			def, _ := meta.Field(c.Field)
			if def.Type.Kind == schema.FieldArray {
				// Element membership: direct equality inside the list.
				operand, err := lowerOperand(cv)
				if err != nil {
					return nil, err
				}
				filter = append(filter, bson.E{Key: key, Value: operand})
				continue
			}
			s, ok := cv.AsString()
			if !ok {
				return nil, odmerr.Validation(c.Field, fmt.Sprintf("%s requires a string operand", c.Op))
			}
			pattern := regexp.QuoteMeta(s)
			switch c.Op {
			case query.StartsWith:
				pattern = "^" + pattern
			case query.EndsWith:
				pattern = pattern + "$"
			}
			filter = append(filter, bson.E{Key: key, Value: bson.Regex{Pattern: pattern}})

		case query.Exists:
			want, ok := cv.AsBool()
			if !ok {
				return nil, odmerr.Validation(c.Field, "exists operator requires a boolean operand")
			}
			filter = append(filter, bson.E{Key: key, Value: bson.M{"$exists": want}})

		case query.Regex:
			s, ok := cv.AsString()
			if !ok {
				return nil, odmerr.Validation(c.Field, "regex operator requires a string operand")
			}
			filter = append(filter, bson.E{Key: key, Value: bson.Regex{Pattern: s}})

		default:
			return nil, odmerr.Validation(c.Field, fmt.Sprintf("operator %s is not lowerable", c.Op))
		}
	}
	return filter, nil
}

func mongoCmp(op query.Operator) string {
	switch op {
	case query.Eq:
		return "$eq"
	case query.Ne:
		return "$ne"
	case query.Lt:
		return "$lt"
	case query.Lte:
		return "$lte"
	case query.Gt:
		return "$gt"
	case query.Gte:
		return "$gte"
	}
	return "$eq"
}

// BuildSort lowers sort specs into a sort document.
func BuildSort(sort []query.SortSpec) bson.D {
	out := bson.D{}
	for _, s := range sort {
		dir := 1
		if s.Dir == query.Desc {
			dir = -1
		}
		out = append(out, bson.E{Key: fieldKey(s.Field), Value: dir})
	}
	return out
}

// BuildProjection lowers a projection list; id is always included so records
// keep their identity.
func BuildProjection(fields []string) bson.D {
	out := bson.D{}
	for _, f := range fields {
		out = append(out, bson.E{Key: fieldKey(f), Value: 1})
	}
	return out
}
