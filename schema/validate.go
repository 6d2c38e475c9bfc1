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

package schema

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/quickodm/quickodm/odmerr"
	"github.com/quickodm/quickodm/value"
)

// datetime layouts accepted when a caller supplies a string for a DateTime
// field, tried in order.
var datetimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Coerce converts v toward the target type. Conversion is explicit and
// one-directional: strings parse into datetime and uuid, integers widen into
// floats; any other kind mismatch fails. Narrowing never happens.
func Coerce(v value.Value, t FieldType) (value.Value, error) {
	if v.IsNull() {
		return v, nil
	}
	switch t.Kind {
	case FieldString:
		if _, ok := v.AsString(); ok {
			return v, nil
		}
	case FieldInteger:
		if _, ok := v.AsInt(); ok {
			return v, nil
		}
	case FieldFloat:
		if _, ok := v.AsFloat(); ok {
			return v, nil
		}
		if i, ok := v.AsInt(); ok {
			return value.Float(float64(i)), nil
		}
	case FieldBoolean:
		if _, ok := v.AsBool(); ok {
			return v, nil
		}
	case FieldDateTime:
		if _, ok := v.AsTime(); ok {
			return v, nil
		}
		if s, ok := v.AsString(); ok {
			return ParseDateTime(s)
		}
	case FieldUUID:
		if _, ok := v.AsUUID(); ok {
			return v, nil
		}
		if s, ok := v.AsString(); ok {
			u, err := uuid.Parse(s)
			if err != nil {
				return value.Value{}, fmt.Errorf("%q is not a valid uuid", s)
			}
			return value.UUID(u), nil
		}
	case FieldBytes:
		if _, ok := v.AsBytes(); ok {
			return v, nil
		}
	case FieldArray:
		arr, ok := v.AsArray()
		if !ok {
			break
		}
		if t.Element == nil {
			return v, nil
		}
		out := make([]value.Value, len(arr))
		for i, e := range arr {
			ce, err := Coerce(e, *t.Element)
			if err != nil {
				return value.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = ce
		}
		return value.Array(out...), nil
	case FieldObject:
		if _, ok := v.AsObject(); ok {
			return v, nil
		}
	case FieldJSON:
		if _, ok := v.AsJSON(); ok {
			return v, nil
		}
		switch v.Kind() {
		case value.KindObject, value.KindArray:
			raw, err := json.Marshal(value.ToAny(v))
			if err != nil {
				return value.Value{}, err
			}
			return value.JSON(raw), nil
		}
	case FieldReference:
		switch v.Kind() {
		case value.KindString, value.KindInt, value.KindUUID:
			return v, nil
		}
	}
	return value.Value{}, fmt.Errorf("cannot coerce %s into %s", v.Kind(), t.Kind)
}

// ParseDateTime parses a caller-supplied datetime string and normalizes it to
// an absolute instant, keeping the textual offset for round-trip display.
func ParseDateTime(s string) (value.Value, error) {
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return value.Time(t), nil
		}
	}
	return value.Value{}, fmt.Errorf("%q is not a recognized datetime", s)
}

// Validate coerces v against the named field definition and checks every
// declared constraint. A nil error means the (coerced) value may be bound.
func Validate(name string, v value.Value, def FieldDefinition) (value.Value, error) {
	if v.IsNull() {
		if def.Required && def.Default == nil {
			return value.Value{}, odmerr.Validation(name, "field is required")
		}
		if def.Default != nil {
			v = *def.Default
		} else {
			return v, nil
		}
	}
	cv, err := Coerce(v, def.Type)
	if err != nil {
		return value.Value{}, odmerr.Validation(name, err.Error())
	}
	if err := checkConstraints(name, cv, def.Type); err != nil {
		return value.Value{}, err
	}
	return cv, nil
}

func checkConstraints(name string, v value.Value, t FieldType) error {
	switch t.Kind {
	case FieldString:
		s, _ := v.AsString()
		n := utf8.RuneCountInString(s)
		if t.MinLength != nil && n < *t.MinLength {
			return odmerr.Validation(name, fmt.Sprintf("length %d is below minimum %d", n, *t.MinLength))
		}
		if t.MaxLength != nil && n > *t.MaxLength {
			return odmerr.Validation(name, fmt.Sprintf("length %d exceeds maximum %d", n, *t.MaxLength))
		}
		if t.Pattern != "" {
			re, err := regexp.Compile(t.Pattern)
			if err != nil {
				return odmerr.Validation(name, fmt.Sprintf("invalid pattern %q", t.Pattern))
			}
			if !re.MatchString(s) {
				return odmerr.Validation(name, fmt.Sprintf("value does not match pattern %q", t.Pattern))
			}
		}
	case FieldInteger:
		i, _ := v.AsInt()
		if t.MinInt != nil && i < *t.MinInt {
			return odmerr.Validation(name, fmt.Sprintf("value %d is below minimum %d", i, *t.MinInt))
		}
		if t.MaxInt != nil && i > *t.MaxInt {
			return odmerr.Validation(name, fmt.Sprintf("value %d exceeds maximum %d", i, *t.MaxInt))
		}
	case FieldFloat:
		f, _ := v.AsFloat()
		if t.MinFloat != nil && f < *t.MinFloat {
			return odmerr.Validation(name, fmt.Sprintf("value %g is below minimum %g", f, *t.MinFloat))
		}
		if t.MaxFloat != nil && f > *t.MaxFloat {
			return odmerr.Validation(name, fmt.Sprintf("value %g exceeds maximum %g", f, *t.MaxFloat))
		}
	case FieldArray:
		arr, _ := v.AsArray()
		if t.MinItems != nil && len(arr) < *t.MinItems {
			return odmerr.Validation(name, fmt.Sprintf("%d elements is below minimum %d", len(arr), *t.MinItems))
		}
		if t.MaxItems != nil && len(arr) > *t.MaxItems {
			return odmerr.Validation(name, fmt.Sprintf("%d elements exceeds maximum %d", len(arr), *t.MaxItems))
		}
		if t.Element != nil {
			for i, e := range arr {
				if err := checkConstraints(fmt.Sprintf("%s[%d]", name, i), e, *t.Element); err != nil {
					return err
				}
			}
		}
	case FieldObject:
		obj, _ := v.AsObject()
		for fn, fd := range t.Fields {
			sub := obj[fn]
			if _, err := Validate(name+"."+fn, sub, fd); err != nil {
				return err
			}
		}
	}
	return nil
}

// ValidateRecord validates every declared field of meta against record,
// returning a new record with coerced values and defaults applied. Unknown
// fields in the record are rejected.
func ValidateRecord(meta *ModelMeta, record value.Object) (value.Object, error) {
	out := make(value.Object, len(record))
	for name := range record {
		if name == IDField {
			continue
		}
		if _, ok := meta.Field(name); !ok {
			return nil, odmerr.Validation(name, fmt.Sprintf("field is not declared on model %q", meta.Collection))
		}
	}
	for _, f := range meta.Fields {
		if f.Name == IDField {
			continue
		}
		v, err := Validate(f.Name, record[f.Name], f.Def)
		if err != nil {
			return nil, err
		}
		if !v.IsNull() {
			out[f.Name] = v
		}
	}
	if id, ok := record[IDField]; ok && !id.IsNull() {
		out[IDField] = id
	}
	return out, nil
}
