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
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

func TestKinds(t *testing.T) {
	u := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	tests := []struct {
		name string
		v    Value
		want Kind
	}{
		{"null", Null(), KindNull},
		{"bool", Bool(true), KindBool},
		{"int", Int(42), KindInt},
		{"float", Float(1.5), KindFloat},
		{"string", String("x"), KindString},
		{"bytes", Bytes([]byte{1}), KindBytes},
		{"datetime", Time(time.Now()), KindDateTime},
		{"uuid", UUID(u), KindUUID},
		{"array", Array(Int(1)), KindArray},
		{"object", ObjectOf(Object{"a": Int(1)}), KindObject},
		{"json", JSON([]byte(`{"a":1}`)), KindJSON},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.v.Kind(); got != tc.want {
				t.Errorf("Kind() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestTimeNormalizesToInstant(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	local := time.Date(2024, 3, 1, 20, 0, 0, 0, loc)
	v := Time(local)
	got, _ := v.AsTime()
	if got.Location() != time.UTC {
		t.Errorf("stored location = %v, want UTC", got.Location())
	}
	if !got.Equal(local) {
		t.Errorf("instant changed: %v != %v", got, local)
	}
	if v.Offset() != "+08:00" {
		t.Errorf("Offset() = %q, want +08:00", v.Offset())
	}
}

func TestEqual(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	shanghai := base.In(time.FixedZone("UTC+8", 8*3600))
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"same ints", Int(1), Int(1), true},
		{"different kinds", Int(1), Float(1), false},
		{"datetime ignores offset", Time(base), Time(shanghai), true},
		{"arrays ordered", Array(Int(1), Int(2)), Array(Int(2), Int(1)), false},
		{"objects", ObjectOf(Object{"a": Int(1)}), ObjectOf(Object{"a": Int(1)}), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Equal(tc.a, tc.b); got != tc.want {
				t.Errorf("Equal = %t, want %t", got, tc.want)
			}
		})
	}
}

func TestEncodeArrayTextQuotesEveryElement(t *testing.T) {
	tests := []struct {
		name  string
		elems []Value
		want  string
	}{
		{"strings", []Value{String("apple"), String("banana")}, `["apple","banana"]`},
		{"ints", []Value{Int(1), Int(12)}, `["1","12"]`},
		{"floats", []Value{Float(1.5)}, `["1.5"]`},
		{"bools", []Value{Bool(true), Bool(false)}, `["true","false"]`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := EncodeArrayText(tc.elems)
			if err != nil {
				t.Fatalf("EncodeArrayText: %v", err)
			}
			if got != tc.want {
				t.Errorf("EncodeArrayText = %s, want %s", got, tc.want)
			}
		})
	}
}

// The quoting invariant: a substring probe for element 1 must not match the
// stored form of an array containing 12.
func TestArrayEncodingHasNoNumericPrefixOverlap(t *testing.T) {
	stored, err := EncodeArrayText([]Value{Int(12), Int(120)})
	if err != nil {
		t.Fatalf("EncodeArrayText: %v", err)
	}
	probe, err := ElementRepr(Int(1))
	if err != nil {
		t.Fatalf("ElementRepr: %v", err)
	}
	if strings.Contains(stored, `"`+probe+`"`) {
		t.Errorf("probe %q matches stored %q", probe, stored)
	}
	probe12, _ := ElementRepr(Int(12))
	if !strings.Contains(stored, `"`+probe12+`"`) {
		t.Errorf("probe %q should match stored %q", probe12, stored)
	}
}

func TestDecodeArrayTextRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		elems []Value
		elem  Kind
	}{
		{"strings", []Value{String("rust"), String("db")}, KindString},
		{"ints", []Value{Int(95), Int(87), Int(92)}, KindInt},
		{"floats", []Value{Float(0.5), Float(2)}, KindFloat},
		{"bools", []Value{Bool(true), Bool(false)}, KindBool},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			text, err := EncodeArrayText(tc.elems)
			if err != nil {
				t.Fatalf("EncodeArrayText: %v", err)
			}
			got, err := DecodeArrayText(text, tc.elem)
			if err != nil {
				t.Fatalf("DecodeArrayText: %v", err)
			}
			if !Equal(Array(got...), Array(tc.elems...)) {
				t.Errorf("round trip mismatch: %v != %v", got, tc.elems)
			}
		})
	}
}

func TestDecodeArrayTextRejectsMistypedElements(t *testing.T) {
	if _, err := DecodeArrayText(`["not-a-number"]`, KindInt); err == nil {
		t.Error("expected error decoding text element as int")
	}
}

func TestFromAnyToAny(t *testing.T) {
	in := map[string]any{
		"name":   "ada",
		"age":    int64(36),
		"score":  1.5,
		"active": true,
		"tags":   []any{"a", "b"},
	}
	got := ToAny(FromAny(in))
	if diff := cmp.Diff(in, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
