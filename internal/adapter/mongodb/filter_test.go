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
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/quickodm/quickodm/config"
	"github.com/quickodm/quickodm/odmerr"
	"github.com/quickodm/quickodm/query"
	"github.com/quickodm/quickodm/schema"
	"github.com/quickodm/quickodm/value"
)

func userMeta() *schema.ModelMeta {
	return &schema.ModelMeta{
		Collection: "users",
		Fields: []schema.Field{
			{Name: "name", Def: schema.StringField(nil, nil, "")},
			{Name: "age", Def: schema.IntegerField(nil, nil)},
			{Name: "tags", Def: schema.ArrayField(schema.FieldType{Kind: schema.FieldString}, nil, nil)},
		},
	}
}

func TestBuildFilterOperators(t *testing.T) {
	tests := []struct {
		name string
		cond query.Condition
		want bson.D
	}{
		{
			"eq",
			query.Cond("name", query.Eq, value.String("ada")),
			bson.D{{Key: "name", Value: bson.M{"$eq": "ada"}}},
		},
		{
			"gte",
			query.Cond("age", query.Gte, value.Int(18)),
			bson.D{{Key: "age", Value: bson.M{"$gte": int64(18)}}},
		},
		{
			"in",
			query.Cond("age", query.In, value.Array(value.Int(1), value.Int(2))),
			bson.D{{Key: "age", Value: bson.M{"$in": bson.A{int64(1), int64(2)}}}},
		},
		{
			"empty in matches nothing",
			query.Cond("age", query.In, value.Array()),
			bson.D{{Key: "age", Value: bson.M{"$in": bson.A{}}}},
		},
		{
			"not in",
			query.Cond("age", query.NotIn, value.Array(value.Int(3))),
			bson.D{{Key: "age", Value: bson.M{"$nin": bson.A{int64(3)}}}},
		},
		{
			"exists",
			query.Cond("name", query.Exists, value.Bool(true)),
			bson.D{{Key: "name", Value: bson.M{"$exists": true}}},
		},
		{
			"contains anchors nothing",
			query.Cond("name", query.Contains, value.String("ad")),
			bson.D{{Key: "name", Value: bson.Regex{Pattern: "ad"}}},
		},
		{
			"starts with anchors front",
			query.Cond("name", query.StartsWith, value.String("ad")),
			bson.D{{Key: "name", Value: bson.Regex{Pattern: "^ad"}}},
		},
		{
			"ends with anchors back",
			query.Cond("name", query.EndsWith, value.String("da")),
			bson.D{{Key: "name", Value: bson.Regex{Pattern: "da$"}}},
		},
		{
			"regex metacharacters are quoted for matches",
			query.Cond("name", query.StartsWith, value.String("a.b")),
			bson.D{{Key: "name", Value: bson.Regex{Pattern: `^a\.b`}}},
		},
		{
			"array membership is element equality",
			query.Cond("tags", query.Contains, value.String("rust")),
			bson.D{{Key: "tags", Value: "rust"}},
		},
		{
			"id renames to underscore id",
			query.Cond("id", query.Eq, value.String("abc")),
			bson.D{{Key: "_id", Value: bson.M{"$eq": "abc"}}},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := BuildFilter(userMeta(), config.UUIDStrategy, []query.Condition{tc.cond})
			if err != nil {
				t.Fatalf("BuildFilter: %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("filter mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildFilterObjectIDStrategy(t *testing.T) {
	oid := bson.NewObjectID()
	got, err := BuildFilter(userMeta(), config.ObjectID,
		[]query.Condition{query.Cond("id", query.Eq, value.String(oid.Hex()))})
	if err != nil {
		t.Fatalf("BuildFilter: %v", err)
	}
	want := bson.D{{Key: "_id", Value: bson.M{"$eq": oid}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("filter mismatch (-want +got):\n%s", diff)
	}

	_, err = BuildFilter(userMeta(), config.ObjectID,
		[]query.Condition{query.Cond("id", query.Eq, value.String("zz"))})
	if !odmerr.IsKind(err, odmerr.KindValidation) {
		t.Errorf("malformed object id should fail validation, got %v", err)
	}
}

func TestBuildSortAndProjection(t *testing.T) {
	sort := BuildSort([]query.SortSpec{
		{Field: "age", Dir: query.Desc},
		{Field: "id", Dir: query.Asc},
	})
	wantSort := bson.D{{Key: "age", Value: -1}, {Key: "_id", Value: 1}}
	if diff := cmp.Diff(wantSort, sort); diff != "" {
		t.Errorf("sort mismatch (-want +got):\n%s", diff)
	}

	proj := BuildProjection([]string{"name", "id"})
	wantProj := bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}
	if diff := cmp.Diff(wantProj, proj); diff != "" {
		t.Errorf("projection mismatch (-want +got):\n%s", diff)
	}
}

func TestValueRoundTripThroughBSON(t *testing.T) {
	tags := value.Array(value.String("rust"), value.String("db"))
	lowered := toBSON(tags)
	back := fromBSON(lowered)
	if !value.Equal(tags, back) {
		t.Errorf("array round trip mismatch: %v != %v", back, tags)
	}
}
