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

package odm

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/quickodm/quickodm/config"
	"github.com/quickodm/quickodm/odmerr"
	"github.com/quickodm/quickodm/pool"
	"github.com/quickodm/quickodm/query"
	"github.com/quickodm/quickodm/schema"
	"github.com/quickodm/quickodm/value"

	_ "github.com/quickodm/quickodm/internal/adapter/sqlite"
)

func intPtr(i int) *int { return &i }

func newTestBus(t *testing.T, alias string) *Manager {
	t.Helper()
	pools := pool.NewManager(nil, otel.Tracer("odm_test"))
	cfg := config.SQLite(alias, ":memory:", true, config.DefaultPool(), config.IDStrategy{Kind: config.UUIDStrategy})
	if err := pools.AddDatabase(context.Background(), cfg); err != nil {
		t.Fatalf("AddDatabase: %v", err)
	}
	bus := NewManager(pools, nil)
	t.Cleanup(func() { bus.Close(context.Background()) })
	return bus
}

func articleMeta(alias string) *schema.ModelMeta {
	return &schema.ModelMeta{
		Collection: "articles",
		Database:   alias,
		Fields: []schema.Field{
			{Name: "title", Def: schema.StringField(intPtr(200), intPtr(1), "").WithRequired()},
			{Name: "views", Def: schema.IntegerField(nil, nil)},
			{Name: "published_at", Def: schema.DateTimeField("")},
			{Name: "tags", Def: schema.ArrayField(schema.FieldType{Kind: schema.FieldString}, intPtr(10), nil)},
			{Name: "scores", Def: schema.ArrayField(schema.FieldType{Kind: schema.FieldInteger}, nil, nil)},
		},
	}
}

func TestSaveAssignsIDAndRoundTrips(t *testing.T) {
	ctx := context.Background()
	bus := newTestBus(t, "rt")
	meta := articleMeta("rt")

	id, err := bus.Save(ctx, meta, value.Object{
		"title": value.String("hello"),
		"views": value.Int(7),
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if id.IsNull() {
		t.Fatal("save must assign an id under the uuid strategy")
	}

	rec, err := bus.FindByID(ctx, meta, id)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if rec == nil {
		t.Fatal("saved record not found")
	}
	if title, _ := rec["title"].AsString(); title != "hello" {
		t.Errorf("title = %q", title)
	}
	if views, _ := rec["views"].AsInt(); views != 7 {
		t.Errorf("views = %d", views)
	}
	if !value.Equal(rec["id"], id) {
		t.Errorf("id mismatch: %v != %v", rec["id"], id)
	}
}

// Array fields survive the quoted-JSON relational encoding element-wise and
// in order.
func TestArrayFieldRoundTrip(t *testing.T) {
	ctx := context.Background()
	bus := newTestBus(t, "arrays")
	meta := articleMeta("arrays")

	tags := value.Array(value.String("rust"), value.String("db"))
	scores := value.Array(value.Int(95), value.Int(87), value.Int(92))
	id, err := bus.Save(ctx, meta, value.Object{
		"title":  value.String("arrays"),
		"tags":   tags,
		"scores": scores,
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	rec, err := bus.FindByID(ctx, meta, id)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if !value.Equal(rec["tags"], tags) {
		t.Errorf("tags mismatch: %v != %v", rec["tags"], tags)
	}
	if !value.Equal(rec["scores"], scores) {
		t.Errorf("scores mismatch: %v != %v", rec["scores"], scores)
	}
}

// Membership probes must not match numeric prefixes: querying for score 9
// must not return the record whose scores contain 95.
func TestArrayMembershipHasNoFalsePositives(t *testing.T) {
	ctx := context.Background()
	bus := newTestBus(t, "member")
	meta := articleMeta("member")

	if _, err := bus.Save(ctx, meta, value.Object{
		"title":  value.String("m"),
		"scores": value.Array(value.Int(95), value.Int(87)),
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	hits, err := bus.Find(ctx, meta, []query.Condition{
		query.Cond("scores", query.Contains, value.Int(9)),
	}, query.Options{})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("9 must not match 95: got %d hits", len(hits))
	}

	hits, err = bus.Find(ctx, meta, []query.Condition{
		query.Cond("scores", query.Contains, value.Int(95)),
	}, query.Options{})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("95 should match: got %d hits", len(hits))
	}
}

func TestDatetimeRange(t *testing.T) {
	ctx := context.Background()
	bus := newTestBus(t, "dates")
	meta := articleMeta("dates")

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i <= 8; i += 2 {
		_, err := bus.Save(ctx, meta, value.Object{
			"title":        value.String(fmt.Sprintf("t+%dh", i)),
			"published_at": value.Time(base.Add(time.Duration(i) * time.Hour)),
		})
		if err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	hits, err := bus.Find(ctx, meta, []query.Condition{
		query.Cond("published_at", query.Gte, value.Time(base.Add(4*time.Hour))),
		query.Cond("published_at", query.Lte, value.Time(base.Add(8*time.Hour))),
	}, query.Options{Sort: []query.SortSpec{{Field: "published_at", Dir: query.Asc}}})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("got %d records, want 3", len(hits))
	}
	for i, wantHour := range []int{4, 6, 8} {
		at, _ := hits[i]["published_at"].AsTime()
		if !at.Equal(base.Add(time.Duration(wantHour) * time.Hour)) {
			t.Errorf("record %d at %v, want +%dh", i, at, wantHour)
		}
	}
}

// A datetime condition may also bind an RFC3339 string.
func TestDatetimeStringQuery(t *testing.T) {
	ctx := context.Background()
	bus := newTestBus(t, "datestr")
	meta := articleMeta("datestr")

	at := time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC)
	if _, err := bus.Save(ctx, meta, value.Object{
		"title":        value.String("s"),
		"published_at": value.Time(at),
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	hits, err := bus.Find(ctx, meta, []query.Condition{
		query.Cond("published_at", query.Eq, value.String("2024-06-01T10:30:00Z")),
	}, query.Options{})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("string-bound datetime query returned %d records", len(hits))
	}
}

func TestEmptyInReturnsNoRows(t *testing.T) {
	ctx := context.Background()
	bus := newTestBus(t, "emptyin")
	meta := articleMeta("emptyin")

	if _, err := bus.Save(ctx, meta, value.Object{"title": value.String("x")}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	hits, err := bus.Find(ctx, meta, []query.Condition{
		query.Cond("title", query.In, value.Array()),
	}, query.Options{})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("In([]) must match nothing, got %d", len(hits))
	}
}

func TestDeleteTwice(t *testing.T) {
	ctx := context.Background()
	bus := newTestBus(t, "deltwice")
	meta := articleMeta("deltwice")

	id, err := bus.Save(ctx, meta, value.Object{"title": value.String("bye")})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	byID := []query.Condition{query.Cond("id", query.Eq, id)}

	n, err := bus.Delete(ctx, meta, byID)
	if err != nil || n != 1 {
		t.Fatalf("first delete = (%d, %v), want (1, nil)", n, err)
	}
	n, err = bus.Delete(ctx, meta, byID)
	if err != nil || n != 0 {
		t.Fatalf("second delete = (%d, %v), want (0, nil)", n, err)
	}
}

func TestUpdateCountsAndExists(t *testing.T) {
	ctx := context.Background()
	bus := newTestBus(t, "upd")
	meta := articleMeta("upd")

	for i := 0; i < 3; i++ {
		if _, err := bus.Save(ctx, meta, value.Object{
			"title": value.String("v"),
			"views": value.Int(int64(i)),
		}); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	n, err := bus.Update(ctx, meta,
		[]query.Condition{query.Cond("views", query.Gte, value.Int(1))},
		value.Object{"title": value.String("bumped")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if n != 2 {
		t.Errorf("update count = %d, want 2", n)
	}

	count, err := bus.Count(ctx, meta, []query.Condition{
		query.Cond("title", query.Eq, value.String("bumped")),
	})
	if err != nil || count != 2 {
		t.Errorf("count = (%d, %v), want (2, nil)", count, err)
	}

	ok, err := bus.Exists(ctx, meta, []query.Condition{
		query.Cond("title", query.Eq, value.String("missing")),
	})
	if err != nil || ok {
		t.Errorf("exists = (%t, %v), want (false, nil)", ok, err)
	}
}

func TestValidationRejectsBeforeDispatch(t *testing.T) {
	ctx := context.Background()
	bus := newTestBus(t, "valid")
	meta := articleMeta("valid")

	_, err := bus.Save(ctx, meta, value.Object{"views": value.Int(1)})
	if !odmerr.IsKind(err, odmerr.KindValidation) {
		t.Errorf("missing required title should fail validation, got %v", err)
	}

	_, err = bus.Update(ctx, meta, nil, value.Object{"bogus": value.Int(1)})
	if !odmerr.IsKind(err, odmerr.KindValidation) {
		t.Errorf("unknown patch field should fail validation, got %v", err)
	}
}

// Concurrent first-use of a model must produce one table and no failures.
func TestConcurrentFirstUse(t *testing.T) {
	ctx := context.Background()
	bus := newTestBus(t, "race")
	meta := articleMeta("race")

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := bus.Save(ctx, meta, value.Object{
				"title": value.String(fmt.Sprintf("concurrent-%d", i)),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("concurrent save failed: %v", err)
		}
	}

	count, err := bus.Count(ctx, meta, nil)
	if err != nil || count != n {
		t.Errorf("count = (%d, %v), want (%d, nil)", count, err, n)
	}
}

func TestFindOnMissingTableSurfacesTableNotExist(t *testing.T) {
	ctx := context.Background()
	bus := newTestBus(t, "missing")
	meta := articleMeta("missing")

	_, err := bus.Find(ctx, meta, nil, query.Options{})
	if !odmerr.IsKind(err, odmerr.KindTableNotExist) {
		t.Errorf("expected table-not-exist, got %v", err)
	}
}

func TestDropTableForgetsEnsuredState(t *testing.T) {
	ctx := context.Background()
	bus := newTestBus(t, "drop")
	meta := articleMeta("drop")

	if _, err := bus.Save(ctx, meta, value.Object{"title": value.String("x")}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := bus.DropTable(ctx, "drop", meta.Collection); err != nil {
		t.Fatalf("DropTable: %v", err)
	}
	exists, err := bus.TableExists(ctx, "drop", meta.Collection)
	if err != nil || exists {
		t.Fatalf("table should be gone: (%t, %v)", exists, err)
	}

	// The next save lazily recreates.
	if _, err := bus.Save(ctx, meta, value.Object{"title": value.String("y")}); err != nil {
		t.Fatalf("Save after drop: %v", err)
	}
	count, err := bus.Count(ctx, meta, nil)
	if err != nil || count != 1 {
		t.Errorf("count = (%d, %v), want (1, nil)", count, err)
	}
}

func TestCancelledContextSkipsRequest(t *testing.T) {
	bus := newTestBus(t, "cancel")
	meta := articleMeta("cancel")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := bus.Find(ctx, meta, nil, query.Options{})
	if err == nil {
		t.Error("cancelled context must fail the request")
	}
}
