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

// Package mongodb implements the document adapter. Queries lower to filter
// documents; values convert between BSON and the value model.
//
// Divergence from the relational family, by design: FindByID against a
// collection that was never created reports not-found, not table-missing —
// the server cannot tell an empty namespace from a missing one.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.opentelemetry.io/otel/trace"

	"github.com/quickodm/quickodm/config"
	"github.com/quickodm/quickodm/internal/adapter"
	"github.com/quickodm/quickodm/log"
	"github.com/quickodm/quickodm/odmerr"
	"github.com/quickodm/quickodm/procedure"
	"github.com/quickodm/quickodm/query"
	"github.com/quickodm/quickodm/schema"
	"github.com/quickodm/quickodm/value"
)

const Kind = "mongodb"

func init() {
	if !adapter.Register(config.MongoDBType, New) {
		panic(fmt.Sprintf("adapter %q already registered", Kind))
	}
}

// Adapter talks to one MongoDB database.
type Adapter struct {
	client *mongo.Client
	db     *mongo.Database
	ids    config.IDStrategy
	logger log.Logger

	mu            sync.Mutex
	creationLocks map[string]*sync.Mutex
}

// New connects a client for cfg and returns the document adapter.
func New(ctx context.Context, cfg config.DatabaseConfig, logger log.Logger, tracer trace.Tracer) (adapter.Adapter, error) {
	ctx, span := adapter.InitConnectionSpan(ctx, tracer, Kind, cfg.Alias)
	defer span.End()

	uri := buildURI(cfg)
	opts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(uint64(cfg.Pool.MaxConnections)).
		SetMinPoolSize(uint64(cfg.Pool.MinConnections)).
		SetMaxConnIdleTime(cfg.Pool.IdleTimeout()).
		SetConnectTimeout(cfg.Pool.ConnectionTimeout())
	if cfg.Pool.HealthCheckTimeoutMs > 0 {
		opts = opts.SetServerSelectionTimeout(cfg.Pool.HealthCheckTimeout())
	}
	if cc := cfg.Connection.Compression; cc != nil && cc.Enabled {
		opts = opts.SetCompressors([]string{"zstd"})
	}

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, odmerr.Connection(cfg.Alias, err)
	}
	if err := adapter.PingWithRetry(ctx, cfg.Pool, func(ctx context.Context) error {
		return client.Ping(ctx, nil)
	}); err != nil {
		_ = client.Disconnect(ctx)
		return nil, odmerr.Connection(cfg.Alias, err)
	}

	if logger == nil {
		logger = log.Discard()
	}
	return &Adapter{
		client:        client,
		db:            client.Database(cfg.Connection.Database),
		ids:           cfg.IDStrategy,
		logger:        logger,
		creationLocks: make(map[string]*sync.Mutex),
	}, nil
}

func buildURI(cfg config.DatabaseConfig) string {
	var sb strings.Builder
	sb.WriteString("mongodb://")
	if cfg.Connection.User != "" {
		sb.WriteString(url.QueryEscape(cfg.Connection.User))
		sb.WriteString(":")
		sb.WriteString(url.QueryEscape(cfg.Connection.Password))
		sb.WriteString("@")
	}
	fmt.Fprintf(&sb, "%s:%d/", cfg.Connection.Host, cfg.Connection.Port)

	params := url.Values{}
	if cfg.Connection.AuthSource != "" {
		params.Set("authSource", cfg.Connection.AuthSource)
	}
	if cfg.Connection.DirectConnection {
		params.Set("directConnection", "true")
	}
	if tls := cfg.Connection.TLS; tls != nil && tls.Enabled {
		params.Set("tls", "true")
		if tls.InsecureSkipVerify {
			params.Set("tlsInsecure", "true")
		}
		if tls.CAFile != "" {
			params.Set("tlsCAFile", tls.CAFile)
		}
	}
	if cc := cfg.Connection.Compression; cc != nil && cc.Enabled && cc.Level > 0 {
		params.Set("zstdCompressionLevel", strconv.Itoa(cc.Level))
	}
	for k, v := range cfg.Connection.Options {
		params.Set(k, v)
	}
	if enc := params.Encode(); enc != "" {
		sb.WriteString("?")
		sb.WriteString(enc)
	}
	return sb.String()
}

func (a *Adapter) Backend() string { return Kind }

func (a *Adapter) wrap(err error) error {
	if err == nil {
		return nil
	}
	if odmerr.KindOf(err) != "" {
		return err
	}
	if mongo.IsDuplicateKeyError(err) {
		field := ""
		var we mongo.WriteException
		if errors.As(err, &we) && len(we.WriteErrors) > 0 {
			// "E11000 duplicate key error ... index: email_1 dup key: ..."
			msg := we.WriteErrors[0].Message
			if i := strings.Index(msg, "index: "); i >= 0 {
				field = strings.Fields(msg[i+len("index: "):])[0]
				field = strings.TrimSuffix(field, "_1")
				field = strings.TrimSuffix(field, "_-1")
			}
		}
		return odmerr.DuplicateKey(field)
	}
	return odmerr.Query(err.Error(), err)
}

func (a *Adapter) lockFor(name string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, ok := a.creationLocks[name]
	if !ok {
		m = &sync.Mutex{}
		a.creationLocks[name] = m
	}
	return m
}

// EnsureTable creates the collection and its declared indexes once, under
// the per-collection creation lock.
func (a *Adapter) EnsureTable(ctx context.Context, meta *schema.ModelMeta) error {
	lock := a.lockFor(meta.Collection)
	lock.Lock()
	defer lock.Unlock()

	exists, err := a.TableExists(ctx, meta.Collection)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err := a.db.CreateCollection(ctx, meta.Collection); err != nil {
		return a.wrap(err)
	}

	coll := a.db.Collection(meta.Collection)
	var models []mongo.IndexModel
	for _, idx := range meta.Indexes {
		keys := bson.D{}
		for _, f := range idx.Fields {
			keys = append(keys, bson.E{Key: fieldKey(f), Value: 1})
		}
		io := options.Index().SetUnique(idx.Unique)
		if idx.Name != "" {
			io = io.SetName(idx.Name)
		}
		models = append(models, mongo.IndexModel{Keys: keys, Options: io})
	}
	for _, f := range meta.Fields {
		if f.Name == schema.IDField || (!f.Def.Unique && !f.Def.Indexed) {
			continue
		}
		models = append(models, mongo.IndexModel{
			Keys:    bson.D{{Key: f.Name, Value: 1}},
			Options: options.Index().SetUnique(f.Def.Unique),
		})
	}
	if len(models) > 0 {
		if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
			return a.wrap(err)
		}
	}
	a.logger.InfoContext(ctx, "created collection", "backend", Kind, "collection", meta.Collection)
	return nil
}

func (a *Adapter) DropTable(ctx context.Context, table string) error {
	return a.wrap(a.db.Collection(table).Drop(ctx))
}

func (a *Adapter) TableExists(ctx context.Context, table string) (bool, error) {
	names, err := a.db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: table}})
	if err != nil {
		return false, a.wrap(err)
	}
	return len(names) > 0, nil
}

func (a *Adapter) Insert(ctx context.Context, meta *schema.ModelMeta, record value.Object) (value.Value, error) {
	doc := bson.M{}
	for k, v := range record {
		if k == schema.IDField {
			continue
		}
		doc[k] = toBSON(v)
	}
	id, hasID := record[schema.IDField]
	if hasID && !id.IsNull() {
		stored, err := idToBSON(a.ids.Kind, id)
		if err != nil {
			return value.Null(), err
		}
		doc[idKey] = stored
	}

	res, err := a.db.Collection(meta.Collection).InsertOne(ctx, doc)
	if err != nil {
		return value.Null(), a.wrap(err)
	}
	if hasID && !id.IsNull() {
		return id, nil
	}
	if oid, ok := res.InsertedID.(bson.ObjectID); ok {
		return value.String(oid.Hex()), nil
	}
	return fromBSON(res.InsertedID), nil
}

// FindByID returns not-found for both a missing document and a never-created
// collection; see the package comment.
func (a *Adapter) FindByID(ctx context.Context, meta *schema.ModelMeta, id value.Value) (value.Object, error) {
	stored, err := idToBSON(a.ids.Kind, id)
	if err != nil {
		return nil, err
	}
	res := a.db.Collection(meta.Collection).FindOne(ctx, bson.D{{Key: idKey, Value: stored}})
	var doc bson.M
	if err := res.Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, odmerr.NotFound()
		}
		return nil, a.wrap(err)
	}
	return a.docToObject(doc), nil
}

func (a *Adapter) Find(ctx context.Context, meta *schema.ModelMeta, conds []query.Condition, opts query.Options) ([]value.Object, error) {
	filter, err := BuildFilter(meta, a.ids.Kind, conds)
	if err != nil {
		return nil, err
	}
	fo := options.Find()
	if len(opts.Sort) > 0 {
		fo = fo.SetSort(BuildSort(opts.Sort))
	}
	if opts.Limit > 0 {
		fo = fo.SetLimit(opts.Limit)
	}
	if opts.Offset > 0 {
		fo = fo.SetSkip(opts.Offset)
	}
	if len(opts.Projection) > 0 {
		fo = fo.SetProjection(BuildProjection(opts.Projection))
	}

	cur, err := a.db.Collection(meta.Collection).Find(ctx, filter, fo)
	if err != nil {
		return nil, a.wrap(err)
	}
	defer cur.Close(ctx)

	var out []value.Object
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, a.wrap(err)
		}
		out = append(out, a.docToObject(doc))
	}
	if err := cur.Err(); err != nil {
		return nil, a.wrap(err)
	}
	return out, nil
}

func (a *Adapter) Update(ctx context.Context, meta *schema.ModelMeta, conds []query.Condition, patch value.Object) (int64, error) {
	filter, err := BuildFilter(meta, a.ids.Kind, conds)
	if err != nil {
		return 0, err
	}
	set := bson.M{}
	for k, v := range patch {
		if k == schema.IDField {
			return 0, odmerr.Validation(schema.IDField, "identifier cannot be patched")
		}
		if _, ok := meta.Field(k); !ok {
			return 0, odmerr.Validation(k, fmt.Sprintf("field is not declared on model %q", meta.Collection))
		}
		set[k] = toBSON(v)
	}
	if len(set) == 0 {
		return 0, odmerr.Validation(meta.Collection, "update patch is empty")
	}
	res, err := a.db.Collection(meta.Collection).UpdateMany(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return 0, a.wrap(err)
	}
	return res.MatchedCount, nil
}

func (a *Adapter) Delete(ctx context.Context, meta *schema.ModelMeta, conds []query.Condition) (int64, error) {
	filter, err := BuildFilter(meta, a.ids.Kind, conds)
	if err != nil {
		return 0, err
	}
	res, err := a.db.Collection(meta.Collection).DeleteMany(ctx, filter)
	if err != nil {
		return 0, a.wrap(err)
	}
	return res.DeletedCount, nil
}

func (a *Adapter) Count(ctx context.Context, meta *schema.ModelMeta, conds []query.Condition) (int64, error) {
	filter, err := BuildFilter(meta, a.ids.Kind, conds)
	if err != nil {
		return 0, err
	}
	n, err := a.db.Collection(meta.Collection).CountDocuments(ctx, filter)
	if err != nil {
		return 0, a.wrap(err)
	}
	return n, nil
}

// CreateProcedure is a relational-only capability.
func (a *Adapter) CreateProcedure(ctx context.Context, cfg *procedure.Config) (string, error) {
	return "", odmerr.Unsupported("create_procedure", Kind)
}

func (a *Adapter) CallProcedure(ctx context.Context, name string, conds []query.Condition, opts query.Options) ([]value.Object, error) {
	return nil, odmerr.Unsupported("call_procedure", Kind)
}

func (a *Adapter) Ping(ctx context.Context) error {
	return a.wrap(a.client.Ping(ctx, nil))
}

func (a *Adapter) Close(ctx context.Context) error {
	return a.client.Disconnect(ctx)
}

// docToObject converts a decoded document, renaming _id back to id and
// normalizing the identifier to its portable form.
func (a *Adapter) docToObject(doc bson.M) value.Object {
	obj := make(value.Object, len(doc))
	for k, v := range doc {
		if k == idKey {
			obj[schema.IDField] = fromBSON(v)
			continue
		}
		obj[k] = fromBSON(v)
	}
	return obj
}
