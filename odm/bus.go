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

// Package odm is the asynchronous request bus. Every data-plane call becomes
// a typed request on its alias's FIFO queue; workers lease a connection slot
// per request, invoke the adapter, and answer through a one-shot reply
// channel. The bus never retries; cancellation is cooperative — a request
// whose context is done before a worker picks it up is skipped, a started
// request runs to completion.
package odm

import (
	"context"
	"sync"

	"github.com/quickodm/quickodm/internal/adapter"
	"github.com/quickodm/quickodm/log"
	"github.com/quickodm/quickodm/odmerr"
	"github.com/quickodm/quickodm/pool"
)

// RequestKind tags the operation class of a queued request.
type RequestKind int

const (
	Create RequestKind = iota
	Read
	Update
	Delete
	CountOrExists
	DDL
)

func (k RequestKind) String() string {
	switch k {
	case Create:
		return "create"
	case Read:
		return "read"
	case Update:
		return "update"
	case Delete:
		return "delete"
	case CountOrExists:
		return "count_or_exists"
	case DDL:
		return "ddl"
	}
	return "unknown"
}

type result struct {
	val any
	err error
}

type request struct {
	kind  RequestKind
	ctx   context.Context
	run   func(ctx context.Context, ad adapter.Adapter) (any, error)
	reply chan result
}

const queueDepth = 256

// aliasBus is the per-alias FIFO and its workers. Worker count equals the
// pool's max connections: with one connection the queue is strictly serial,
// with more only per-connection order is preserved.
type aliasBus struct {
	queue chan *request
	pool  *pool.DatabasePool
}

// Manager owns one bus per alias above a pool manager.
type Manager struct {
	pools  *pool.Manager
	logger log.Logger

	mu     sync.Mutex
	buses  map[string]*aliasBus
	closed bool
	wg     sync.WaitGroup

	ensured sync.Map // alias + "\x00" + collection → struct{}
}

// NewManager builds a bus over the given pool manager.
func NewManager(pools *pool.Manager, logger log.Logger) *Manager {
	if logger == nil {
		logger = log.Discard()
	}
	return &Manager{
		pools:  pools,
		logger: logger,
		buses:  make(map[string]*aliasBus),
	}
}

// Pools exposes the underlying pool manager.
func (m *Manager) Pools() *pool.Manager { return m.pools }

// bus lazily creates the queue and workers for an alias. Resolving the alias
// flips the pool manager into the operating phase.
func (m *Manager) bus(alias string) (*aliasBus, error) {
	p, err := m.pools.Get(alias)
	if err != nil {
		return nil, err
	}
	key := p.Config.Alias

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, odmerr.Query("manager is closed", nil)
	}
	if b, ok := m.buses[key]; ok {
		return b, nil
	}
	b := &aliasBus{
		queue: make(chan *request, queueDepth),
		pool:  p,
	}
	m.buses[key] = b
	workers := p.Config.Pool.MaxConnections
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go m.work(b)
	}
	return b, nil
}

func (m *Manager) work(b *aliasBus) {
	defer m.wg.Done()
	for req := range b.queue {
		if req.ctx.Err() != nil {
			// Caller gave up before the request started; skip it.
			req.reply <- result{err: odmerr.Query("request canceled before start", req.ctx.Err())}
			continue
		}
		if err := b.pool.Acquire(req.ctx); err != nil {
			req.reply <- result{err: err}
			continue
		}
		val, err := req.run(req.ctx, b.pool.Adapter)
		b.pool.Release()
		if err != nil {
			m.logger.DebugContext(req.ctx, "request failed",
				"alias", b.pool.Config.Alias, "kind", req.kind.String(), "error", err)
		}
		req.reply <- result{val: val, err: err}
	}
}

// dispatch enqueues a request and waits for its reply. The reply channel is
// buffered so an abandoned caller never blocks a worker.
func (m *Manager) dispatch(ctx context.Context, alias string, kind RequestKind, run func(ctx context.Context, ad adapter.Adapter) (any, error)) (any, error) {
	b, err := m.bus(alias)
	if err != nil {
		return nil, err
	}
	req := &request{
		kind:  kind,
		ctx:   ctx,
		run:   run,
		reply: make(chan result, 1),
	}
	select {
	case b.queue <- req:
	case <-ctx.Done():
		return nil, odmerr.Query("request canceled before enqueue", ctx.Err())
	}
	select {
	case res := <-req.reply:
		return res.val, res.err
	case <-ctx.Done():
		// The pending request sees the dead context and is skipped; a started
		// one completes and its result is discarded.
		return nil, odmerr.Query("request canceled", ctx.Err())
	}
}

// Close drains the queues and shuts the pools down.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	for _, b := range m.buses {
		close(b.queue)
	}
	m.mu.Unlock()
	m.wg.Wait()
	return m.pools.Close(ctx)
}
