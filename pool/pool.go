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

// Package pool owns the alias → backend mapping and its lifecycle. The
// manager has two phases: during init, databases may be added and removed;
// the first data-plane operation flips it one-way into the operating phase,
// after which topology changes fail with a locked-operation error.
package pool

import (
	"context"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/trace"

	"github.com/quickodm/quickodm/config"
	"github.com/quickodm/quickodm/internal/adapter"
	"github.com/quickodm/quickodm/log"
	"github.com/quickodm/quickodm/odmerr"
)

// DatabasePool is one configured alias: its adapter, id generator, and a
// lease gate bounding concurrent driver use to the configured pool size.
type DatabasePool struct {
	Config  config.DatabaseConfig
	Adapter adapter.Adapter
	IDGen   *IDGenerator

	leases chan struct{}
}

// Acquire leases one connection slot, waiting up to the configured
// connection timeout.
func (p *DatabasePool) Acquire(ctx context.Context) error {
	timer := acquireTimer(p.Config.Pool)
	defer timer.stop()
	select {
	case p.leases <- struct{}{}:
		return nil
	case <-ctx.Done():
		return odmerr.Query("operation canceled", ctx.Err())
	case <-timer.c():
		return odmerr.PoolExhausted(p.Config.Alias)
	}
}

// Release returns a leased slot.
func (p *DatabasePool) Release() {
	select {
	case <-p.leases:
	default:
	}
}

// Manager maps aliases to their pools.
type Manager struct {
	mu           sync.RWMutex
	pools        map[string]*DatabasePool
	defaultAlias string
	operating    atomic.Bool

	logger log.Logger
	tracer trace.Tracer
}

// NewManager creates an empty manager in the init phase.
func NewManager(logger log.Logger, tracer trace.Tracer) *Manager {
	if logger == nil {
		logger = log.Discard()
	}
	return &Manager{
		pools:  make(map[string]*DatabasePool),
		logger: logger,
		tracer: tracer,
	}
}

// AddDatabase connects and registers a new alias. The first alias added
// becomes the default. Fails with a locked-operation error once any
// data-plane call has been made.
func (m *Manager) AddDatabase(ctx context.Context, cfg config.DatabaseConfig) error {
	if m.operating.Load() {
		return odmerr.LockedOperation()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.pools[cfg.Alias]; exists {
		return odmerr.DuplicateAlias(cfg.Alias)
	}

	idgen, err := NewIDGenerator(cfg.IDStrategy)
	if err != nil {
		return odmerr.Config(err.Error())
	}
	ad, err := adapter.New(ctx, cfg, m.logger, m.tracer)
	if err != nil {
		return err
	}

	m.pools[cfg.Alias] = &DatabasePool{
		Config:  cfg,
		Adapter: ad,
		IDGen:   idgen,
		leases:  make(chan struct{}, cfg.Pool.MaxConnections),
	}
	if m.defaultAlias == "" {
		m.defaultAlias = cfg.Alias
	}
	m.logger.InfoContext(ctx, "registered database", "alias", cfg.Alias, "backend", string(cfg.Type))
	return nil
}

// RemoveDatabase drops an alias during the init phase.
func (m *Manager) RemoveDatabase(ctx context.Context, alias string) error {
	if m.operating.Load() {
		return odmerr.LockedOperation()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[alias]
	if !ok {
		return odmerr.UnknownAlias(alias)
	}
	delete(m.pools, alias)
	if m.defaultAlias == alias {
		m.defaultAlias = ""
		for a := range m.pools {
			m.defaultAlias = a
			break
		}
	}
	return p.Adapter.Close(ctx)
}

// SetDefaultAlias selects the alias used when a model declares none.
func (m *Manager) SetDefaultAlias(alias string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pools[alias]; !ok {
		return odmerr.UnknownAlias(alias)
	}
	m.defaultAlias = alias
	return nil
}

// DefaultAlias reports the current default alias.
func (m *Manager) DefaultAlias() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultAlias
}

// Get resolves an alias ("" means default) to its pool and flips the
// manager into the operating phase.
func (m *Manager) Get(alias string) (*DatabasePool, error) {
	m.MarkOperating()
	m.mu.RLock()
	defer m.mu.RUnlock()
	if alias == "" {
		alias = m.defaultAlias
	}
	p, ok := m.pools[alias]
	if !ok {
		return nil, odmerr.UnknownAlias(alias)
	}
	return p, nil
}

// MarkOperating transitions into the operating phase. The transition is
// one-way.
func (m *Manager) MarkOperating() {
	m.operating.Store(true)
}

// Operating reports whether the init gate has closed.
func (m *Manager) Operating() bool {
	return m.operating.Load()
}

// Aliases lists the registered aliases.
func (m *Manager) Aliases() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.pools))
	for a := range m.pools {
		out = append(out, a)
	}
	return out
}

// Close shuts down every adapter. The manager is unusable afterwards.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var first error
	for alias, p := range m.pools {
		if err := p.Adapter.Close(ctx); err != nil && first == nil {
			first = err
		}
		delete(m.pools, alias)
	}
	m.defaultAlias = ""
	return first
}
