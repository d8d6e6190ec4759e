// Package cell holds one persisted application value in memory, notifies subscribers
// of changes and, when credentials are configured, keeps it synchronized.
package cell

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/and161185/noteloom/internal/errs"
	"github.com/and161185/noteloom/internal/localstore"
	"github.com/and161185/noteloom/internal/model"
	"github.com/and161185/noteloom/internal/remote"
	"github.com/and161185/noteloom/internal/syncer"
	"go.uber.org/zap"
)

// Migration moves a value out of a Legacy source the first time a key is loaded.
type Migration[T any] struct {
	Source localstore.Legacy
	Key    string
	// Decode converts the legacy string; nil decodes it as JSON. Extra keys it returns
	// are removed from Source together with Key.
	Decode func(raw string) (T, []string, error)
}

type syncConfig struct {
	backend remote.Backend
	creds   syncer.Credentials
	cfg     syncer.Config
}

// Cell is a typed value backed by a local store key.
type Cell[T any] struct {
	key   string
	store localstore.Store
	def   T
	log   *zap.Logger

	migrations []Migration[T]
	syncCfg    *syncConfig
	sync       *syncer.Syncer

	mu      sync.RWMutex
	value   T
	version uint64
	loading bool

	smu    sync.Mutex
	subs   map[int]func(T)
	nextID int
}

var _ syncer.Document = (*Cell[model.Settings])(nil)

// Option configures a Cell.
type Option[T any] func(*Cell[T])

// WithLogger sets the logger.
func WithLogger[T any](l *zap.Logger) Option[T] {
	return func(c *Cell[T]) { c.log = l }
}

// WithMigration adds a legacy source consulted when the key is absent.
func WithMigration[T any](m Migration[T]) Option[T] {
	return func(c *Cell[T]) { c.migrations = append(c.migrations, m) }
}

// WithSync keeps the cell synchronized with dt on backend. cfg.Key and cfg.DataType are
// filled in by the cell.
func WithSync[T any](backend remote.Backend, dt model.DataType, creds syncer.Credentials, cfg syncer.Config) Option[T] {
	return func(c *Cell[T]) {
		cfg.DataType = dt
		c.syncCfg = &syncConfig{backend: backend, creds: creds, cfg: cfg}
	}
}

// New returns a cell holding def until Load runs.
func New[T any](key string, store localstore.Store, def T, opts ...Option[T]) *Cell[T] {
	c := &Cell[T]{
		key:     key,
		store:   store,
		def:     def,
		log:     zap.NewNop(),
		value:   def,
		loading: true,
		subs:    map[int]func(T){},
	}
	for _, o := range opts {
		o(c)
	}
	if sc := c.syncCfg; sc != nil {
		sc.cfg.Key = key
		if sc.cfg.Log == nil {
			sc.cfg.Log = c.log
		}
		c.sync = syncer.New(c, sc.backend, store, sc.creds, sc.cfg)
	}
	return c
}

// Key returns the local store key.
func (c *Cell[T]) Key() string { return c.key }

// Load reads the stored value, migrating a legacy one when the key is absent, and
// persists the result. Any failure leaves the default in place.
func (c *Cell[T]) Load(ctx context.Context) T {
	v, found, err := localstore.Load[T](ctx, c.store, c.key)
	if err != nil {
		c.log.Warn("load failed, using default", zap.String("key", c.key), zap.Error(err))
		v, found = c.def, true
	}
	if !found {
		v, found = c.migrate(ctx)
	}
	if !found {
		v = c.def
		if err := localstore.Save(ctx, c.store, c.key, v); err != nil {
			c.log.Warn("persist default failed", zap.String("key", c.key), zap.Error(err))
		}
	}

	c.mu.Lock()
	c.value = v
	c.version++
	c.loading = false
	c.mu.Unlock()
	c.notify(v)
	return v
}

func (c *Cell[T]) migrate(ctx context.Context) (T, bool) {
	for _, m := range c.migrations {
		raw, err := m.Source.Get(ctx, m.Key)
		if errors.Is(err, errs.ErrNotFound) || (err == nil && raw == "") {
			continue
		}
		if err != nil {
			c.log.Warn("read legacy value failed", zap.String("legacy_key", m.Key), zap.Error(err))
			return c.def, false
		}
		v, obsolete, err := decodeLegacy(m, raw)
		if err != nil {
			c.log.Warn("legacy value unreadable", zap.String("legacy_key", m.Key), zap.Error(err))
			return c.def, false
		}
		if err := localstore.Save(ctx, c.store, c.key, v); err != nil {
			c.log.Warn("persist migrated value failed", zap.String("key", c.key), zap.Error(err))
			return c.def, false
		}
		for _, k := range append(obsolete, m.Key) {
			if err := m.Source.Remove(ctx, k); err != nil {
				c.log.Warn("remove legacy key failed", zap.String("legacy_key", k), zap.Error(err))
			}
		}
		c.log.Info("migrated legacy value", zap.String("legacy_key", m.Key), zap.String("key", c.key))
		return v, true
	}
	var zero T
	return zero, false
}

func decodeLegacy[T any](m Migration[T], raw string) (T, []string, error) {
	if m.Decode != nil {
		return m.Decode(raw)
	}
	var v T
	err := json.Unmarshal([]byte(raw), &v)
	return v, nil, err
}

// Get returns the current value.
func (c *Cell[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// IsLoading reports whether Load has not completed yet.
func (c *Cell[T]) IsLoading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// Set replaces the value, persists it and schedules a push. While loading the value
// is held in memory only.
func (c *Cell[T]) Set(ctx context.Context, v T) error {
	return c.Update(ctx, func(T) (T, error) { return v, nil })
}

// Update replaces the value with fn applied to a copy of the current one. An error
// from fn leaves the value unchanged.
func (c *Cell[T]) Update(ctx context.Context, fn func(T) (T, error)) error {
	c.mu.Lock()
	cur, err := clone(c.value)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	next, err := fn(cur)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.value = next
	c.version++
	loading := c.loading
	if !loading {
		if err := localstore.Save(ctx, c.store, c.key, next); err != nil {
			c.mu.Unlock()
			return fmt.Errorf("persist %s: %w", c.key, err)
		}
	}
	c.mu.Unlock()

	c.notify(next)
	if !loading && c.sync != nil {
		c.sync.NotifyChange()
	}
	return nil
}

// Snapshot implements syncer.Document.
func (c *Cell[T]) Snapshot() (json.RawMessage, uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, err := json.Marshal(c.value)
	if err != nil {
		return nil, 0, fmt.Errorf("encode %s: %w", c.key, err)
	}
	return b, c.version, nil
}

// Apply implements syncer.Document: the value is persisted and published but no push
// is scheduled.
func (c *Cell[T]) Apply(ctx context.Context, raw json.RawMessage, version uint64) (bool, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, fmt.Errorf("decode %s: %w", c.key, err)
	}
	c.mu.Lock()
	if c.version != version {
		c.mu.Unlock()
		return false, nil
	}
	if err := localstore.Save(ctx, c.store, c.key, v); err != nil {
		c.mu.Unlock()
		return false, fmt.Errorf("persist %s: %w", c.key, err)
	}
	c.value = v
	c.version++
	c.mu.Unlock()

	c.notify(v)
	return true, nil
}

// Subscribe registers fn for every new value. The returned func unsubscribes.
func (c *Cell[T]) Subscribe(fn func(T)) func() {
	c.smu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.smu.Unlock()
	return func() {
		c.smu.Lock()
		delete(c.subs, id)
		c.smu.Unlock()
	}
}

func (c *Cell[T]) notify(v T) {
	c.smu.Lock()
	fns := make([]func(T), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.smu.Unlock()
	for _, fn := range fns {
		fn(v)
	}
}

// StartSync authenticates and reconciles. Without WithSync it returns
// syncer.Unauthenticated.
func (c *Cell[T]) StartSync(ctx context.Context) syncer.State {
	if c.sync == nil {
		return syncer.Unauthenticated
	}
	return c.sync.Start(ctx)
}

// Syncer returns the attached syncer or nil.
func (c *Cell[T]) Syncer() *syncer.Syncer { return c.sync }

// Flush pushes a pending change immediately.
func (c *Cell[T]) Flush(ctx context.Context) error {
	if c.sync == nil {
		return nil
	}
	return c.sync.Flush(ctx)
}

// Close stops background synchronization.
func (c *Cell[T]) Close() {
	if c.sync != nil {
		c.sync.Stop()
	}
}

func clone[T any](v T) (T, error) {
	var out T
	b, err := json.Marshal(v)
	if err != nil {
		return out, fmt.Errorf("copy value: %w", err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("copy value: %w", err)
	}
	return out, nil
}
