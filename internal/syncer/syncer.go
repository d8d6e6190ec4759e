// Package syncer reconciles one locally persisted document with its remote row.
//
// A Syncer authenticates once, reconciles the local and remote copies, then keeps them
// converging: local changes are pushed after a debounce, remote changes are pulled on a
// timer. Every remote write goes through the merge engine, so concurrent writers never
// drop each other's ids.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/and161185/noteloom/internal/auth"
	"github.com/and161185/noteloom/internal/errs"
	"github.com/and161185/noteloom/internal/localstore"
	"github.com/and161185/noteloom/internal/merge"
	"github.com/and161185/noteloom/internal/model"
	"github.com/and161185/noteloom/internal/remote"
	"go.uber.org/zap"
)

// Defaults.
const (
	DefaultPollInterval = 30 * time.Second
	DefaultDebounce     = time.Second
)

// errLocalChanged reports that the document moved while a merge was in flight.
var errLocalChanged = errors.New("local document changed during sync")

// Authenticator establishes the backend session.
type Authenticator interface {
	Authenticate(ctx context.Context, username, secret, userUUID string) bool
}

// Credentials identify the user on the backend.
type Credentials struct {
	Username string
	Secret   string
	UserUUID string
}

// Config tunes a Syncer. Zero values select the defaults.
type Config struct {
	Key          string         // local store key of the document
	DataType     model.DataType // remote data_type
	PollInterval time.Duration
	Debounce     time.Duration
	// Newer reports whether a is strictly newer than b. Default: NewerMillis.
	Newer func(a, b time.Time) bool
	// Auth overrides the default auth.Authenticator over the backend.
	Auth Authenticator
	Log  *zap.Logger
}

// NewerMillis compares timestamps at millisecond precision.
func NewerMillis(a, b time.Time) bool { return a.UnixMilli() > b.UnixMilli() }

// Syncer drives synchronization of one document key.
type Syncer struct {
	cfg     Config
	doc     Document
	backend remote.Backend
	store   localstore.Store
	creds   Credentials
	log     *zap.Logger

	state   atomic.Int32
	started atomic.Bool
	dirty   atomic.Bool

	// mu serializes reconcile, push and pull.
	mu sync.Mutex

	tmu     sync.Mutex
	timer   *time.Timer
	stopped bool
	loopCtx context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// New constructs a Syncer. Start must be called before it does anything.
func New(doc Document, backend remote.Backend, store localstore.Store, creds Credentials, cfg Config) *Syncer {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Newer == nil {
		cfg.Newer = NewerMillis
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	log := cfg.Log.With(zap.String("key", cfg.Key), zap.String("data_type", string(cfg.DataType)))
	if cfg.Auth == nil {
		cfg.Auth = auth.New(backend, log)
	}
	return &Syncer{
		cfg:     cfg,
		doc:     doc,
		backend: backend,
		store:   store,
		creds:   creds,
		log:     log,
	}
}

// State returns the current state.
func (s *Syncer) State() State { return State(s.state.Load()) }

func (s *Syncer) setState(st State) {
	if prev := State(s.state.Swap(int32(st))); prev != st {
		s.log.Debug("sync state", zap.Stringer("from", prev), zap.Stringer("to", st))
	}
}

// Start authenticates and runs the initial reconciliation, then starts the poll loop.
// It runs once per Syncer; later calls return the current state. The loop stops when
// ctx is cancelled or Stop is called.
func (s *Syncer) Start(ctx context.Context) State {
	if !s.started.CompareAndSwap(false, true) {
		return s.State()
	}
	s.setState(Authenticating)
	if !s.cfg.Auth.Authenticate(ctx, s.creds.Username, s.creds.Secret, s.creds.UserUUID) {
		s.log.Warn("authentication failed, staying local-only")
		s.setState(AuthFailed)
		return AuthFailed
	}

	s.setState(Reconciling)
	s.mu.Lock()
	err := s.reconcile(ctx)
	s.mu.Unlock()
	if err != nil {
		s.log.Warn("initial reconciliation failed", zap.Error(err))
		s.dirty.Store(true)
	}

	// loopCtx is set before Synced is published; fire needs it
	s.tmu.Lock()
	var (
		loop context.Context
		done chan struct{}
	)
	if !s.stopped {
		s.loopCtx, s.cancel = context.WithCancel(ctx)
		s.done = make(chan struct{})
		loop, done = s.loopCtx, s.done
	}
	s.tmu.Unlock()

	s.setState(Synced)
	if loop != nil {
		go s.pollLoop(loop, done)
	}
	return Synced
}

// reconcile brings local and remote together right after authentication. When the
// first attempt races another writer, the second one merges with what that writer
// stored instead of adopting it.
func (s *Syncer) reconcile(ctx context.Context) error {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		if err = s.reconcileOnce(ctx, attempt > 0); !raced(err) {
			return err
		}
		s.log.Debug("reconciliation raced another writer, retrying", zap.Error(err))
	}
	return err
}

func (s *Syncer) reconcileOnce(ctx context.Context, mergeRemote bool) error {
	local, ver, err := s.doc.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	last, hasLast := s.LastSync(ctx)

	row, err := s.backend.Select(ctx, s.creds.UserUUID, s.cfg.DataType)
	if err != nil {
		return fmt.Errorf("select: %w", err)
	}

	switch {
	case row == nil:
		s.log.Info("no remote copy, uploading local")
		return s.write(ctx, local, false, time.Time{})

	case merge.IsNull(row.Data):
		s.log.Info("remote copy is empty, uploading local")
		return s.write(ctx, local, true, row.UpdatedAt)

	case (!hasLast || s.cfg.Newer(row.UpdatedAt, last)) && (!mergeRemote || merge.IsEmpty(local)):
		s.log.Info("adopting remote copy", zap.Time("remote_updated_at", row.UpdatedAt), zap.Bool("had_last_sync", hasLast))
		return s.adopt(ctx, row.Data, ver, row.UpdatedAt)

	case !merge.IsEmpty(local):
		merged := merge.Merge(local, row.Data, s.cfg.DataType)
		if ok, err := s.doc.Apply(ctx, merged, ver); err != nil || !ok {
			return s.applyFailed(err)
		}
		return s.write(ctx, merged, true, row.UpdatedAt)

	default:
		if ok, err := s.doc.Apply(ctx, row.Data, ver); err != nil || !ok {
			return s.applyFailed(err)
		}
		return nil
	}
}

// raced reports errors that a refetch and merge resolve.
func raced(err error) bool {
	return errors.Is(err, errs.ErrVersionConflict) || errors.Is(err, errLocalChanged)
}

// adopt applies the remote value and records its timestamp as the last sync.
func (s *Syncer) adopt(ctx context.Context, value []byte, ver uint64, at time.Time) error {
	ok, err := s.doc.Apply(ctx, value, ver)
	if err != nil || !ok {
		return s.applyFailed(err)
	}
	return s.setLastSync(ctx, at)
}

func (s *Syncer) applyFailed(err error) error {
	if err != nil {
		return fmt.Errorf("apply: %w", err)
	}
	return errLocalChanged
}

// write upserts value and records the returned updated_at as the last sync.
func (s *Syncer) write(ctx context.Context, value []byte, exists bool, base time.Time) error {
	row := model.Row{UserUUID: s.creds.UserUUID, DataType: s.cfg.DataType, Data: value}
	out, err := remote.Upsert(ctx, s.backend, row, exists, base)
	if err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return s.setLastSync(ctx, out.UpdatedAt)
}

// Push sends the current document, merging first when the remote moved since the
// last sync. It is a no-op unless the Syncer is Synced.
func (s *Syncer) Push(ctx context.Context) error {
	if s.State() != Synced {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	for attempt := 0; attempt < 2; attempt++ {
		if err = s.pushOnce(ctx); !raced(err) {
			break
		}
		s.log.Debug("push raced another writer, retrying", zap.Error(err))
	}
	if err != nil {
		s.dirty.Store(true)
		return err
	}
	s.dirty.Store(false)
	return nil
}

func (s *Syncer) pushOnce(ctx context.Context) error {
	local, ver, err := s.doc.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	row, err := s.backend.Select(ctx, s.creds.UserUUID, s.cfg.DataType)
	if err != nil {
		return fmt.Errorf("select: %w", err)
	}
	last, hasLast := s.LastSync(ctx)

	value := local
	var base time.Time
	if row != nil {
		base = row.UpdatedAt
		if !merge.IsNull(row.Data) && (!hasLast || s.cfg.Newer(row.UpdatedAt, last)) {
			value = merge.Merge(local, row.Data, s.cfg.DataType)
			if ok, err := s.doc.Apply(ctx, value, ver); err != nil || !ok {
				return s.applyFailed(err)
			}
		}
	}
	return s.write(ctx, value, row != nil, base)
}

// Pull adopts remote changes newer than the last sync. It is a no-op unless Synced.
func (s *Syncer) Pull(ctx context.Context) error {
	if s.State() != Synced {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	row, err := s.backend.Select(ctx, s.creds.UserUUID, s.cfg.DataType)
	if err != nil {
		return fmt.Errorf("select: %w", err)
	}
	if row == nil || merge.IsNull(row.Data) {
		return nil
	}
	last, hasLast := s.LastSync(ctx)
	if hasLast && !s.cfg.Newer(row.UpdatedAt, last) {
		return nil
	}

	local, ver, err := s.doc.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	value := row.Data
	if hasLast {
		value = merge.Merge(local, row.Data, s.cfg.DataType)
	}
	s.log.Debug("remote changed", zap.Time("remote_updated_at", row.UpdatedAt))
	if err := s.adopt(ctx, value, ver, row.UpdatedAt); err != nil {
		if errors.Is(err, errLocalChanged) {
			// retried on the next tick against the newer local value
			return nil
		}
		return err
	}
	return nil
}

// NotifyChange schedules a debounced Push. Changes made before the initial
// reconciliation finishes are pushed right after it.
func (s *Syncer) NotifyChange() {
	switch s.State() {
	case Synced:
		s.schedule()
	case Authenticating, Reconciling:
		s.dirty.Store(true)
	}
}

func (s *Syncer) schedule() {
	s.tmu.Lock()
	defer s.tmu.Unlock()
	if s.stopped {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.cfg.Debounce, s.fire)
}

func (s *Syncer) fire() {
	s.tmu.Lock()
	s.timer = nil
	ctx := s.loopCtx
	s.tmu.Unlock()
	if ctx == nil {
		s.dirty.Store(true)
		return
	}
	if err := s.Push(ctx); err != nil {
		s.log.Warn("push failed, will retry", zap.Error(err))
	}
}

// Flush runs a pending debounced or failed push now.
func (s *Syncer) Flush(ctx context.Context) error {
	s.tmu.Lock()
	pending := s.timer != nil && s.timer.Stop()
	s.timer = nil
	s.tmu.Unlock()
	if !pending && !s.dirty.Load() {
		return nil
	}
	return s.Push(ctx)
}

func (s *Syncer) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(s.cfg.PollInterval)
	defer t.Stop()
	for {
		s.tick(ctx)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (s *Syncer) tick(ctx context.Context) {
	var err error
	if s.dirty.Load() {
		err = s.Push(ctx)
	} else {
		err = s.Pull(ctx)
	}
	if err != nil && ctx.Err() == nil {
		s.log.Warn("sync cycle failed", zap.Error(err))
	}
}

// Stop ends the poll loop and cancels the debounce timer. Pending changes are not
// pushed; call Flush first to send them.
func (s *Syncer) Stop() {
	s.tmu.Lock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	cancel, done := s.cancel, s.done
	s.tmu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// LastSync returns the recorded last sync time.
func (s *Syncer) LastSync(ctx context.Context) (time.Time, bool) {
	return ReadLastSync(ctx, s.store, s.cfg.Key)
}

func (s *Syncer) setLastSync(ctx context.Context, at time.Time) error {
	return WriteLastSync(ctx, s.store, s.cfg.Key, at)
}

// ReadLastSync reads the last sync record of key. Corrupt records read as absent.
func ReadLastSync(ctx context.Context, st localstore.Store, key string) (time.Time, bool) {
	v, found, err := localstore.Load[string](ctx, st, model.LastSyncKey(key))
	if err != nil || !found {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// WriteLastSync records at as the last sync time of key.
func WriteLastSync(ctx context.Context, st localstore.Store, key string, at time.Time) error {
	if err := localstore.Save(ctx, st, model.LastSyncKey(key), at.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("record last sync: %w", err)
	}
	return nil
}
