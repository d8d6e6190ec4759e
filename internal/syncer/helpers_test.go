package syncer

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/and161185/noteloom/internal/auth"
	"github.com/and161185/noteloom/internal/identity"
	"github.com/and161185/noteloom/internal/localstore"
	"github.com/and161185/noteloom/internal/model"
	"github.com/and161185/noteloom/internal/remote"
	"github.com/and161185/noteloom/internal/remote/remotetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// memDoc is a versioned in-memory Document.
type memDoc struct {
	mu      sync.Mutex
	v       json.RawMessage
	ver     uint64
	applies int
	// onSnapshot runs after a snapshot is taken, outside the lock.
	onSnapshot func()
}

var _ Document = (*memDoc)(nil)

func newDoc(v string) *memDoc { return &memDoc{v: json.RawMessage(v)} }

func (d *memDoc) Snapshot() (json.RawMessage, uint64, error) {
	d.mu.Lock()
	v, ver, hook := append(json.RawMessage(nil), d.v...), d.ver, d.onSnapshot
	d.onSnapshot = nil
	d.mu.Unlock()
	if hook != nil {
		hook()
	}
	return v, ver, nil
}

func (d *memDoc) Apply(_ context.Context, v json.RawMessage, ver uint64) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ver != d.ver {
		return false, nil
	}
	d.v = append(json.RawMessage(nil), v...)
	d.ver++
	d.applies++
	return true, nil
}

// edit is a local user change.
func (d *memDoc) edit(v string) {
	d.mu.Lock()
	d.v = json.RawMessage(v)
	d.ver++
	d.mu.Unlock()
}

func (d *memDoc) get() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return string(d.v)
}

// countingBackend counts writes, records update bases and can fail or blind Select.
type countingBackend struct {
	remote.Backend
	mu        sync.Mutex
	writes    int
	bases     []time.Time
	selectErr error
	// staleSelects makes the next n Selects report no row, as if another
	// writer inserted right after the read.
	staleSelects int
}

func (b *countingBackend) Select(ctx context.Context, u string, dt model.DataType) (*model.Row, error) {
	b.mu.Lock()
	err, stale := b.selectErr, b.staleSelects > 0
	if stale {
		b.staleSelects--
	}
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if stale {
		return nil, nil
	}
	return b.Backend.Select(ctx, u, dt)
}

func (b *countingBackend) Insert(ctx context.Context, row model.Row) (model.Row, error) {
	b.mu.Lock()
	b.writes++
	b.mu.Unlock()
	return b.Backend.Insert(ctx, row)
}

func (b *countingBackend) Update(ctx context.Context, row model.Row, base time.Time) (model.Row, error) {
	b.mu.Lock()
	b.writes++
	b.bases = append(b.bases, base)
	b.mu.Unlock()
	return b.Backend.Update(ctx, row, base)
}

// Authenticate signs the wrapped client in as alice.
func (b *countingBackend) Authenticate(ctx context.Context) bool {
	return auth.New(b, zap.NewNop()).Authenticate(ctx, aliceCreds.Username, aliceCreds.Secret, aliceCreds.UserUUID)
}

func (b *countingBackend) setSelectErr(err error) {
	b.mu.Lock()
	b.selectErr = err
	b.mu.Unlock()
}

func (b *countingBackend) blindNextSelect() {
	b.mu.Lock()
	b.staleSelects++
	b.mu.Unlock()
}

func (b *countingBackend) updateBases() []time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]time.Time(nil), b.bases...)
}

func (b *countingBackend) writeCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes
}

var aliceCreds = Credentials{Username: "alice", Secret: "secret1", UserUUID: identity.Derive("alice", "secret1")}

type client struct {
	s       *Syncer
	doc     *memDoc
	store   *localstore.Memory
	backend *countingBackend
}

func newClient(t *testing.T, srv *remotetest.Server, dt model.DataType, initial string) *client {
	t.Helper()
	c := &client{
		doc:     newDoc(initial),
		store:   localstore.NewMemory(),
		backend: &countingBackend{Backend: srv.Client(t)},
	}
	c.s = New(c.doc, c.backend, c.store, aliceCreds, Config{
		Key:          string(dt),
		DataType:     dt,
		PollInterval: time.Hour,
		Debounce:     20 * time.Millisecond,
		Log:          zaptest.NewLogger(t),
	})
	t.Cleanup(c.s.Stop)
	return c
}

func seedRow(t *testing.T, srv *remotetest.Server, dt model.DataType, data string) model.Row {
	t.Helper()
	row, err := srv.Rows.Insert(context.Background(), model.Row{UserUUID: aliceCreds.UserUUID, DataType: dt, Data: json.RawMessage(data)})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return row
}

func remoteData(t *testing.T, srv *remotetest.Server, dt model.DataType) string {
	t.Helper()
	row, err := srv.Rows.Get(context.Background(), aliceCreds.UserUUID, dt)
	if err != nil {
		t.Fatalf("remote row: %v", err)
	}
	return string(row.Data)
}

func jsonUnmarshal(s string, v any) error { return json.Unmarshal([]byte(s), v) }
