package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/and161185/noteloom/internal/account"
	"github.com/and161185/noteloom/internal/cell"
	"github.com/and161185/noteloom/internal/config"
	"github.com/and161185/noteloom/internal/journal"
	"github.com/and161185/noteloom/internal/localstore"
	"github.com/and161185/noteloom/internal/model"
	"github.com/and161185/noteloom/internal/remote"
	"github.com/and161185/noteloom/internal/syncer"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

// deps are the process-level seams swapped out by tests.
type deps struct {
	openBackend func(cfg config.Config, log *zap.Logger) (remote.Backend, io.Closer, error)
	isTerminal  func() bool
	readSecret  func() (string, error)
}

func defaultDeps() deps {
	return deps{
		openBackend: dialBackend,
		isTerminal:  func() bool { return term.IsTerminal(int(os.Stdin.Fd())) },
		readSecret: func() (string, error) {
			b, err := term.ReadPassword(int(os.Stdin.Fd()))
			return string(b), err
		},
	}
}

func dialBackend(cfg config.Config, log *zap.Logger) (remote.Backend, io.Closer, error) {
	if !cfg.SyncEnabled() {
		return remote.Disabled{}, io.NopCloser(nil), nil
	}
	g, err := remote.Dial(cfg.BackendURL, cfg.BackendKey, remote.DialOptions{
		CAFile:   cfg.BackendCAFile,
		Insecure: cfg.BackendInsecure,
	}, log)
	if err != nil {
		return nil, nil, fmt.Errorf("dial backend: %w", err)
	}
	return g, g, nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log_level: %w", err)
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

// app is everything a command needs, opened once per invocation.
type app struct {
	cfg      config.Config
	log      *zap.Logger
	store    *localstore.SQLite
	backend  remote.Backend
	closer   io.Closer
	accounts *account.Service
	profiles *cell.Cell[model.ProfilesState]
	settings *cell.Cell[model.Settings]
	book     *journal.Book
	online   bool
}

func openApp(ctx context.Context, cfg config.Config, log *zap.Logger, d deps) (*app, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}
	store, err := localstore.OpenSQLite(ctx, cfg.DBPath())
	if err != nil {
		return nil, err
	}
	backend, closer, err := d.openBackend(cfg, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	a := &app{cfg: cfg, log: log, store: store, backend: backend, closer: closer}
	a.accounts = account.New(store, backend, log)

	creds, ok, err := a.accounts.Credentials(ctx)
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	legacy := localstore.NewLegacyFile(cfg.LegacyPath())
	pOpts := []cell.Option[model.ProfilesState]{
		cell.WithLogger[model.ProfilesState](log),
		cell.WithMigration(cell.ProfilesMigration(legacy)),
	}
	sOpts := []cell.Option[model.Settings]{
		cell.WithLogger[model.Settings](log),
		cell.WithMigration(cell.SettingsMigration(legacy)),
	}
	if ok && cfg.SyncEnabled() {
		sc := syncer.Config{PollInterval: cfg.PollInterval, Debounce: cfg.Debounce, Log: log}
		pOpts = append(pOpts, cell.WithSync[model.ProfilesState](backend, model.DataProfiles, creds, sc))
		sOpts = append(sOpts, cell.WithSync[model.Settings](backend, model.DataSettings, creds, sc))
	}
	a.profiles = cell.New(model.KeyProfilesState, store, model.DefaultProfilesState(), pOpts...)
	a.settings = cell.New(model.KeySettings, store, model.DefaultSettings(), sOpts...)
	a.profiles.Load(ctx)
	a.settings.Load(ctx)
	a.book = journal.NewBook(a.profiles)
	return a, nil
}

// goOnline reconciles both documents so local edits apply to the latest state and
// are pushed on close. Without a backend or credentials it does nothing.
func (a *app) goOnline(ctx context.Context) {
	if a.online {
		return
	}
	a.online = true
	for _, s := range []syncer.State{a.profiles.StartSync(ctx), a.settings.StartSync(ctx)} {
		if s == syncer.AuthFailed {
			a.log.Warn("sync unavailable, working offline")
			return
		}
	}
}

func (a *app) close(ctx context.Context) {
	if a.profiles != nil {
		for _, f := range []func(context.Context) error{a.profiles.Flush, a.settings.Flush} {
			if err := f(ctx); err != nil {
				a.log.Warn("final push failed", zap.Error(err))
			}
		}
		a.profiles.Close()
		a.settings.Close()
	}
	if a.closer != nil {
		_ = a.closer.Close()
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("close store", zap.Error(err))
	}
	_ = a.log.Sync()
}

func (a *app) targets() []account.Target { return []account.Target{a.profiles, a.settings} }

// readLine reads one line; io.EOF after some input is not an error.
func readLine(r io.Reader) (string, error) {
	var sb strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if buf[0] == '\n' {
				break
			}
			sb.WriteByte(buf[0])
		}
		if errors.Is(err, io.EOF) {
			if sb.Len() == 0 {
				return "", io.ErrUnexpectedEOF
			}
			break
		}
		if err != nil {
			return "", err
		}
	}
	return strings.TrimRight(sb.String(), "\r"), nil
}
