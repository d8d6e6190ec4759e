// Package account manages the locally stored credentials and the explicit account
// actions: import, manual sync, deletion and connection test.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/and161185/noteloom/internal/auth"
	"github.com/and161185/noteloom/internal/errs"
	"github.com/and161185/noteloom/internal/identity"
	"github.com/and161185/noteloom/internal/localstore"
	"github.com/and161185/noteloom/internal/model"
	"github.com/and161185/noteloom/internal/remote"
	"github.com/and161185/noteloom/internal/syncer"
	"go.uber.org/zap"
)

// SyncedKeys are the local keys whose last-sync records belong to the account.
var SyncedKeys = []string{model.KeyProfilesState, model.KeySettings}

// Target is one synchronized document.
type Target interface {
	Key() string
	Syncer() *syncer.Syncer
}

// Result reports the manual sync of one document.
type Result struct {
	Key      string
	LastSync time.Time
	Err      error
}

// Service performs account actions against the local store and the backend.
type Service struct {
	store   localstore.Store
	backend remote.Backend
	auth    syncer.Authenticator
	log     *zap.Logger
}

// New returns a Service. A nil log is replaced with a no-op logger.
func New(store localstore.Store, backend remote.Backend, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, backend: backend, auth: auth.New(backend, log), log: log}
}

// ImportCredentials validates and stores the credentials and returns the derived id.
func (s *Service) ImportCredentials(ctx context.Context, username, secret string) (string, error) {
	username, secret = strings.TrimSpace(username), strings.TrimSpace(secret)
	if !identity.SecretLongEnough(secret) {
		return "", errs.ErrSecretTooShort
	}
	if username == "" {
		return "", fmt.Errorf("empty username: %w", errs.ErrInvalid)
	}
	id := identity.Derive(username, secret)
	for k, v := range map[string]string{
		model.KeyUsername:     username,
		model.KeySecretPhrase: secret,
		model.KeyUserUUID:     id,
	} {
		if err := localstore.Save(ctx, s.store, k, v); err != nil {
			return "", fmt.Errorf("save credentials: %w", err)
		}
	}
	s.log.Info("credentials imported", zap.String("username", username), zap.String("user_uuid", id))
	return id, nil
}

// Credentials returns the stored credentials; ok is false when any part is missing.
func (s *Service) Credentials(ctx context.Context) (syncer.Credentials, bool, error) {
	var c syncer.Credentials
	for _, f := range []struct {
		key string
		dst *string
	}{
		{model.KeyUsername, &c.Username},
		{model.KeySecretPhrase, &c.Secret},
		{model.KeyUserUUID, &c.UserUUID},
	} {
		v, found, err := localstore.Load[string](ctx, s.store, f.key)
		if err != nil {
			return syncer.Credentials{}, false, fmt.Errorf("load %s: %w", f.key, err)
		}
		if !found || v == "" {
			return syncer.Credentials{}, false, nil
		}
		*f.dst = v
	}
	return c, true, nil
}

func (s *Service) authenticate(ctx context.Context) (syncer.Credentials, error) {
	c, ok, err := s.Credentials(ctx)
	if err != nil {
		return c, err
	}
	if !ok {
		return c, fmt.Errorf("no stored credentials: %w", errs.ErrNotFound)
	}
	if !s.auth.Authenticate(ctx, c.Username, c.Secret, c.UserUUID) {
		return c, errs.ErrUnauthorized
	}
	return c, nil
}

// SyncNow authenticates and pushes every target, reporting each one. The returned
// error joins the per-document failures.
func (s *Service) SyncNow(ctx context.Context, targets ...Target) ([]Result, error) {
	if _, err := s.authenticate(ctx); err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(targets))
	var failed []error
	for _, t := range targets {
		r := Result{Key: t.Key()}
		sy := t.Syncer()
		switch {
		case sy == nil:
			r.Err = errs.ErrNotConfigured
		case sy.Start(ctx) != syncer.Synced:
			r.Err = errs.ErrUnauthorized
		default:
			r.Err = sy.Push(ctx)
		}
		if r.Err == nil {
			r.LastSync, _ = syncer.ReadLastSync(ctx, s.store, t.Key())
		} else {
			failed = append(failed, fmt.Errorf("%s: %w", t.Key(), r.Err))
		}
		s.log.Info("manual sync", zap.String("key", r.Key), zap.Error(r.Err))
		results = append(results, r)
	}
	return results, errors.Join(failed...)
}

// DeleteAccount removes every remote row of the user, signs out and forgets the local
// credentials. Local documents and the backend account are kept.
func (s *Service) DeleteAccount(ctx context.Context) (int64, error) {
	c, err := s.authenticate(ctx)
	if err != nil {
		return 0, err
	}
	n, err := s.backend.Delete(ctx, c.UserUUID, "")
	if err != nil {
		return 0, fmt.Errorf("delete rows: %w", err)
	}
	if err := s.backend.SignOut(ctx); err != nil {
		s.log.Warn("sign out failed", zap.Error(err))
	}
	keys := []string{model.KeyUsername, model.KeySecretPhrase, model.KeyUserUUID}
	for _, k := range SyncedKeys {
		keys = append(keys, model.LastSyncKey(k))
	}
	for _, k := range keys {
		if err := s.store.Delete(ctx, k); err != nil {
			return n, fmt.Errorf("clear %s: %w", k, err)
		}
	}
	s.log.Info("account data deleted", zap.String("user_uuid", c.UserUUID), zap.Int64("rows", n))
	return n, nil
}

// TestConnection reports whether the backend answers.
func (s *Service) TestConnection(ctx context.Context) error {
	if _, err := s.backend.Count(ctx); err != nil {
		return fmt.Errorf("connection test: %w", err)
	}
	return nil
}
