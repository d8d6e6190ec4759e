// Package auth signs the derived identity in to the sync backend.
package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/and161185/noteloom/internal/errs"
	"github.com/and161185/noteloom/internal/identity"
	"github.com/and161185/noteloom/internal/model"
	"github.com/and161185/noteloom/internal/remote"
	"go.uber.org/zap"
)

// HandleDomain is the synthetic domain of backend login handles.
const HandleDomain = "noteloom.local"

// Handle returns the backend login handle for username.
func Handle(username string) string { return username + "@" + HandleDomain }

// Authenticator establishes a backend session for (username, secret) and keeps the
// account's user_uuid metadata pointing at the derived identity.
type Authenticator struct {
	backend remote.Backend
	log     *zap.Logger
}

// New constructs an Authenticator. A nil logger discards output.
func New(b remote.Backend, log *zap.Logger) *Authenticator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Authenticator{backend: b, log: log}
}

// Authenticate reports whether a session for the credentials is active afterwards.
// It never returns an error: every failure is logged and reported as false.
func (a *Authenticator) Authenticate(ctx context.Context, username, secret, userUUID string) bool {
	if !identity.SecretLongEnough(secret) {
		return false
	}
	email := Handle(username)
	log := a.log.With(zap.String("handle", email))

	u, err := a.backend.CurrentUser(ctx)
	if errors.Is(err, errs.ErrNotConfigured) {
		return false
	}
	if err != nil {
		log.Warn("failed to read current session", zap.Error(err))
		return false
	}
	if u != nil && strings.EqualFold(u.Email, email) {
		return a.ensureUserUUID(ctx, log, *u, userUUID)
	}

	sess, err := a.backend.SignIn(ctx, email, secret)
	if err != nil {
		log.Debug("sign in failed, trying sign up", zap.Error(err))
		sess, err = a.backend.SignUp(ctx, email, secret, map[string]string{
			model.MetaUsername: username,
			model.MetaUserUUID: userUUID,
		})
		if err != nil {
			log.Warn("authentication failed", zap.Error(err))
			return false
		}
		log.Info("backend account created")
	}
	return a.ensureUserUUID(ctx, log, sess.User, userUUID)
}

func (a *Authenticator) ensureUserUUID(ctx context.Context, log *zap.Logger, u model.User, userUUID string) bool {
	if u.Metadata[model.MetaUserUUID] == userUUID {
		return true
	}
	if _, err := a.backend.UpdateMetadata(ctx, map[string]string{model.MetaUserUUID: userUUID}); err != nil {
		log.Warn("failed to update user_uuid metadata", zap.Error(err))
		return false
	}
	log.Info("user_uuid metadata repaired")
	return true
}
