// Package service contains application services for authentication and synchronized rows.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	pkgcrypto "github.com/and161185/noteloom/internal/crypto"
	"github.com/and161185/noteloom/internal/errs"
	"github.com/and161185/noteloom/internal/limiter"
	"github.com/and161185/noteloom/internal/model"
	"github.com/and161185/noteloom/internal/repository"
	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
)

// AuthService defines account and session operations.
type AuthService interface {
	// SignUp creates an account with the given metadata and returns a session for it.
	SignUp(ctx context.Context, email, password string, md map[string]string) (model.Session, error)
	// SignInWithIP applies rate-limiting and authenticates the account.
	SignInWithIP(ctx context.Context, email, password, ip string) (model.Session, error)
	// GetAccount returns the account of an authenticated session.
	GetAccount(ctx context.Context, id uuid.UUID) (model.User, error)
	// UpdateMetadata merges metadata keys into the account.
	UpdateMetadata(ctx context.Context, id uuid.UUID, md map[string]string) (model.User, error)
}

type AuthServiceImpl struct {
	accounts  repository.AccountRepository
	signKey   []byte
	accessTTL time.Duration
	lim       limiter.Limiter
	now       func() time.Time
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(accounts repository.AccountRepository, signKey []byte, accessTTL time.Duration, lim limiter.Limiter) *AuthServiceImpl {
	if lim == nil {
		lim = limiter.Nop{}
	}
	return &AuthServiceImpl{accounts: accounts, signKey: signKey, accessTTL: accessTTL, lim: lim, now: time.Now}
}

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// SignUp creates a new account with an argon2id secret hash.
func (s *AuthServiceImpl) SignUp(ctx context.Context, email, password string, md map[string]string) (model.Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return model.Session{}, fmt.Errorf("%w: empty email/password", errs.ErrInvalid)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return model.Session{}, err
	}
	hash, err := pkgcrypto.HashSecret(password)
	if err != nil {
		return model.Session{}, err
	}
	if md == nil {
		md = map[string]string{}
	}
	a := &model.Account{
		ID:        id,
		Email:     email,
		PwdHash:   hash,
		Metadata:  md,
		CreatedAt: s.now(),
	}
	if err := s.accounts.Create(ctx, a); err != nil {
		return model.Session{}, err
	}
	return s.session(*a)
}

// SignInWithIP authenticates with rate limiting by (email, ip).
func (s *AuthServiceImpl) SignInWithIP(ctx context.Context, email, password, ip string) (model.Session, error) {
	email = normalizeEmail(email)
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, email, ipHash)
	if err != nil {
		return model.Session{}, err
	}
	if !allowed {
		return model.Session{}, errs.ErrRateLimited
	}

	a, err := s.accounts.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return model.Session{}, err
	}
	ok := false
	if err == nil {
		ok, _ = pkgcrypto.VerifySecret(password, a.PwdHash)
	}
	if !ok {
		if blocked, _, ferr := s.lim.Failure(ctx, email, ipHash); ferr == nil && blocked {
			return model.Session{}, errs.ErrRateLimited
		}
		// unknown email and wrong password look the same
		return model.Session{}, errs.ErrUnauthorized
	}

	_ = s.lim.Success(ctx, email, ipHash)
	return s.session(*a)
}

// GetAccount loads the account behind a session.
func (s *AuthServiceImpl) GetAccount(ctx context.Context, id uuid.UUID) (model.User, error) {
	if id == uuid.Nil {
		return model.User{}, errs.ErrUnauthorized
	}
	a, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	return a.User(), nil
}

// UpdateMetadata merges md into the account metadata. Empty keys are rejected.
func (s *AuthServiceImpl) UpdateMetadata(ctx context.Context, id uuid.UUID, md map[string]string) (model.User, error) {
	if id == uuid.Nil {
		return model.User{}, errs.ErrUnauthorized
	}
	for k := range md {
		if k == "" {
			return model.User{}, fmt.Errorf("%w: empty metadata key", errs.ErrInvalid)
		}
	}
	a, err := s.accounts.MergeMetadata(ctx, id, md)
	if err != nil {
		return model.User{}, err
	}
	return a.User(), nil
}

func (s *AuthServiceImpl) session(a model.Account) (model.Session, error) {
	token, exp, err := s.issueAccessToken(a.ID)
	if err != nil {
		return model.Session{}, err
	}
	return model.Session{AccessToken: token, ExpiresAt: exp, User: a.User()}, nil
}

// issueAccessToken creates a signed HS256 JWT for the given subject.
func (s *AuthServiceImpl) issueAccessToken(id uuid.UUID) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.accessTTL)
	claims := jwt.RegisteredClaims{
		Subject:   id.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signKey)
	return signed, exp, err
}
