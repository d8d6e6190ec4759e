// Package grpcserver exposes the NoteLoom backend gRPC handlers.
package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/and161185/noteloom/internal/convert"
	"github.com/and161185/noteloom/internal/errs"
	"github.com/and161185/noteloom/internal/rpc"
	"github.com/and161185/noteloom/internal/service"
	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Server wires services into gRPC handlers.
type Server struct {
	auth    service.AuthService
	rows    service.RowService
	signKey []byte
}

var _ rpc.BackendServer = (*Server)(nil)

// New constructs a gRPC server with injected services.
func New(auth service.AuthService, rows service.RowService, signKey []byte) *Server {
	return &Server{auth: auth, rows: rows, signKey: signKey}
}

// statusFromErr maps service sentinels to gRPC codes.
func statusFromErr(op string, err error) error {
	switch {
	case errors.Is(err, errs.ErrInvalid):
		return status.Errorf(codes.InvalidArgument, "%s: %v", op, err)
	case errors.Is(err, errs.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, "bad credentials")
	case errors.Is(err, errs.ErrForbidden):
		return status.Error(codes.PermissionDenied, "row belongs to another user")
	case errors.Is(err, errs.ErrRateLimited):
		return status.Error(codes.ResourceExhausted, "rate limited")
	case errors.Is(err, errs.ErrAlreadyExists):
		return status.Error(codes.AlreadyExists, "already exists")
	case errors.Is(err, errs.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, errs.ErrVersionConflict):
		return status.Error(codes.FailedPrecondition, "version conflict")
	default:
		return status.Errorf(codes.Internal, "%s: %v", op, err)
	}
}

func remoteIP(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return ""
}

// --- Accounts ---

// SignUp creates an account and returns its first session.
func (s *Server) SignUp(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	email, password, md := convert.FromProtoCredentials(req)
	if email == "" || password == "" {
		return nil, status.Error(codes.InvalidArgument, "empty email/password")
	}
	sess, err := s.auth.SignUp(ctx, email, password, md)
	if err != nil {
		return nil, statusFromErr("sign up", err)
	}
	return convert.ToProtoSession(sess), nil
}

// SignIn authenticates by email and password.
func (s *Server) SignIn(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	email, password, _ := convert.FromProtoCredentials(req)
	sess, err := s.auth.SignInWithIP(ctx, email, password, remoteIP(ctx))
	if err != nil {
		return nil, statusFromErr("sign in", err)
	}
	return convert.ToProtoSession(sess), nil
}

// GetUser returns the account of the calling session.
func (s *Server) GetUser(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	id, err := s.accountID(ctx)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	u, err := s.auth.GetAccount(ctx, id)
	if err != nil {
		return nil, statusFromErr("get user", err)
	}
	return convert.ToProtoUser(u), nil
}

// UpdateUser merges metadata keys into the calling account.
func (s *Server) UpdateUser(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := s.accountID(ctx)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	md := convert.FromProtoMetadata(req.GetFields()[convert.FieldMetadata].GetStructValue())
	u, err := s.auth.UpdateMetadata(ctx, id, md)
	if err != nil {
		return nil, statusFromErr("update user", err)
	}
	return convert.ToProtoUser(u), nil
}

// --- Rows ---

// SelectRow returns one row or NotFound.
func (s *Server) SelectRow(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := s.accountID(ctx)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	userUUID, dt := convert.FromProtoRowKey(req)
	row, err := s.rows.Select(ctx, id, userUUID, dt)
	if err != nil {
		return nil, statusFromErr("select row", err)
	}
	out, err := convert.ToProtoRow(*row)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "select row: %v", err)
	}
	return out, nil
}

// InsertRow creates a row; the server stamps updated_at.
func (s *Server) InsertRow(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := s.accountID(ctx)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	row, _, err := convert.FromProtoRowWrite(req)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "bad row: %v", err)
	}
	res, err := s.rows.Insert(ctx, id, row)
	if err != nil {
		return nil, statusFromErr("insert row", err)
	}
	out, err := convert.ToProtoRow(res)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "insert row: %v", err)
	}
	return out, nil
}

// UpdateRow replaces a row, optionally conditional on base_updated_at.
func (s *Server) UpdateRow(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := s.accountID(ctx)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	row, base, err := convert.FromProtoRowWrite(req)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "bad row: %v", err)
	}
	res, err := s.rows.Update(ctx, id, row, base)
	if err != nil {
		return nil, statusFromErr("update row", err)
	}
	out, err := convert.ToProtoRow(res)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "update row: %v", err)
	}
	return out, nil
}

// DeleteRows removes one or all rows of the caller and returns how many were removed.
func (s *Server) DeleteRows(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := s.accountID(ctx)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	userUUID, dt := convert.FromProtoRowKey(req)
	n, err := s.rows.Delete(ctx, id, userUUID, dt)
	if err != nil {
		return nil, statusFromErr("delete rows", err)
	}
	return convert.ToProtoCount(n), nil
}

// CountRows reports the number of stored rows; used as a connection test.
func (s *Server) CountRows(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	n, err := s.rows.Count(ctx)
	if err != nil {
		return nil, statusFromErr("count rows", err)
	}
	return convert.ToProtoCount(n), nil
}

// accountID prefers the id placed by AuthUnary and falls back to parsing the token.
func (s *Server) accountID(ctx context.Context) (uuid.UUID, error) {
	if id, ok := AccountIDFrom(ctx); ok {
		return id, nil
	}
	return s.accountFromToken(ctx)
}

// accountFromToken verifies the HS256 bearer token and returns its subject.
func (s *Server) accountFromToken(ctx context.Context) (uuid.UUID, error) {
	tok, err := bearerToken(ctx)
	if err != nil {
		return uuid.Nil, err
	}

	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(tok, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.signKey, nil
	}, jwt.WithLeeway(30*time.Second))
	if err != nil || !parsed.Valid {
		return uuid.Nil, fmt.Errorf("invalid token: %w", errs.ErrUnauthorized)
	}

	id, err := uuid.FromString(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("bad subject: %w", errs.ErrUnauthorized)
	}
	return id, nil
}

func bearerToken(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", fmt.Errorf("no metadata: %w", errs.ErrUnauthorized)
	}
	for _, v := range md.Get("authorization") {
		v = strings.TrimSpace(v)
		if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
			t := strings.TrimSpace(v[7:])
			if t != "" {
				return t, nil
			}
		}
	}
	return "", fmt.Errorf("no bearer token: %w", errs.ErrUnauthorized)
}
