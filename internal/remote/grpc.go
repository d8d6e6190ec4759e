package remote

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/and161185/noteloom/internal/convert"
	"github.com/and161185/noteloom/internal/errs"
	"github.com/and161185/noteloom/internal/model"
	"github.com/and161185/noteloom/internal/rpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// GRPC talks to the backend over gRPC and keeps the session in memory.
type GRPC struct {
	cl    *rpc.BackendClient
	conn  *grpc.ClientConn // nil when built over a caller-owned connection
	creds *sessionCreds
	log   *zap.Logger
}

var _ Backend = (*GRPC)(nil)

// sessionCreds attaches the api key and, when signed in, the bearer token to every call.
type sessionCreds struct {
	apiKey string
	secure bool

	mu   sync.RWMutex
	sess *model.Session
}

func (c *sessionCreds) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	md := map[string]string{}
	if c.apiKey != "" {
		md["apikey"] = c.apiKey
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.sess != nil {
		md["authorization"] = "Bearer " + c.sess.AccessToken
	}
	return md, nil
}

func (c *sessionCreds) RequireTransportSecurity() bool { return c.secure }

func (c *sessionCreds) session() *model.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sess
}

func (c *sessionCreds) setSession(s *model.Session) {
	c.mu.Lock()
	c.sess = s
	c.mu.Unlock()
}

// DialOptions tune transport security for Dial.
type DialOptions struct {
	CAFile   string // PEM roots for grpcs://; empty uses the system pool
	Insecure bool   // skip TLS verification for grpcs://
}

func loadTLS(o DialOptions) (credentials.TransportCredentials, error) {
	if o.Insecure {
		return credentials.NewTLS(&tls.Config{InsecureSkipVerify: true}), nil //nolint:gosec // explicit opt-in
	}
	if o.CAFile == "" {
		return credentials.NewClientTLSFromCert(nil, ""), nil
	}
	pem, err := os.ReadFile(o.CAFile)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return credentials.NewTLS(&tls.Config{RootCAs: pool}), nil
}

// Dial connects to rawURL ("grpc://host:port" plaintext, "grpcs://host:port" TLS).
func Dial(rawURL, apiKey string, o DialOptions, log *zap.Logger) (*GRPC, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: backend url %q", errs.ErrInvalid, rawURL)
	}
	var tc credentials.TransportCredentials
	switch u.Scheme {
	case "grpc":
		tc = insecure.NewCredentials()
	case "grpcs":
		if tc, err = loadTLS(o); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", errs.ErrInvalid, u.Scheme)
	}
	cc, err := grpc.NewClient(u.Host, grpc.WithTransportCredentials(tc))
	if err != nil {
		return nil, err
	}
	g := newGRPC(cc, apiKey, u.Scheme == "grpcs", log)
	g.conn = cc
	return g, nil
}

// NewGRPC wraps an existing connection (plaintext). The caller owns cc.
func NewGRPC(cc grpc.ClientConnInterface, apiKey string, log *zap.Logger) *GRPC {
	return newGRPC(cc, apiKey, false, log)
}

func newGRPC(cc grpc.ClientConnInterface, apiKey string, secure bool, log *zap.Logger) *GRPC {
	if log == nil {
		log = zap.NewNop()
	}
	return &GRPC{
		cl:    rpc.NewBackendClient(cc),
		creds: &sessionCreds{apiKey: apiKey, secure: secure},
		log:   log,
	}
}

// Close releases the connection opened by Dial.
func (g *GRPC) Close() error {
	if g.conn == nil {
		return nil
	}
	return g.conn.Close()
}

// Session returns the current session, or nil.
func (g *GRPC) Session() *model.Session { return g.creds.session() }

func (g *GRPC) call(ctx context.Context, method string, in *structpb.Struct) (*structpb.Struct, error) {
	out, err := g.cl.Call(ctx, method, in, grpc.PerRPCCredentials(g.creds))
	if err != nil {
		return nil, mapError(method, err)
	}
	return out, nil
}

// mapError converts a gRPC status into the matching sentinel.
func mapError(method string, err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%s: %w", method, err)
	}
	var sentinel error
	switch st.Code() {
	case codes.Unauthenticated:
		sentinel = errs.ErrUnauthorized
	case codes.PermissionDenied:
		sentinel = errs.ErrForbidden
	case codes.ResourceExhausted:
		sentinel = errs.ErrRateLimited
	case codes.AlreadyExists:
		sentinel = errs.ErrAlreadyExists
	case codes.NotFound:
		sentinel = errs.ErrNotFound
	case codes.FailedPrecondition:
		sentinel = errs.ErrVersionConflict
	case codes.InvalidArgument:
		sentinel = errs.ErrInvalid
	case codes.Unavailable, codes.DeadlineExceeded:
		sentinel = errs.ErrUnavailable
	default:
		return fmt.Errorf("%s: %s: %s", method, st.Code(), st.Message())
	}
	return fmt.Errorf("%s: %w: %s", method, sentinel, st.Message())
}

func isAlreadyExists(err error) bool { return errors.Is(err, errs.ErrAlreadyExists) }

func (g *GRPC) CurrentUser(ctx context.Context) (*model.User, error) {
	if g.creds.session() == nil {
		return nil, nil
	}
	out, err := g.call(ctx, rpc.MethodGetUser, nil)
	if errors.Is(err, errs.ErrUnauthorized) || errors.Is(err, errs.ErrNotFound) {
		g.log.Debug("session no longer valid", zap.Error(err))
		g.creds.setSession(nil)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u := convert.FromProtoUser(out)
	return &u, nil
}

func (g *GRPC) startSession(out *structpb.Struct) (model.Session, error) {
	sess, err := convert.FromProtoSession(out)
	if err != nil {
		return model.Session{}, err
	}
	g.creds.setSession(&sess)
	return sess, nil
}

func (g *GRPC) SignIn(ctx context.Context, email, password string) (model.Session, error) {
	out, err := g.call(ctx, rpc.MethodSignIn, convert.ToProtoCredentials(email, password, nil))
	if err != nil {
		return model.Session{}, err
	}
	return g.startSession(out)
}

func (g *GRPC) SignUp(ctx context.Context, email, password string, md map[string]string) (model.Session, error) {
	out, err := g.call(ctx, rpc.MethodSignUp, convert.ToProtoCredentials(email, password, md))
	if err != nil {
		return model.Session{}, err
	}
	return g.startSession(out)
}

func (g *GRPC) UpdateMetadata(ctx context.Context, md map[string]string) (model.User, error) {
	in := &structpb.Struct{Fields: map[string]*structpb.Value{
		convert.FieldMetadata: structpb.NewStructValue(convert.ToProtoMetadata(md)),
	}}
	out, err := g.call(ctx, rpc.MethodUpdateUser, in)
	if err != nil {
		return model.User{}, err
	}
	u := convert.FromProtoUser(out)
	if s := g.creds.session(); s != nil {
		next := *s
		next.User = u
		g.creds.setSession(&next)
	}
	return u, nil
}

// SignOut drops the local session; tokens are stateless so nothing is sent.
func (g *GRPC) SignOut(context.Context) error {
	g.creds.setSession(nil)
	return nil
}

func (g *GRPC) Select(ctx context.Context, userUUID string, dt model.DataType) (*model.Row, error) {
	out, err := g.call(ctx, rpc.MethodSelectRow, convert.ToProtoRowKey(userUUID, dt))
	if errors.Is(err, errs.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	row, err := convert.FromProtoRow(out)
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (g *GRPC) write(ctx context.Context, method string, row model.Row, base time.Time) (model.Row, error) {
	in, err := convert.ToProtoRowWrite(row, base)
	if err != nil {
		return model.Row{}, err
	}
	out, err := g.call(ctx, method, in)
	if err != nil {
		return model.Row{}, err
	}
	return convert.FromProtoRow(out)
}

func (g *GRPC) Insert(ctx context.Context, row model.Row) (model.Row, error) {
	return g.write(ctx, rpc.MethodInsertRow, row, time.Time{})
}

func (g *GRPC) Update(ctx context.Context, row model.Row, base time.Time) (model.Row, error) {
	return g.write(ctx, rpc.MethodUpdateRow, row, base)
}

func (g *GRPC) Delete(ctx context.Context, userUUID string, dt model.DataType) (int64, error) {
	out, err := g.call(ctx, rpc.MethodDeleteRows, convert.ToProtoRowKey(userUUID, dt))
	if err != nil {
		return 0, err
	}
	return convert.FromProtoCount(out), nil
}

func (g *GRPC) Count(ctx context.Context) (int64, error) {
	out, err := g.call(ctx, rpc.MethodCountRows, nil)
	if err != nil {
		return 0, err
	}
	return convert.FromProtoCount(out), nil
}
