package syncer

import (
	"context"
	"encoding/json"
)

// State is the lifecycle of a Syncer.
type State int32

const (
	Unauthenticated State = iota
	Authenticating
	AuthFailed
	Reconciling
	Synced
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticating:
		return "authenticating"
	case AuthFailed:
		return "auth-failed"
	case Reconciling:
		return "reconciling"
	case Synced:
		return "synced"
	default:
		return "unknown"
	}
}

// Document is the local copy a Syncer reconciles.
type Document interface {
	// Snapshot returns the current encoded value and its version.
	Snapshot() (json.RawMessage, uint64, error)
	// Apply persists value when the document is still at version, without scheduling a
	// push. It reports false when the document moved on in the meantime.
	Apply(ctx context.Context, value json.RawMessage, version uint64) (bool, error)
}
