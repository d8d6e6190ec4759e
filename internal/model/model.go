// Package model defines domain entities shared by the sync engine, the backend and the CLI.
package model

import (
	"encoding/json"
	"time"

	"github.com/gofrs/uuid/v5"
)

// DataType names one independently synchronized document.
type DataType string

// Known document types.
const (
	DataProfiles DataType = "profiles"
	DataSettings DataType = "settings"
)

// Local store keys used by the application.
const (
	KeyProfilesState = "profiles-state"
	KeySettings      = "settings"
	KeyUserUUID      = "user-uuid"
	KeyUsername      = "username"
	KeySecretPhrase  = "secret-phrase"
)

// Account metadata keys.
const (
	MetaUsername = "username"
	MetaUserUUID = "user_uuid"
)

// LastSyncKey returns the local key holding the last reconciled timestamp for key.
func LastSyncKey(key string) string { return key + "-last-sync" }

// Row is one remote document, unique per (UserUUID, DataType).
type Row struct {
	UserUUID  string          // derived identity, owner of the row
	DataType  DataType        // "profiles", "settings", ...
	Data      json.RawMessage // opaque JSON payload
	UpdatedAt time.Time       // set by the backend on every write
}

// User is the backend account as seen by a client session.
type User struct {
	ID       string
	Email    string
	Metadata map[string]string
}

// Session is an authenticated backend session.
type Session struct {
	AccessToken string
	ExpiresAt   time.Time // access token expiry (for diagnostics)
	User        User
}

// Account represents a backend auth account. Passwords are never stored in plaintext.
type Account struct {
	ID        uuid.UUID         // PK
	Email     string            // unique login handle
	PwdHash   string            // encoded argon2id hash
	Metadata  map[string]string // username, user_uuid
	CreatedAt time.Time
}

// User projects the account into its client-visible form.
func (a Account) User() User {
	md := make(map[string]string, len(a.Metadata))
	for k, v := range a.Metadata {
		md[k] = v
	}
	return User{ID: a.ID.String(), Email: a.Email, Metadata: md}
}
