// Package convert maps domain values to and from the google.protobuf.Struct messages
// exchanged with the backend.
package convert

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/and161185/noteloom/internal/model"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Field names on the wire.
const (
	FieldEmail       = "email"
	FieldPassword    = "password"
	FieldMetadata    = "metadata"
	FieldAccessToken = "access_token"
	FieldExpiresAt   = "expires_at"
	FieldUser        = "user"
	FieldID          = "id"
	FieldUserUUID    = "user_uuid"
	FieldDataType    = "data_type"
	FieldData        = "data"
	FieldUpdatedAt   = "updated_at"
	FieldBaseAt      = "base_updated_at"
	FieldRow         = "row"
	FieldCount       = "count"
)

// --- helpers ---

func ts(t time.Time) *structpb.Value {
	return structpb.NewStringValue(t.UTC().Format(time.RFC3339Nano))
}

func parseTS(s *structpb.Struct, field string) (time.Time, error) {
	v := Str(s, field)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", field, err)
	}
	return t, nil
}

// Str returns the string field of s or "".
func Str(s *structpb.Struct, field string) string {
	if s == nil {
		return ""
	}
	return s.GetFields()[field].GetStringValue()
}

// --- metadata ---

// ToProtoMetadata converts account metadata to a Struct.
func ToProtoMetadata(md map[string]string) *structpb.Struct {
	out := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(md))}
	for k, v := range md {
		out.Fields[k] = structpb.NewStringValue(v)
	}
	return out
}

// FromProtoMetadata converts a Struct to account metadata; non-string values are dropped.
func FromProtoMetadata(s *structpb.Struct) map[string]string {
	out := map[string]string{}
	for k, v := range s.GetFields() {
		if sv, ok := v.GetKind().(*structpb.Value_StringValue); ok {
			out[k] = sv.StringValue
		}
	}
	return out
}

// --- credentials (client -> server) ---

// ToProtoCredentials builds a SignIn/SignUp request.
func ToProtoCredentials(email, password string, md map[string]string) *structpb.Struct {
	s := &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldEmail:    structpb.NewStringValue(email),
		FieldPassword: structpb.NewStringValue(password),
	}}
	if md != nil {
		s.Fields[FieldMetadata] = structpb.NewStructValue(ToProtoMetadata(md))
	}
	return s
}

// FromProtoCredentials unpacks a SignIn/SignUp request.
func FromProtoCredentials(s *structpb.Struct) (email, password string, md map[string]string) {
	return Str(s, FieldEmail), Str(s, FieldPassword), FromProtoMetadata(s.GetFields()[FieldMetadata].GetStructValue())
}

// --- users and sessions (server -> client) ---

// ToProtoUser converts a user to a Struct.
func ToProtoUser(u model.User) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldID:       structpb.NewStringValue(u.ID),
		FieldEmail:    structpb.NewStringValue(u.Email),
		FieldMetadata: structpb.NewStructValue(ToProtoMetadata(u.Metadata)),
	}}
}

// FromProtoUser converts a Struct to a user.
func FromProtoUser(s *structpb.Struct) model.User {
	return model.User{
		ID:       Str(s, FieldID),
		Email:    Str(s, FieldEmail),
		Metadata: FromProtoMetadata(s.GetFields()[FieldMetadata].GetStructValue()),
	}
}

// ToProtoSession converts a session to a Struct.
func ToProtoSession(sess model.Session) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldAccessToken: structpb.NewStringValue(sess.AccessToken),
		FieldExpiresAt:   ts(sess.ExpiresAt),
		FieldUser:        structpb.NewStructValue(ToProtoUser(sess.User)),
	}}
}

// FromProtoSession converts a Struct to a session.
func FromProtoSession(s *structpb.Struct) (model.Session, error) {
	exp, err := parseTS(s, FieldExpiresAt)
	if err != nil {
		return model.Session{}, err
	}
	tok := Str(s, FieldAccessToken)
	if tok == "" {
		return model.Session{}, fmt.Errorf("empty access token")
	}
	return model.Session{
		AccessToken: tok,
		ExpiresAt:   exp,
		User:        FromProtoUser(s.GetFields()[FieldUser].GetStructValue()),
	}, nil
}

// --- rows ---

// ToProtoRowKey builds a (user_uuid, data_type) filter. An empty dataType matches all types.
func ToProtoRowKey(userUUID string, dt model.DataType) *structpb.Struct {
	s := &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldUserUUID: structpb.NewStringValue(userUUID),
	}}
	if dt != "" {
		s.Fields[FieldDataType] = structpb.NewStringValue(string(dt))
	}
	return s
}

// FromProtoRowKey unpacks a row filter.
func FromProtoRowKey(s *structpb.Struct) (string, model.DataType) {
	return Str(s, FieldUserUUID), model.DataType(Str(s, FieldDataType))
}

// ToProtoRow converts a row to a Struct. A zero UpdatedAt is omitted.
func ToProtoRow(r model.Row) (*structpb.Struct, error) {
	data := structpb.NewNullValue()
	if len(r.Data) > 0 {
		data = &structpb.Value{}
		if err := protojson.Unmarshal(r.Data, data); err != nil {
			return nil, fmt.Errorf("row data: %w", err)
		}
	}
	s := &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldUserUUID: structpb.NewStringValue(r.UserUUID),
		FieldDataType: structpb.NewStringValue(string(r.DataType)),
		FieldData:     data,
	}}
	if !r.UpdatedAt.IsZero() {
		s.Fields[FieldUpdatedAt] = ts(r.UpdatedAt)
	}
	return s, nil
}

// FromProtoRow converts a Struct to a row.
func FromProtoRow(s *structpb.Struct) (model.Row, error) {
	if s == nil {
		return model.Row{}, fmt.Errorf("nil row")
	}
	at, err := parseTS(s, FieldUpdatedAt)
	if err != nil {
		return model.Row{}, err
	}
	var data json.RawMessage
	if v, ok := s.GetFields()[FieldData]; ok {
		b, err := protojson.Marshal(v)
		if err != nil {
			return model.Row{}, fmt.Errorf("row data: %w", err)
		}
		data = b
	}
	return model.Row{
		UserUUID:  Str(s, FieldUserUUID),
		DataType:  model.DataType(Str(s, FieldDataType)),
		Data:      data,
		UpdatedAt: at,
	}, nil
}

// ToProtoRowWrite builds an InsertRow/UpdateRow request. A non-zero base makes the
// update conditional on the row still carrying that updated_at.
func ToProtoRowWrite(r model.Row, base time.Time) (*structpb.Struct, error) {
	s, err := ToProtoRow(model.Row{UserUUID: r.UserUUID, DataType: r.DataType, Data: r.Data})
	if err != nil {
		return nil, err
	}
	if !base.IsZero() {
		s.Fields[FieldBaseAt] = ts(base)
	}
	return s, nil
}

// FromProtoRowWrite unpacks an InsertRow/UpdateRow request.
func FromProtoRowWrite(s *structpb.Struct) (model.Row, time.Time, error) {
	r, err := FromProtoRow(s)
	if err != nil {
		return model.Row{}, time.Time{}, err
	}
	base, err := parseTS(s, FieldBaseAt)
	if err != nil {
		return model.Row{}, time.Time{}, err
	}
	r.UpdatedAt = time.Time{}
	return r, base, nil
}

// --- counts ---

// ToProtoCount wraps a count.
func ToProtoCount(n int64) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldCount: structpb.NewNumberValue(float64(n)),
	}}
}

// FromProtoCount unwraps a count.
func FromProtoCount(s *structpb.Struct) int64 {
	return int64(s.GetFields()[FieldCount].GetNumberValue())
}
