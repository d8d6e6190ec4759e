// Package merge reconciles a local and a remote copy of one synchronized document.
package merge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/and161185/noteloom/internal/model"
)

// Document is the decoded form of a synchronized payload.
type Document interface {
	DataType() model.DataType
}

// ProfilesDoc is the "profiles" document: a list of profiles plus the active id.
// Other top-level members are carried in Extra.
type ProfilesDoc struct {
	Profiles        []json.RawMessage
	ActiveProfileID json.RawMessage
	Extra           map[string]json.RawMessage
}

const (
	keyProfiles = "profiles"
	keyActive   = "activeProfileId"
)

// SettingsDoc is a single object of scalars.
type SettingsDoc struct{ Raw json.RawMessage }

// OpaqueDoc is any document type the engine has no strategy for.
type OpaqueDoc struct {
	Type model.DataType
	Raw  json.RawMessage
}

// DataType implements Document.
func (ProfilesDoc) DataType() model.DataType { return model.DataProfiles }

// DataType implements Document.
func (SettingsDoc) DataType() model.DataType { return model.DataSettings }

// DataType implements Document.
func (d OpaqueDoc) DataType() model.DataType { return d.Type }

// Decode parses raw into the variant selected by dt.
func Decode(raw json.RawMessage, dt model.DataType) (Document, error) {
	switch dt {
	case model.DataProfiles:
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("decode profiles: %w", err)
		}
		doc := ProfilesDoc{ActiveProfileID: obj[keyActive]}
		if p, ok := obj[keyProfiles]; ok && !IsNull(p) {
			if err := json.Unmarshal(p, &doc.Profiles); err != nil {
				return nil, fmt.Errorf("decode profiles list: %w", err)
			}
		}
		for k, v := range obj {
			if k == keyProfiles || k == keyActive {
				continue
			}
			if doc.Extra == nil {
				doc.Extra = map[string]json.RawMessage{}
			}
			doc.Extra[k] = v
		}
		return doc, nil
	case model.DataSettings:
		return SettingsDoc{Raw: raw}, nil
	default:
		return OpaqueDoc{Type: dt, Raw: raw}, nil
	}
}

// Encode renders a ProfilesDoc as {profiles, activeProfileId} plus its Extra members.
func (d ProfilesDoc) Encode() (json.RawMessage, error) {
	profiles := d.Profiles
	if profiles == nil {
		profiles = []json.RawMessage{}
	}
	active := d.ActiveProfileID
	if !truthy(active) {
		active = json.RawMessage("null")
	}
	if len(d.Extra) == 0 {
		return json.Marshal(struct {
			Profiles        []json.RawMessage `json:"profiles"`
			ActiveProfileID json.RawMessage   `json:"activeProfileId"`
		}{profiles, active})
	}
	list, err := json.Marshal(profiles)
	if err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(d.Extra)+2)
	for k, v := range d.Extra {
		out[k] = v
	}
	out[keyProfiles], out[keyActive] = list, active
	return json.Marshal(out)
}

// IsNull reports whether raw is absent or JSON null.
func IsNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

// IsEmpty reports whether raw is null, an empty object or an empty array.
func IsEmpty(raw json.RawMessage) bool {
	if IsNull(raw) {
		return true
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return true
	}
	switch x := v.(type) {
	case map[string]any:
		return len(x) == 0
	case []any:
		return len(x) == 0
	}
	return false
}

// truthy mirrors the loose truthiness used for ids: null, false, 0 and "" are missing.
func truthy(raw json.RawMessage) bool {
	_, ok := idKey(raw)
	return ok
}

// idKey normalizes an id value into a map key; ok is false for missing ids.
func idKey(raw json.RawMessage) (string, bool) {
	t := bytes.TrimSpace(raw)
	if len(t) == 0 {
		return "", false
	}
	switch t[0] {
	case '"':
		var s string
		if err := json.Unmarshal(t, &s); err != nil || s == "" {
			return "", false
		}
		return "s:" + s, true
	case 'n', 'f':
		return "", false
	case 't':
		return "b:true", true
	case '{', '[':
		return "j:" + string(t), true
	default:
		f, err := strconv.ParseFloat(string(t), 64)
		if err != nil || f == 0 {
			return "", false
		}
		return "n:" + strconv.FormatFloat(f, 'g', -1, 64), true
	}
}
