package merge

import (
	"encoding/json"

	"github.com/and161185/noteloom/internal/model"
)

// Collections merged by id inside every profile's data.
var profileCollections = []string{"journals", "entries", "templates", "customFieldDefs", "customFieldCategories"}

// Merge reconciles local and remote copies of a document of type dt.
// It never fails: undecodable input resolves to remote (or local when remote is null).
func Merge(local, remote json.RawMessage, dt model.DataType) json.RawMessage {
	if IsNull(remote) {
		return local
	}
	if IsNull(local) {
		return remote
	}

	r, err := Decode(remote, dt)
	if err != nil {
		return remote
	}
	rp, ok := r.(ProfilesDoc)
	if !ok {
		// settings and unknown types: remote wins outright
		return remote
	}
	l, err := Decode(local, dt)
	if err != nil {
		return remote
	}

	out, err := mergeProfiles(l.(ProfilesDoc), rp).Encode()
	if err != nil {
		return remote
	}
	return out
}

func mergeProfiles(local, remote ProfilesDoc) ProfilesDoc {
	var (
		order []string
		byID  = map[string]json.RawMessage{}
	)
	put := func(k string, v json.RawMessage) {
		if _, seen := byID[k]; !seen {
			order = append(order, k)
		}
		byID[k] = v
	}

	for _, p := range remote.Profiles {
		if k, ok := elementID(p); ok {
			put(k, p)
		}
	}
	for _, lp := range local.Profiles {
		k, ok := elementID(lp)
		if !ok {
			continue
		}
		rp, exists := byID[k]
		if !exists {
			put(k, lp)
			continue
		}
		if merged, err := mergeProfile(lp, rp); err == nil {
			put(k, merged)
		}
	}

	out := ProfilesDoc{Profiles: make([]json.RawMessage, 0, len(order)), Extra: unionExtra(remote.Extra, local.Extra)}
	for _, k := range order {
		out.Profiles = append(out.Profiles, byID[k])
	}
	switch {
	case truthy(remote.ActiveProfileID):
		out.ActiveProfileID = remote.ActiveProfileID
	case truthy(local.ActiveProfileID):
		out.ActiveProfileID = local.ActiveProfileID
	}
	return out
}

// unionExtra keeps top-level members from both sides; remote wins on shared keys.
func unionExtra(remote, local map[string]json.RawMessage) map[string]json.RawMessage {
	if len(remote)+len(local) == 0 {
		return nil
	}
	out := make(map[string]json.RawMessage, len(remote)+len(local))
	for k, v := range local {
		out[k] = v
	}
	for k, v := range remote {
		out[k] = v
	}
	return out
}

// mergeProfile keeps the remote profile and merges each collection of its data by id.
func mergeProfile(local, remote json.RawMessage) (json.RawMessage, error) {
	var rp map[string]json.RawMessage
	if err := json.Unmarshal(remote, &rp); err != nil {
		return nil, err
	}
	rdata := objectOrEmpty(rp["data"])
	var lp map[string]json.RawMessage
	if err := json.Unmarshal(local, &lp); err != nil {
		lp = nil
	}
	ldata := objectOrEmpty(lp["data"])

	for _, c := range profileCollections {
		merged := MergeArrays(arrayOrEmpty(rdata[c]), arrayOrEmpty(ldata[c]))
		b, err := json.Marshal(merged)
		if err != nil {
			return nil, err
		}
		rdata[c] = b
	}
	b, err := json.Marshal(rdata)
	if err != nil {
		return nil, err
	}
	rp["data"] = b
	return json.Marshal(rp)
}

// MergeArrays unions two id-keyed arrays. Local elements are inserted first and
// remote elements overwrite them, so ids present on both sides take the remote element.
// Output order is first-insertion order; elements without an id are dropped.
func MergeArrays(remote, local []json.RawMessage) []json.RawMessage {
	var (
		order []string
		byID  = make(map[string]json.RawMessage, len(local)+len(remote))
	)
	add := func(items []json.RawMessage) {
		for _, it := range items {
			k, ok := elementID(it)
			if !ok {
				continue
			}
			if _, seen := byID[k]; !seen {
				order = append(order, k)
			}
			byID[k] = it
		}
	}
	add(local)
	add(remote)

	out := make([]json.RawMessage, 0, len(order))
	for _, k := range order {
		out = append(out, byID[k])
	}
	return out
}

func elementID(item json.RawMessage) (string, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(item, &obj); err != nil {
		return "", false
	}
	return idKey(obj["id"])
}

func objectOrEmpty(raw json.RawMessage) map[string]json.RawMessage {
	var m map[string]json.RawMessage
	if IsNull(raw) || json.Unmarshal(raw, &m) != nil || m == nil {
		return map[string]json.RawMessage{}
	}
	return m
}

func arrayOrEmpty(raw json.RawMessage) []json.RawMessage {
	var a []json.RawMessage
	if IsNull(raw) || json.Unmarshal(raw, &a) != nil {
		return nil
	}
	return a
}
