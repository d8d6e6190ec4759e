package model

import (
	"encoding/json"
	"reflect"
	"strings"
	"sync"
)

// Extra holds JSON members a document type does not declare. Other clients may
// write fields this one does not know; they are kept and written back unchanged.
type Extra map[string]json.RawMessage

var declared sync.Map // reflect.Type -> map[string]bool, lower-cased json names

func declaredFields(t reflect.Type) map[string]bool {
	if v, ok := declared.Load(t); ok {
		return v.(map[string]bool)
	}
	names := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if name == "" {
			name = f.Name
		}
		// encoding/json matches keys case-insensitively
		names[strings.ToLower(name)] = true
	}
	declared.Store(t, names)
	return names
}

// decodeExtra decodes data into v, a pointer to a struct, and collects undeclared
// members into extra.
func decodeExtra(data []byte, v any, extra *Extra) error {
	if err := json.Unmarshal(data, v); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	known := declaredFields(reflect.TypeOf(v).Elem())
	for k := range all {
		if known[strings.ToLower(k)] {
			delete(all, k)
		}
	}
	if len(all) == 0 {
		*extra = nil
		return nil
	}
	*extra = all
	return nil
}

// encodeExtra encodes v and adds the undeclared members back.
func encodeExtra(v any, extra Extra) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return b, err
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	for k, raw := range extra {
		if _, ok := out[k]; !ok {
			out[k] = raw
		}
	}
	return json.Marshal(out)
}
