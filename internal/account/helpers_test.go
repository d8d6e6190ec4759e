package account

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustField(t *testing.T, raw []byte, key string) json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &m))
	v, ok := m[key]
	require.True(t, ok, "field %s", key)
	return v
}
