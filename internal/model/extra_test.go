package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtra_RoundTrip(t *testing.T) {
	t.Parallel()

	in := `{"id":"e1","journalId":"j1","templateId":"t1","createdAt":"2025-01-01T00:00:00Z","data":{"mood":3},"pinned":true,"tags":["a"]}`
	var e Entry
	require.NoError(t, json.Unmarshal([]byte(in), &e))
	require.Equal(t, "e1", e.ID)
	require.Len(t, e.Extra, 2)

	e.Title = "set here"
	out, err := json.Marshal(e)
	require.NoError(t, err)
	require.JSONEq(t, `{"id":"e1","journalId":"j1","templateId":"t1","createdAt":"2025-01-01T00:00:00Z","title":"set here","data":{"mood":3},"pinned":true,"tags":["a"]}`, string(out))
}

func TestExtra_DeclaredFieldsStayOut(t *testing.T) {
	t.Parallel()

	var j Journal
	require.NoError(t, json.Unmarshal([]byte(`{"id":"j1","Name":"case folded","defaultTemplateId":"t"}`), &j))
	require.Nil(t, j.Extra)
	require.Equal(t, "case folded", j.Name)

	out, err := json.Marshal(j)
	require.NoError(t, err)
	require.JSONEq(t, `{"id":"j1","name":"case folded","defaultTemplateId":"t"}`, string(out))
}

func TestExtra_Nested(t *testing.T) {
	t.Parallel()

	in := `{"profiles":[{"id":"p1","name":"P","icon":"*","data":{"journals":[{"id":"j1","name":"D","archived":true}],"entries":[],"templates":[],"customFieldDefs":[],"customFieldCategories":[],"views":{}}}],"activeProfileId":"p1","layout":"grid"}`
	var st ProfilesState
	require.NoError(t, json.Unmarshal([]byte(in), &st))
	out, err := json.Marshal(st)
	require.NoError(t, err)
	require.JSONEq(t, in, string(out))
}

func TestSettings_FractionalFontSize(t *testing.T) {
	t.Parallel()

	var s Settings
	require.NoError(t, json.Unmarshal([]byte(`{"theme":"dark","fontSize":15.5}`), &s))
	require.Equal(t, 15.5, s.FontSize)
}
