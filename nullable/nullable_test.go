package nullable

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	Pages    Int    `json:"pages"`
	Location String `json:"location"`
}

func TestJSON(t *testing.T) {
	data, err := json.Marshal(row{Pages: IntFrom(2), Location: StringFrom("")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"pages":2,"location":null}`, string(data))

	var r row
	require.NoError(t, json.Unmarshal([]byte(`{"pages":null,"location":"file:///a.pdf"}`), &r))
	assert.True(t, r.Pages.IsNil())
	assert.Equal(t, int64(0), r.Pages.ForceValue())
	assert.Equal(t, "file:///a.pdf", r.Location.ForceValue())
}

func TestScan(t *testing.T) {
	var s String
	require.NoError(t, s.Scan("x"))
	assert.Equal(t, "x", s.ForceValue())
	require.NoError(t, s.Scan(nil))
	assert.True(t, s.IsNil())
}
