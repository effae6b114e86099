package rw

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountWriter(t *testing.T) {
	var buf bytes.Buffer
	cw := NewCountWriter(&buf)
	n, err := io.Copy(cw, strings.NewReader("hello, pages"))
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
	assert.Equal(t, int64(12), cw.BytesWritten())
}

func TestLimitWriter(t *testing.T) {
	var buf bytes.Buffer
	cw := NewLimitWriter(&buf, 8)
	_, err := cw.Write([]byte("12345"))
	require.NoError(t, err)
	_, err = cw.Write([]byte("6789"))
	assert.ErrorIs(t, err, ErrLimitExceeded)
	assert.Equal(t, "12345", buf.String())
	_, err = cw.Write([]byte("678"))
	require.NoError(t, err)
	assert.Equal(t, int64(8), cw.BytesWritten())
}
