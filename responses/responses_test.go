package responses

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteErrorJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteErrorJSON(rec, http.StatusConflict, CodeBusy, "busy")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var m Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, Message{Type: "error", Message: "busy", Code: CodeBusy}, m)
}

func TestWritePDFAttachment(t *testing.T) {
	rec := httptest.NewRecorder()
	WritePDFAttachment(rec, "offer letter.pdf", []byte("%PDF-1.3"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="offer letter.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "8", rec.Header().Get("Content-Length"))
	assert.Equal(t, "%PDF-1.3", rec.Body.String())

	rec = httptest.NewRecorder()
	WritePDFBytesWithFilename(rec, "a.pdf", []byte("x"))
	assert.Equal(t, `inline; filename=a.pdf`, rec.Header().Get("Content-Disposition"))
}
