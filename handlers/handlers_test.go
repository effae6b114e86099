package handlers

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeptools/gw-docprint/artifacts"
	"github.com/zeptools/gw-docprint/capture"
	"github.com/zeptools/gw-docprint/compositor"
	"github.com/zeptools/gw-docprint/locks/keyonlylocks"
	"github.com/zeptools/gw-docprint/nullable"
	"github.com/zeptools/gw-docprint/pdfs"
	"github.com/zeptools/gw-docprint/responses"
	"github.com/zeptools/gw-docprint/routing"
	"github.com/zeptools/gw-docprint/sec"
	"github.com/zeptools/gw-docprint/storages/keystores"
	"github.com/zeptools/gw-docprint/throttle"
	"github.com/zeptools/gw-docprint/visual"
)

const region = `{"class":"document","root":{"tag":"div","box":{"w":800,"h":1200},"children":[{"tag":"p","text":"Dear candidate"}]}}`

type fakeExporter struct {
	mu       sync.Mutex
	requests []compositor.Request
	rendered int
	err      error
	block    chan struct{}
}

func (f *fakeExporter) run(req compositor.Request, persist bool) (*compositor.Artifact, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	art := &compositor.Artifact{Name: req.Name(), Data: []byte("%PDF-1.3"), Pages: 1, SourceID: req.SourceID, Geometry: pdfs.DefaultGeometry}
	if persist {
		art.Location = "tok123"
	} else {
		f.rendered++
	}
	return art, nil
}

func (f *fakeExporter) Generate(_ context.Context, req compositor.Request) (*compositor.Artifact, error) {
	return f.run(req, true)
}

func (f *fakeExporter) Render(_ context.Context, req compositor.Request) (*compositor.Artifact, error) {
	return f.run(req, false)
}

type fakeStore map[string]*artifacts.Stored

func (s fakeStore) Fetch(_ context.Context, token string) (*artifacts.Stored, error) {
	if token == "broken" {
		return nil, errors.New("redis down")
	}
	st, ok := s[token]
	if !ok {
		return nil, artifacts.ErrInvalidToken
	}
	return st, nil
}

type fakeLedger []*artifacts.LedgerRow

func (l fakeLedger) Recent(_ context.Context, limit int) ([]*artifacts.LedgerRow, error) {
	return l, nil
}

type testAPI struct {
	api      *API
	exporter *fakeExporter
	handler  http.Handler
}

func newTestAPI(t *testing.T, configure func(*API)) *testAPI {
	t.Helper()
	ta := &testAPI{exporter: &fakeExporter{}}
	ta.api = &API{
		Registry:  visual.NewRegistry(),
		Exporter:  ta.exporter,
		Locks:     &keyonlylocks.ActionLocks{},
		Artifacts: fakeStore{"tok123": {Name: "offer.pdf", Data: []byte("%PDF-1.3")}},
		Ledger:    fakeLedger{{ID: 1, SourceID: "offer-1", State: "persisted", Pages: nullable.IntFrom(1)}},
	}
	if configure != nil {
		configure(ta.api)
	}
	router := routing.NewBaseRouter()
	ta.api.Routes(router)
	ta.handler = router
	return ta
}

func (ta *testAPI) do(method, target, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	ta.handler.ServeHTTP(rec, req)
	return rec
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) responses.Message {
	t.Helper()
	var m responses.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func TestSourcesLifecycle(t *testing.T) {
	ta := newTestAPI(t, nil)

	rec := ta.do(http.MethodPut, "/api/sources/offer-1", region)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var info visual.RegionInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, visual.RegionInfo{ID: "offer-1", Class: "document", Nodes: 2}, info)

	rec = ta.do(http.MethodGet, "/api/sources", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":"offer-1","class":"document","nodes":2}]`, rec.Body.String())

	rec = ta.do(http.MethodPut, "/api/sources/bad", `{"root":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ta.do(http.MethodDelete, "/api/sources/offer-1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ta.do(http.MethodDelete, "/api/sources/offer-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportPersists(t *testing.T) {
	ta := newTestAPI(t, nil)
	rec := ta.do(http.MethodPost, "http://docs.example.com/api/exports",
		`{"sourceId":"offer-1","documentName":"Offer.pdf","pageGeometry":"letter_landscape","watermarkLabels":"DRAFT"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var res ExportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "Offer.pdf", res.Name)
	assert.Equal(t, "tok123", res.Location)
	assert.Equal(t, "http://docs.example.com/api/artifacts/tok123", res.DownloadURL)

	require.Len(t, ta.exporter.requests, 1)
	got := ta.exporter.requests[0]
	assert.Equal(t, compositor.Labels{"DRAFT"}, got.WatermarkLabels)
	require.NotNil(t, got.Geometry)
	assert.Equal(t, "letter_landscape", got.Geometry.String())
}

func TestExportPageGeometryObject(t *testing.T) {
	ta := newTestAPI(t, nil)
	rec := ta.do(http.MethodPost, "/api/exports",
		`{"sourceId":"offer-1","pageGeometry":{"format":"a4","orientation":"landscape"}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	require.Len(t, ta.exporter.requests, 1)
	got := ta.exporter.requests[0].Geometry
	require.NotNil(t, got)
	assert.Equal(t, "a4_landscape", got.String())

	rec = ta.do(http.MethodPost, "/api/exports", `{"sourceId":"offer-1","pageGeometry":{"orientation":"landscape"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportDownloadStreams(t *testing.T) {
	ta := newTestAPI(t, nil)
	rec := ta.do(http.MethodPost, "/api/exports?download=1", `{"sourceId":"offer-1","context":"offer"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=offer_offer-1.pdf`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, 1, ta.exporter.rendered)
}

func TestExportValidation(t *testing.T) {
	ta := newTestAPI(t, nil)
	for _, body := range []string{
		`{}`,
		`{"sourceId":"a","sourceClass":"spreadsheet"}`,
		`{"sourceId":"a","pageGeometry":"b7_sideways"}`,
		`{"sourceId":"a","watermarkLabels":7}`,
		`{"sourceId":"a","unknown":true}`,
		`not json`,
	} {
		rec := ta.do(http.MethodPost, "/api/exports", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Empty(t, ta.exporter.requests)
}

func TestExportErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   int
	}{
		{capture.Errorf(capture.KindSourceUnavailable, "generate", "gone"), http.StatusNotFound, responses.CodeSourceUnavailable},
		{capture.Errorf(capture.KindStructureIncomplete, "flatten", "no body"), http.StatusUnprocessableEntity, responses.CodeStructureIncomplete},
		{capture.Wrap(capture.KindCaptureFailure, "capture mode", capture.ErrBusy), http.StatusConflict, responses.CodeBusy},
		{capture.Errorf(capture.KindCaptureFailure, "paint", "oversize"), http.StatusInternalServerError, responses.CodeCaptureFailure},
		{errors.New("persist: disk full"), http.StatusInternalServerError, responses.CodeCaptureFailure},
	}
	for _, tt := range tests {
		ta := newTestAPI(t, nil)
		ta.exporter.err = tt.err
		rec := ta.do(http.MethodPost, "/api/exports", `{"sourceId":"offer-1"}`)
		assert.Equal(t, tt.status, rec.Code, tt.err.Error())
		m := decodeMessage(t, rec)
		assert.Equal(t, tt.code, m.Code)
		assert.Equal(t, capture.UserMessage(tt.err), m.Message)
	}
}

func TestExportSameSourceIsSerialized(t *testing.T) {
	ta := newTestAPI(t, nil)
	release, ok := ta.api.Locks.TryAcquire(keyonlylocks.ExportKey("offer-1"))
	require.True(t, ok)

	rec := ta.do(http.MethodPost, "/api/exports", `{"sourceId":"offer-1"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = ta.do(http.MethodPut, "/api/sources/offer-1", region)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ta.do(http.MethodPost, "/api/exports", `{"sourceId":"offer-2"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	release()
	rec = ta.do(http.MethodPost, "/api/exports", `{"sourceId":"offer-1"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestArtifactDownload(t *testing.T) {
	ta := newTestAPI(t, nil)
	rec := ta.do(http.MethodGet, "/api/artifacts/tok123", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "%PDF-1.3", rec.Body.String())

	rec = ta.do(http.MethodGet, "/api/artifacts/forged", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = ta.do(http.MethodGet, "/api/artifacts/broken", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRecentExports(t *testing.T) {
	ta := newTestAPI(t, nil)
	rec := ta.do(http.MethodGet, "/api/exports?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "offer-1", rows[0]["sourceId"])
	assert.Equal(t, float64(1), rows[0]["pages"])
	assert.Nil(t, rows[0]["location"])
}

func TestAuth(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	jwks := &sec.JWKS{Keys: []sec.JWK{sec.NewJWKFromPublicKey("k1", &priv.PublicKey)}}
	verifier, err := sec.NewVerifier("docprint", jwks)
	require.NoError(t, err)
	ta := newTestAPI(t, func(a *API) { a.Verifier = verifier })

	rec := ta.do(http.MethodGet, "/api/sources", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

	rec = ta.do(http.MethodGet, "/api/sources", "", "Authorization", "Bearer nonsense")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := sec.SignOperatorToken("docprint", "ops", "export", priv, "k1", time.Minute)
	require.NoError(t, err)
	rec = ta.do(http.MethodGet, "/api/sources", "", "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)

	// health and artifact downloads carry no bearer token
	assert.Equal(t, http.StatusOK, ta.do(http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, ta.do(http.MethodGet, "/api/artifacts/tok123", "").Code)
}

func TestThrottle(t *testing.T) {
	store := throttle.NewBucketStore[string](context.Background(), time.Minute, time.Hour)
	store.SetBucketGroup(ThrottleGroupAPI, &throttle.BucketConf{Burst: 2, Increment: 1, Period: time.Hour})
	store.SetBucketGroup(ThrottleGroupDownload, &throttle.BucketConf{Burst: 1, Increment: 1, Period: time.Hour})
	ta := newTestAPI(t, func(a *API) { a.Throttle = store })

	ip := []string{"X-Forwarded-For", "203.0.113.9"}
	assert.Equal(t, http.StatusOK, ta.do(http.MethodGet, "/api/sources", "", ip...).Code)
	assert.Equal(t, http.StatusOK, ta.do(http.MethodGet, "/api/sources", "", ip...).Code)
	rec := ta.do(http.MethodGet, "/api/sources", "", ip...)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, responses.CodeThrottled, decodeMessage(t, rec).Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, ta.do(http.MethodGet, "/api/sources", "", "X-Forwarded-For", "198.51.100.1").Code)
	assert.Equal(t, http.StatusOK, ta.do(http.MethodGet, "/api/artifacts/tok123", "", ip...).Code)
}

type memPurger struct{ n int }

func (p *memPurger) Purge(_ context.Context, olderThan time.Duration) (int, error) {
	return p.n, nil
}

func TestAdminCommands(t *testing.T) {
	exporter := &fakeExporter{}
	reg := visual.NewRegistry()
	r, err := visual.ParseRegion("offer-1", []byte(region))
	require.NoError(t, err)
	require.NoError(t, reg.Register(r))
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	admin := &Admin{
		Registry: reg,
		Exporter: exporter,
		Locks:    &keyonlylocks.ActionLocks{},
		Ledger:   fakeLedger{{ID: 1, SourceID: "offer-1", State: "persisted"}},
		Purgers:  map[string]artifacts.Purger{"files": &memPurger{n: 2}},
		Signer:   &TokenSigner{Issuer: "docprint", KeyID: "k1", Key: priv},
		KeyDirs:  &keystores.Conf{PrivateKeyDir: t.TempDir(), PublicKeyDir: t.TempDir()},
	}
	cmds := admin.Commands()
	for _, name := range []string{"sources", "export", "exports", "purge", "token", "jwks", "keygen"} {
		require.Contains(t, cmds, name)
	}
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, cmds["sources"].Fn(ctx, nil, &out))
	assert.Contains(t, out.String(), "offer-1")

	out.Reset()
	require.NoError(t, cmds["export"].Fn(ctx, []string{"offer-1", "a3_landscape", " DRAFT ", "", "COPY"}, &out))
	assert.Contains(t, out.String(), "admin_offer-1.pdf: 1 page(s)")
	require.Len(t, exporter.requests, 1)
	assert.Equal(t, "a3_landscape", exporter.requests[0].Geometry.String())
	assert.Equal(t, compositor.Labels{"DRAFT", "COPY"}, exporter.requests[0].WatermarkLabels)

	assert.Error(t, cmds["export"].Fn(ctx, nil, &out))

	out.Reset()
	require.NoError(t, cmds["purge"].Fn(ctx, []string{"720h"}, &out))
	assert.Equal(t, "files: 2 removed\n", out.String())
	assert.Error(t, cmds["purge"].Fn(ctx, []string{"soon"}, &out))

	out.Reset()
	require.NoError(t, cmds["token"].Fn(ctx, []string{"ops", "1h"}, &out))
	jwks := &sec.JWKS{Keys: []sec.JWK{sec.NewJWKFromPublicKey("k1", &priv.PublicKey)}}
	verifier, err := sec.NewVerifier("docprint", jwks)
	require.NoError(t, err)
	claims, err := verifier.Verify(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)

	out.Reset()
	require.NoError(t, cmds["jwks"].Fn(ctx, nil, &out))
	var published sec.JWKS
	require.NoError(t, json.Unmarshal(out.Bytes(), &published))
	require.Len(t, published.Keys, 1)
	assert.Equal(t, "k1", published.Keys[0].Kid)

	out.Reset()
	require.NoError(t, cmds["keygen"].Fn(ctx, nil, &out))
	kid := strings.Fields(out.String())[1]
	generated, err := sec.LoadPublicPEMKeysAsJWKS(admin.KeyDirs.PublicKeyDir)
	require.NoError(t, err)
	require.Len(t, generated.Keys, 1)
	assert.Equal(t, kid, generated.Keys[0].Kid)
	_, err = sec.LoadLocalPrivatePEMKey(filepath.Join(admin.KeyDirs.PrivateKeyDir, kid+"_private.pem"))
	assert.NoError(t, err)
	assert.Error(t, cmds["keygen"].Fn(ctx, []string{"512"}, &out))

	out.Reset()
	require.NoError(t, cmds["exports"].Fn(ctx, []string{"5"}, &out))
	assert.Contains(t, out.String(), "persisted")
}
