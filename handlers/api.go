// Package handlers exposes the export pipeline over HTTP and the admin socket.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/zeptools/gw-docprint/artifacts"
	"github.com/zeptools/gw-docprint/capture"
	"github.com/zeptools/gw-docprint/compositor"
	"github.com/zeptools/gw-docprint/locks/keyonlylocks"
	"github.com/zeptools/gw-docprint/pdfs"
	"github.com/zeptools/gw-docprint/requests"
	"github.com/zeptools/gw-docprint/responses"
	"github.com/zeptools/gw-docprint/routing"
	"github.com/zeptools/gw-docprint/sec"
	"github.com/zeptools/gw-docprint/throttle"
	"github.com/zeptools/gw-docprint/visual"
)

const DefaultMaxSourceBytes = 8 << 20

type Exporter interface {
	Generate(ctx context.Context, req compositor.Request) (*compositor.Artifact, error)
	Render(ctx context.Context, req compositor.Request) (*compositor.Artifact, error)
}

type ArtifactStore interface {
	Fetch(ctx context.Context, token string) (*artifacts.Stored, error)
}

type LedgerReader interface {
	Recent(ctx context.Context, limit int) ([]*artifacts.LedgerRow, error)
}

// API serves the source registry and the export endpoints.
type API struct {
	Registry       *visual.Registry
	Exporter       Exporter
	Locks          *keyonlylocks.ActionLocks
	Artifacts      ArtifactStore                 // optional, enables GET /api/artifacts/{token}
	Ledger         LedgerReader                  // optional, enables GET /api/exports
	Verifier       *sec.Verifier                 // nil disables auth
	Throttle       *throttle.BucketStore[string] // optional
	MaxSourceBytes int64
}

const (
	ThrottleGroupAPI      = "api"
	ThrottleGroupDownload = "download"
)

func (a *API) Routes(router *routing.BaseRouter) {
	router.HandleFunc("GET /healthz", a.health)

	common := []routing.HandlerWrapper{routing.Recover, routing.AccessLog}
	if w, ok := a.throttled(ThrottleGroupAPI); ok {
		common = append(common, w)
	}
	secured := append([]routing.HandlerWrapper(nil), common...)
	if a.Verifier != nil {
		secured = append(secured, AuthWrapper{Verifier: a.Verifier})
	} else {
		log.Println("[WARN][API] no verifier configured, api is unauthenticated")
	}

	router.Group("/api", func(api *routing.RouteGroup) {
		api.HandleFunc("GET /sources", a.listSources)
		api.HandleFunc("PUT /sources/{id}", a.putSource)
		api.HandleFunc("DELETE /sources/{id}", a.deleteSource)
		api.HandleFunc("POST /exports", a.export)
		if a.Ledger != nil {
			api.HandleFunc("GET /exports", a.recentExports)
		}
	}, secured...)

	if a.Artifacts != nil {
		download := append([]routing.HandlerWrapper{}, routing.Recover, routing.AccessLog)
		if w, ok := a.throttled(ThrottleGroupDownload); ok {
			download = append(download, w)
		}
		// the token itself is the credential
		router.HandleFunc("GET /api/artifacts/{token}", a.download, download...)
	}
}

// throttled returns the wrapper of a configured bucket group.
func (a *API) throttled(group string) (ThrottleWrapper, bool) {
	if a.Throttle == nil {
		return ThrottleWrapper{}, false
	}
	if _, ok := a.Throttle.GetBucketGroup(group); !ok {
		return ThrottleWrapper{}, false
	}
	return ThrottleWrapper{Store: a.Throttle, Group: group}, true
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	responses.EncodeWriteJSON(w, http.StatusOK, map[string]any{"status": "ok", "sources": len(a.Registry.List())})
}

func (a *API) listSources(w http.ResponseWriter, r *http.Request) {
	responses.EncodeWriteJSON(w, http.StatusOK, a.Registry.List())
}

func (a *API) putSource(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	limit := a.MaxSourceBytes
	if limit <= 0 {
		limit = DefaultMaxSourceBytes
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		responses.WriteErrorJSON(w, http.StatusRequestEntityTooLarge, responses.CodeInvalidRequest, "source tree too large")
		return
	}
	region, err := visual.ParseRegion(id, data)
	if err != nil {
		responses.WriteErrorJSON(w, http.StatusBadRequest, responses.CodeInvalidRequest, err.Error())
		return
	}
	if !region.Root.Bounded() {
		responses.WriteErrorJSON(w, http.StatusBadRequest, responses.CodeInvalidRequest, "source tree has unbounded sizes")
		return
	}
	// a source being exported is not replaced underneath the capture
	release, ok := a.Locks.TryAcquire(keyonlylocks.ExportKey(id))
	if !ok {
		responses.WriteErrorJSON(w, http.StatusConflict, responses.CodeBusy, "an export of this source is in progress")
		return
	}
	defer release()
	if err := a.Registry.Register(region); err != nil {
		responses.WriteErrorJSON(w, http.StatusBadRequest, responses.CodeInvalidRequest, err.Error())
		return
	}
	log.Printf("[INFO][API] source %q registered (%s)", id, region.Class)
	responses.EncodeWriteJSON(w, http.StatusOK, region.Info())
}

func (a *API) deleteSource(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	release, ok := a.Locks.TryAcquire(keyonlylocks.ExportKey(id))
	if !ok {
		responses.WriteErrorJSON(w, http.StatusConflict, responses.CodeBusy, "an export of this source is in progress")
		return
	}
	defer release()
	if _, found := a.Registry.Lookup(id); !found {
		responses.WriteErrorJSON(w, http.StatusNotFound, responses.CodeSourceUnavailable, "source not registered")
		return
	}
	a.Registry.Remove(id)
	w.WriteHeader(http.StatusNoContent)
}

// ExportRequest is the body of POST /api/exports.
type ExportRequest struct {
	SourceID        string            `json:"sourceId"`
	SourceClass     string            `json:"sourceClass,omitempty"`
	PageGeometry    *pdfs.Geometry    `json:"pageGeometry,omitempty"`
	DocumentName    string            `json:"documentName,omitempty"`
	Context         string            `json:"context,omitempty"`
	WatermarkLabels compositor.Labels `json:"watermarkLabels,omitempty"`
}

func (e ExportRequest) toRequest() (compositor.Request, error) {
	if strings.TrimSpace(e.SourceID) == "" {
		return compositor.Request{}, errors.New("sourceId is required")
	}
	class, err := visual.ParseSourceClass(e.SourceClass)
	if err != nil {
		return compositor.Request{}, err
	}
	return compositor.Request{
		SourceID:        e.SourceID,
		Class:           class,
		Geometry:        e.PageGeometry,
		DocumentName:    e.DocumentName,
		Context:         e.Context,
		WatermarkLabels: e.WatermarkLabels,
	}, nil
}

// ExportResponse is the JSON answer of a persisted export.
type ExportResponse struct {
	Name        string        `json:"name"`
	Pages       int           `json:"pages"`
	Bytes       int           `json:"bytes"`
	Geometry    pdfs.Geometry `json:"pageGeometry"`
	Location    string        `json:"location"`
	DownloadURL string        `json:"downloadUrl,omitempty"`
}

func (a *API) export(w http.ResponseWriter, r *http.Request) {
	var body ExportRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		responses.WriteErrorJSON(w, http.StatusBadRequest, responses.CodeInvalidRequest, fmt.Sprintf("invalid export request: %v", err))
		return
	}
	req, err := body.toRequest()
	if err != nil {
		responses.WriteErrorJSON(w, http.StatusBadRequest, responses.CodeInvalidRequest, err.Error())
		return
	}
	download, _ := strconv.ParseBool(r.URL.Query().Get("download"))

	release, ok := a.Locks.TryAcquire(keyonlylocks.ExportKey(req.SourceID))
	if !ok {
		responses.WriteErrorJSON(w, http.StatusConflict, responses.CodeBusy, "an export of this source is in progress")
		return
	}
	defer release()

	var art *compositor.Artifact
	if download {
		art, err = a.Exporter.Render(r.Context(), req)
	} else {
		art, err = a.Exporter.Generate(r.Context(), req)
	}
	if err != nil {
		log.Printf("[ERROR][API] export %q: %v", req.SourceID, err)
		status, code := StatusOf(err)
		responses.WriteErrorJSON(w, status, code, capture.UserMessage(err))
		return
	}
	if download {
		responses.WritePDFAttachment(w, art.Name, art.Data)
		return
	}
	res := ExportResponse{
		Name:     art.Name,
		Pages:    art.Pages,
		Bytes:    len(art.Data),
		Geometry: art.Geometry,
		Location: art.Location,
	}
	if a.Artifacts != nil && art.Location != "" && !strings.ContainsAny(art.Location, `/\`) {
		res.DownloadURL = requests.BaseURL(r) + "/api/artifacts/" + art.Location
	}
	responses.EncodeWriteJSON(w, http.StatusCreated, res)
}

func (a *API) recentExports(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	rows, err := a.Ledger.Recent(r.Context(), limit)
	if err != nil {
		log.Printf("[ERROR][API] ledger: %v", err)
		responses.WriteSimpleErrorJSON(w, http.StatusInternalServerError, "ledger unavailable")
		return
	}
	if rows == nil {
		rows = []*artifacts.LedgerRow{}
	}
	responses.EncodeWriteJSON(w, http.StatusOK, rows)
}

func (a *API) download(w http.ResponseWriter, r *http.Request) {
	st, err := a.Artifacts.Fetch(r.Context(), r.PathValue("token"))
	switch {
	case errors.Is(err, artifacts.ErrInvalidToken), errors.Is(err, artifacts.ErrArtifactNotFound):
		responses.WriteSimpleErrorJSON(w, http.StatusNotFound, "artifact not found or expired")
		return
	case err != nil:
		log.Printf("[ERROR][API] artifact fetch: %v", err)
		responses.WriteSimpleErrorJSON(w, http.StatusInternalServerError, "artifact store unavailable")
		return
	}
	responses.WritePDFAttachment(w, st.Name, st.Data)
}

// StatusOf maps a pipeline error to an HTTP status and message code.
func StatusOf(err error) (int, int) {
	if errors.Is(err, capture.ErrBusy) {
		return http.StatusConflict, responses.CodeBusy
	}
	var ce *capture.Error
	if !errors.As(err, &ce) {
		return http.StatusInternalServerError, responses.CodeCaptureFailure
	}
	switch ce.Kind {
	case capture.KindSourceUnavailable:
		return http.StatusNotFound, responses.CodeSourceUnavailable
	case capture.KindStructureIncomplete:
		return http.StatusUnprocessableEntity, responses.CodeStructureIncomplete
	case capture.KindRestoreFailure:
		return http.StatusInternalServerError, responses.CodeRestoreFailure
	default:
		return http.StatusInternalServerError, responses.CodeCaptureFailure
	}
}
