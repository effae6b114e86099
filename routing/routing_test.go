package routing

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type tagWrapper string

func (t tagWrapper) Wrap(inner http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("X-Trace", string(t))
		inner.ServeHTTP(w, r)
	})
}

func TestGroupWrapperOrder(t *testing.T) {
	router := NewBaseRouter()
	router.Group("/api", func(api *RouteGroup) {
		api.HandleFunc("GET /sources", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}, tagWrapper("route"))
		api.Group("/admin", func(admin *RouteGroup) {
			admin.HandleFunc("GET /ping", func(w http.ResponseWriter, r *http.Request) {}, tagWrapper("ping"))
		}, tagWrapper("admin"))
	}, tagWrapper("group"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sources", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"group", "route"}, rec.Header().Values("X-Trace"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/ping", nil))
	assert.Equal(t, []string{"group", "admin", "ping"}, rec.Header().Values("X-Trace"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sources", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRecoverWrapper(t *testing.T) {
	router := NewBaseRouter()
	router.HandleFunc("GET /boom", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}, Recover, AccessLog)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "internal server error"))
}
