package routing

import (
	"log"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/zeptools/gw-docprint/requests"
	"github.com/zeptools/gw-docprint/responses"
)

var Recover HandlerWrapper = WrapperFunc(RecoverWrapper)

func RecoverWrapper(inner http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Printf("[PANIC] recovered: %v\n%s", rec, debug.Stack())
				responses.WriteSimpleErrorJSON(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		inner.ServeHTTP(w, r)
	})
}

var AccessLog HandlerWrapper = WrapperFunc(AccessLogWrapper)

// AccessLogWrapper logs method, path, status, size and latency per request.
func AccessLogWrapper(inner http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		inner.ServeHTTP(sw, r)
		log.Printf("[INFO][HTTP] %s %s %d %dB %v ip=%s",
			r.Method, r.URL.Path, sw.status, sw.n, time.Since(start).Round(time.Millisecond), requests.GetClientIP(r))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
	n      int64
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	n, err := w.ResponseWriter.Write(p)
	w.n += int64(n)
	return n, err
}
