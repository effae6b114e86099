package requests

import (
	"fmt"
	"net/http"
)

func Scheme(req *http.Request) string {
	if req.TLS != nil {
		return "https"
	}
	if scheme := req.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}

func FullURL(req *http.Request) string {
	return fmt.Sprintf("%s://%s%s", Scheme(req), req.Host, req.URL.RequestURI())
}

// BaseURL is scheme and host of the request, without a trailing slash.
func BaseURL(req *http.Request) string {
	return fmt.Sprintf("%s://%s", Scheme(req), req.Host)
}
