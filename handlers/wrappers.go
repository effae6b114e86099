package handlers

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/zeptools/gw-docprint/requests"
	"github.com/zeptools/gw-docprint/responses"
	"github.com/zeptools/gw-docprint/sec"
	"github.com/zeptools/gw-docprint/throttle"
)

type ctxKey int

const claimsKey ctxKey = iota

// Claims returns the operator claims set by AuthWrapper.
func Claims(ctx context.Context) (*sec.OperatorClaims, bool) {
	c, ok := ctx.Value(claimsKey).(*sec.OperatorClaims)
	return c, ok
}

// AuthWrapper requires a valid RS256 bearer token.
type AuthWrapper struct {
	Verifier *sec.Verifier
}

func (a AuthWrapper) Wrap(inner http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sec.ExtractBearerToken(r.Header.Get("Authorization"))
		if token == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="docprint"`)
			responses.WriteErrorJSON(w, http.StatusUnauthorized, responses.CodeUnauthorized, "missing bearer token")
			return
		}
		claims, err := a.Verifier.Verify(token)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="docprint", error="invalid_token"`)
			responses.WriteErrorJSON(w, http.StatusUnauthorized, responses.CodeUnauthorized, "invalid bearer token")
			return
		}
		inner.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}

// ThrottleWrapper limits requests per client ip with the bucket group Group.
type ThrottleWrapper struct {
	Store *throttle.BucketStore[string]
	Group string
}

func (t ThrottleWrapper) Wrap(inner http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, wait := t.Store.Take(t.Group, requests.GetClientIP(r), time.Now())
		if !ok {
			if wait > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			}
			responses.WriteErrorJSON(w, http.StatusTooManyRequests, responses.CodeThrottled, "too many requests")
			return
		}
		inner.ServeHTTP(w, r)
	})
}
