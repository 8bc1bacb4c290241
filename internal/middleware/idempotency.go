package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	IdempotencyTTL       = 24 * time.Hour

	// inflightTTL bounds how long a crashed request can hold its key.
	inflightTTL = time.Minute
)

// Store is the slice of the cache the middleware needs. cache.Redis
// satisfies it; tests use an in-memory fake.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string, expiration time.Duration) error
	SetNX(key, value string, expiration time.Duration) (bool, error)
	Del(key string) error
	Incr(key string) (int64, error)
	Expire(key string, expiration time.Duration) error
}

type cachedResponse struct {
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func newResponseRecorder(w http.ResponseWriter) *responseRecorder {
	return &responseRecorder{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
		body:           &bytes.Buffer{},
	}
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// replayCached writes the stored response for cacheKey, if any, and
// reports whether it did.
func replayCached(w http.ResponseWriter, store Store, cacheKey string) bool {
	cached, err := store.Get(cacheKey)
	if err != nil || cached == "" {
		return false
	}
	var resp cachedResponse
	if err := json.Unmarshal([]byte(cached), &resp); err != nil {
		return false
	}
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.Header().Set("X-Idempotency-Replayed", "true")
	w.WriteHeader(resp.StatusCode)
	w.Write([]byte(resp.Body))
	return true
}

// Idempotency replays the recorded response for a repeated
// Idempotency-Key. Reads pass through untouched, as do paths in exempt:
// the payment gateway's callback carries no key and is already
// idempotent at the service layer.
func Idempotency(store Store, exempt ...string) func(http.Handler) http.Handler {
	exemptPaths := make(map[string]bool, len(exempt))
	for _, p := range exempt {
		exemptPaths[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodDelete:
			default:
				next.ServeHTTP(w, r)
				return
			}
			if exemptPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			idempotencyKey := r.Header.Get(IdempotencyKeyHeader)
			if idempotencyKey == "" {
				http.Error(w, `{"error":"Idempotency-Key header is required"}`, http.StatusBadRequest)
				return
			}

			cacheKey := "idempotency:" + idempotencyKey
			inflightKey := "idempotency:inflight:" + idempotencyKey

			if replayCached(w, store, cacheKey) {
				return
			}

			// Claim the key so two concurrent first requests cannot
			// both run the handler. The loser either replays the
			// winner's stored response or reports the in-flight
			// duplicate.
			acquired, err := store.SetNX(inflightKey, "1", inflightTTL)
			if err == nil && !acquired {
				if replayCached(w, store, cacheKey) {
					return
				}
				http.Error(w, `{"error":"A request with this Idempotency-Key is already in progress"}`,
					http.StatusConflict)
				return
			}
			defer store.Del(inflightKey)

			recorder := newResponseRecorder(w)
			next.ServeHTTP(recorder, r)

			// Server-side failures are not a settled outcome. A caller
			// retrying the same key after a gateway outage must reach
			// the handler again, not the recorded 5xx.
			if recorder.statusCode >= http.StatusInternalServerError {
				return
			}

			resp := cachedResponse{
				StatusCode: recorder.statusCode,
				Headers:    map[string]string{"Content-Type": "application/json"},
				Body:       recorder.body.String(),
			}

			if respJSON, err := json.Marshal(resp); err == nil {
				store.Set(cacheKey, string(respJSON), IdempotencyTTL)
			}
		})
	}
}
