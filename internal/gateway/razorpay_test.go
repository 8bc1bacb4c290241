package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arijit65/marriage-app-sub001/internal/apperr"
)

func newTestClient(baseURL string) *RazorpayClient {
	return NewRazorpayClient(baseURL, "rzp_test_key", "rzp_test_secret", 2*time.Second, 2)
}

func TestCreateOrderSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "rzp_test_key", user)
		assert.Equal(t, "rzp_test_secret", pass)

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, float64(50000), req["amount"])
		assert.Equal(t, "INR", req["currency"])

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"id": "order_test_1"})
	}))
	defer srv.Close()

	id, err := newTestClient(srv.URL).CreateOrder(context.Background(), 50000, "INR", "rcpt-1")
	require.NoError(t, err)
	assert.Equal(t, "order_test_1", id)
}

func TestCreateOrderRetriesTransientFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"id": "order_after_retry"})
	}))
	defer srv.Close()

	id, err := newTestClient(srv.URL).CreateOrder(context.Background(), 100, "INR", "rcpt-1")
	require.NoError(t, err)
	assert.Equal(t, "order_after_retry", id)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestCreateOrderExhaustsRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).CreateOrder(context.Background(), 100, "INR", "rcpt-1")
	require.Error(t, err)
	assert.Equal(t, apperr.TransientGateway, apperr.KindOf(err))
	// Initial attempt plus two retries.
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestCreateOrderDoesNotRetryRejections(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).CreateOrder(context.Background(), 100, "INR", "rcpt-1")
	require.Error(t, err)
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestVerifySignature(t *testing.T) {
	c := newTestClient("http://unused")

	mac := hmac.New(sha256.New, []byte("rzp_test_secret"))
	mac.Write([]byte("order_1|pay_1"))
	valid := hex.EncodeToString(mac.Sum(nil))

	assert.True(t, c.VerifySignature("order_1", "pay_1", valid))
	assert.False(t, c.VerifySignature("order_1", "pay_1", "forged"))
	assert.False(t, c.VerifySignature("order_1", "pay_2", valid))
	assert.False(t, c.VerifySignature("order_2", "pay_1", valid))
	assert.False(t, c.VerifySignature("order_1", "pay_1", ""))
}
