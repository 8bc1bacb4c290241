package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arijit65/marriage-app-sub001/internal/service"
	"github.com/Arijit65/marriage-app-sub001/internal/store/memory"
)

const testSecret = "handler-test-secret"

type fakeGateway struct{}

func (fakeGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (string, error) {
	return "order_fake_" + receipt, nil
}

func (fakeGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return sign(orderID, paymentID) == signature
}

func sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func newTestMux() *http.ServeMux {
	st := memory.New()
	proposalSvc := service.NewProposalService(st, 30*24*time.Hour)
	paymentSvc := service.NewPaymentService(st, fakeGateway{})

	ph := NewProposalHandler(proposalSvc)
	pay := NewPaymentHandler(paymentSvc)

	mux := http.NewServeMux()
	mux.HandleFunc("/proposals", ph.Collection)
	mux.HandleFunc("/proposals/", ph.Item)
	mux.HandleFunc("/payments/subscribe", pay.Subscribe)
	mux.HandleFunc("/payments/verify", pay.Verify)
	mux.HandleFunc("/payments/orders/", pay.GetOrder)
	mux.HandleFunc("/payments/", pay.Item)
	return mux
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	var parsed map[string]interface{}
	json.Unmarshal(rr.Body.Bytes(), &parsed)
	return rr, parsed
}

func TestProposalEndpoints(t *testing.T) {
	mux := newTestMux()

	// Send
	rr, created := doJSON(t, mux, http.MethodPost, "/proposals",
		`{"proposer_id":"member-a","proposed_id":"member-b","message":"hi"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "pending", created["status"])
	assert.Equal(t, false, created["contact_revealed"])
	id := created["id"].(string)

	// Duplicate active pair
	rr, _ = doJSON(t, mux, http.MethodPost, "/proposals",
		`{"proposer_id":"member-a","proposed_id":"member-b","message":"again"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)

	// Wrong responder
	rr, _ = doJSON(t, mux, http.MethodPut, "/proposals/"+id+"/respond",
		`{"responder_id":"member-c","decision":"accepted"}`)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	// Accept
	rr, accepted := doJSON(t, mux, http.MethodPut, "/proposals/"+id+"/respond",
		`{"responder_id":"member-b","decision":"accepted","response_message":"yes"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "accepted", accepted["status"])
	assert.Equal(t, true, accepted["contact_revealed"])

	// Withdrawing an answered proposal conflicts
	rr, _ = doJSON(t, mux, http.MethodPut, "/proposals/"+id+"/withdraw",
		`{"requester_id":"member-a"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)

	// Read it back
	rr, fetched := doJSON(t, mux, http.MethodGet, "/proposals/"+id, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "accepted", fetched["status"])

	// List for a member
	rr, listed := doJSON(t, mux, http.MethodGet, "/proposals?member=member-b", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, listed["proposals"], 1)
}

func TestProposalEndpointErrors(t *testing.T) {
	mux := newTestMux()

	rr, _ := doJSON(t, mux, http.MethodPost, "/proposals", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = doJSON(t, mux, http.MethodPost, "/proposals",
		`{"proposer_id":"member-a","proposed_id":"member-a"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = doJSON(t, mux, http.MethodGet, "/proposals/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = doJSON(t, mux, http.MethodPut,
		"/proposals/00000000-0000-0000-0000-000000000001/respond",
		`{"responder_id":"member-b","decision":"accepted"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr, _ = doJSON(t, mux, http.MethodDelete, "/proposals", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestPaymentEndpoints(t *testing.T) {
	mux := newTestMux()

	// Create order
	rr, order := doJSON(t, mux, http.MethodPost, "/payments/subscribe",
		`{"user_id":"user-1","plan_id":"plan-premium","amount":50000,"currency":"INR","receipt":"rcpt-1"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "pending", order["status"])
	gatewayOrderID := order["gateway_order_id"].(string)
	orderID := order["id"].(string)

	// Verify with a valid signature
	body := fmt.Sprintf(`{"razorpay_order_id":%q,"razorpay_payment_id":"pay_1","razorpay_signature":%q}`,
		gatewayOrderID, sign(gatewayOrderID, "pay_1"))
	rr, settled := doJSON(t, mux, http.MethodPost, "/payments/verify", body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "completed", settled["status"])

	// Replay returns the same outcome
	rr, replayed := doJSON(t, mux, http.MethodPost, "/payments/verify", body)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "completed", replayed["status"])

	// Cancelling a completed order conflicts
	rr, _ = doJSON(t, mux, http.MethodPost, "/payments/"+orderID+"/cancel", `{"user_id":"user-1"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)

	// Read it back
	rr, fetched := doJSON(t, mux, http.MethodGet, "/payments/orders/"+orderID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "completed", fetched["status"])
}

func TestPaymentEndpointErrors(t *testing.T) {
	mux := newTestMux()

	// Both subject refs present
	rr, _ := doJSON(t, mux, http.MethodPost, "/payments/subscribe",
		`{"user_id":"user-1","registration_id":"reg-1","amount":100,"currency":"INR","receipt":"r"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// Unknown order callback
	rr, _ = doJSON(t, mux, http.MethodPost, "/payments/verify",
		`{"razorpay_order_id":"order_unknown","razorpay_payment_id":"pay_1","razorpay_signature":"sig"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	// Forged signature fails without leaking signature material
	rrOrder, order := doJSON(t, mux, http.MethodPost, "/payments/subscribe",
		`{"user_id":"user-1","amount":100,"currency":"INR","receipt":"rcpt-x"}`)
	require.Equal(t, http.StatusCreated, rrOrder.Code)
	gatewayOrderID := order["gateway_order_id"].(string)

	body := fmt.Sprintf(`{"razorpay_order_id":%q,"razorpay_payment_id":"pay_1","razorpay_signature":"forged"}`, gatewayOrderID)
	rr, resp := doJSON(t, mux, http.MethodPost, "/payments/verify", body)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.NotContains(t, resp["error"], "forged")

	// Cancel by a non-owner
	orderID := order["id"].(string)
	rr, _ = doJSON(t, mux, http.MethodPost, "/payments/"+orderID+"/cancel", `{"user_id":"user-2"}`)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}
