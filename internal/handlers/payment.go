package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/Arijit65/marriage-app-sub001/internal/models"
	"github.com/Arijit65/marriage-app-sub001/internal/service"
)

type PaymentHandler struct {
	svc *service.PaymentService
}

func NewPaymentHandler(svc *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

// Subscribe handles POST /payments/subscribe
func (h *PaymentHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	subject := models.SubjectRef{RegistrationID: req.RegistrationID, UserID: req.UserID}
	o, err := h.svc.CreateOrder(r.Context(), subject, req.PlanID, req.Amount, req.Currency, req.Receipt)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

// Verify handles POST /payments/verify, the callback the gateway's
// checkout handler posts back. Its payload shape is the gateway's wire
// format and is decoded as-is.
func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.VerifyCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	o, err := h.svc.VerifyCallback(r.Context(), req.GatewayOrderID, req.GatewayPaymentID, req.GatewaySignature)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// Item handles POST /payments/{id}/cancel.
func (h *PaymentHandler) Item(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/payments/")
	parts := strings.SplitN(path, "/", 2)

	id, err := uuid.Parse(parts[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Valid order id is required")
		return
	}

	if len(parts) != 2 || parts[1] != "cancel" || r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	requester := models.SubjectRef{RegistrationID: req.RegistrationID, UserID: req.UserID}
	o, err := h.svc.Cancel(r.Context(), id, requester)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// GetOrder handles GET /payments/orders/{id}.
func (h *PaymentHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/payments/orders/")
	id, err := uuid.Parse(path)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Valid order id is required")
		return
	}

	o, err := h.svc.GetOrder(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
