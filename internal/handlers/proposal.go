package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/Arijit65/marriage-app-sub001/internal/models"
	"github.com/Arijit65/marriage-app-sub001/internal/service"
)

type ProposalHandler struct {
	svc *service.ProposalService
}

func NewProposalHandler(svc *service.ProposalService) *ProposalHandler {
	return &ProposalHandler{svc: svc}
}

// Collection handles POST /proposals (send) and GET /proposals?member=.
func (h *ProposalHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.send(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *ProposalHandler) send(w http.ResponseWriter, r *http.Request) {
	var req models.SendProposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	p, err := h.svc.Send(r.Context(), req.ProposerID, req.ProposedID, req.Message)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *ProposalHandler) list(w http.ResponseWriter, r *http.Request) {
	member := models.IdentityRef(r.URL.Query().Get("member"))

	proposals, err := h.svc.ListForMember(r.Context(), member)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"member":    member,
		"proposals": proposals,
	})
}

// Item handles GET /proposals/{id}, PUT /proposals/{id}/respond and
// PUT /proposals/{id}/withdraw.
func (h *ProposalHandler) Item(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/proposals/")
	parts := strings.SplitN(path, "/", 2)

	id, err := uuid.Parse(parts[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Valid proposal id is required")
		return
	}

	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		h.get(w, r, id)
	case action == "respond" && r.Method == http.MethodPut:
		h.respond(w, r, id)
	case action == "withdraw" && r.Method == http.MethodPut:
		h.withdraw(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *ProposalHandler) get(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	p, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProposalHandler) respond(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var req models.RespondProposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	p, err := h.svc.Respond(r.Context(), id, req.ResponderID, req.Decision, req.ResponseMessage)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProposalHandler) withdraw(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var req models.WithdrawProposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	p, err := h.svc.Withdraw(r.Context(), id, req.RequesterID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
