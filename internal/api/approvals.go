package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"claimflow/internal/claims"
	"claimflow/internal/models"
)

type createApprovalRequest struct {
	ClaimID    string               `json:"claimId"`
	ApproverID string               `json:"approverId"`
	Level      models.ApprovalLevel `json:"approvalLevel"`
	Notes      *string              `json:"notes"`
}

type decideApprovalRequest struct {
	Status         models.ApprovalStatus `json:"status"`
	Notes          *string               `json:"notes"`
	ApprovedAmount *decimal.Decimal      `json:"approvedAmount"`
}

func (h *Handler) ListApprovals(w http.ResponseWriter, r *http.Request) {
	p, ok := actor(w, r)
	if !ok {
		return
	}
	claimID := r.URL.Query().Get("claimId")
	if claimID == "" {
		badRequest(w, "claimId query parameter is required")
		return
	}
	list, err := h.claims.ListApprovals(r.Context(), p, claimID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) CreateApproval(w http.ResponseWriter, r *http.Request) {
	p, ok := actor(w, r)
	if !ok {
		return
	}
	var in createApprovalRequest
	if !decode(w, r, &in) {
		return
	}
	a, err := h.claims.CreateApproval(r.Context(), p, claims.ApprovalInput(in))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusCreated, a)
}

func (h *Handler) PatchApproval(w http.ResponseWriter, r *http.Request) {
	p, ok := actor(w, r)
	if !ok {
		return
	}
	var in decideApprovalRequest
	if !decode(w, r, &in) {
		return
	}
	a, err := h.claims.DecideApproval(r.Context(), p, mux.Vars(r)["id"], claims.Decision(in))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, a)
}
