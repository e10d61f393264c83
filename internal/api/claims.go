package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"claimflow/internal/approval"
	"claimflow/internal/claims"
	"claimflow/internal/models"
)

type createClaimRequest struct {
	UserID      string             `json:"userId"`
	Type        models.ClaimType   `json:"claimType"`
	Title       string             `json:"title"`
	TotalAmount decimal.Decimal    `json:"totalAmount"`
	Details     json.RawMessage    `json:"details"`
	Status      models.ClaimStatus `json:"status"`
}

type patchClaimRequest struct {
	Status         *models.ClaimStatus `json:"status"`
	ApprovedAmount *decimal.Decimal    `json:"approvedAmount"`
	Notes          *string             `json:"notes"`
	Title          *string             `json:"title"`
	TotalAmount    *decimal.Decimal    `json:"totalAmount"`
	Type           *models.ClaimType   `json:"claimType"`
	Details        json.RawMessage     `json:"details"`
}

type chainResponse struct {
	approval.Chain
	Complete bool `json:"complete"`
}

func (h *Handler) ListClaims(w http.ResponseWriter, r *http.Request) {
	p, ok := actor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	list, err := h.claims.List(r.Context(), p, claims.Filter{
		UserID: q.Get("userId"),
		Status: models.ClaimStatus(q.Get("status")),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) ListAwaitingApproval(w http.ResponseWriter, r *http.Request) {
	p, ok := actor(w, r)
	if !ok {
		return
	}
	list, err := h.claims.ListAwaitingApprover(r.Context(), p, r.URL.Query().Get("approverId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) ListUnrouted(w http.ResponseWriter, r *http.Request) {
	p, ok := actor(w, r)
	if !ok {
		return
	}
	list, err := h.claims.ListUnrouted(r.Context(), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) CreateClaim(w http.ResponseWriter, r *http.Request) {
	p, ok := actor(w, r)
	if !ok {
		return
	}
	var in createClaimRequest
	if !decode(w, r, &in) {
		return
	}
	c, err := h.claims.Create(r.Context(), p, claims.CreateInput(in))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusCreated, c)
}

func (h *Handler) GetClaim(w http.ResponseWriter, r *http.Request) {
	p, ok := actor(w, r)
	if !ok {
		return
	}
	c, err := h.claims.Get(r.Context(), p, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) PatchClaim(w http.ResponseWriter, r *http.Request) {
	p, ok := actor(w, r)
	if !ok {
		return
	}
	var in patchClaimRequest
	if !decode(w, r, &in) {
		return
	}
	c, err := h.claims.Update(r.Context(), p, mux.Vars(r)["id"], claims.Patch(in))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) DuplicateClaim(w http.ResponseWriter, r *http.Request) {
	p, ok := actor(w, r)
	if !ok {
		return
	}
	c, err := h.claims.Duplicate(r.Context(), p, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusCreated, c)
}

func (h *Handler) ApprovalChain(w http.ResponseWriter, r *http.Request) {
	p, ok := actor(w, r)
	if !ok {
		return
	}
	ch, err := h.claims.ApprovalChain(r.Context(), p, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, chainResponse{Chain: ch, Complete: ch.Complete()})
}
