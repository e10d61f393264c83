package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"claimflow/internal/auth"
)

// RegisterRoutes вешает /api/*. Публичны только register/login/logout,
// остальное — под сессионным middleware.
func RegisterRoutes(r *mux.Router, h *Handler) {
	public := r.PathPrefix("/api").Subrouter()
	public.HandleFunc("/auth/register", h.Register).Methods(http.MethodPost)
	public.HandleFunc("/auth/login", h.Login).Methods(http.MethodPost)
	public.HandleFunc("/auth/logout", h.Logout).Methods(http.MethodPost)

	sec := r.PathPrefix("/api").Subrouter()
	sec.Use(auth.Session(h.issuer, h.cookie, h.users))
	sec.HandleFunc("/auth/me", h.Me).Methods(http.MethodGet)

	sec.HandleFunc("/users", h.ListUsers).Methods(http.MethodGet)
	sec.HandleFunc("/users/{id}", h.GetUser).Methods(http.MethodGet)
	sec.HandleFunc("/users/{id}", h.PatchUser).Methods(http.MethodPatch)

	// статические пути раньше /claims/{id}
	sec.HandleFunc("/claims", h.ListClaims).Methods(http.MethodGet)
	sec.HandleFunc("/claims", h.CreateClaim).Methods(http.MethodPost)
	sec.HandleFunc("/claims/approval", h.ListAwaitingApproval).Methods(http.MethodGet)
	sec.HandleFunc("/claims/unrouted", h.ListUnrouted).Methods(http.MethodGet)
	sec.HandleFunc("/claims/{id}", h.GetClaim).Methods(http.MethodGet)
	sec.HandleFunc("/claims/{id}", h.PatchClaim).Methods(http.MethodPatch)
	sec.HandleFunc("/claims/{id}/duplicate", h.DuplicateClaim).Methods(http.MethodPost)
	sec.HandleFunc("/claims/{id}/approval-chain", h.ApprovalChain).Methods(http.MethodGet)

	sec.HandleFunc("/approvals", h.ListApprovals).Methods(http.MethodGet)
	sec.HandleFunc("/approvals", h.CreateApproval).Methods(http.MethodPost)
	sec.HandleFunc("/approvals/{id}", h.PatchApproval).Methods(http.MethodPatch)
}
