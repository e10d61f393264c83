package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"claimflow/internal/auth"
	"claimflow/internal/directory"
	"claimflow/internal/models"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	User      *models.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

type userPatchRequest struct {
	Name         *string      `json:"name"`
	Department   *string      `json:"department"`
	BusinessUnit *string      `json:"businessUnit"`
	Role         *models.Role `json:"role"`
	Band         *string      `json:"band"`
	ManagerID    *string      `json:"managerId"`
	ClearManager bool         `json:"clearManager"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var in directory.RegisterInput
	if !decode(w, r, &in) {
		return
	}
	u, err := h.users.Register(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.startSession(w, r, u, http.StatusCreated)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if !decode(w, r, &in) {
		return
	}
	u, err := h.users.Authenticate(r.Context(), in.Email, in.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.startSession(w, r, u, http.StatusOK)
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, u *models.User, status int) {
	token, exp, err := h.issuer.Issue(models.Principal{UserID: u.ID, Role: u.Role})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	auth.SetCookie(w, h.cookie, token, exp)
	models.WriteJSON(w, status, sessionResponse{User: u, Token: token, ExpiresAt: exp})
}

func (h *Handler) Logout(w http.ResponseWriter, _ *http.Request) {
	auth.ClearCookie(w, h.cookie)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := actor(w, r)
	if !ok {
		return
	}
	u, err := h.users.Get(r.Context(), p.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.users.List(r.Context(), directory.Filter{
		Department: q.Get("department"),
		Role:       models.Role(q.Get("role")),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) PatchUser(w http.ResponseWriter, r *http.Request) {
	p, ok := actor(w, r)
	if !ok {
		return
	}
	var in userPatchRequest
	if !decode(w, r, &in) {
		return
	}
	u, err := h.users.Update(r.Context(), p, mux.Vars(r)["id"], directory.UserPatch(in))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	models.WriteJSON(w, http.StatusOK, u)
}
