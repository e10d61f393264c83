package api

import (
	"errors"
	"net/http"

	"claimflow/internal/auth"
	"claimflow/internal/claims"
	"claimflow/internal/directory"
	"claimflow/internal/lifecycle"
	"claimflow/internal/middleware"
	"claimflow/internal/models"
	"claimflow/internal/store"
)

type errorMapping struct {
	target error
	status int
	code   string
	title  string
}

// порядок важен: более узкие ошибки раньше общих
var errorTable = []errorMapping{
	{claims.ErrReasonRequired, http.StatusBadRequest, "REASON_REQUIRED", "Bad Request"},
	{models.ErrInvalidDetails, http.StatusBadRequest, "INVALID_DETAILS", "Bad Request"},
	{claims.ErrValidation, http.StatusBadRequest, "VALIDATION_FAILED", "Bad Request"},
	{directory.ErrValidation, http.StatusBadRequest, "VALIDATION_FAILED", "Bad Request"},
	{directory.ErrManagerCycle, http.StatusBadRequest, "MANAGER_CYCLE", "Bad Request"},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Unauthorized"},
	{auth.ErrInvalidToken, http.StatusUnauthorized, "UNAUTHENTICATED", "Unauthorized"},
	{claims.ErrForbidden, http.StatusForbidden, "FORBIDDEN", "Forbidden"},
	{directory.ErrForbidden, http.StatusForbidden, "FORBIDDEN", "Forbidden"},
	{lifecycle.ErrActorNotAllowed, http.StatusForbidden, "FORBIDDEN", "Forbidden"},
	{store.ErrNotFound, http.StatusNotFound, "NOT_FOUND", "Not Found"},
	{lifecycle.ErrTransitionNotAllowed, http.StatusConflict, "TRANSITION_NOT_ALLOWED", "Conflict"},
	{claims.ErrPendingApprovalExists, http.StatusConflict, "PENDING_APPROVAL_EXISTS", "Conflict"},
	{store.ErrDuplicate, http.StatusConflict, "DUPLICATE", "Conflict"},
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorTable {
		if errors.Is(err, m.target) {
			models.WriteProblemCode(w, m.status, m.code, m.title, err.Error(), nil)
			return
		}
	}
	reqid := middleware.GetRequestID(r)
	h.log.WithField("reqid", reqid).WithError(err).Errorf("%s %s failed", r.Method, r.URL.Path)
	models.WriteProblemCode(w, http.StatusInternalServerError, "INTERNAL", "Internal Server Error",
		"unexpected server error (see logs by reqid)", map[string]any{"reqid": reqid})
}
