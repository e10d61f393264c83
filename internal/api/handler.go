// Package api — REST-поверхность claimflow поверх сервисов claims и directory.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"claimflow/internal/auth"
	"claimflow/internal/claims"
	"claimflow/internal/directory"
	"claimflow/internal/models"
)

const maxBody = 1 << 20

type Handler struct {
	claims *claims.Service
	users  *directory.Service
	issuer *auth.Issuer
	cookie auth.CookieOptions
	log    logrus.FieldLogger
}

func NewHandler(cs *claims.Service, us *directory.Service, iss *auth.Issuer, cookie auth.CookieOptions, log logrus.FieldLogger) *Handler {
	return &Handler{claims: cs, users: us, issuer: iss, cookie: cookie, log: log}
}

// actor — Principal текущего запроса; дальше передаётся в сервисы явно.
func actor(w http.ResponseWriter, r *http.Request) (models.Principal, bool) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		models.WriteProblemCode(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Unauthorized", "no session", nil)
	}
	return p, ok
}

// decode строго читает JSON-тело: лишние поля и мусор после объекта — 400.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		badRequest(w, fmt.Sprintf("invalid JSON body: %v", err))
		return false
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		badRequest(w, "invalid JSON body: trailing data")
		return false
	}
	return true
}

func badRequest(w http.ResponseWriter, detail string) {
	models.WriteProblemCode(w, http.StatusBadRequest, "BAD_REQUEST", "Bad Request", detail, nil)
}
