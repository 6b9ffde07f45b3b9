package controllers

import (
	"net/http"

	"eventportal/internal/delivery/http/helpers"
	"eventportal/internal/delivery/http/middleware"
	"eventportal/internal/domain"
)

// callerOrUnauthorized returns the principal set by RequireAuth, writing 401 when it is absent.
func callerOrUnauthorized(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
	}
	return p, ok
}

// pathID reads a required path value, writing 400 when it is empty.
func pathID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	id := r.PathValue(name)
	if id == "" {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "missing "+name)
		return "", false
	}
	return id, true
}
