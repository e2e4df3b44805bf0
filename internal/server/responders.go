package server

import (
	"encoding/json"
	"net/http"

	"github.com/doganlap/shahin-grc/internal/routing"
	"github.com/doganlap/shahin-grc/pkg/grcerr"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeDomainError maps the error taxonomy onto HTTP statuses. Unclassified
// errors stay opaque 500s.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	code := grcerr.Code(err)
	status := http.StatusInternalServerError
	message := "internal error"
	switch code {
	case grcerr.CodeNotFound:
		status = http.StatusNotFound
		message = err.Error()
	case grcerr.CodeValidation:
		status = http.StatusBadRequest
		message = err.Error()
	case grcerr.CodeCompositionConflict, grcerr.CodeConcurrentModification:
		status = http.StatusConflict
		message = err.Error()
	case grcerr.CodeCycleDetected, grcerr.CodeUnsupportedPredicate:
		status = http.StatusUnprocessableEntity
		message = err.Error()
	case "":
		code = "internal_error"
	}
	routing.WriteError(w, r, routing.RouteClassPublicAPI, status, code, message)
}
