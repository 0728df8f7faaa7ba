package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/arbolado/treeregistry/internal/common"
)

// Machine-readable error kinds carried in the response envelope.
const (
	KindPermissionDenied     = "permission-denied"
	KindUnauthenticated      = "unauthenticated"
	KindInvalidArgument      = "invalid-argument"
	KindNotFound             = "not-found"
	KindBlobNotFound         = "blob-not-found"
	KindBlobRelocationFailed = "blob-relocation-failed"
	KindInternal             = "internal"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// writeError writes the standard error envelope:
// {"error": {"kind": "...", "message": "..."}}.
func writeError(w http.ResponseWriter, statusCode int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{Error: errorDetail{Kind: kind, Message: message}})
}

// writeServiceError maps a service error onto an HTTP status and kind.
// Internal faults get a generic message so backend details stay out of
// responses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, KindPermissionDenied, err.Error())
	case errors.Is(err, common.ErrUnauthenticated), errors.Is(err, common.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, KindUnauthenticated, err.Error())
	case errors.Is(err, common.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, KindInvalidArgument, err.Error())
	case errors.Is(err, common.ErrNotFound):
		writeError(w, http.StatusNotFound, KindNotFound, err.Error())
	case errors.Is(err, common.ErrBlobNotFound):
		writeError(w, http.StatusBadGateway, KindBlobNotFound, err.Error())
	case errors.Is(err, common.ErrBlobRelocationFailed):
		writeError(w, http.StatusBadGateway, KindBlobRelocationFailed, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, KindInternal, "internal error")
	}
}
