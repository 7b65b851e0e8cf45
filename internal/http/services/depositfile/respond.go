package depositfile

import (
	"encoding/json"
	"net/http"

	"github.com/rcsb/depfile/pkg/appctx"
	"github.com/rcsb/depfile/pkg/errtypes"
)

// statusCode maps an engine error to the HTTP status spec.md's external
// interfaces section assigns it: 400 for validation/integrity failures,
// 403 for overwrite collisions, 404 for missing paths, 401 for a bad or
// missing bearer token, 405 for anything else the upload protocol can
// reject.
func statusCode(err error) int {
	switch {
	case isKind[errtypes.IsNotFound](err):
		return http.StatusNotFound
	case isKind[errtypes.IsForbidden](err):
		return http.StatusForbidden
	case isKind[errtypes.IsInvalidCredentials](err):
		return http.StatusUnauthorized
	case isKind[errtypes.IsBadRequest](err),
		isKind[errtypes.IsHashError](err),
		isKind[errtypes.IsPathError](err),
		isKind[errtypes.IsNotSupported](err),
		isKind[errtypes.IsLockTimeout](err):
		return http.StatusBadRequest
	default:
		return http.StatusMethodNotAllowed
	}
}

func isKind[T any](err error) bool {
	_, ok := err.(T)
	return ok
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError logs err at the calling request's logger and writes it as a
// JSON error body with the mapped status code.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusCode(err)
	log := appctx.GetLogger(r.Context())
	log.Error().Err(err).Int("status", status).Msg("request failed")
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
