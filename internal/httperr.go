package internal

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// errorBody is the uniform shape every failed HTTP response carries, per
// spec: {detail, code?}.
type errorBody struct {
	Detail string `json:"detail"`
	Code   string `json:"code,omitempty"`
}

// statusFor maps an error Kind to its HTTP status code.
func statusFor(k Kind) int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindStateConflict:
		return http.StatusConflict
	case KindLocked:
		return http.StatusForbidden
	case KindFull:
		return http.StatusConflict
	case KindExpired:
		return http.StatusGone
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeError is the single formatter every handler funnels through, so
// response shapes never drift between endpoints.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	e := AsError(err)
	if e.Kind == KindInternal {
		h.logger.Error("internal error", "error", e.Error())
	}
	if e.Kind == KindRateLimited && e.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(e.RetryAfter))
	}
	writeJSON(w, statusFor(e.Kind), errorBody{Detail: e.Message, Code: e.Code})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
