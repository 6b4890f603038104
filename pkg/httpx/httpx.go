// Package httpx holds the lane service's JSON conventions: every response
// body carries a request_id, errors carry a taxonomy code plus a retryable
// hint, and request decoding is strict.
package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"mainlane/pkg/domain"
)

func NewRequestID() string { return "req_" + uuid.NewString() }

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteOK writes a success envelope: the given fields plus a minted
// request_id. Callers pass fields only; the envelope owns the id.
func WriteOK(w http.ResponseWriter, status int, fields map[string]any) {
	resp := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		resp[k] = v
	}
	resp["request_id"] = NewRequestID()
	WriteJSON(w, status, resp)
}

// ReadJSON decodes the request body strictly: unknown fields are schema
// errors, never silently dropped.
func ReadJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// WriteError writes the error envelope. Codes from the reason taxonomy
// additionally carry their retryable hint so clients can distinguish
// resubmit-against-new-head from give-up.
func WriteError(w http.ResponseWriter, status int, code, message string, details any) {
	body := map[string]any{
		"code": code, "message": message, "details": details,
	}
	if rc := domain.ReasonCode(code); rc.Known() {
		body["retryable"] = rc.Retryable()
	}
	WriteJSON(w, status, map[string]any{
		"request_id": NewRequestID(),
		"error":      body,
	})
}
