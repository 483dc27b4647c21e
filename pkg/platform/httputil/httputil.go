// Package httputil renders the service's JSON response envelope. Every
// endpoint answers {statusCode, statusMessage, data?} so clients parse one
// shape for both success and failure.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "agendahub/pkg/domain-errors"
)

type envelope struct {
	StatusCode    int    `json:"statusCode"`
	StatusMessage string `json:"statusMessage"`
	Data          any    `json:"data,omitempty"`
}

// WriteJSON writes a success envelope with the given status and payload.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{
		StatusCode:    status,
		StatusMessage: "success",
		Data:          data,
	})
}

// WriteError translates a domain error into the response envelope. Internal
// causes are never rendered; the coded message is all a client sees.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := dErrors.ToHTTPStatus(code)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{
		StatusCode:    status,
		StatusMessage: dErrors.MessageOf(err),
	})
}
