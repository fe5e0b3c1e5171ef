// Package middleware provides HTTP middleware components for the orders batch API.
package middleware

import (
	"encoding/json"
	"net/http"
	"time"
)

// errorBody is the JSON error envelope shared by all middleware rejections.
// It matches the shape handlers produce so clients see one error format
// regardless of which layer rejected the request.
type errorBody struct {
	Timestamp string `json:"timestamp"`
	Status    int    `json:"status"`
	Error     string `json:"error"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Path      string `json:"path"`
}

// writeError writes a JSON error response with the given status, machine
// readable code and human readable message.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) error {
	body := errorBody{
		Timestamp: time.Now().Format(time.RFC3339),
		Status:    status,
		Error:     http.StatusText(status),
		Code:      code,
		Message:   message,
		Path:      r.URL.Path,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	return json.NewEncoder(w).Encode(body)
}
