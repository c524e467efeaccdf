package handlers

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse writes the API's error envelope: a machine-readable code
// plus a human-readable message. Returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response body and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		// The encoder's first Write implies 200.
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}
