package middleware

import (
	"encoding/json"
	"net/http"
)

// writeJSONError writes the API's {"success": false, "message": ...} envelope.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}{Success: false, Message: msg})
}
