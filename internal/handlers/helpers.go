package handlers

import (
	"encoding/json"
	"net/http"
)

// respondJSON writes a payload as-is. Cross-domain responses use the flat
// wire format partner sites already consume, so there is no envelope here.
func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// respondError writes a structured failure. message is user-facing and must
// never carry backend details; log those instead.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
	})
}
