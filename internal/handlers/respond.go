package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/Arijit65/marriage-app-sub001/internal/apperr"
)

// Helper functions shared by all handlers.

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeAppError maps a typed service error onto the wire. Untyped errors
// come out as a generic 500 so internals never leak.
func writeAppError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)

	var e *apperr.Error
	if errors.As(err, &e) {
		writeError(w, status, e.Message)
		return
	}

	log.Printf("Internal error: %v", err)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}
