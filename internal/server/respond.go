package server

import (
	"encoding/json"
	"net/http"
)

// errorBody is the JSON body of auth and transport failures.
type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// rejectionBody is the JSON body of an import document rejected before processing.
type rejectionBody struct {
	ErrorType string `json:"errorType"`
	Reason    string `json:"reason"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, errorBody{Error: code})
}
