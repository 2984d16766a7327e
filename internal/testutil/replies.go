package testutil

import (
	"encoding/json"
	"net/http"
)

// ReplyJSON writes a 200 response with a JSON body.
func ReplyJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

// ReplyStatus writes an error status with a small JSON body, the way most
// REST upstreams report failures.
func ReplyStatus(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": message,
	})
}

// ReplyInvalidJSON writes a 200 response whose body is not valid JSON,
// simulating a truncated or HTML error page behind a 200.
func ReplyInvalidJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte("<html>totally not json"))
}

// ReplyPrice writes a minimal price payload of the kind the collectors parse.
func ReplyPrice(w http.ResponseWriter, symbol string, price float64) {
	ReplyJSON(w, map[string]any{
		"symbol": symbol,
		"price":  price,
	})
}
