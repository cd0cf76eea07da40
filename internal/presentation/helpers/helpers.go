package helpers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"
)

// ErrorResponse mirrors the error body shape of the order API.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Status    int       `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func DecodeJSON(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func HttpError(w http.ResponseWriter, status int, errName, msg string) {
	WriteJSON(w, status, ErrorResponse{
		Error:     errName,
		Message:   msg,
		Status:    status,
		Timestamp: time.Now().UTC(),
	})
}
