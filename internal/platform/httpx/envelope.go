package httpx

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// envelope is the uniform JSON body shared by every response the API writes.
type envelope struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
	ErrorCode string `json:"error,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
}

// WriteSuccess writes a successful response in the standard envelope.
func WriteSuccess(w http.ResponseWriter, status int, message string, data any) {
	if status == 0 {
		status = http.StatusOK
	}
	writeEnvelope(w, status, envelope{
		Success: true,
		Message: sanitize(message, 512),
		Data:    data,
	})
}

func writeEnvelope(w http.ResponseWriter, status int, env envelope) {
	if env.Timestamp == "" {
		env.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func sanitize(value string, limit int) string {
	if limit <= 0 {
		limit = 256
	}
	value = strings.ReplaceAll(value, "\n", " ")
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.TrimSpace(value)
	if len(value) > limit {
		value = value[:limit]
	}
	return value
}
