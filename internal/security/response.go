package security

import (
	"encoding/json"
	"net/http"

	"github.com/leslieo2/agent-summarizer/internal/constants"
)

// ErrorBody is the JSON error envelope shared by every endpoint
type ErrorBody struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	Code       string `json:"code"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeErrorBody(w, status, ErrorBody{Error: code, Message: message, Code: code})
}

func writeErrorBody(w http.ResponseWriter, status int, body ErrorBody) {
	w.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// isPublicPath lists endpoints that bypass auth and rate limiting
func isPublicPath(path string) bool {
	switch path {
	case constants.PathHealth, constants.PathReady, constants.PathMetrics, constants.PathOpenAPI:
		return true
	}
	return false
}
