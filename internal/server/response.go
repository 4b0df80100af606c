package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/leslieo2/agent-summarizer/internal/agent"
	"github.com/leslieo2/agent-summarizer/internal/constants"
	"github.com/leslieo2/agent-summarizer/internal/server/middleware"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	middleware.WriteError(w, status, code, message)
}

func decodeSummarizeRequest(body []byte) (agent.Request, error) {
	var req agent.Request
	if err := json.Unmarshal(body, &req); err != nil {
		return agent.Request{}, fmt.Errorf("invalid request body: %w", err)
	}
	return req, nil
}
