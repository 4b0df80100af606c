package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/leslieo2/agent-summarizer/internal/agent"
	"github.com/leslieo2/agent-summarizer/internal/constants"
	"github.com/leslieo2/agent-summarizer/internal/server/middleware"
)

const publishTimeout = 2 * time.Second

type route struct {
	method  string
	path    string
	handler http.HandlerFunc
}

func (r route) pattern() string {
	if r.path == constants.PathRoot {
		return r.method + " /{$}"
	}
	return r.method + " " + r.path
}

func (s *Server) routeTable() []route {
	return []route{
		{constants.MethodGET, constants.PathRoot, s.rootHandler},
		{constants.MethodGET, constants.PathHealth, s.healthHandler},
		{constants.MethodGET, constants.PathReady, s.readinessHandler},
		{constants.MethodGET, constants.PathOpenAPI, s.openAPIHandler},
		{constants.MethodPOST, constants.PathSummarize, s.summarizeHandler},
		{constants.MethodPOST, constants.PathSummarizeFallback, s.summarizeHandler},
	}
}

// routeLabel keeps metric label cardinality bounded to the known paths
func (s *Server) routeLabel(r *http.Request) string {
	switch p := r.URL.Path; p {
	case constants.PathRoot, constants.PathHealth, constants.PathReady, constants.PathOpenAPI,
		constants.PathSummarize, constants.PathSummarizeFallback:
		return p
	}
	return "other"
}

// ServiceInfo is the static descriptor served at the root path
type ServiceInfo struct {
	Service     string `json:"service"`
	Version     string `json:"version"`
	Agent       string `json:"agent"`
	Status      string `json:"status"`
	Environment string `json:"environment"`
}

func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ServiceInfo{
		Service:     constants.ServiceDisplayName,
		Version:     s.config.Service.Version,
		Agent:       constants.AgentDisplayName,
		Status:      "running",
		Environment: s.config.Service.Environment,
	})
}

// healthHandler always answers 200; the body carries the aggregated status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	report := s.container.Health.CheckHealth(r.Context())

	writeJSON(w, http.StatusOK, report)

	s.logger.Debug("Health check completed",
		zap.String("status", string(report.Status)),
		zap.Int("checks", len(report.Checks)),
	)
}

// ReadinessStatus is the body of the readiness endpoint
type ReadinessStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	if !s.container.AgentReady() {
		writeJSON(w, http.StatusServiceUnavailable, ReadinessStatus{
			Status:  "not ready",
			Message: "Agent not initialized",
		})
		return
	}
	writeJSON(w, http.StatusOK, ReadinessStatus{Status: "ready"})
}

func (s *Server) openAPIHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(s.container.APIDoc.JSON())
}

// SummarizeResponse is the body of a successful summarize call
type SummarizeResponse struct {
	TaskID             string             `json:"task_id"`
	MeetingID          string             `json:"meeting_id"`
	Summary            string             `json:"summary"`
	KeyPoints          []string           `json:"key_points"`
	ActionItems        []agent.ActionItem `json:"action_items"`
	Decisions          []agent.Decision   `json:"decisions"`
	Risks              []string           `json:"risks"`
	NextSteps          []string           `json:"next_steps"`
	AttendeesMentioned []string           `json:"attendees_mentioned"`
	Metadata           map[string]any     `json:"metadata"`
}

func newSummarizeResponse(req agent.Request, summary *agent.MeetingSummary) SummarizeResponse {
	return SummarizeResponse{
		TaskID:             req.TaskID,
		MeetingID:          req.MeetingID,
		Summary:            summary.Summary,
		KeyPoints:          summary.KeyPoints,
		ActionItems:        summary.ActionItems,
		Decisions:          summary.Decisions,
		Risks:              summary.Risks,
		NextSteps:          summary.NextSteps,
		AttendeesMentioned: summary.AttendeesMentioned,
		Metadata:           summary.Metadata,
	}
}

// MeetingSummarizedEvent is published after every successful summary
type MeetingSummarizedEvent struct {
	TaskID      string `json:"task_id"`
	MeetingID   string `json:"meeting_id"`
	Title       string `json:"title"`
	ActionItems int    `json:"action_items"`
	Decisions   int    `json:"decisions"`
	Risks       int    `json:"risks"`
	RequestID   string `json:"request_id,omitempty"`
}

func (s *Server) summarizeHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.StartSpan(r.Context(), "http.summarize",
		attribute.String("http.method", r.Method),
		attribute.String("http.path", r.URL.Path),
	)
	defer span.End()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, constants.ErrorCodeRequestTooLarge, "Request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, constants.ErrorCodeInvalidRequest, "Failed to read request body")
		return
	}

	if err := s.container.APIDoc.ValidateSummarizeRequest(body); err != nil {
		span.SetStatus(codes.Error, "invalid request")
		writeError(w, http.StatusBadRequest, constants.ErrorCodeInvalidRequest, err.Error())
		return
	}

	req, err := decodeSummarizeRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, constants.ErrorCodeInvalidRequest, err.Error())
		return
	}
	if req.TaskID == "" {
		req.TaskID = uuid.NewString()
	}
	span.SetAttributes(
		attribute.String("task_id", req.TaskID),
		attribute.String("meeting_id", req.MeetingID),
	)

	summarizer := s.container.Agent
	if summarizer == nil {
		writeError(w, http.StatusServiceUnavailable, constants.ErrorCodeAgentNotConfigured,
			"Agent not initialized: generation backend credential is missing")
		return
	}

	summary, err := summarizer.Summarize(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, agent.ErrInvalidRequest) {
			writeError(w, http.StatusBadRequest, constants.ErrorCodeInvalidRequest, err.Error())
			return
		}
		s.logger.Error("Summarization failed",
			zap.String("task_id", req.TaskID),
			zap.String("meeting_id", req.MeetingID),
			zap.String("request_id", middleware.RequestIDFromContext(ctx)),
			zap.Error(err),
		)
		writeError(w, http.StatusBadGateway, constants.ErrorCodeUpstreamError, "Failed to generate meeting summary")
		return
	}

	s.publishSummarized(ctx, req, summary)

	writeJSON(w, http.StatusOK, newSummarizeResponse(req, summary))
}

// publishSummarized announces the summary on the event bus. Failures are
// logged and counted by the bus, never returned to the client.
func (s *Server) publishSummarized(ctx context.Context, req agent.Request, summary *agent.MeetingSummary) {
	bus := s.container.EventBus
	if bus == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	id, err := bus.Publish(ctx, constants.EventMeetingSummarized, MeetingSummarizedEvent{
		TaskID:      req.TaskID,
		MeetingID:   req.MeetingID,
		Title:       summary.Title,
		ActionItems: len(summary.ActionItems),
		Decisions:   len(summary.Decisions),
		Risks:       len(summary.Risks),
		RequestID:   middleware.RequestIDFromContext(ctx),
	})
	if err != nil {
		s.logger.Warn("Failed to publish summary event",
			zap.String("meeting_id", req.MeetingID),
			zap.Error(err),
		)
		return
	}
	s.logger.Debug("Published summary event", zap.String("event_id", id))
}
