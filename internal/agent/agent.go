// Package agent turns meeting transcripts into structured summaries using a
// chat completion backend.
package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/leslieo2/agent-summarizer/internal/constants"
	"github.com/leslieo2/agent-summarizer/internal/llm"
	"github.com/leslieo2/agent-summarizer/internal/observability"
)

// Name identifies the agent in metrics and reload registration
const Name = "meeting_summarizer"

var (
	// ErrCredentialMissing means the generation backend has no API key
	ErrCredentialMissing = errors.New("generation backend credential missing")
	// ErrInvalidRequest wraps request validation failures
	ErrInvalidRequest = errors.New("invalid summarize request")
	// ErrMalformedOutput means the model answer was not a JSON object
	ErrMalformedOutput = errors.New("malformed model output")
)

// Generator is the chat completion backend
type Generator interface {
	HasCredential() bool
	CreateChatCompletion(ctx context.Context, req llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error)
}

// InvocationRecorder counts agent runs
type InvocationRecorder interface {
	RecordAgentInvocation(agent string, success bool, duration time.Duration)
}

// Config holds the model settings and the optional instructions file
type Config struct {
	Model            string
	ReasoningEffort  string
	Temperature      float64
	InstructionsFile string
}

type Option func(*Summarizer)

func WithLogger(l *zap.Logger) Option {
	return func(s *Summarizer) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(m InvocationRecorder) Option {
	return func(s *Summarizer) { s.metrics = m }
}

func WithTracer(t *observability.Tracer) Option {
	return func(s *Summarizer) {
		if t != nil {
			s.tracer = t
		}
	}
}

// Summarizer is the meeting summarizer agent
type Summarizer struct {
	client Generator
	cfg    Config

	mu           sync.RWMutex
	instructions string

	logger  *zap.Logger
	metrics InvocationRecorder
	tracer  *observability.Tracer
}

// New builds the agent. It fails with ErrCredentialMissing when the client
// has no API key, and with a read error when the instructions file is unusable.
func New(client Generator, cfg Config, opts ...Option) (*Summarizer, error) {
	if client == nil || !client.HasCredential() {
		return nil, ErrCredentialMissing
	}

	s := &Summarizer{
		client:       client,
		cfg:          cfg,
		instructions: DefaultInstructions,
		logger:       zap.NewNop(),
		tracer:       observability.NewNopTracer(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.InstructionsFile != "" {
		if err := s.Reload(context.Background()); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Name implements hotreload.Reloadable
func (s *Summarizer) Name() string {
	return Name
}

// Model returns the configured model identifier
func (s *Summarizer) Model() string {
	return s.cfg.Model
}

// Instructions returns the current system prompt
func (s *Summarizer) Instructions() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.instructions
}

// Reload rereads the instructions file. The previous instructions stay in
// place when the file is missing or empty.
func (s *Summarizer) Reload(ctx context.Context) error {
	if s.cfg.InstructionsFile == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := os.ReadFile(s.cfg.InstructionsFile)
	if err != nil {
		return fmt.Errorf("failed to read instructions file %s: %w", s.cfg.InstructionsFile, err)
	}
	instructions := strings.TrimSpace(string(data))
	if instructions == "" {
		return fmt.Errorf("instructions file %s is empty", s.cfg.InstructionsFile)
	}

	s.mu.Lock()
	s.instructions = instructions
	s.mu.Unlock()

	s.logger.Info("Loaded agent instructions",
		zap.String("file", s.cfg.InstructionsFile),
		zap.Int("bytes", len(instructions)),
	)
	return nil
}

// Summarize produces a structured summary for req. Generation failures are
// returned wrapped in llm.ErrUpstream; there is no fallback summary.
func (s *Summarizer) Summarize(ctx context.Context, req Request) (summary *MeetingSummary, err error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.StartSpan(ctx, "agent.summarize",
		attribute.String("task_id", req.TaskID),
		attribute.String("meeting_id", req.MeetingID),
		attribute.Int("transcript_length", len(req.Transcript)),
	)
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordAgentInvocation(Name, err == nil, time.Since(start))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	s.logger.Info("Summarizing meeting",
		zap.String("task_id", req.TaskID),
		zap.String("meeting_id", req.MeetingID),
		zap.String("title", req.Title),
	)

	resp, err := s.client.CreateChatCompletion(ctx, s.completionRequest(req))
	if err != nil {
		s.logger.Error("Failed to generate summary",
			zap.String("meeting_id", req.MeetingID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("summarize meeting %s: %w", req.MeetingID, err)
	}

	summary, err = parseSummary(resp.FirstMessage(), req.Title)
	if err != nil {
		s.logger.Error("Model returned unusable output",
			zap.String("meeting_id", req.MeetingID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", llm.ErrUpstream, err)
	}

	summary.Metadata["meeting_id"] = req.MeetingID
	summary.Metadata["agent_name"] = constants.AgentDisplayName
	summary.Metadata["model"] = s.cfg.Model

	s.logger.Info("Meeting summarized",
		zap.String("meeting_id", req.MeetingID),
		zap.Int("action_items", len(summary.ActionItems)),
		zap.Int("risks", len(summary.Risks)),
	)
	return summary, nil
}

func (s *Summarizer) completionRequest(req Request) llm.ChatCompletionRequest {
	out := llm.ChatCompletionRequest{
		Model: s.cfg.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: s.Instructions()},
			{Role: llm.RoleUser, Content: buildUserPrompt(req)},
		},
		ResponseFormat: &llm.ResponseFormat{Type: llm.ResponseFormatJSONObject},
	}

	if llm.SupportsReasoningEffort(s.cfg.Model) {
		out.ReasoningEffort = s.cfg.ReasoningEffort
	} else {
		temperature := s.cfg.Temperature
		out.Temperature = &temperature
	}
	return out
}
