package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/leslieo2/agent-summarizer/internal/config"
	"github.com/leslieo2/agent-summarizer/internal/health"
	"github.com/leslieo2/agent-summarizer/internal/observability"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.OpenAI.HealthTimeout = time.Second
	cfg.OpenAI.RetryBaseDelay = time.Millisecond
	cfg.EventBus.ConnectTimeout = 500 * time.Millisecond
	cfg.HotReload.Enabled = false
	return cfg
}

func openAIServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" || r.Header.Get("Authorization") != "Bearer sk-test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func build(t *testing.T, cfg *config.Config) *Container {
	t.Helper()
	c, err := Build(context.Background(), cfg, WithLogger(observability.NewNopLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

func TestBuild_NothingConfigured(t *testing.T) {
	c := build(t, testConfig())

	assert.Nil(t, c.EventBus)
	assert.Nil(t, c.Agent)
	assert.False(t, c.AgentReady())
	assert.Nil(t, c.HotReload)
	require.NotNil(t, c.LLM)
	require.NotNil(t, c.APIDoc)

	report := c.Health.CheckHealth(context.Background())
	assert.Equal(t, health.StatusHealthy, report.Status)
	assert.Equal(t, []string{"liveness", "redis", "openai_api", "agent"}, c.Health.Names())

	redis, _ := report.Check("redis")
	assert.Equal(t, "Event bus not initialized", redis.Message)
	openai, _ := report.Check("openai_api")
	assert.Equal(t, "OpenAI API key not configured", openai.Message)
	agentCheck, _ := report.Check("agent")
	assert.Equal(t, "Agent not initialized", agentCheck.Message)
}

func TestBuild_AllDependencies(t *testing.T) {
	mr := miniredis.RunT(t)
	srv := openAIServer(t)

	cfg := testConfig()
	cfg.OpenAI.APIKey = "sk-test"
	cfg.OpenAI.BaseURL = srv.URL
	cfg.EventBus.RedisURL = "redis://" + mr.Addr()

	c := build(t, cfg)

	require.NotNil(t, c.EventBus)
	require.NotNil(t, c.Agent)
	assert.True(t, c.AgentReady())

	report := c.Health.CheckHealth(context.Background())
	assert.Equal(t, health.StatusHealthy, report.Status)
	require.Len(t, report.Checks, 4)
	for _, check := range report.Checks {
		assert.Equal(t, health.StatusHealthy, check.Status, check.Name)
	}
	assert.Equal(t, "development", report.Environment)
}

func TestBuild_EventBusUnreachable(t *testing.T) {
	cfg := testConfig()
	cfg.EventBus.RedisURL = "redis://127.0.0.1:1"

	c := build(t, cfg)
	assert.Nil(t, c.EventBus)

	report := c.Health.CheckHealth(context.Background())
	assert.Equal(t, health.StatusHealthy, report.Status)
	redis, _ := report.Check("redis")
	assert.Equal(t, health.StatusUnhealthy, redis.Status)
}

func TestBuild_EventBusLostAfterStart(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.EventBus.RedisURL = "redis://" + mr.Addr()

	c := build(t, cfg)
	require.NotNil(t, c.EventBus)

	mr.Close()

	report := c.Health.CheckHealth(context.Background())
	assert.Equal(t, health.StatusHealthy, report.Status)
	redis, _ := report.Check("redis")
	assert.Equal(t, health.StatusUnhealthy, redis.Status)
	assert.Contains(t, redis.Message, "Redis ping failed")
}

func TestBuild_InvalidInstructionsFile(t *testing.T) {
	cfg := testConfig()
	cfg.OpenAI.APIKey = "sk-test"
	cfg.Agent.InstructionsFile = filepath.Join(t.TempDir(), "missing.md")

	_, err := Build(context.Background(), cfg, WithLogger(observability.NewNopLogger()))
	assert.Error(t, err)
}

func TestBuild_FailureReleasesTracerAndEventBus(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig()
	cfg.OpenAI.APIKey = "sk-test"
	cfg.Agent.InstructionsFile = filepath.Join(t.TempDir(), "missing.md")
	cfg.EventBus.RedisURL = "redis://" + mr.Addr()
	cfg.Observability.Tracing.Enabled = true

	_, err := Build(context.Background(), cfg, WithLogger(observability.NewNopLogger()))
	require.Error(t, err)

	_, span := otel.GetTracerProvider().Tracer("after-build").Start(context.Background(), "span")
	defer span.End()
	assert.False(t, span.IsRecording(), "tracer provider should be shut down")
	assert.Eventually(t, func() bool { return mr.CurrentConnectionCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestBuild_HotReloadInstructions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "instructions.md")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	cfg := testConfig()
	cfg.OpenAI.APIKey = "sk-test"
	cfg.Agent.InstructionsFile = path
	cfg.HotReload.Enabled = true
	cfg.HotReload.Debounce = 20 * time.Millisecond

	c := build(t, cfg)
	require.NotNil(t, c.HotReload)
	assert.True(t, c.HotReload.IsRunning())
	assert.Equal(t, "v1", c.Agent.Instructions())

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))

	assert.Eventually(t, func() bool {
		return c.Agent.Instructions() == "v2"
	}, 3*time.Second, 20*time.Millisecond)
}

func TestContainer_Close(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.EventBus.RedisURL = "redis://" + mr.Addr()

	c, err := Build(context.Background(), cfg, WithLogger(observability.NewNopLogger()))
	require.NoError(t, err)

	assert.NoError(t, c.Close(context.Background()))
	assert.False(t, c.EventBus.Healthy())
}
