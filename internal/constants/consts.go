package constants

import "time"

// Environment variable constants
const (
	EnvHost              = "HOST"
	EnvPort              = "PORT"
	EnvMetricsPort       = "BUDAI_METRICS_PORT"
	EnvReadTimeout       = "BUDAI_READ_TIMEOUT"
	EnvWriteTimeout      = "BUDAI_WRITE_TIMEOUT"
	EnvIdleTimeout       = "BUDAI_IDLE_TIMEOUT"
	EnvMaxRequestSize    = "BUDAI_MAX_REQUEST_SIZE"
	EnvShutdownTimeout   = "BUDAI_SHUTDOWN_TIMEOUT"
	EnvServiceName       = "BUDAI_SERVICE_NAME"
	EnvServiceVersion    = "BUDAI_SERVICE_VERSION"
	EnvEnvironment       = "BUDAI_ENVIRONMENT"
	EnvOpenAIAPIKey      = "OPENAI_API_KEY"
	EnvOpenAIAPIKeyAlt   = "BUDAI_OPENAI_API_KEY"
	EnvOpenAIBaseURL     = "BUDAI_OPENAI_BASE_URL"
	EnvOpenAIModel       = "BUDAI_OPENAI_DEFAULT_MODEL"
	EnvReasoningEffort   = "BUDAI_REASONING_EFFORT"
	EnvOpenAITimeout     = "BUDAI_OPENAI_TIMEOUT"
	EnvOpenAIMaxRetries  = "BUDAI_OPENAI_MAX_RETRIES"
	EnvRedisURL          = "REDIS_URL"
	EnvRedisURLAlt       = "BUDAI_REDIS_URL"
	EnvInstructionsFile  = "BUDAI_INSTRUCTIONS_FILE"
	EnvLogLevel          = "BUDAI_LOG_LEVEL"
	EnvLogFormat         = "BUDAI_LOG_FORMAT"
	EnvTracingEnabled    = "BUDAI_TRACING_ENABLED"
	EnvHotReload         = "BUDAI_HOT_RELOAD"
	EnvHotReloadDebounce = "BUDAI_HOT_RELOAD_DEBOUNCE"
)

// HTTP method constants
const (
	MethodGET     = "GET"
	MethodPOST    = "POST"
	MethodOPTIONS = "OPTIONS"
)

// HTTP header constants
const (
	HeaderAuthorization = "Authorization"
	HeaderContentType   = "Content-Type"
	HeaderOrigin        = "Origin"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXRequestID    = "X-Request-ID"
	HeaderXAPIKey       = "X-API-Key"
)

// Content type constants
const (
	ContentTypeJSON = "application/json"
)

// CORS headers
const (
	HeaderAccessControlAllowOrigin      = "Access-Control-Allow-Origin"
	HeaderAccessControlAllowMethods     = "Access-Control-Allow-Methods"
	HeaderAccessControlAllowHeaders     = "Access-Control-Allow-Headers"
	HeaderAccessControlAllowCredentials = "Access-Control-Allow-Credentials"
	HeaderAccessControlMaxAge           = "Access-Control-Max-Age"
)

// Authentication constants
const (
	BearerPrefix = "Bearer "
)

// Rate limiting strategy constants
const (
	RateLimitStrategyIP     = "ip"
	RateLimitStrategyAPIKey = "api_key"
	RateLimitStrategyBoth   = "both"
)

// Rate limiting headers
const (
	HeaderXRateLimitLimit     = "X-RateLimit-Limit"
	HeaderXRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderXRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter          = "Retry-After"
)

// Rate limiter internal constants
const (
	// RateLimitCleanupInterval is the interval for cleaning up rate limit cache
	RateLimitCleanupInterval = 5 * time.Minute
	// RateLimitMaxCacheSize is the maximum size of the rate limit cache
	RateLimitMaxCacheSize = 10000
)

// Error code constants
const (
	ErrorCodeUnauthorized       = "UNAUTHORIZED"
	ErrorCodeInvalidAPIKey      = "INVALID_API_KEY"
	ErrorCodeAPIKeyExpired      = "API_KEY_EXPIRED"
	ErrorCodeAPIKeyDisabled     = "API_KEY_DISABLED"
	ErrorCodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	ErrorCodeInvalidRequest     = "INVALID_REQUEST"
	ErrorCodeAgentNotConfigured = "AGENT_NOT_CONFIGURED"
	ErrorCodeUpstreamError      = "UPSTREAM_ERROR"
	ErrorCodeInternal           = "INTERNAL_ERROR"
	ErrorCodeRequestTooLarge    = "REQUEST_TOO_LARGE"
	ErrorCodeHostNotAllowed     = "HOST_NOT_ALLOWED"
)

// Path constants
const (
	PathRoot              = "/"
	PathHealth            = "/health"
	PathReady             = "/ready"
	PathMetrics           = "/metrics"
	PathOpenAPI           = "/openapi.json"
	PathSummarize         = "/agent/summarize"
	PathSummarizeFallback = "/summarize"
)

// Health check names and messages reported by the aggregate report
const (
	CheckLiveness  = "liveness"
	CheckRedis     = "redis"
	CheckOpenAIAPI = "openai_api"
	CheckAgent     = "agent"

	MessageEventBusNotInitialized = "Event bus not initialized"
	MessageAgentNotInitialized    = "Agent not initialized"
	MessageAPIKeyNotConfigured    = "OpenAI API key not configured"
)

// Event types published on the event bus
const (
	EventMeetingSummarized    = "meeting.summarized"
	EventInstructionsReloaded = "agent.instructions_reloaded"
	DefaultEventStream        = "budai:events"
)

// Service identity
const (
	ServiceName        = "agent-summarizer"
	ServiceDisplayName = "BudAI Agent Summarizer"
	AgentDisplayName   = "Meeting Summarizer"
	ServiceVersion     = "1.0.0"
)
