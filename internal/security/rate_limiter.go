package security

import (
	"fmt"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/leslieo2/agent-summarizer/internal/config"
	"github.com/leslieo2/agent-summarizer/internal/constants"
)

// RateLimiter keeps one token bucket per client identifier
type RateLimiter struct {
	limiters *cache.Cache
	config   config.RateLimitConfig
	proxies  []netip.Prefix
	clock    Clock
	logger   *zap.Logger

	mu   sync.Mutex
	stop chan struct{}
}

type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

type RateLimitStatus struct {
	Limit      int           `json:"limit"`
	Remaining  int           `json:"remaining"`
	Reset      time.Time     `json:"reset"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

// NewRateLimiter creates the limiter and, when enabled, starts the goroutine
// that caps the cache size. Call Close to stop it.
func NewRateLimiter(cfg config.RateLimitConfig, logger *zap.Logger) *RateLimiter {
	rl := newRateLimiter(cfg, logger, RealClock{})
	if cfg.Enabled {
		rl.stop = make(chan struct{})
		go rl.periodicCleanup(rl.stop)
	}
	return rl
}

func newRateLimiter(cfg config.RateLimitConfig, logger *zap.Logger, clock Clock) *RateLimiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = constants.RateLimitCleanupInterval
	}
	if cfg.MaxCacheSize <= 0 {
		cfg.MaxCacheSize = constants.RateLimitMaxCacheSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	proxies, err := config.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		logger.Warn("Ignoring trusted proxies", zap.Error(err))
		proxies = nil
	}

	return &RateLimiter{
		limiters: cache.New(cfg.CleanupInterval, cfg.CleanupInterval*2),
		config:   cfg,
		proxies:  proxies,
		clock:    clock,
		logger:   logger,
	}
}

// Close stops the background cleanup
func (rl *RateLimiter) Close() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.stop != nil {
		close(rl.stop)
		rl.stop = nil
	}
}

func (rl *RateLimiter) periodicCleanup(stop <-chan struct{}) {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if removed := rl.enforceMaxSize(); removed > 0 {
				rl.logger.Info("Evicted rate limiters", zap.Int("removed", removed))
			}
		}
	}
}

// enforceMaxSize evicts random entries, plus 10% headroom, once the cache
// grows past MaxCacheSize. go-cache keeps no access times.
func (rl *RateLimiter) enforceMaxSize() int {
	maxSize := rl.config.MaxCacheSize
	items := rl.limiters.Items()
	if len(items) <= maxSize {
		return 0
	}

	toRemove := len(items) - maxSize + maxSize/10
	keys := make([]string, 0, len(items))
	for key := range items {
		keys = append(keys, key)
	}
	rand.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })

	removed := 0
	for ; removed < toRemove && removed < len(keys); removed++ {
		rl.limiters.Delete(keys[removed])
	}
	return removed
}

func (rl *RateLimiter) limiter(identifier string, limit *config.RateLimit) *rate.Limiter {
	if item, found := rl.limiters.Get(identifier); found {
		return item.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(rate.Limit(limit.RequestsPerSecond), limit.BurstSize)
	if err := rl.limiters.Add(identifier, limiter, cache.DefaultExpiration); err != nil {
		// Lost a race with a concurrent request for the same identifier.
		if item, found := rl.limiters.Get(identifier); found {
			return item.(*rate.Limiter)
		}
	}
	return limiter
}

// Allow consumes one token for identifier
func (rl *RateLimiter) Allow(identifier string, limit *config.RateLimit) bool {
	if !rl.config.Enabled {
		return true
	}
	return rl.limiter(identifier, limit).AllowN(rl.clock.Now(), 1)
}

// Status reports the bucket state without consuming a token
func (rl *RateLimiter) Status(identifier string, limit *config.RateLimit) RateLimitStatus {
	now := rl.clock.Now()
	if !rl.config.Enabled {
		return RateLimitStatus{
			Limit:     limit.BurstSize,
			Remaining: limit.BurstSize,
			Reset:     now.Add(limit.WindowSize),
		}
	}

	tokens := rl.limiter(identifier, limit).TokensAt(now)
	status := RateLimitStatus{
		Limit:     limit.BurstSize,
		Remaining: int(math.Max(0, math.Floor(tokens))),
	}

	missing := float64(limit.BurstSize) - tokens
	status.Reset = now.Add(time.Duration(missing / float64(limit.RequestsPerSecond) * float64(time.Second)))
	if tokens < 1 {
		wait := (1 - tokens) / float64(limit.RequestsPerSecond)
		status.RetryAfter = time.Duration(math.Ceil(wait)) * time.Second
	}
	return status
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.config.Enabled || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		identifier := rl.identifier(r)
		limit := rl.rateLimit(identifier)
		allowed := rl.Allow(identifier, limit)
		status := rl.Status(identifier, limit)

		w.Header().Set(constants.HeaderXRateLimitLimit, strconv.Itoa(status.Limit))
		w.Header().Set(constants.HeaderXRateLimitRemaining, strconv.Itoa(status.Remaining))
		w.Header().Set(constants.HeaderXRateLimitReset, strconv.FormatInt(status.Reset.Unix(), 10))

		if !allowed {
			retryAfter := int(status.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set(constants.HeaderRetryAfter, strconv.Itoa(retryAfter))

			rl.logger.Warn("Rate limit exceeded",
				zap.String("identifier", identifier),
				zap.String("path", r.URL.Path),
			)
			writeErrorBody(w, http.StatusTooManyRequests, ErrorBody{
				Error:      constants.ErrorCodeRateLimitExceeded,
				Message:    fmt.Sprintf("Rate limit exceeded. Try again in %ds", retryAfter),
				Code:       constants.ErrorCodeRateLimitExceeded,
				RetryAfter: retryAfter,
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) identifier(r *http.Request) string {
	apiKey := requestAPIKey(r)
	ip := "ip:" + rl.clientIP(r)

	switch rl.config.Strategy {
	case constants.RateLimitStrategyAPIKey:
		if apiKey != "" {
			return "api_key:" + apiKey
		}
	case constants.RateLimitStrategyBoth:
		if apiKey != "" {
			return ip + "|api_key:" + apiKey
		}
	}
	return ip
}

func (rl *RateLimiter) rateLimit(identifier string) *config.RateLimit {
	if key, ok := strings.CutPrefix(identifier, "api_key:"); ok {
		if limit, exists := rl.config.ByAPIKey[key]; exists && limit != nil {
			return limit
		}
	}
	if strings.HasPrefix(identifier, "ip:") && rl.config.ByIP != nil {
		return rl.config.ByIP
	}
	if rl.config.Global != nil {
		return rl.config.Global
	}
	return config.DefaultRateLimit()
}

func requestAPIKey(r *http.Request) string {
	if apiKey := r.Header.Get(constants.HeaderXAPIKey); apiKey != "" {
		return apiKey
	}
	return r.URL.Query().Get("api_key")
}

// clientIP returns the peer address unless the peer is a trusted proxy.
// Behind trusted proxies, X-Forwarded-For is walked right to left and the
// first untrusted hop wins; X-Real-IP is the fallback.
func (rl *RateLimiter) clientIP(r *http.Request) string {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		peer = host
	}
	if !rl.trusted(peer) {
		return peer
	}

	if xff := r.Header.Get(constants.HeaderXForwardedFor); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop != "" && !rl.trusted(hop) {
				return hop
			}
		}
		if first := strings.TrimSpace(hops[0]); first != "" {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get(constants.HeaderXRealIP)); xri != "" {
		return xri
	}
	return peer
}

func (rl *RateLimiter) trusted(ip string) bool {
	if len(rl.proxies) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range rl.proxies {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
