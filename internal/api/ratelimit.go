package api

import (
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultRateLimitRPS   = 100.0
	defaultRateLimitBurst = 200

	bucketIdleTTL = 5 * time.Minute
	sweepInterval = 30 * time.Second
)

// RateLimitConfig configures the per-client token bucket.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"rps"`
	Burst             int     `yaml:"burst"`
	// TrustedProxies are the peers whose X-Forwarded-For is believed.
	TrustedProxies *ProxyAllowlist `yaml:"-"`
}

// Enabled reports whether rate limiting should be enforced.
func (c RateLimitConfig) Enabled() bool {
	return c.RequestsPerSecond > 0 && c.Burst > 0
}

// DefaultRateLimitConfig reads MOCKAPI_RATE_LIMIT_RPS and
// MOCKAPI_RATE_LIMIT_BURST, falling back to 100 rps with a burst of 200.
// Non-positive or malformed values are ignored.
func DefaultRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{RequestsPerSecond: defaultRateLimitRPS, Burst: defaultRateLimitBurst}
	if v, err := strconv.ParseFloat(os.Getenv("MOCKAPI_RATE_LIMIT_RPS"), 64); err == nil && v > 0 {
		cfg.RequestsPerSecond = v
	}
	if v, err := strconv.Atoi(os.Getenv("MOCKAPI_RATE_LIMIT_BURST")); err == nil && v > 0 {
		cfg.Burst = v
	}
	return cfg
}

// ProxyAllowlist is the set of peers allowed to report a client address.
type ProxyAllowlist struct {
	Prefixes []netip.Prefix
}

// ParseTrustedProxies parses a comma separated list of CIDRs or bare
// addresses. Empty entries are skipped.
func ParseTrustedProxies(raw string) (*ProxyAllowlist, error) {
	list := &ProxyAllowlist{}
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		p, err := netip.ParsePrefix(s)
		if err != nil {
			addr, aerr := netip.ParseAddr(s)
			if aerr != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", s, err)
			}
			p = netip.PrefixFrom(addr, addr.BitLen())
		}
		list.Prefixes = append(list.Prefixes, p.Masked())
	}
	return list, nil
}

func (l *ProxyAllowlist) contains(addr netip.Addr) bool {
	if l == nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range l.Prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// IsTrusted reports whether a host:port peer address is an allowed proxy.
func (l *ProxyAllowlist) IsTrusted(remoteAddr string) bool {
	ap, err := netip.ParseAddrPort(remoteAddr)
	if err != nil {
		return false
	}
	return l.contains(ap.Addr())
}

// clientAddress is the address a request is accounted to. Behind a trusted
// proxy it is the right-most X-Forwarded-For hop that is not itself a
// trusted proxy.
func clientAddress(r *http.Request, proxies *ProxyAllowlist) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if !proxies.IsTrusted(r.RemoteAddr) {
		return host
	}
	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		addr, err := netip.ParseAddr(hop)
		if err != nil {
			return hop
		}
		if !proxies.contains(addr) {
			return addr.String()
		}
	}
	return host
}

func clientKey(r *http.Request) string {
	return clientAddress(r, nil)
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterPool hands out one token bucket per client and forgets idle ones.
type limiterPool struct {
	cfg RateLimitConfig

	mu      sync.Mutex
	buckets map[string]*bucket
	swept   time.Time
}

func newLimiterPool(cfg RateLimitConfig) *limiterPool {
	return &limiterPool{cfg: cfg, buckets: make(map[string]*bucket)}
}

// take spends one token for key. It returns whether the request may proceed,
// the whole tokens left, and how long until the next token is available.
func (p *limiterPool) take(key string, now time.Time) (bool, int, time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if now.Sub(p.swept) > sweepInterval {
		for k, b := range p.buckets {
			if now.Sub(b.lastSeen) > bucketIdleTTL {
				delete(p.buckets, k)
			}
		}
		p.swept = now
	}

	b := p.buckets[key]
	if b == nil {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(p.cfg.RequestsPerSecond), p.cfg.Burst)}
		p.buckets[key] = b
	}
	b.lastSeen = now

	allowed := b.limiter.AllowN(now, 1)
	tokens := b.limiter.TokensAt(now)
	var wait time.Duration
	if tokens < 1 {
		wait = time.Duration((1 - tokens) / p.cfg.RequestsPerSecond * float64(time.Second))
	}
	return allowed, max(int(math.Floor(tokens)), 0), wait
}

// RateLimitMiddleware limits each client address to cfg's token bucket.
// Every response carries X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset (unix seconds of the next token). Rejected requests get
// 429 TooManyRequests with Retry-After.
func RateLimitMiddleware(cfg RateLimitConfig, logger *slog.Logger) Middleware {
	if !cfg.Enabled() {
		return func(next http.Handler) http.Handler { return next }
	}
	if logger == nil {
		logger = slog.Default()
	}
	pool := newLimiterPool(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			allowed, remaining, wait := pool.take(clientAddress(r, cfg.TrustedProxies), now)

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.FormatFloat(cfg.RequestsPerSecond, 'f', -1, 64))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(now.Add(wait).Unix(), 10))

			if allowed {
				next.ServeHTTP(w, r)
				return
			}

			logger.WarnContext(r.Context(), "rate limit exceeded", appendRequestID(r.Context(), []any{
				"method", r.Method,
				"path", r.URL.Path,
				"client", clientAddress(r, cfg.TrustedProxies),
			})...)
			h.Set("Retry-After", strconv.Itoa(max(int(math.Ceil(wait.Seconds())), 1)))
			writeJSON(w, http.StatusTooManyRequests, apiError{
				ErrorCode: CodeTooManyRequests,
				Message:   "too many requests",
				RequestID: RequestIDFromContext(r.Context()),
			})
		})
	}
}
