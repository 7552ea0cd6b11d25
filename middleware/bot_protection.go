package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mrpayong/terual-accounting/internal/observability"
	"github.com/mrpayong/terual-accounting/utils"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// BotProtection rejects known automated user agents and rate limits each
// client IP with its own token bucket
type BotProtection struct {
	blocked []string
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	clock   func() time.Time
	metrics *observability.Metrics
	logger  *zap.Logger

	mu      sync.Mutex
	clients map[string]*client
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewBotProtection creates the middleware. blockedAgents are matched as
// case-insensitive substrings of User-Agent; rps <= 0 disables rate limiting.
func NewBotProtection(blockedAgents []string, rps float64, burst int, metrics *observability.Metrics, logger *zap.Logger) *BotProtection {
	blocked := make([]string, 0, len(blockedAgents))
	for _, agent := range blockedAgents {
		if a := strings.ToLower(strings.TrimSpace(agent)); a != "" {
			blocked = append(blocked, a)
		}
	}
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &BotProtection{
		blocked: blocked,
		limit:   limit,
		burst:   burst,
		idleTTL: 10 * time.Minute,
		clock:   time.Now,
		metrics: metrics,
		logger:  logger,
		clients: make(map[string]*client),
	}
}

// Middleware returns 403 for blocked agents and 429 when the client IP exceeds its rate
func (b *BotProtection) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reason := b.blockedAgent(r.UserAgent()); reason != "" {
			b.metrics.RecordBotRejection("user_agent")
			b.logger.Info("bot request rejected",
				zap.String("request_id", GetRequestIDFromContext(r.Context())),
				zap.String("user_agent", r.UserAgent()),
				zap.String("matched", reason))
			_ = utils.WriteForbidden(w, "Automated clients are not allowed")
			return
		}

		if !b.allow(clientIP(r)) {
			b.metrics.RecordBotRejection("rate_limit")
			w.Header().Set("Retry-After", "1")
			_ = utils.WriteTooManyRequests(w, "Too many requests", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (b *BotProtection) blockedAgent(userAgent string) string {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	if ua == "" {
		return "empty"
	}
	for _, agent := range b.blocked {
		if strings.Contains(ua, agent) {
			return agent
		}
	}
	return ""
}

func (b *BotProtection) allow(ip string) bool {
	if b.limit == rate.Inf {
		return true
	}
	now := b.clock()

	b.mu.Lock()
	c, ok := b.clients[ip]
	if !ok {
		c = &client{limiter: rate.NewLimiter(b.limit, b.burst)}
		b.clients[ip] = c
	}
	c.lastSeen = now
	b.mu.Unlock()

	return c.limiter.AllowN(now, 1)
}

// Sweep drops buckets of clients idle longer than the idle TTL
func (b *BotProtection) Sweep() int {
	cutoff := b.clock().Add(-b.idleTTL)

	b.mu.Lock()
	defer b.mu.Unlock()
	removed := 0
	for ip, c := range b.clients {
		if c.lastSeen.Before(cutoff) {
			delete(b.clients, ip)
			removed++
		}
	}
	return removed
}

// clientIP returns the request's remote host. chi's RealIP middleware has
// already replaced RemoteAddr with the forwarded address when present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
