package middlewarectx

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/render"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/billdesk/internal/http/response"
)

// ClientLimiters держит отдельный rate.Limiter на каждого клиента.
// Лимитеры клиентов, не приходивших дольше idle, удаляются. При idle <= 0
// лимитеры не удаляются.
type ClientLimiters struct {
	limit rate.Limit
	burst int
	idle  time.Duration
	now   func() time.Time

	mu        sync.Mutex
	clients   map[string]*clientLimiter
	lastSweep time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewClientLimiters создает набор лимитеров с общими limit и burst.
func NewClientLimiters(limit rate.Limit, burst int, idle time.Duration) *ClientLimiters {
	return &ClientLimiters{
		limit:   limit,
		burst:   burst,
		idle:    idle,
		now:     time.Now,
		clients: make(map[string]*clientLimiter),
	}
}

// Allow расходует один токен клиента key.
func (c *ClientLimiters) Allow(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.idle > 0 && now.Sub(c.lastSweep) >= c.idle {
		for k, cl := range c.clients {
			if now.Sub(cl.lastSeen) >= c.idle {
				delete(c.clients, k)
			}
		}
		c.lastSweep = now
	}

	cl, ok := c.clients[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(c.limit, c.burst)}
		c.clients[key] = cl
	}
	cl.lastSeen = now
	return cl.limiter.AllowN(now, 1)
}

// Len возвращает число отслеживаемых клиентов.
func (c *ClientLimiters) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clients)
}

// clientKey: адрес клиента без порта. За прокси RemoteAddr уже
// переписан middleware.RealIP.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimitMiddleware отклоняет запросы сверх лимита клиента с кодом 429.
func RateLimitMiddleware(log *slog.Logger, limiters *ClientLimiters) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := clientKey(r)
			if !limiters.Allow(client) {
				log.Warn("too many requests",
					slog.String("path", r.URL.Path),
					slog.String("client", client))
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, response.Error("rate_limited", "too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
