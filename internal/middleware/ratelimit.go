package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// luaRateLimit скользящее окно на ZSET.
// KEYS[1] ключ, ARGV: now, windowStart, windowSec, member, limit.
// Возвращает число запросов в окне или -1 при превышении лимита.
const luaRateLimit = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local windowStart = tonumber(ARGV[2])
local windowSec = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '0', windowStart)

local count = redis.call('ZCARD', key)

if count < tonumber(ARGV[5]) then
  redis.call('ZADD', key, now, member)
  redis.call('EXPIRE', key, windowSec)
  return count + 1
else
  return -1
end
`

// Evaler выполняет Lua-скрипты Redis. Реализуется *redis.Client.
type Evaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// RateLimiter ограничивает частоту запросов с одного клиента.
type RateLimiter struct {
	rdb     Evaler
	scope   string
	limit   int
	window  time.Duration
	logger  *zap.Logger
	limited prometheus.Counter
}

// NewRateLimiter создаёт ограничитель. limited может быть nil.
func NewRateLimiter(rdb Evaler, scope string, limit int, window time.Duration, logger *zap.Logger, limited prometheus.Counter) *RateLimiter {
	return &RateLimiter{
		rdb:     rdb,
		scope:   scope,
		limit:   limit,
		window:  window,
		logger:  logger,
		limited: limited,
	}
}

// Middleware отвечает 429, если клиент превысил лимит. При недоступности Redis запрос пропускается.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l == nil || l.rdb == nil || l.limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		var key string
		if userID, ok := GetUserIDFromContext(r.Context()); ok {
			key = fmt.Sprintf("rate_limit:%s:user:%s", l.scope, userID)
		} else {
			key = fmt.Sprintf("rate_limit:%s:ip:%s", l.scope, clientIP(r))
		}

		now := time.Now()
		windowSec := int64(l.window.Seconds())
		if windowSec <= 0 {
			windowSec = 1
		}
		windowStart := now.Unix() - windowSec
		member := fmt.Sprintf("%d-%d", now.Unix(), now.UnixNano())

		res, err := l.rdb.Eval(r.Context(), luaRateLimit, []string{key},
			now.Unix(), windowStart, windowSec, member, l.limit).Int()
		if err != nil {
			l.logger.Warn("rate limit check failed", zap.Error(err), zap.String("key", key))
			next.ServeHTTP(w, r)
			return
		}

		if res < 0 {
			if l.limited != nil {
				l.limited.Inc()
			}
			w.Header().Set("Retry-After", fmt.Sprintf("%d", windowSec))
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP берёт адрес только из RemoteAddr. За доверенным прокси его подставляет chi middleware.RealIP.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
