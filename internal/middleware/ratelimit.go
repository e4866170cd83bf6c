// AngelaMos | 2026
// ratelimit.go

package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/carterperez-dev/bibliotech/internal/core"
)

type RateLimitConfig struct {
	Limit   redis_rate.Limit
	KeyFunc func(*http.Request) string
}

type RateLimiter struct {
	buckets *buckets
	config  RateLimitConfig
}

// NewRateLimiter limits requests per key. Counters live in redis and move
// to process memory while redis is nil or failing, so a redis outage never
// blocks lending.
func NewRateLimiter(rdb *redis.Client, cfg RateLimitConfig) *RateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = KeyByIP
	}
	return &RateLimiter{buckets: newBuckets(rdb), config: cfg}
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := rl.buckets.allow(r.Context(), rl.config.KeyFunc(r), rl.config.Limit)
		enforce(w, r, next, res)
	})
}

type RoleLimit struct {
	RequestsPerMinute int
	BurstSize         int
}

// DefaultRoleLimits gives desk staff headroom for bursts of circulation
// records. Unknown or anonymous callers get the member limit.
var DefaultRoleLimits = map[string]RoleLimit{
	RoleMember:    {RequestsPerMinute: 60, BurstSize: 10},
	RoleLibrarian: {RequestsPerMinute: 300, BurstSize: 50},
	RoleAttendant: {RequestsPerMinute: 600, BurstSize: 100},
	RoleManager:   {RequestsPerMinute: 300, BurstSize: 50},
}

func RoleRateLimiter(
	rdb *redis.Client,
	limits map[string]RoleLimit,
) func(http.Handler) http.Handler {
	b := newBuckets(rdb)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := GetUserRole(r.Context())
			rl, ok := limits[role]
			if !ok {
				role, rl = RoleMember, limits[RoleMember]
			}

			limit := PerMinute(rl.RequestsPerMinute, rl.BurstSize)
			w.Header().Set("X-RateLimit-Role", role)
			enforce(w, r, next, b.allow(r.Context(), KeyByUser(r), limit))
		})
	}
}

func PerMinute(rate, burst int) redis_rate.Limit {
	return Per(rate, burst, time.Minute)
}

// Per builds a limit of rate requests per period. A non-positive period
// falls back to one minute.
func Per(rate, burst int, period time.Duration) redis_rate.Limit {
	if period <= 0 {
		period = time.Minute
	}
	return redis_rate.Limit{Rate: rate, Burst: burst, Period: period}
}

func enforce(
	w http.ResponseWriter,
	r *http.Request,
	next http.Handler,
	res *redis_rate.Result,
) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit.Rate))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset",
		strconv.FormatInt(time.Now().Add(res.ResetAfter).Unix(), 10))
	h.Set("RateLimit-Policy",
		fmt.Sprintf("%d;w=%d", res.Limit.Rate, int(res.Limit.Period.Seconds())))
	h.Set("RateLimit",
		fmt.Sprintf("%d;t=%d", res.Remaining, int(res.ResetAfter.Seconds())))

	if res.Allowed > 0 {
		next.ServeHTTP(w, r)
		return
	}

	retryAfter := max(int(res.RetryAfter.Seconds()), 1)
	h.Set("Retry-After", strconv.Itoa(retryAfter))
	core.JSONError(w, core.RateLimitedError(retryAfter))
}

// ClientIP is the caller address as seen by the last proxy hop.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		return strings.TrimSpace(hops[len(hops)-1])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}

func KeyByIP(r *http.Request) string {
	return "ratelimit:ip:" + ClientIP(r)
}

func KeyByUser(r *http.Request) string {
	if userID := GetUserID(r.Context()); userID != "" {
		return "ratelimit:user:" + userID
	}
	return KeyByIP(r)
}

// KeyByUserAndEndpoint keys on the caller and the route shape, with
// document, loan and reservation ids collapsed to {id}.
func KeyByUserAndEndpoint(r *http.Request) string {
	return KeyByUser(r) + ":endpoint:" + routeShape(r.URL.Path)
}

func routeShape(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, part := range parts {
		if isUUID(part) || isNumeric(part) {
			parts[i] = "{id}"
		}
	}
	return "/" + strings.Join(parts, "/")
}

func isUUID(s string) bool {
	return len(s) == 36 &&
		s[8] == '-' && s[13] == '-' && s[18] == '-' && s[23] == '-'
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// buckets counts requests in redis when it is reachable and in process
// memory otherwise. allow never fails.
type buckets struct {
	redis *redis_rate.Limiter
	local *localBuckets
}

func newBuckets(rdb *redis.Client) *buckets {
	b := &buckets{local: newLocalBuckets()}
	if rdb != nil {
		b.redis = redis_rate.NewLimiter(rdb)
	}
	return b
}

func (b *buckets) allow(
	ctx context.Context,
	key string,
	limit redis_rate.Limit,
) *redis_rate.Result {
	if b.redis != nil {
		res, err := b.redis.Allow(ctx, key, limit)
		if err == nil {
			return res
		}
		slog.WarnContext(ctx, "redis rate limit failed, counting locally",
			"key", key,
			"error", err,
		)
	}
	return b.local.allow(key, limit)
}

const (
	localSweepInterval = 5 * time.Minute
	localEntryTTL      = 10 * time.Minute
)

type localEntry struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

type localBuckets struct {
	entries sync.Map
}

func newLocalBuckets() *localBuckets {
	l := &localBuckets{}
	go l.sweep()
	return l
}

func (l *localBuckets) sweep() {
	ticker := time.NewTicker(localSweepInterval)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-localEntryTTL).Unix()
		l.entries.Range(func(key, value any) bool {
			if e, ok := value.(*localEntry); ok && e.lastSeen.Load() < cutoff {
				l.entries.Delete(key)
			}
			return true
		})
	}
}

func (l *localBuckets) allow(key string, limit redis_rate.Limit) *redis_rate.Result {
	perSec := float64(limit.Rate) / limit.Period.Seconds()
	interval := time.Duration(float64(time.Second) / perSec)

	v, ok := l.entries.Load(key)
	if !ok {
		v, _ = l.entries.LoadOrStore(key, &localEntry{
			limiter: rate.NewLimiter(rate.Limit(perSec), limit.Burst),
		})
	}
	e := v.(*localEntry) //nolint:forcetypeassert // only *localEntry is stored
	e.lastSeen.Store(time.Now().Unix())

	res := &redis_rate.Result{
		Limit:      limit,
		Remaining:  max(int(e.limiter.Tokens()), 0),
		RetryAfter: -1,
		ResetAfter: interval,
	}
	if e.limiter.Allow() {
		res.Allowed = 1
		res.Remaining = max(res.Remaining-1, 0)
	} else {
		res.RetryAfter = interval
	}
	return res
}
