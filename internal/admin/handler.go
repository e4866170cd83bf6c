// AngelaMos | 2026
// handler.go

package admin

import (
	"context"
	"database/sql"
	"net/http"
	"runtime"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/bibliotech/internal/core"
	"github.com/carterperez-dev/bibliotech/internal/store"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type DatabaseBackend interface {
	Pinger
	Stats() sql.DBStats
}

type RedisBackend interface {
	Pinger
	PoolStats() *redis.PoolStats
}

// HandlerConfig names the services behind the manager dashboard. Any of
// them may be left nil; its section is then reported as unconfigured.
type HandlerConfig struct {
	Database DatabaseBackend
	Redis    RedisBackend
	Storage  Pinger
	Store    store.Store
}

type Handler struct {
	cfg HandlerConfig
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{cfg: cfg}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, managerOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(managerOnly)

		r.Get("/report", h.GetReport)
		r.Get("/stats", h.GetSystemStats)
		r.Get("/stats/runtime", h.GetRuntimeStats)
	})
}

// GetSystemStats reports each backing service with its pool figures next
// to the live circulation counts.
func (h *Handler) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp := SystemStatsResponse{
		Backends: []BackendStatus{
			h.databaseStatus(ctx),
			h.redisStatus(ctx),
			backendStatus(ctx, "storage", h.cfg.Storage),
		},
		Runtime: readRuntime(),
	}

	if h.cfg.Store != nil {
		circ, err := circulation(ctx, h.cfg.Store.Repos())
		if err != nil {
			core.InternalServerError(w, err)
			return
		}
		resp.Circulation = circ
	}

	core.OK(w, resp)
}

func (h *Handler) GetRuntimeStats(w http.ResponseWriter, _ *http.Request) {
	core.OK(w, readRuntime())
}

func (h *Handler) databaseStatus(ctx context.Context) BackendStatus {
	if h.cfg.Database == nil {
		return backendStatus(ctx, "database", nil)
	}

	status := backendStatus(ctx, "database", h.cfg.Database)
	s := h.cfg.Database.Stats()
	status.Database = &DBPoolStats{
		MaxOpen:      s.MaxOpenConnections,
		Open:         s.OpenConnections,
		InUse:        s.InUse,
		Idle:         s.Idle,
		WaitCount:    s.WaitCount,
		WaitDuration: s.WaitDuration.String(),
	}
	return status
}

func (h *Handler) redisStatus(ctx context.Context) BackendStatus {
	if h.cfg.Redis == nil {
		return backendStatus(ctx, "redis", nil)
	}

	status := backendStatus(ctx, "redis", h.cfg.Redis)
	s := h.cfg.Redis.PoolStats()
	status.Redis = &RedisPoolStats{
		Hits:       s.Hits,
		Misses:     s.Misses,
		Timeouts:   s.Timeouts,
		TotalConns: s.TotalConns,
		IdleConns:  s.IdleConns,
	}
	return status
}

func backendStatus(ctx context.Context, name string, p Pinger) BackendStatus {
	status := BackendStatus{Name: name}
	switch {
	case p == nil:
		status.Message = "not configured"
	case p.Ping(ctx) != nil:
		status.Message = "ping failed"
	default:
		status.Healthy = true
	}
	return status
}

func circulation(ctx context.Context, repos store.Repos) (*CirculationStats, error) {
	loans, err := repos.Loans.CountActive(ctx)
	if err != nil {
		return nil, err
	}
	reservations, err := repos.Reservations.CountActive(ctx)
	if err != nil {
		return nil, err
	}
	return &CirculationStats{
		ActiveLoans:        loans,
		ActiveReservations: reservations,
	}, nil
}

func readRuntime() RuntimeStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return RuntimeStats{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     mem.Alloc,
		NumGC:        mem.NumGC,
	}
}

type SystemStatsResponse struct {
	Backends    []BackendStatus   `json:"backends"`
	Circulation *CirculationStats `json:"circulation,omitempty"`
	Runtime     RuntimeStats      `json:"runtime"`
}

type BackendStatus struct {
	Name     string          `json:"name"`
	Healthy  bool            `json:"healthy"`
	Message  string          `json:"message,omitempty"`
	Database *DBPoolStats    `json:"database_pool,omitempty"`
	Redis    *RedisPoolStats `json:"redis_pool,omitempty"`
}

type CirculationStats struct {
	ActiveLoans        int `json:"active_loans"`
	ActiveReservations int `json:"active_reservations"`
}

type DBPoolStats struct {
	MaxOpen      int    `json:"max_open"`
	Open         int    `json:"open"`
	InUse        int    `json:"in_use"`
	Idle         int    `json:"idle"`
	WaitCount    int64  `json:"wait_count"`
	WaitDuration string `json:"wait_duration"`
}

type RedisPoolStats struct {
	Hits       uint32 `json:"hits"`
	Misses     uint32 `json:"misses"`
	Timeouts   uint32 `json:"timeouts"`
	TotalConns uint32 `json:"total_conns"`
	IdleConns  uint32 `json:"idle_conns"`
}

type RuntimeStats struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	NumCPU       int    `json:"num_cpu"`
	MemAlloc     uint64 `json:"mem_alloc_bytes"`
	NumGC        uint32 `json:"num_gc"`
}
