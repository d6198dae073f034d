package health

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eleven-am/vision-backend/internal/audit"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
	"gorm.io/gorm"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	StatusDisabled  Status = "disabled"
)

type ComponentStatus struct {
	Status    Status `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type RuntimeStats struct {
	Goroutines         int    `json:"goroutines"`
	MemoryAllocMB      uint64 `json:"memory_alloc_mb"`
	MemoryTotalAllocMB uint64 `json:"memory_total_alloc_mb"`
	MemorySysMB        uint64 `json:"memory_sys_mb"`
	NumGC              uint32 `json:"num_gc"`
}

type HostStats struct {
	CPUPercent        float64 `json:"cpu_percent"`
	MemoryUsedPercent float64 `json:"memory_used_percent"`
	ProcessRSSMB      uint64  `json:"process_rss_mb"`
	ScratchFreeMB     uint64  `json:"scratch_free_mb"`
	ScratchUsedPct    float64 `json:"scratch_used_percent"`
}

type RequestStats struct {
	TotalRequests  uint64 `json:"total_requests"`
	ActiveRequests int64  `json:"active_requests"`
}

type Stats struct {
	Requests RequestStats         `json:"requests"`
	Runtime  RuntimeStats         `json:"runtime"`
	Host     *HostStats           `json:"host,omitempty"`
	Outcomes []audit.OutcomeCount `json:"outcomes,omitempty"`
}

type HealthResponse struct {
	Status        Status                     `json:"status"`
	Timestamp     time.Time                  `json:"timestamp"`
	Version       string                     `json:"version"`
	UptimeSeconds int64                      `json:"uptime_seconds"`
	Components    map[string]ComponentStatus `json:"components"`
}

type StatsResponse struct {
	Timestamp     time.Time `json:"timestamp"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	Stats         Stats     `json:"stats"`
}

// ModelProbe reports whether the configured model provider is reachable.
type ModelProbe interface {
	IsAvailable(ctx context.Context) bool
}

type OutcomeSummarizer interface {
	Summary(ctx context.Context, since time.Time) ([]audit.OutcomeCount, error)
}

type Config struct {
	Version     string
	FFmpegPath  string
	FFprobePath string
	ScratchDir  string
}

type Handler struct {
	db        *gorm.DB
	redis     *redis.Client
	model     ModelProbe
	outcomes  OutcomeSummarizer
	cfg       Config
	startTime time.Time

	totalRequests  uint64
	activeRequests int64
}

func NewHandler(cfg Config, db *gorm.DB, redisClient *redis.Client, model ModelProbe, outcomes OutcomeSummarizer) *Handler {
	if cfg.ScratchDir == "" {
		cfg.ScratchDir = os.TempDir()
	}
	return &Handler{
		db:        db,
		redis:     redisClient,
		model:     model,
		outcomes:  outcomes,
		cfg:       cfg,
		startTime: time.Now(),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Liveness)
	e.GET("/health/ready", h.Readiness)
	e.GET("/health/stats", h.Stats)
}

func (h *Handler) IncrementRequests() {
	atomic.AddUint64(&h.totalRequests, 1)
}

func (h *Handler) IncrementActive() {
	atomic.AddInt64(&h.activeRequests, 1)
}

func (h *Handler) DecrementActive() {
	atomic.AddInt64(&h.activeRequests, -1)
}

// Middleware counts every request passing through the server.
func (h *Handler) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h.IncrementRequests()
			h.IncrementActive()
			defer h.DecrementActive()
			return next(c)
		}
	}
}

// Liveness godoc
// @Summary      Liveness probe
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Readiness godoc
// @Summary      Readiness probe
// @Description  Checks ffmpeg, the model provider, Redis and the audit database
// @Tags         health
// @Produce      json
// @Success      200  {object}  HealthResponse
// @Failure      503  {object}  HealthResponse
// @Router       /health/ready [get]
func (h *Handler) Readiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	components := make(map[string]ComponentStatus)
	var mu sync.Mutex
	var wg sync.WaitGroup

	checks := []struct {
		name  string
		check func(context.Context) ComponentStatus
	}{
		{"ffmpeg", h.checkBinary(h.cfg.FFmpegPath, "ffmpeg")},
		{"ffprobe", h.checkBinary(h.cfg.FFprobePath, "ffprobe")},
		{"model", h.checkModel},
		{"redis", h.checkRedis},
		{"database", h.checkDatabase},
	}

	wg.Add(len(checks))
	for _, check := range checks {
		go func(name string, fn func(context.Context) ComponentStatus) {
			defer wg.Done()
			status := fn(ctx)
			mu.Lock()
			components[name] = status
			mu.Unlock()
		}(check.name, check.check)
	}
	wg.Wait()

	overall := computeOverallStatus(components)
	resp := HealthResponse{
		Status:        overall,
		Timestamp:     time.Now().UTC(),
		Version:       h.cfg.Version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Components:    components,
	}

	statusCode := http.StatusOK
	if overall == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	return c.JSON(statusCode, resp)
}

// Stats godoc
// @Summary      Service statistics
// @Description  Request counters, runtime and host usage, and analysis outcomes over the last 24 hours
// @Tags         health
// @Produce      json
// @Success      200  {object}  StatsResponse
// @Router       /health/stats [get]
func (h *Handler) Stats(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	stats := Stats{
		Requests: RequestStats{
			TotalRequests:  atomic.LoadUint64(&h.totalRequests),
			ActiveRequests: atomic.LoadInt64(&h.activeRequests),
		},
		Runtime: RuntimeStats{
			Goroutines:         runtime.NumGoroutine(),
			MemoryAllocMB:      memStats.Alloc / 1024 / 1024,
			MemoryTotalAllocMB: memStats.TotalAlloc / 1024 / 1024,
			MemorySysMB:        memStats.Sys / 1024 / 1024,
			NumGC:              memStats.NumGC,
		},
		Host: h.hostStats(ctx),
	}

	if h.outcomes != nil {
		counts, err := h.outcomes.Summary(ctx, time.Now().Add(-24*time.Hour))
		if err == nil {
			stats.Outcomes = counts
		}
	}

	return c.JSON(http.StatusOK, StatsResponse{
		Timestamp:     time.Now().UTC(),
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Stats:         stats,
	})
}

func (h *Handler) hostStats(ctx context.Context) *HostStats {
	stats := &HostStats{}
	ok := false

	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		stats.CPUPercent = percents[0]
		ok = true
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats.MemoryUsedPercent = vm.UsedPercent
		ok = true
	}
	if proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if info, err := proc.MemoryInfoWithContext(ctx); err == nil {
			stats.ProcessRSSMB = info.RSS / 1024 / 1024
			ok = true
		}
	}
	if usage, err := disk.UsageWithContext(ctx, h.cfg.ScratchDir); err == nil {
		stats.ScratchFreeMB = usage.Free / 1024 / 1024
		stats.ScratchUsedPct = usage.UsedPercent
		ok = true
	}

	if !ok {
		return nil
	}
	return stats
}

func (h *Handler) checkBinary(path, fallback string) func(context.Context) ComponentStatus {
	if path == "" {
		path = fallback
	}
	return func(context.Context) ComponentStatus {
		start := time.Now()
		if _, err := exec.LookPath(path); err != nil {
			return ComponentStatus{
				Status:    StatusUnhealthy,
				LatencyMs: time.Since(start).Milliseconds(),
				Error:     "not found in PATH",
			}
		}
		return ComponentStatus{
			Status:    StatusHealthy,
			LatencyMs: time.Since(start).Milliseconds(),
		}
	}
}

func (h *Handler) checkModel(ctx context.Context) ComponentStatus {
	start := time.Now()
	if h.model == nil {
		return ComponentStatus{Status: StatusDisabled}
	}
	if !h.model.IsAvailable(ctx) {
		return ComponentStatus{
			Status:    StatusDegraded,
			LatencyMs: time.Since(start).Milliseconds(),
			Error:     "provider unreachable",
		}
	}
	return ComponentStatus{
		Status:    StatusHealthy,
		LatencyMs: time.Since(start).Milliseconds(),
	}
}

func (h *Handler) checkDatabase(ctx context.Context) ComponentStatus {
	start := time.Now()
	if h.db == nil {
		return ComponentStatus{Status: StatusDisabled}
	}

	sqlDB, err := h.db.DB()
	if err != nil {
		return ComponentStatus{
			Status:    StatusDegraded,
			LatencyMs: time.Since(start).Milliseconds(),
			Error:     "failed to get underlying db",
		}
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return ComponentStatus{
			Status:    StatusDegraded,
			LatencyMs: time.Since(start).Milliseconds(),
			Error:     "ping failed",
		}
	}

	return ComponentStatus{
		Status:    evaluateDBStats(sqlDB.Stats()),
		LatencyMs: time.Since(start).Milliseconds(),
	}
}

func evaluateDBStats(stats sql.DBStats) Status {
	if stats.OpenConnections >= stats.MaxOpenConnections && stats.MaxOpenConnections > 0 {
		return StatusDegraded
	}
	return StatusHealthy
}

func (h *Handler) checkRedis(ctx context.Context) ComponentStatus {
	start := time.Now()
	if h.redis == nil {
		return ComponentStatus{Status: StatusDisabled}
	}

	if err := h.redis.Ping(ctx).Err(); err != nil {
		return ComponentStatus{
			Status:    StatusDegraded,
			LatencyMs: time.Since(start).Milliseconds(),
			Error:     "ping failed",
		}
	}

	return ComponentStatus{
		Status:    StatusHealthy,
		LatencyMs: time.Since(start).Milliseconds(),
	}
}

// Missing ffmpeg or ffprobe makes the service unhealthy. Any other failing
// component only degrades it.
func computeOverallStatus(components map[string]ComponentStatus) Status {
	criticalComponents := []string{"ffmpeg", "ffprobe"}

	for _, name := range criticalComponents {
		if status, ok := components[name]; ok && status.Status == StatusUnhealthy {
			return StatusUnhealthy
		}
	}

	for _, status := range components {
		if status.Status == StatusUnhealthy || status.Status == StatusDegraded {
			return StatusDegraded
		}
	}

	return StatusHealthy
}
