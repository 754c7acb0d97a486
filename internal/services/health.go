package services

import (
	"context"
	"runtime"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/temcen/psyrec/internal/database"
)

// HealthCheck checks one dependency. A failing critical check makes the
// service unhealthy; any other failure only degrades it.
type HealthCheck struct {
	Name     string
	Critical bool
	Check    func(ctx context.Context) error
}

type HealthService struct {
	logger   *logrus.Logger
	checks   []HealthCheck
	poolStat func() *pgxpool.Stat
	details  map[string]func() map[string]interface{}
	timeout  time.Duration

	healthCheckStatus   *prometheus.GaugeVec
	lastHealthCheck     *prometheus.GaugeVec
	systemMetrics       *prometheus.GaugeVec
	dbConnectionMetrics *prometheus.GaugeVec
}

type HealthStatus struct {
	Status      string                 `json:"status"`
	Timestamp   time.Time              `json:"timestamp"`
	Services    map[string]string      `json:"services"`
	Critical    []string               `json:"critical_failures,omitempty"`
	NonCritical []string               `json:"non_critical_failures,omitempty"`
	Latency     time.Duration          `json:"latency,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// DatabaseHealthChecks returns checks for postgres (critical) and both redis
// instances.
func DatabaseHealthChecks(db *database.Database) []HealthCheck {
	if db == nil {
		return nil
	}

	var checks []HealthCheck
	if db.PG != nil {
		checks = append(checks, HealthCheck{Name: "postgresql", Critical: true, Check: db.PG.Ping})
	}
	if db.Redis != nil {
		if db.Redis.Hot != nil {
			checks = append(checks, HealthCheck{Name: "redis_hot", Check: func(ctx context.Context) error {
				return db.Redis.Hot.Ping(ctx).Err()
			}})
		}
		if db.Redis.Warm != nil {
			checks = append(checks, HealthCheck{Name: "redis_warm", Check: func(ctx context.Context) error {
				return db.Redis.Warm.Ping(ctx).Err()
			}})
		}
	}
	return checks
}

// NewHealthService creates a new health service. reg may be nil to skip
// metric registration.
func NewHealthService(logger *logrus.Logger, reg prometheus.Registerer, checks ...HealthCheck) *HealthService {
	hs := &HealthService{
		logger:  logger,
		checks:  checks,
		timeout: 5 * time.Second,
	}

	hs.healthCheckStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "psyrec_health_check_status",
		Help: "Health check status (1 = healthy, 0 = unhealthy)",
	}, []string{"service"})

	hs.lastHealthCheck = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "psyrec_health_check_timestamp",
		Help: "Timestamp of last health check",
	}, []string{"service"})

	hs.systemMetrics = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "psyrec_system_info",
		Help: "System information metrics",
	}, []string{"metric_type"})

	hs.dbConnectionMetrics = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "psyrec_database_connection_pool",
		Help: "Database connection pool state",
	}, []string{"database", "state"})

	if reg != nil {
		hs.healthCheckStatus = register(reg, logger, hs.healthCheckStatus)
		hs.lastHealthCheck = register(reg, logger, hs.lastHealthCheck)
		hs.systemMetrics = register(reg, logger, hs.systemMetrics)
		hs.dbConnectionMetrics = register(reg, logger, hs.dbConnectionMetrics)
	}

	return hs
}

// WithPoolStats enables connection pool metrics.
func (s *HealthService) WithPoolStats(stat func() *pgxpool.Stat) *HealthService {
	s.poolStat = stat
	return s
}

// WithDetails adds the output of fn under name to every health response.
func (s *HealthService) WithDetails(name string, fn func() map[string]interface{}) *HealthService {
	if s.details == nil {
		s.details = make(map[string]func() map[string]interface{})
	}
	s.details[name] = fn
	return s
}

// Start runs the background metric collectors until ctx is done
func (s *HealthService) Start(ctx context.Context) {
	go s.collectSystemMetrics(ctx)
	if s.poolStat != nil {
		go s.collectDatabaseMetrics(ctx)
	}
}

func (s *HealthService) CheckHealth(ctx context.Context) *HealthStatus {
	start := time.Now()
	status := &HealthStatus{
		Timestamp: start,
		Services:  make(map[string]string),
	}

	allCriticalHealthy := true
	for _, check := range s.checks {
		checkCtx, cancel := context.WithTimeout(ctx, s.timeout)
		err := check.Check(checkCtx)
		cancel()

		if err == nil {
			status.Services[check.Name] = "healthy"
			s.UpdateHealthMetrics(check.Name, true)
			continue
		}

		status.Services[check.Name] = "unhealthy"
		s.UpdateHealthMetrics(check.Name, false)
		if check.Critical {
			allCriticalHealthy = false
			status.Critical = append(status.Critical, check.Name)
			s.logger.WithError(err).Errorf("Critical service %s is unhealthy", check.Name)
		} else {
			status.NonCritical = append(status.NonCritical, check.Name)
			s.logger.WithError(err).Warnf("Non-critical service %s is unhealthy", check.Name)
		}
	}
	sort.Strings(status.Critical)
	sort.Strings(status.NonCritical)

	switch {
	case !allCriticalHealthy:
		status.Status = "unhealthy"
	case len(status.NonCritical) > 0:
		status.Status = "degraded"
	default:
		status.Status = "healthy"
	}
	if len(s.details) > 0 {
		status.Details = make(map[string]interface{}, len(s.details))
		for name, fn := range s.details {
			status.Details[name] = fn()
		}
	}
	status.Latency = time.Since(start)

	return status
}

func (s *HealthService) collectSystemMetrics(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	var memStats runtime.MemStats

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		runtime.ReadMemStats(&memStats)

		s.systemMetrics.WithLabelValues("memory_alloc_bytes").Set(float64(memStats.Alloc))
		s.systemMetrics.WithLabelValues("memory_sys_bytes").Set(float64(memStats.Sys))
		s.systemMetrics.WithLabelValues("goroutines_count").Set(float64(runtime.NumGoroutine()))
		s.systemMetrics.WithLabelValues("gc_runs_total").Set(float64(memStats.NumGC))
		s.systemMetrics.WithLabelValues("gc_pause_ns").Set(float64(memStats.PauseNs[(memStats.NumGC+255)%256]))
	}
}

func (s *HealthService) collectDatabaseMetrics(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		stats := s.poolStat()
		if stats == nil {
			continue
		}

		s.dbConnectionMetrics.WithLabelValues("postgresql", "acquired_conns").Set(float64(stats.AcquiredConns()))
		s.dbConnectionMetrics.WithLabelValues("postgresql", "idle_conns").Set(float64(stats.IdleConns()))
		s.dbConnectionMetrics.WithLabelValues("postgresql", "max_conns").Set(float64(stats.MaxConns()))
		s.dbConnectionMetrics.WithLabelValues("postgresql", "total_conns").Set(float64(stats.TotalConns()))

		if stats.MaxConns() > 0 {
			usage := float64(stats.AcquiredConns()) / float64(stats.MaxConns()) * 100
			s.dbConnectionMetrics.WithLabelValues("postgresql", "usage_percent").Set(usage)
		}
	}
}

// UpdateHealthMetrics updates health check metrics
func (s *HealthService) UpdateHealthMetrics(serviceName string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1
	}
	s.healthCheckStatus.WithLabelValues(serviceName).Set(value)
	s.lastHealthCheck.WithLabelValues(serviceName).Set(float64(time.Now().Unix()))
}
