package services

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestHealthService_CheckHealth(t *testing.T) {
	ok := func(context.Context) error { return nil }
	fail := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name        string
		checks      []HealthCheck
		status      string
		critical    []string
		nonCritical []string
	}{
		{
			name:   "all healthy",
			checks: []HealthCheck{{Name: "postgresql", Critical: true, Check: ok}, {Name: "redis_warm", Check: ok}},
			status: "healthy",
		},
		{
			name:        "cache down degrades",
			checks:      []HealthCheck{{Name: "postgresql", Critical: true, Check: ok}, {Name: "redis_warm", Check: fail}},
			status:      "degraded",
			nonCritical: []string{"redis_warm"},
		},
		{
			name:     "database down",
			checks:   []HealthCheck{{Name: "postgresql", Critical: true, Check: fail}, {Name: "redis_warm", Check: ok}},
			status:   "unhealthy",
			critical: []string{"postgresql"},
		},
		{
			name:   "no checks",
			status: "healthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hs := NewHealthService(newTestLogger(), prometheus.NewRegistry(), tt.checks...)

			status := hs.CheckHealth(context.Background())
			assert.Equal(t, tt.status, status.Status)
			assert.Equal(t, tt.critical, status.Critical)
			assert.Equal(t, tt.nonCritical, status.NonCritical)
			assert.Len(t, status.Services, len(tt.checks))
		})
	}
}

func TestDatabaseHealthChecks_Nil(t *testing.T) {
	assert.Empty(t, DatabaseHealthChecks(nil))
}

func TestHealthService_Details(t *testing.T) {
	hs := NewHealthService(newTestLogger(), nil).
		WithDetails("evidence_consumer", func() map[string]interface{} {
			return map[string]interface{}{"consumer_lag": int64(3)}
		})

	status := hs.CheckHealth(context.Background())
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, map[string]interface{}{"consumer_lag": int64(3)}, status.Details["evidence_consumer"])
}
