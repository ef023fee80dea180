package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	taskmanager "github.com/Swind/go-task-manager"
	"github.com/Swind/go-task-manager/core"
	tmprom "github.com/Swind/go-task-manager/observability/prometheus"
)

func TestRouter_Healthz(t *testing.T) {
	tm := newTestManager(t, 2)
	router := newRouter(prom.NewRegistry(), tm)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Workers)
}

func TestRouter_HealthzStopped(t *testing.T) {
	tm := taskmanager.New(taskmanager.WithLogger(core.NewNoOpLogger()))
	router := newRouter(prom.NewRegistry(), tm)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// TestRouter_Metrics verifies /metrics exposes the exporter's collectors
// Given: a manager wired to an exporter on a private registry
// When: a batch runs and /metrics is scraped
// Then: the duration histogram for the manager is present
func TestRouter_Metrics(t *testing.T) {
	// Arrange
	reg := prom.NewRegistry()
	exporter, err := tmprom.NewMetricsExporter("bench", reg, tmprom.ExporterOptions{})
	require.NoError(t, err)
	tm := taskmanager.New(
		taskmanager.WithName("scraped"),
		taskmanager.WithMetrics(exporter),
		taskmanager.WithLogger(core.NewNoOpLogger()),
	)
	require.NoError(t, tm.Start(1))
	defer tm.Shutdown()
	require.NoError(t, tm.Run(taskmanager.PriorityLow, taskmanager.NewTask(taskmanager.PriorityLow, func(tc *taskmanager.TaskContext) error {
		return nil
	})))

	// Act
	rec := httptest.NewRecorder()
	newRouter(reg, tm).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	// Assert
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `bench_task_duration_seconds_count{manager="scraped",priority="low"} 1`), body)
}
