package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	taskmanager "github.com/Swind/go-task-manager"
)

func newRouter(reg *prom.Registry, tm *taskmanager.TaskManager) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		handleHealthz(w, tm)
	})
	return r
}

type healthResponse struct {
	Status  string `json:"status"`
	Name    string `json:"name"`
	Workers int    `json:"workers"`
	Queued  int    `json:"queued"`
	Active  int    `json:"active"`
}

func handleHealthz(w http.ResponseWriter, tm *taskmanager.TaskManager) {
	stats := tm.Stats()
	resp := healthResponse{
		Status:  "ok",
		Name:    stats.Name,
		Workers: stats.Workers,
		Queued:  stats.Queued.Total(),
		Active:  stats.Active,
	}
	code := http.StatusOK
	if !stats.Running {
		resp.Status = "stopped"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
