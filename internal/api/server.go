package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lox/floodsim/internal/evaluation"
	"github.com/lox/floodsim/internal/ingest"
	"github.com/lox/floodsim/internal/store"
)

type Server struct {
	store *store.Store
	eval  *evaluation.Service
	port  string
}

func NewServer(store *store.Store, eval *evaluation.Service, port string) *Server {
	return &Server{
		store: store,
		eval:  eval,
		port:  port,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/days", s.handleAPIDays)
	mux.HandleFunc("GET /api/demand", s.handleAPIDemand)
	mux.HandleFunc("GET /api/imports", s.handleAPIImports)
	mux.HandleFunc("GET /api/runs", s.handleAPIRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleAPIRun)
	mux.HandleFunc("GET /api/runs/{id}/trace", s.handleAPITrace)
	mux.HandleFunc("POST /api/evaluate", s.handleAPIEvaluate)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("server: listening on :%s", s.port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

type HealthStatus struct {
	Status     string   `json:"status"`
	Days       int      `json:"days"`
	FirstDay   string   `json:"first_day,omitempty"`
	LastDay    string   `json:"last_day,omitempty"`
	DemandDays int      `json:"demand_days"`
	Errors     []string `json:"errors,omitempty"`
}

// handleHealth reports "degraded" until both the record and a full demand
// table have been imported.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	first, last, count, err := s.store.GetDayRange()
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
		return
	}

	health := HealthStatus{Status: "ok", Days: count}
	if count > 0 {
		health.FirstDay = first.Format(time.DateOnly)
		health.LastDay = last.Format(time.DateOnly)
	}

	demand, err := s.store.GetDemand()
	if err != nil {
		health.Errors = append(health.Errors, "demand: "+err.Error())
	}
	health.DemandDays = len(demand)

	switch {
	case len(health.Errors) > 0:
		health.Status = "error"
	case count == 0 || len(demand) < ingest.MinDemandDays:
		health.Status = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	if health.Status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(health); err != nil {
		log.Printf("health: write response: %v", err)
	}
}
