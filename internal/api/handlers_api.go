package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/lox/floodsim/internal/evaluation"
	"github.com/lox/floodsim/internal/policy"
	"github.com/lox/floodsim/internal/reservoir"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func parseDateParam(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}

func parseLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return defaultLimit
	}
	return min(n, maxLimit)
}

func parseRunID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid run id %q", r.PathValue("id"))
	}
	return id, nil
}

func (s *Server) handleAPIDays(w http.ResponseWriter, r *http.Request) {
	start, err := parseDateParam(r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	end, err := parseDateParam(r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	days, err := s.store.GetDays(start, end)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	out := make([]DayView, len(days))
	for i, d := range days {
		out[i] = newDayView(d)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAPIDemand(w http.ResponseWriter, r *http.Request) {
	demand, err := s.store.GetDemand()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]*float64, len(demand))
	for i, v := range demand {
		out[i] = optional(v)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAPIImports(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.GetRecentImports(parseLimit(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]ImportView, len(runs))
	for i, run := range runs {
		out[i] = newImportView(run)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAPIRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListEvaluationRuns(parseLimit(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]RunView, len(runs))
	for i, run := range runs {
		out[i] = newRunView(run)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAPIRun(w http.ResponseWriter, r *http.Request) {
	id, err := parseRunID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	run, err := s.store.GetEvaluationRun(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("run %d not found", id))
		return
	}
	writeJSON(w, http.StatusOK, newRunView(*run))
}

func (s *Server) handleAPITrace(w http.ResponseWriter, r *http.Request) {
	id, err := parseRunID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	run, err := s.store.GetEvaluationRun(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("run %d not found", id))
		return
	}

	rows, err := s.store.GetTrace(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]TraceRowView, len(rows))
	for i, row := range rows {
		out[i] = newTraceRowView(row)
	}
	writeJSON(w, http.StatusOK, out)
}

// requestPolicy resolves the policy named by an evaluate request.
func requestPolicy(req *EvaluateRequest) (evaluation.Named, error) {
	switch {
	case len(req.Tree) > 0 && req.Rule != "":
		return evaluation.Named{}, errors.New("set either tree or rule, not both")
	case len(req.Tree) > 0:
		tree, err := policy.DecodeTree(bytes.NewReader(req.Tree))
		if err != nil {
			return evaluation.Named{}, err
		}
		name := req.Name
		if name == "" {
			name = tree.Name
		}
		if name == "" {
			name = "tree"
		}
		return evaluation.Named{Name: name, Policy: tree}, nil
	case req.Rule != "":
		rule, err := policy.ParseRule(req.Rule)
		if err != nil {
			return evaluation.Named{}, err
		}
		name := req.Name
		if name == "" {
			name = rule.String()
		}
		return evaluation.Named{Name: name, Policy: policy.Constant(rule)}, nil
	}
	return evaluation.Named{}, errors.New("missing tree or rule")
}

func (s *Server) handleAPIEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	named, err := requestPolicy(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	mode := reservoir.ModeOptimization
	if req.Mode != "" {
		if mode, err = reservoir.ParseMode(req.Mode); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	start, err := parseDateParam(req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	end, err := parseDateParam(req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	out, err := s.eval.Run(evaluation.Request{
		Named:         named,
		Mode:          mode,
		Start:         start,
		End:           end,
		FitHistorical: req.FitHistorical,
	})
	switch {
	case errors.Is(err, reservoir.ErrDataAlignment), errors.Is(err, reservoir.ErrInvalidPolicyLabel):
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := EvaluateResponse{RunID: out.RunID, Score: optional(out.Score)}
	if tr := out.Trace; tr != nil {
		resp.Days = tr.Len()
		resp.SpillDays = tr.SpillDays
		resp.FloodDays = tr.FloodDays
		resp.RuleCounts = make(map[string]int)
		for rule, n := range tr.RuleCounts() {
			if rule != policy.RuleNone {
				resp.RuleCounts[rule.String()] = n
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
