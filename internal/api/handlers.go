package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"controltower/internal/analytics"
	"controltower/internal/opt"
	"controltower/internal/store"
)

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

// ReadyHandler reports ready once a snapshot is loaded and the backing
// services answer.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := s.Data.Snapshot(); err != nil {
		writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path)
		return
	}
	type pinger interface{ Ping(ctx context.Context) error }
	for _, dep := range []any{s.source, s.Cache} {
		if p, ok := dep.(pinger); ok {
			ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
			err := p.Ping(ctx)
			cancel()
			if err != nil {
				writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path)
				return
			}
		}
	}
	writeJSON(w, 200, map[string]string{"status": "ready"})
}

func datasetSummary(snap *store.Snapshot) map[string]any {
	notices := snap.Notices
	if notices == nil {
		notices = []store.Notice{}
	}
	return map[string]any{
		"snapshotId":    snap.ID,
		"source":        snap.Source,
		"loadedAt":      snap.LoadedAt,
		"rowCounts":     snap.RowCounts(),
		"masterRecords": len(snap.Master),
		"notices":       notices,
		"parseWarnings": snap.ParseWarnings,
		"options":       analytics.FilterOptions(snap.Tables.Orders),
	}
}

// DatasetHandler handles GET /v1/dataset
func (s *Server) DatasetHandler(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, datasetSummary(snap))
}

// ReloadHandler handles POST /v1/dataset/reload
func (s *Server) ReloadHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Reload(r.Context())
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Reload failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, datasetSummary(snap))
}

// OrdersHandler handles GET /v1/orders: filtered, enriched records, paged by
// an offset cursor.
func (s *Server) OrdersHandler(w http.ResponseWriter, r *http.Request) {
	p, err := s.parseParams(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid parameters", err.Error(), r.URL.Path)
		return
	}
	limit, cursor := 100, 0
	q := r.URL.Query()
	if err := intParam(q, "limit", &limit, 1, 1000); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid parameters", err.Error(), r.URL.Path)
		return
	}
	if err := intParam(q, "cursor", &cursor, 0, 1<<31-1); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid parameters", err.Error(), r.URL.Path)
		return
	}
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	res := s.active(snap, p)
	total := len(res.Records)
	if cursor > total {
		cursor = total
	}
	end := cursor + limit
	if end > total {
		end = total
	}
	next := ""
	if end < total {
		next = strconv.Itoa(end)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":      res.Records[cursor:end],
		"nextCursor": next,
		"total":      total,
		"dropped":    res.Dropped,
	})
}

// KPIsHandler handles GET /v1/kpis
func (s *Server) KPIsHandler(w http.ResponseWriter, r *http.Request) {
	s.cached(w, r, "kpis", func(snap *store.Snapshot, p params) (any, error) {
		res := s.active(snap, p)
		byCarrier, _ := analytics.GroupKey(analytics.GroupCarrier)
		byPriority, _ := analytics.GroupKey(analytics.GroupPriority)
		return map[string]any{
			"kpis":             analytics.Overall(res.Records),
			"onTimeByCarrier":  analytics.OnTimeBy(res.Records, byCarrier),
			"onTimeByPriority": analytics.OnTimeBy(res.Records, byPriority),
			"emissionTiers":    res.Tiers,
			"dropped":          res.Dropped,
		}, nil
	})
}

// RouteScoresHandler handles GET /v1/routes/scores
func (s *Server) RouteScoresHandler(w http.ResponseWriter, r *http.Request) {
	s.cached(w, r, "scores", func(snap *store.Snapshot, p params) (any, error) {
		start := time.Now()
		res := s.active(snap, p)
		scores, err := opt.ScoreRoutes(res.Records, p.weights, p.granularity, p.heur.NeutralScore)
		if err != nil {
			return nil, err
		}
		best, worst := opt.BestAndWorst(scores, p.top)
		runID := s.recordRun("scores", snap, len(res.Records), res.Dropped, len(scores), time.Since(start))
		normalized, _ := p.weights.Normalize()
		s.Broker.Publish(TopicDashboard, NewEvent("scores.computed", map[string]any{
			"runId": runID, "granularity": p.granularity, "candidates": len(scores), "dropped": res.Dropped,
		}))
		return map[string]any{
			"runId":       runID,
			"granularity": p.granularity,
			"objective":   p.objective,
			"weights":     normalized,
			"items":       scores,
			"best":        best,
			"worst":       worst,
			"dropped":     res.Dropped,
		}, nil
	})
}

// LanesHandler handles GET /v1/routes/lanes
func (s *Server) LanesHandler(w http.ResponseWriter, r *http.Request) {
	s.cached(w, r, "lanes", func(snap *store.Snapshot, p params) (any, error) {
		res := s.active(snap, p)
		return map[string]any{"items": analytics.Lanes(res.Records), "dropped": res.Dropped}, nil
	})
}

// WarehouseHealthHandler handles GET /v1/warehouses/health
func (s *Server) WarehouseHealthHandler(w http.ResponseWriter, r *http.Request) {
	s.cached(w, r, "health", func(snap *store.Snapshot, p params) (any, error) {
		plan := s.plan(snap, p)
		counts := map[opt.StockStatus]int{}
		for _, it := range plan.Items {
			counts[it.Status]++
		}
		return map[string]any{
			"items":        plan.Items,
			"statusCounts": counts,
			"flags":        plan.Flags,
			"anchor":       plan.Anchor,
			"lookbackDays": plan.LookbackDays,
		}, nil
	})
}

// WarehousePlanHandler handles GET /v1/warehouses/plan
func (s *Server) WarehousePlanHandler(w http.ResponseWriter, r *http.Request) {
	s.cached(w, r, "plan", func(snap *store.Snapshot, p params) (any, error) {
		start := time.Now()
		plan := s.plan(snap, p)
		runID := s.recordRun("plan", snap, len(plan.Items), 0, len(plan.Transfers)+len(plan.Reorders), time.Since(start))
		s.Broker.Publish(TopicDashboard, NewEvent("plan.computed", map[string]any{
			"runId": runID, "transfers": len(plan.Transfers), "reorders": len(plan.Reorders), "flags": len(plan.Flags),
		}))
		return map[string]any{"runId": runID, "plan": plan}, nil
	})
}

// CostsHandler handles GET /v1/costs?groupBy=carrier
func (s *Server) CostsHandler(w http.ResponseWriter, r *http.Request) {
	groupBy := r.URL.Query().Get("groupBy")
	if groupBy == "" {
		groupBy = analytics.GroupCarrier
	}
	key, err := analytics.GroupKey(groupBy)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid parameters", err.Error(), r.URL.Path)
		return
	}
	s.cached(w, r, "costs:"+groupBy, func(snap *store.Snapshot, p params) (any, error) {
		res := s.active(snap, p)
		return map[string]any{
			"groupBy":           groupBy,
			"breakdown":         analytics.CostBreakdown(res.Records, key),
			"emissionsByOrigin": analytics.EmissionsByOrigin(res.Records),
			"highCostLanes":     analytics.HighCostLanes(res.Records, p.top),
			"dropped":           res.Dropped,
		}, nil
	})
}

// FeedbackHandler handles GET /v1/feedback. Without filters every feedback
// row is used; otherwise only rows for orders in the active set.
func (s *Server) FeedbackHandler(w http.ResponseWriter, r *http.Request) {
	s.cached(w, r, "feedback", func(snap *store.Snapshot, p params) (any, error) {
		res := s.active(snap, p)
		active := res.Records
		if p.filter.IsZero() {
			active = nil
		}
		return analytics.Feedback(snap.Tables.Feedback, active, 20), nil
	})
}

// ConfigHandler handles GET /v1/config
func (s *Server) ConfigHandler(w http.ResponseWriter, r *http.Request) {
	h := s.Cfg.Heuristics
	writeJSON(w, http.StatusOK, map[string]any{
		"heuristics":     h,
		"defaultWeights": opt.WeightsFrom(h.DefaultWeights),
		"granularities":  []opt.Granularity{opt.ByOrder, opt.ByLane},
		"groupBy": []string{analytics.GroupCarrier, analytics.GroupPriority, analytics.GroupOrigin,
			analytics.GroupDestination, analytics.GroupCategory, analytics.GroupSegment},
	})
}
