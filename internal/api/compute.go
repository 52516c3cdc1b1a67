package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"controltower/internal/derive"
	"controltower/internal/metrics"
	"controltower/internal/model"
	"controltower/internal/opt"
	"controltower/internal/store"
)

// active filters the master view and enriches what is left. The snapshot is
// shared and read-only; everything returned is freshly built.
func (s *Server) active(snap *store.Snapshot, p params) derive.Result {
	res := derive.Enrich(p.filter.Master(snap.Master), snap.Tables.Fleet, p.heur)
	for tier, n := range res.Tiers {
		metrics.EmissionTiers.WithLabelValues(string(tier)).Add(float64(n))
	}
	metrics.DroppedRecords.Set(float64(res.Dropped))
	s.Log.Debug("enriched records",
		"snapshot", snap.ID, "records", len(res.Records), "dropped", res.Dropped,
		"vehicleTier", res.Tiers[model.TierVehicle], "fleetAverageTier", res.Tiers[model.TierFleetAverage],
		"defaultTier", res.Tiers[model.TierDefault])
	return res
}

func (s *Server) plan(snap *store.Snapshot, p params) opt.Plan {
	return opt.Rebalance(p.filter.Orders(snap.Tables.Orders), p.filter.Inventory(snap.Tables.Inventory), p.heur)
}

func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) (*store.Snapshot, bool) {
	snap, err := s.Data.Snapshot()
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrNotLoaded) {
			status = http.StatusServiceUnavailable
		}
		writeProblem(w, status, "Dataset unavailable", err.Error(), r.URL.Path)
		return nil, false
	}
	return snap, true
}

// cached serves kind+params from the result cache, computing and storing the
// response on a miss. Cache errors degrade to recomputation.
func (s *Server) cached(w http.ResponseWriter, r *http.Request, kind string, compute func(snap *store.Snapshot, p params) (any, error)) {
	p, err := s.parseParams(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid parameters", err.Error(), r.URL.Path)
		return
	}
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	key := snap.ID + ":" + kind + ":" + p.key()
	if b, hit, err := s.Cache.Get(r.Context(), key); err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		s.Log.Warn("cache get failed", "cache", s.Cache.Name(), "error", err)
	} else if hit {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		writeRawJSON(w, http.StatusOK, b)
		return
	} else {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	start := time.Now()
	out, err := compute(snap, p)
	metrics.RecomputeDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Recomputes.WithLabelValues(kind, "error").Inc()
		status := http.StatusInternalServerError
		if errors.Is(err, opt.ErrInvalidWeights) {
			status = http.StatusBadRequest
		}
		writeProblem(w, status, "Recomputation failed", err.Error(), r.URL.Path)
		return
	}
	metrics.Recomputes.WithLabelValues(kind, "ok").Inc()
	b, err := json.Marshal(out)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Encoding failed", err.Error(), r.URL.Path)
		return
	}
	if err := s.Cache.Set(r.Context(), key, b); err != nil {
		s.Log.Warn("cache set failed", "cache", s.Cache.Name(), "error", err)
	}
	writeRawJSON(w, http.StatusOK, b)
}

func (s *Server) recordRun(kind string, snap *store.Snapshot, records, dropped, outputs int, took time.Duration) string {
	id := uuid.NewString()
	opt.RecordRun(opt.RunStats{
		RunID: id, Kind: kind, SnapshotID: snap.ID, Records: records,
		Dropped: dropped, Outputs: outputs, Duration: took, At: time.Now().UTC(),
	})
	s.Log.Info("recomputed", "kind", kind, "run", id, "records", records, "dropped", dropped, "outputs", outputs, "took", took)
	return id
}
