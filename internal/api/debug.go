package api

import (
	"net/http"
	"time"

	"controltower/internal/buildinfo"
	"controltower/internal/opt"
)

// DebugJSON handles GET /v1/admin/debug
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"runs":  opt.LastRuns(),
		"config": map[string]any{
			"env":           s.Cfg.Env,
			"addr":          s.Cfg.HTTP.Addr,
			"source":        s.Data.SourceName(),
			"cache":         s.Cache.Name(),
			"cacheTtl":      s.Cfg.CacheTTL.String(),
			"rateRps":       s.Cfg.RateRPS,
			"rateBurst":     s.Cfg.RateBurst,
			"hasRedisUrl":   s.Cfg.RedisURL != "",
			"lookbackDays":  s.Cfg.Heuristics.LookbackDays,
			"surplusFactor": s.Cfg.Heuristics.SurplusFactor,
		},
	}
	if snap, err := s.Data.Snapshot(); err == nil {
		info["snapshot"] = map[string]any{"id": snap.ID, "loadedAt": snap.LoadedAt, "notices": len(snap.Notices)}
	}
	writeJSON(w, http.StatusOK, info)
}
