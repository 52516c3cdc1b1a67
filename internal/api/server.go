package api

import (
	"context"
	"fmt"
	"time"

	"controltower/internal/cache"
	"controltower/internal/config"
	"controltower/internal/logger"
	"controltower/internal/metrics"
	"controltower/internal/store"
)

type Server struct {
	Data   *store.Memory
	Cfg    *config.Config
	Log    *logger.Logger
	Cache  cache.Cache
	Broker EventBroker

	source store.Source
}

// NewServer wires the table source, result cache and event broker from cfg.
// Redis backs both the cache and the broker when REDIS_URL is configured.
// The dataset is not loaded until Reload is called.
func NewServer(cfg *config.Config, log *logger.Logger) (*Server, error) {
	src, err := store.NewSource(cfg.Source.Kind, cfg.Source.Dir, cfg.Source.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s source: %w", cfg.Source.Kind, err)
	}
	s := &Server{Data: store.NewMemory(src), Cfg: cfg, Log: log, source: src}
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedis(cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			log.Warn("redis cache unavailable, using memory", "error", err)
		} else {
			s.Cache = rc
		}
		rb, err := NewRedisBroker(cfg.RedisURL)
		if err != nil {
			log.Warn("redis broker unavailable, using in-process broker", "error", err)
		} else {
			s.Broker = rb
		}
	}
	if s.Cache == nil {
		s.Cache = cache.NewMemory(cfg.CacheSize, cfg.CacheTTL)
	}
	if s.Broker == nil {
		s.Broker = NewBroker()
	}
	return s, nil
}

// Reload reads every table from the source and swaps in a new snapshot.
// Missing tables are logged as warnings, never returned as errors.
func (s *Server) Reload(ctx context.Context) (*store.Snapshot, error) {
	start := time.Now()
	snap, err := s.Data.Reload(ctx)
	if err != nil {
		return nil, err
	}
	counts := snap.RowCounts()
	for table, n := range counts {
		metrics.TableRows.WithLabelValues(table).Set(float64(n))
	}
	kinds := map[string]int{store.NoticeMissing: 0, store.NoticeReadError: 0, store.NoticeDuplicate: 0}
	for _, n := range snap.Notices {
		kinds[n.Kind]++
		s.Log.Warn("dataset notice", "table", n.Table, "kind", n.Kind, "message", n.Message)
	}
	for k, n := range kinds {
		metrics.DatasetNotices.WithLabelValues(k).Set(float64(n))
	}
	for table, n := range snap.ParseWarnings {
		s.Log.Warn("unparseable cells coerced to null", "table", table, "cells", n)
	}
	s.Log.Info("dataset loaded",
		"snapshot", snap.ID, "source", snap.Source, "orders", counts[store.TableOrders],
		"master", len(snap.Master), "notices", len(snap.Notices), "took", time.Since(start))
	s.Broker.Publish(TopicDashboard, NewEvent("dataset.reloaded", map[string]any{
		"snapshotId": snap.ID, "rowCounts": counts, "notices": len(snap.Notices),
	}))
	return snap, nil
}

func (s *Server) Close() error {
	if c, ok := s.source.(interface{ Close() error }); ok {
		_ = c.Close()
	}
	if c, ok := s.Cache.(interface{ Close() error }); ok {
		_ = c.Close()
	}
	if c, ok := s.Broker.(interface{ Close() error }); ok {
		_ = c.Close()
	}
	return nil
}
