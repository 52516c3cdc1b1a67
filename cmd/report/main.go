// Command report runs the full pipeline once over a directory of CSV extracts
// and writes the ranked routes, transfer plan, reorder plan and master view
// as CSV files.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"controltower/internal/analytics"
	"controltower/internal/config"
	"controltower/internal/derive"
	"controltower/internal/export"
	"controltower/internal/logger"
	"controltower/internal/opt"
	"controltower/internal/store"
)

func main() {
	dataDir := flag.String("data", "", "directory holding the CSV extracts (defaults to the configured source dir)")
	outDir := flag.String("out", "out", "directory to write the CSV reports to")
	cfgPath := flag.String("config", "", "optional YAML config file")
	granularity := flag.String("granularity", string(opt.ByOrder), "route score granularity: order or lane")
	flag.Parse()

	cfg, err := config.LoadFile(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	lg, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer lg.Sync()

	dir := cfg.Source.Dir
	if *dataDir != "" {
		dir = *dataDir
	}
	g, err := opt.ParseGranularity(*granularity)
	if err != nil {
		lg.Fatal("bad granularity", "error", err)
	}

	snap, err := store.Load(context.Background(), store.NewCSVSource(dir))
	if err != nil {
		lg.Fatal("failed to load dataset", "dir", dir, "error", err)
	}
	for _, n := range snap.Notices {
		lg.Warn("dataset notice", "table", n.Table, "kind", n.Kind, "message", n.Message)
	}

	h := cfg.Heuristics
	res := derive.Enrich(snap.Master, snap.Tables.Fleet, h)
	scores, err := opt.ScoreRoutes(res.Records, opt.WeightsFrom(h.DefaultWeights), g, h.NeutralScore)
	if err != nil {
		lg.Fatal("failed to score routes", "error", err)
	}
	plan := opt.Rebalance(snap.Tables.Orders, snap.Tables.Inventory, h)

	if err := export.WriteDir(*outDir, scores, plan, res.Records); err != nil {
		lg.Fatal("failed to write reports", "dir", *outDir, "error", err)
	}

	k := analytics.Overall(res.Records)
	lg.Info("reports written", "dir", *outDir, "snapshot", snap.ID)
	fmt.Fprintf(os.Stdout, "orders: %d  resolved: %d  dropped: %d  notices: %d\n",
		len(snap.Tables.Orders), len(res.Records)-res.Dropped, res.Dropped, len(snap.Notices))
	fmt.Fprintf(os.Stdout, "routes scored: %d  transfers: %d  reorders: %d  flags: %d\n",
		len(scores), len(plan.Transfers), len(plan.Reorders), len(plan.Flags))
	if k.OnTimeRate != nil {
		fmt.Fprintf(os.Stdout, "on-time rate: %.1f%%\n", *k.OnTimeRate*100)
	}
}
