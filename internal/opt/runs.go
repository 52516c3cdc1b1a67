package opt

import (
	"sync"
	"time"
)

// RunStats summarises one scoring or rebalancing pass.
type RunStats struct {
	RunID      string        `json:"runId"`
	Kind       string        `json:"kind"`
	SnapshotID string        `json:"snapshotId"`
	Records    int           `json:"records"`
	Dropped    int           `json:"dropped"`
	Outputs    int           `json:"outputs"`
	Duration   time.Duration `json:"durationNs"`
	At         time.Time     `json:"at"`
}

var (
	runsMu sync.Mutex
	runs   = map[string]RunStats{}
)

// RecordRun keeps the latest run per kind for the debug endpoint.
func RecordRun(s RunStats) {
	runsMu.Lock()
	runs[s.Kind] = s
	runsMu.Unlock()
}

func LastRuns() map[string]RunStats {
	runsMu.Lock()
	defer runsMu.Unlock()
	out := make(map[string]RunStats, len(runs))
	for k, v := range runs {
		out[k] = v
	}
	return out
}
