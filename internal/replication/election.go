package replication

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/replicagate/replicagate/internal/storage"
)

// electionProbeCount is the number of head_bucket calls issued per backend
// during latency-based primary election.
const electionProbeCount = 10

// ElectPrimary probes every backend electionProbeCount times, computes each
// backend's median successful-probe latency, and returns the index of the
// backend with the lowest median. A backend that fails every probe is
// treated as worst; if every backend fails every probe, index 0 is
// returned. This runs once at boot, before the engine serves its first
// request.
func ElectPrimary(ctx context.Context, backends []storage.Storage) int {
	medians := make([]time.Duration, len(backends))

	for i, b := range backends {
		samples := make([]time.Duration, 0, electionProbeCount)
		for p := 0; p < electionProbeCount; p++ {
			start := time.Now()
			if err := b.HeadBucket(ctx); err == nil {
				samples = append(samples, time.Since(start))
			}
		}

		if len(samples) == 0 {
			medians[i] = time.Duration(1<<63 - 1) // worst possible: every probe failed.
			slog.Warn("primary election: backend failed every probe", "backend", b.Name())
			continue
		}

		medians[i] = median(samples)
		slog.Info("primary election: backend probed", "backend", b.Name(),
			"median_latency", medians[i], "successful_probes", len(samples))
	}

	best := 0
	for i := 1; i < len(medians); i++ {
		if medians[i] < medians[best] {
			best = i
		}
	}

	if medians[best] == time.Duration(1<<63-1) {
		slog.Warn("primary election: every backend failed every probe, defaulting to index 0")
		return 0
	}

	slog.Info("primary election complete", "elected_backend", backends[best].Name(), "index", best)
	return best
}

func median(samples []time.Duration) time.Duration {
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
