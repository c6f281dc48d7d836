package metrics

import (
	"context"
	"time"

	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"

	rpcmetrics "github.com/filecoin-project/go-jsonrpc/metrics"
)

// Distributions
var defaultMillisecondsDistribution = view.Distribution(
	0.01, 0.05, 0.1, 0.3, 0.6, 0.8, 1, 2, 3, 4, 5, 6, 8, // Very short intervals for fast operations
	10, 20, 30, 40, 50, 60, 70, 80, 90, 100, // 10 ms intervals up to 100 ms
	150, 200, 250, 300, 350, 400, 450, 500, // 50 ms intervals from 100 to 500 ms
	600, 700, 800, 900, 1000, // 100 ms intervals from 500 to 1000 ms
	1100, 1200, 1300, 1400, 1500, 1600, 1700, 1800, 1900, 2000, // 100 ms intervals from 1000 to 2000 ms
	3000, 4000, 5000, 6000, 8000, 10000, 13000, 16000, 20000, 25000, 30000, 40000, 50000, 65000, 80000, 100000,
	130_000, 160_000, 200_000, 250_000, 300_000, 400_000, 500_000, 650_000, 800_000, 1000_000, // Larger, less frequent buckets
)

// Tags
var (
	Version, _     = tag.NewKey("version")
	Commit, _      = tag.NewKey("commit")
	FailureType, _ = tag.NewKey("failure_type")
	DealStage, _   = tag.NewKey("deal_stage")

	// APIInterface is the name of the API an RPC call was served by.
	APIInterface, _ = tag.NewKey("api")
)

// Measures
var (
	AgentInfo = stats.Int64("info", "Arbitrary counter to tag agent info to", stats.UnitDimensionless)

	DealRequestsDiscovered = stats.Int64("deals/discovered", "Counter for deal requests claimed by this agent", stats.UnitDimensionless)
	DealDecodeErrors       = stats.Int64("deals/decode_errors", "Counter for deal request fields that could not be decoded", stats.UnitDimensionless)
	DealStageEntered       = stats.Int64("deals/stage_entered", "Counter for deal stages entered", stats.UnitDimensionless)
	DealStageDuration      = stats.Float64("deals/stage_ms", "Time spent in a deal stage", stats.UnitMilliseconds)
	DealDriversActive      = stats.Int64("deals/drivers_active", "Number of deal request drivers currently running", stats.UnitDimensionless)
	DealDriverErrors       = stats.Int64("deals/driver_errors", "Counter for deal request drivers stopped by an error", stats.UnitDimensionless)

	WorkerQueueDepth = stats.Int64("worker/queue_depth", "Number of proposal jobs waiting for a worker", stats.UnitDimensionless)
)

var (
	InfoView = &view.View{
		Name:        "info",
		Description: "Pickaxe agent information",
		Measure:     AgentInfo,
		Aggregation: view.LastValue(),
		TagKeys:     []tag.Key{Version, Commit},
	}
	DealRequestsDiscoveredView = &view.View{
		Measure:     DealRequestsDiscovered,
		Aggregation: view.Count(),
	}
	DealDecodeErrorsView = &view.View{
		Measure:     DealDecodeErrors,
		Aggregation: view.Count(),
	}
	DealStageEnteredView = &view.View{
		Measure:     DealStageEntered,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{DealStage},
	}
	DealStageDurationView = &view.View{
		Measure:     DealStageDuration,
		Aggregation: defaultMillisecondsDistribution,
		TagKeys:     []tag.Key{DealStage},
	}
	DealDriversActiveView = &view.View{
		Measure:     DealDriversActive,
		Aggregation: view.LastValue(),
	}
	DealDriverErrorsView = &view.View{
		Measure:     DealDriverErrors,
		Aggregation: view.Count(),
		TagKeys:     []tag.Key{FailureType},
	}
	WorkerQueueDepthView = &view.View{
		Measure:     WorkerQueueDepth,
		Aggregation: view.LastValue(),
	}
)

// DefaultViews is an array of OpenCensus views for metric gathering purposes
var DefaultViews = append([]*view.View{
	InfoView,
	DealRequestsDiscoveredView,
	DealDecodeErrorsView,
	DealStageEnteredView,
	DealStageDurationView,
	DealDriversActiveView,
	DealDriverErrorsView,
	WorkerQueueDepthView,
}, rpcmetrics.DefaultViews...)

func SinceInMilliseconds(startTime time.Time) float64 {
	return float64(time.Since(startTime).Milliseconds())
}

// Timer is a function stopwatch, calling it starts the timer,
// calling the returned function will record the duration.
func Timer(ctx context.Context, m *stats.Float64Measure) func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		stats.Record(ctx, m.M(SinceInMilliseconds(start)))
		return time.Since(start)
	}
}
