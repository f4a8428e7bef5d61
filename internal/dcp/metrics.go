package dcp

import (
	"fmt"
	"sync/atomic"

	"github.com/nikkitan/dcpcore/internal/observability"
)

// CoreMetrics counts what the dispatch loop sees. Counters only; latency is
// the transport's business.
type CoreMetrics struct {
	FramesTotal     atomic.Int64
	ControlReplies  atomic.Int64
	PushEvents      atomic.Int64
	UnknownDropped  atomic.Int64
	RoutingFailures atomic.Int64
	SaturationDrops atomic.Int64
}

// Metrics is the process-wide counter set for the protocol engine.
var Metrics = &CoreMetrics{}

func init() {
	observability.RegisterCustomCollector(func() []string {
		return []string{
			fmt.Sprintf("dcpcore_frames_total %d", Metrics.FramesTotal.Load()),
			fmt.Sprintf("dcpcore_control_replies_total %d", Metrics.ControlReplies.Load()),
			fmt.Sprintf("dcpcore_push_events_total %d", Metrics.PushEvents.Load()),
			fmt.Sprintf("dcpcore_unknown_frames_dropped_total %d", Metrics.UnknownDropped.Load()),
			fmt.Sprintf("dcpcore_routing_failures_total %d", Metrics.RoutingFailures.Load()),
			fmt.Sprintf("dcpcore_saturation_drops_total %d", Metrics.SaturationDrops.Load()),
		}
	})
}
