package metrics

import (
	"context"

	"github.com/kilianp07/berthplan/core/events"
	coremetrics "github.com/kilianp07/berthplan/core/metrics"
	"github.com/kilianp07/berthplan/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records rejected
// events on sinks that support it. It stops when the context is canceled.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	rec, ok := sink.(coremetrics.RejectionRecorder)
	if !ok {
		return
	}
	rejected := eventbus.Of[events.RejectedEvent](ctx, bus)
	go func() {
		for e := range rejected {
			_ = rec.RecordRejection(coremetrics.RejectionEvent{Kind: e.Kind, Reason: e.Err, Time: e.Time})
		}
	}()
}
