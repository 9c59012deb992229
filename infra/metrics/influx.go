package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/berthplan/core/metrics"
	"github.com/kilianp07/berthplan/infra/logger"
)

// InfluxSink writes scheduling events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the HTTP client.
func (s *InfluxSink) Close() { s.client.Close() }

func (s *InfluxSink) write(points ...*write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, points...)
}

// RecordPlanResult writes one plan_update point per committed update.
func (s *InfluxSink) RecordPlanResult(r coremetrics.PlanResult) error {
	p := write.NewPointWithMeasurement("plan_update").
		AddTag("update_id", r.UpdateID).
		AddTag("trigger", r.Trigger).
		AddTag("escalated", strconv.FormatBool(r.Escalated)).
		AddField("version", int64(r.Version)).
		AddField("placed", r.Placed).
		AddField("unplaced", r.Unplaced).
		AddField("cleared", r.Cleared).
		AddField("objective", round3(r.Objective)).
		AddField("duration_ms", round3(r.Duration.Seconds()*1000)).
		SetTime(r.Time)
	return s.write(p)
}

// RecordAssignments writes the placements of an update.
func (s *InfluxSink) RecordAssignments(evs []coremetrics.AssignmentEvent) error {
	if len(evs) == 0 {
		return nil
	}
	points := make([]*write.Point, 0, len(evs))
	for _, e := range evs {
		points = append(points, write.NewPointWithMeasurement("assignment").
			AddTag("update_id", e.UpdateID).
			AddTag("vessel_id", e.VesselID).
			AddTag("berth_id", e.BerthID).
			AddTag("category", e.Category).
			AddField("priority", round3(e.Priority)).
			AddField("start", e.Window.Start.Unix()).
			AddField("end", e.Window.End.Unix()).
			AddField("wait_hours", round3(e.Wait.Hours())).
			SetTime(e.Time))
	}
	return s.write(points...)
}

// RecordUnplaced writes the vessels an update left pending.
func (s *InfluxSink) RecordUnplaced(evs []coremetrics.UnplacedEvent) error {
	if len(evs) == 0 {
		return nil
	}
	points := make([]*write.Point, 0, len(evs))
	for _, e := range evs {
		points = append(points, write.NewPointWithMeasurement("unplaced").
			AddTag("update_id", e.UpdateID).
			AddTag("vessel_id", e.VesselID).
			AddTag("reason", e.Reason).
			AddField("count", 1).
			SetTime(e.Time))
	}
	return s.write(points...)
}

// RecordTransition writes a lifecycle change.
func (s *InfluxSink) RecordTransition(ev coremetrics.TransitionEvent) error {
	p := write.NewPointWithMeasurement("vessel_transition").
		AddTag("vessel_id", ev.VesselID).
		AddTag("from", ev.From).
		AddTag("to", ev.To)
	if ev.BerthID != "" {
		p = p.AddTag("berth_id", ev.BerthID)
	}
	p = p.AddField("service_hours", round3(ev.Service.Hours())).
		AddField("wait_hours", round3(ev.Wait.Hours())).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordRejection writes a rejected disruption event.
func (s *InfluxSink) RecordRejection(ev coremetrics.RejectionEvent) error {
	p := write.NewPointWithMeasurement("event_rejected").
		AddTag("kind", ev.Kind).
		AddField("reason", ev.Reason).
		SetTime(ev.Time)
	return s.write(p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
