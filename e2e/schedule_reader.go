//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// scheduleReader reads back what the Influx sink recorded for committed
// schedule updates.
type scheduleReader struct {
	bucket string
	client influxdb2.Client
	query  api.QueryAPI
}

func newScheduleReader(url, org, bucket, token string) *scheduleReader {
	c := influxdb2.NewClient(url, token)
	return &scheduleReader{bucket: bucket, client: c, query: c.QueryAPI(org)}
}

func (r *scheduleReader) Close() { r.client.Close() }

// Triggers returns the trigger of every plan_update point since the given
// lookback, oldest first.
func (r *scheduleReader) Triggers(ctx context.Context, lookback time.Duration) ([]string, error) {
	flux := fmt.Sprintf(`from(bucket:%q)
  |> range(start:-%s)
  |> filter(fn: (r) => r._measurement == "plan_update" and r._field == "version")
  |> group()
  |> sort(columns: ["_value"])`, r.bucket, lookback)
	var out []string
	err := r.each(ctx, flux, func(rec map[string]any) {
		if s, ok := rec["trigger"].(string); ok {
			out = append(out, s)
		}
	})
	return out, err
}

// Starts returns the window starts recorded for a vessel's assignments,
// keyed by berth.
func (r *scheduleReader) Starts(ctx context.Context, vesselID string, lookback time.Duration) (map[string][]time.Time, error) {
	flux := fmt.Sprintf(`from(bucket:%q)
  |> range(start:-%s)
  |> filter(fn: (r) => r._measurement == "assignment" and r._field == "start" and r.vessel_id == %q)
  |> group()
  |> sort(columns: ["_time"])`, r.bucket, lookback, vesselID)
	out := map[string][]time.Time{}
	err := r.each(ctx, flux, func(rec map[string]any) {
		berth, _ := rec["berth_id"].(string)
		if sec, ok := rec["_value"].(int64); ok {
			out[berth] = append(out[berth], time.Unix(sec, 0).UTC())
		}
	})
	return out, err
}

func (r *scheduleReader) each(ctx context.Context, flux string, fn func(map[string]any)) error {
	res, err := r.query.Query(ctx, flux)
	if err != nil {
		return err
	}
	defer res.Close()
	for res.Next() {
		fn(res.Record().Values())
	}
	return res.Err()
}
