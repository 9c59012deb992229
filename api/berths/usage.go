// Package berths exposes per-berth usage history over HTTP.
package berths

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/kilianp07/berthplan/core/metrics/usage"
)

// NewUsageHandler exposes daily berth usage via GET /api/berths/{id}/usage.
func NewUsageHandler(store usage.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		path := strings.TrimPrefix(r.URL.Path, "/api/berths/")
		parts := strings.Split(path, "/")
		if len(parts) < 2 || parts[0] == "" || parts[1] != "usage" {
			http.NotFound(w, r)
			return
		}
		id := parts[0]
		start, _ := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
		end, _ := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
		if end.IsZero() {
			end = time.Now()
		}
		recs, err := store.Query(id, start, end)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		type out struct {
			Date         string  `json:"date"`
			Calls        int     `json:"calls"`
			ServiceHours float64 `json:"service_hours"`
			Utilisation  float64 `json:"utilisation"`
			MeanWait     float64 `json:"mean_wait_hours"`
		}
		outSlice := make([]out, len(recs))
		for i, r := range recs {
			outSlice[i] = out{
				Date:         r.Date.Format("2006-01-02"),
				Calls:        r.Calls,
				ServiceHours: r.ServiceHours,
				Utilisation:  r.Utilisation(),
				MeanWait:     r.MeanWait(),
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(outSlice)
	})
}
