// Package journal exposes the schedule journal over HTTP.
package journal

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kilianp07/berthplan/core/journal"
)

// NewLogHandler returns an HTTP handler exposing journal records via GET /api/journal.
// Requests must include an Authorization header with "Bearer <token>" when token is non-empty.
func NewLogHandler(store journal.Store, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if token != "" {
			auth := r.Header.Get("Authorization")
			if auth != "Bearer "+token {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		q := journal.Query{
			VesselID: r.URL.Query().Get("vessel_id"),
			Trigger:  r.URL.Query().Get("trigger"),
		}
		if s := r.URL.Query().Get("start"); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				http.Error(w, "invalid start", http.StatusBadRequest)
				return
			}
			q.Start = t
		}
		if s := r.URL.Query().Get("end"); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				http.Error(w, "invalid end", http.StatusBadRequest)
				return
			}
			q.End = t
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []journal.Record{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(records); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
