package schedule

import (
	"fmt"
	"net/http"

	"github.com/kilianp07/berthplan/core/analysis"
	"github.com/kilianp07/berthplan/core/model"
	"github.com/kilianp07/berthplan/pkg/export"
)

// competition accepts either vessel_id, whose ETA and id are used, or an
// explicit eta. window defaults to one hour.
func (h *Handler) competition(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	window, err := queryDuration(q, "window", analysis.DefaultCompetitionWindow)
	if err != nil {
		writeError(w, err)
		return
	}
	snap := h.eng.Snapshot()
	exclude := q.Get("vessel_id")
	eta, err := queryTime(q, "eta", h.eng.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	if exclude != "" && q.Get("eta") == "" {
		v, ok := snap.Vessel(exclude)
		if !ok {
			writeError(w, fmt.Errorf("vessel %s: %w", exclude, model.ErrNotFound))
			return
		}
		eta = v.ETA
	}
	writeJSON(w, http.StatusOK, analysis.Competition(snap, eta, window, exclude))
}

func (h *Handler) occupancy(w http.ResponseWriter, r *http.Request) {
	win, err := queryWindow(r.URL.Query(), h.eng.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	occ := analysis.Occupancy(h.eng.Snapshot(), win)
	if r.URL.Query().Get("format") == "html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := export.WriteOccupancyChart(w, occ, win); err != nil {
			h.log.Errorf("occupancy chart: %v", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, occ)
}

func (h *Handler) kpi(w http.ResponseWriter, r *http.Request) {
	win, err := queryWindow(r.URL.Query(), h.eng.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis.KPIs(h.eng.Snapshot(), win))
}

func (h *Handler) recommend(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("vessel_id")
	snap := h.eng.Snapshot()
	v, ok := snap.Vessel(id)
	if !ok {
		writeError(w, fmt.Errorf("vessel %s: %w", id, model.ErrNotFound))
		return
	}
	rec, err := analysis.Recommend(h.eng.Checker(), snap, v, h.eng.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) exportSchedule(w http.ResponseWriter, r *http.Request) {
	f, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		badRequest(w, err)
		return
	}
	rep := export.NewReport(h.eng.Snapshot(), h.eng.Now())
	w.Header().Set("Content-Type", f.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=schedule.%s", f))
	if err := export.Write(w, f, rep); err != nil {
		h.log.Errorf("export schedule as %s: %v", f, err)
	}
}
