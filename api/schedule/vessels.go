package schedule

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kilianp07/berthplan/core/model"
	"github.com/kilianp07/berthplan/core/reschedule"
	"github.com/kilianp07/berthplan/core/schedule"
)

type registeredResponse struct {
	ID string `json:"id"`
}

type vesselStatusResponse struct {
	VesselID   string             `json:"vessel_id"`
	Status     model.VesselStatus `json:"status"`
	Assignment *model.Assignment  `json:"assignment,omitempty"`
	Vessel     model.Vessel       `json:"vessel"`
}

type markRequest struct {
	At time.Time `json:"at"`
}

type scheduleResponse struct {
	Version     uint64             `json:"version"`
	Assignments []model.Assignment `json:"assignments"`
	Pending     []model.Vessel     `json:"pending"`
}

func (h *Handler) registerVessel(w http.ResponseWriter, r *http.Request) {
	var in model.VesselInput
	if err := decodeBody(r, &in); err != nil {
		badRequest(w, err)
		return
	}
	id, err := h.eng.RegisterVessel(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, registeredResponse{ID: id})
}

func (h *Handler) vesselStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, err := h.eng.GetVesselStatus(id)
	if err != nil {
		writeError(w, err)
		return
	}
	snap := h.eng.Snapshot()
	v, _ := snap.Vessel(id)
	resp := vesselStatusResponse{VesselID: id, Status: st, Vessel: v}
	if a, ok := snap.AssignmentOf(id); ok {
		resp.Assignment = &a
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) markServicing(w http.ResponseWriter, r *http.Request) {
	h.mark(w, r, h.eng.MarkServicing)
}

func (h *Handler) markDeparted(w http.ResponseWriter, r *http.Request) {
	h.mark(w, r, h.eng.MarkDeparted)
}

// mark applies a lifecycle report. An empty body uses the engine clock.
func (h *Handler) mark(w http.ResponseWriter, r *http.Request, apply func(string, time.Time) error) {
	var req markRequest
	if err := decodeBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(w, err)
		return
	}
	if req.At.IsZero() {
		req.At = h.eng.Now()
	}
	id := chi.URLParam(r, "id")
	if err := apply(id, req.At); err != nil {
		writeError(w, err)
		return
	}
	st, _ := h.eng.GetVesselStatus(id)
	writeJSON(w, http.StatusOK, vesselStatusResponse{VesselID: id, Status: st})
}

func (h *Handler) registerBerth(w http.ResponseWriter, r *http.Request) {
	var b model.Berth
	if err := decodeBody(r, &b); err != nil {
		badRequest(w, err)
		return
	}
	if err := h.eng.RegisterBerth(r.Context(), b); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, registeredResponse{ID: b.ID})
}

func (h *Handler) listBerths(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.eng.Snapshot().Berths())
}

// getSchedule accepts berth_id, status, start and end filters.
func (h *Handler) getSchedule(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := schedule.Filter{BerthID: q.Get("berth_id")}
	if s := q.Get("status"); s != "" {
		st, err := model.ParseVesselStatus(s)
		if err != nil {
			writeError(w, err)
			return
		}
		f.Status = &st
	}
	if q.Get("start") != "" || q.Get("end") != "" {
		win, err := queryWindow(q, h.eng.Now())
		if err != nil {
			writeError(w, err)
			return
		}
		f.Window = &win
	}
	snap := h.eng.Snapshot()
	writeJSON(w, http.StatusOK, scheduleResponse{
		Version:     snap.Version(),
		Assignments: snap.Query(f),
		Pending:     snap.Pending(),
	})
}

func (h *Handler) plan(w http.ResponseWriter, r *http.Request) {
	sum, err := h.eng.Plan(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// reportEvent accepts the flat event envelope, for example
// {"type":"vessel_delayed","vessel_id":"V1","new_arrival":"..."}.
func (h *Handler) reportEvent(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		badRequest(w, err)
		return
	}
	ev, err := reschedule.DecodeEvent(data)
	if err != nil {
		badRequest(w, err)
		return
	}
	sum, err := h.eng.ReportEvent(r.Context(), ev)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
