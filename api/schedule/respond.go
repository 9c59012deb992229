package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/kilianp07/berthplan/core/feasibility"
	"github.com/kilianp07/berthplan/core/model"
	"github.com/kilianp07/berthplan/core/reschedule"
	"github.com/kilianp07/berthplan/core/schedule"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// StatusOf maps engine errors to HTTP status codes.
func StatusOf(err error) int {
	var (
		ve *model.ValidationError
		iv *schedule.InvariantViolation
		ie *feasibility.InfeasibleError
		ce *schedule.ConflictError
	)
	switch {
	case errors.As(err, &ve), errors.Is(err, reschedule.ErrUnknownEvent):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &iv), errors.As(err, &ie):
		return http.StatusConflict
	case errors.As(err, &ce):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, StatusOf(err), errorBody{Error: err.Error()})
}

func badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// queryTime parses an RFC3339 query parameter, returning def when absent.
func queryTime(q url.Values, key string, def time.Time) (time.Time, error) {
	s := q.Get(key)
	if s == "" {
		return def, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, &model.ValidationError{Field: key, Reason: "expected RFC3339 time"}
	}
	return t, nil
}

func queryDuration(q url.Values, key string, def time.Duration) (time.Duration, error) {
	s := q.Get(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, &model.ValidationError{Field: key, Reason: "expected positive duration such as 60m"}
	}
	return d, nil
}

// queryWindow reads start and end, defaulting to [now, now+DefaultAnalysisWindow).
func queryWindow(q url.Values, now time.Time) (model.TimeWindow, error) {
	start, err := queryTime(q, "start", now)
	if err != nil {
		return model.TimeWindow{}, err
	}
	end, err := queryTime(q, "end", start.Add(DefaultAnalysisWindow))
	if err != nil {
		return model.TimeWindow{}, err
	}
	w := model.TimeWindow{Start: start, End: end}
	if err := w.Validate(); err != nil {
		return model.TimeWindow{}, err
	}
	return w, nil
}
