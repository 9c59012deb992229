package usage

import "time"

// Record aggregates completed calls for a berth and day.
type Record struct {
	BerthID      string    `json:"berth_id"`
	Date         time.Time `json:"date"`
	ServiceHours float64   `json:"service_hours"`
	WaitHours    float64   `json:"wait_hours"`
	Calls        int       `json:"calls"`
}

// Utilisation returns the fraction of the day spent servicing vessels.
func (r Record) Utilisation() float64 {
	return r.ServiceHours / 24
}

// MeanWait returns the average wait per call in hours.
func (r Record) MeanWait() float64 {
	if r.Calls == 0 {
		return 0
	}
	return r.WaitHours / float64(r.Calls)
}
