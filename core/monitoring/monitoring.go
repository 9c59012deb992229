// Package monitoring routes unexpected engine failures to an error tracker.
// Client mistakes (unknown ids, malformed events) are not reported.
package monitoring

import (
	"errors"
	"time"

	"github.com/kilianp07/berthplan/core/model"
	"github.com/kilianp07/berthplan/core/reschedule"
)

// Monitor defines methods used for error reporting.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	RecoverPanic(v any)
	Flush(timeout time.Duration)
}

type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) RecoverPanic(any)                          {}
func (NopMonitor) Flush(time.Duration)                       {}

var current Monitor = NopMonitor{}

// Init sets the global monitor implementation. A nil monitor resets to the
// no-op one.
func Init(m Monitor) {
	if m == nil {
		m = NopMonitor{}
	}
	current = m
}

// Reportable is false for errors caused by the caller rather than the engine.
func Reportable(err error) bool {
	switch {
	case err == nil:
		return false
	case model.IsValidation(err), errors.Is(err, model.ErrNotFound), errors.Is(err, reschedule.ErrUnknownEvent):
		return false
	}
	return true
}

// CaptureException records the error with optional tags when it is
// reportable.
func CaptureException(err error, tags map[string]string) {
	if !Reportable(err) {
		return
	}
	current.CaptureException(err, tags)
}

// Recover reports a panic in the calling goroutine and re-panics. It must
// be deferred directly.
func Recover() {
	if v := recover(); v != nil {
		current.RecoverPanic(v)
		current.Flush(2 * time.Second)
		panic(v)
	}
}

// Flush flushes buffered events.
func Flush(d time.Duration) {
	current.Flush(d)
}
