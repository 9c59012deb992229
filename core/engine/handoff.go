package engine

import (
	"context"
	"sync"
	"time"

	"github.com/kilianp07/berthplan/core/schedule"
)

// notifyQueueSize bounds summaries waiting for a slow notifier. Further
// summaries are dropped and logged.
const notifyQueueSize = 256

// turnstile lets post-commit work run outside the write lock while keeping
// commit order: tickets are taken under the write lock and served in turn.
type turnstile struct {
	mu      sync.Mutex
	cond    *sync.Cond
	next    uint64
	serving uint64
}

func newTurnstile() *turnstile {
	t := &turnstile{}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// take must be called while holding the engine write lock.
func (t *turnstile) take() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := t.next
	t.next++
	return n
}

func (t *turnstile) wait(ticket uint64) {
	t.mu.Lock()
	for t.serving != ticket {
		t.cond.Wait()
	}
	t.mu.Unlock()
}

func (t *turnstile) done() {
	t.mu.Lock()
	t.serving++
	t.cond.Broadcast()
	t.mu.Unlock()
}

type notification struct {
	ctx context.Context
	sum Summary
}

// committed is an applied update waiting for its side effects.
type committed struct {
	update schedule.Update
	next   *schedule.Schedule
	sum    Summary
	raw    []byte
	took   time.Duration
}

// release hands a finished write over: it takes a publication ticket, drops
// the write lock and runs the side effects of c in commit order. The caller
// must hold writeMu.
func (e *Engine) release(ctx context.Context, sum Summary, c *committed, err error) (Summary, error) {
	if c == nil {
		e.writeMu.Unlock()
		if err != nil {
			return Summary{}, err
		}
		return sum, nil
	}
	ticket := e.turns.take()
	e.writeMu.Unlock()
	e.turns.wait(ticket)
	defer e.turns.done()
	e.publish(ctx, c)
	return sum, nil
}

// enqueueNotify hands sum to the notifier goroutine without blocking.
func (e *Engine) enqueueNotify(ctx context.Context, sum Summary) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.notifier == nil || e.notifyQ == nil {
		return
	}
	select {
	case e.notifyQ <- notification{ctx: context.WithoutCancel(ctx), sum: sum}:
	default:
		e.log.Errorf("notify queue full, dropping update %s", sum.UpdateID)
	}
}

func (e *Engine) notifyLoop(q <-chan notification) {
	defer e.notifyWG.Done()
	for n := range q {
		e.mu.RLock()
		notifier := e.notifier
		e.mu.RUnlock()
		if notifier == nil {
			continue
		}
		if err := notifier.NotifySchedule(n.ctx, n.sum); err != nil {
			e.log.Errorf("notify %s: %v", n.sum.UpdateID, err)
		}
	}
}
