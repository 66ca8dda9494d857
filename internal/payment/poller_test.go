package payment

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

type checkResult struct {
	status OrderStatus
	err    error
}

// scriptedChecker replays a fixed sequence of results; once exhausted it
// keeps returning the last one.
type scriptedChecker struct {
	mu      sync.Mutex
	results []checkResult
	calls   int
}

func (c *scriptedChecker) CheckStatus(ctx context.Context, orderID string) (OrderStatus, error) {
	if err := ctx.Err(); err != nil {
		return StatusUnknown, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.calls
	c.calls++
	if i >= len(c.results) {
		i = len(c.results) - 1
	}
	r := c.results[i]
	return r.status, r.err
}

func (c *scriptedChecker) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type terminalRecorder struct {
	success chan string
	failure chan string
}

func newTerminalRecorder() *terminalRecorder {
	return &terminalRecorder{
		success: make(chan string, 8),
		failure: make(chan string, 8),
	}
}

func (r *terminalRecorder) onSuccess(orderID string)   { r.success <- orderID }
func (r *terminalRecorder) onFailure(_, reason string) { r.failure <- reason }

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not finish in time")
	}
}

func TestPollerCompletesAfterPending(t *testing.T) {
	checker := &scriptedChecker{results: []checkResult{
		{status: StatusPending},
		{status: StatusPending},
		{status: StatusCompleted},
	}}
	rec := newTerminalRecorder()
	p := NewPoller(checker, 5*time.Millisecond, time.Second, nil)

	s := p.Start("ord-1", rec.onSuccess, rec.onFailure)
	waitDone(t, s)

	select {
	case id := <-rec.success:
		if id != "ord-1" {
			t.Errorf("success for wrong order %q", id)
		}
	default:
		t.Fatal("expected success callback")
	}
	if len(rec.success) != 0 {
		t.Error("success callback fired more than once")
	}
	if len(rec.failure) != 0 {
		t.Error("failure callback fired alongside success")
	}

	// No further checks after the terminal state.
	calls := checker.callCount()
	time.Sleep(30 * time.Millisecond)
	if got := checker.callCount(); got != calls {
		t.Errorf("polling continued after terminal state: %d -> %d calls", calls, got)
	}
	if s.Active() {
		t.Error("session still active after completion")
	}
}

func TestPollerHTTPErrorIsTerminal(t *testing.T) {
	checker := &scriptedChecker{results: []checkResult{
		{err: &StatusError{StatusCode: 404}},
	}}
	rec := newTerminalRecorder()
	p := NewPoller(checker, 5*time.Millisecond, time.Second, nil)

	s := p.Start("ord-2", rec.onSuccess, rec.onFailure)
	waitDone(t, s)

	select {
	case reason := <-rec.failure:
		if !strings.Contains(reason, "404") {
			t.Errorf("failure reason %q does not mention HTTP status", reason)
		}
	default:
		t.Fatal("expected failure callback")
	}
	if len(rec.failure) != 0 || len(rec.success) != 0 {
		t.Error("expected exactly one terminal callback")
	}
	if got := checker.callCount(); got != 1 {
		t.Errorf("expected 1 check, got %d", got)
	}
}

func TestPollerExplicitFailureStates(t *testing.T) {
	for _, status := range []OrderStatus{StatusFailed, StatusCancelled} {
		t.Run(status.String(), func(t *testing.T) {
			checker := &scriptedChecker{results: []checkResult{
				{status: StatusPending},
				{status: status},
			}}
			rec := newTerminalRecorder()
			p := NewPoller(checker, 5*time.Millisecond, time.Second, nil)

			s := p.Start("ord-3", rec.onSuccess, rec.onFailure)
			waitDone(t, s)

			select {
			case reason := <-rec.failure:
				if !strings.Contains(reason, status.String()) {
					t.Errorf("failure reason %q does not carry state %q", reason, status)
				}
			default:
				t.Fatal("expected failure callback")
			}
			if len(rec.success) != 0 {
				t.Error("unexpected success callback")
			}
		})
	}
}

func TestPollerTimeout(t *testing.T) {
	checker := &scriptedChecker{results: []checkResult{{status: StatusPending}}}
	rec := newTerminalRecorder()
	p := NewPoller(checker, 10*time.Millisecond, 60*time.Millisecond, nil)

	s := p.Start("ord-4", rec.onSuccess, rec.onFailure)
	waitDone(t, s)

	select {
	case reason := <-rec.failure:
		if !strings.Contains(reason, "timed out") {
			t.Errorf("failure reason %q is not a timeout message", reason)
		}
	default:
		t.Fatal("expected failure callback on timeout")
	}
	if len(rec.failure) != 0 || len(rec.success) != 0 {
		t.Error("expected exactly one terminal callback")
	}

	// No checks after expiry.
	calls := checker.callCount()
	time.Sleep(40 * time.Millisecond)
	if got := checker.callCount(); got != calls {
		t.Errorf("polling continued after timeout: %d -> %d calls", calls, got)
	}
}

func TestPollerUnknownStateKeepsPolling(t *testing.T) {
	checker := &scriptedChecker{results: []checkResult{
		{status: StatusUnknown},
		{status: StatusUnknown},
		{status: StatusCompleted},
	}}
	rec := newTerminalRecorder()
	p := NewPoller(checker, 5*time.Millisecond, time.Second, nil)

	s := p.Start("ord-5", rec.onSuccess, rec.onFailure)
	waitDone(t, s)

	if len(rec.success) != 1 {
		t.Fatalf("expected success after unknown states, got %d successes %d failures", len(rec.success), len(rec.failure))
	}
}

func TestPollerStopIsIdempotent(t *testing.T) {
	checker := &scriptedChecker{results: []checkResult{{status: StatusPending}}}
	rec := newTerminalRecorder()
	p := NewPoller(checker, 5*time.Millisecond, time.Second, nil)

	s := p.Start("ord-6", rec.onSuccess, rec.onFailure)
	time.Sleep(12 * time.Millisecond)

	s.Stop()
	s.Stop() // second stop is a no-op
	waitDone(t, s)

	if len(rec.success) != 0 || len(rec.failure) != 0 {
		t.Error("stopped session must not fire callbacks")
	}
	if s.Active() {
		t.Error("session still active after Stop")
	}

	calls := checker.callCount()
	time.Sleep(30 * time.Millisecond)
	if got := checker.callCount(); got != calls {
		t.Errorf("polling continued after Stop: %d -> %d calls", calls, got)
	}
}

// slowChecker blocks until its context is cancelled, simulating a request
// still in flight when the session is stopped.
type slowChecker struct{}

func (slowChecker) CheckStatus(ctx context.Context, orderID string) (OrderStatus, error) {
	<-ctx.Done()
	return StatusUnknown, ctx.Err()
}

func TestPollerLateResponseAfterStop(t *testing.T) {
	rec := newTerminalRecorder()
	p := NewPoller(slowChecker{}, 5*time.Millisecond, time.Second, nil)

	s := p.Start("ord-7", rec.onSuccess, rec.onFailure)
	time.Sleep(10 * time.Millisecond)
	s.Stop()
	waitDone(t, s)

	if len(rec.success) != 0 || len(rec.failure) != 0 {
		t.Error("in-flight check resolved after Stop must not fire callbacks")
	}
}
