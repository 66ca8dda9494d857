package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultPollInterval = 3 * time.Second
	defaultPollTimeout  = 60 * time.Second
)

// Poller watches a provider order until it reaches a terminal state or the
// poll deadline elapses. Each Start spawns one Session; the session invokes
// exactly one terminal callback (success or failure) and never both.
type Poller struct {
	checker  StatusChecker
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger
}

func NewPoller(checker StatusChecker, interval, timeout time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if timeout <= 0 {
		timeout = defaultPollTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		checker:  checker,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
	}
}

// Session is a single polling run for one order. Owned by whoever called
// Start; Stop is safe to call any number of times and from any goroutine.
type Session struct {
	orderID string
	cancel  context.CancelFunc
	done    chan struct{}

	mu     sync.Mutex
	active bool
}

func (s *Session) OrderID() string { return s.orderID }

// Done is closed once the session's goroutine has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Stop cancels the session without firing any callback. Idempotent; a check
// already in flight will observe the cancellation and exit silently.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	s.mu.Unlock()
	s.cancel()
}

// deactivate flips the session inactive. Returns false if the session was
// already finished or stopped, in which case the caller must not fire its
// callback. This is the at-most-once guard for terminal callbacks.
func (s *Session) deactivate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return false
	}
	s.active = false
	return true
}

// Start begins polling the given order. An immediate check runs first, then
// one check per interval until a terminal state, an error, or the timeout.
// Callbacks run on the session's goroutine.
func (p *Poller) Start(orderID string, onSuccess func(orderID string), onFailure func(orderID, reason string)) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		orderID: orderID,
		cancel:  cancel,
		done:    make(chan struct{}),
		active:  true,
	}
	go p.run(ctx, s, onSuccess, onFailure)
	return s
}

func (p *Poller) run(ctx context.Context, s *Session, onSuccess func(string), onFailure func(string, string)) {
	defer close(s.done)
	defer s.cancel()

	deadline := time.NewTimer(p.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	if p.check(ctx, s, onSuccess, onFailure) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			if s.deactivate() {
				p.logger.Warn("order status polling timed out",
					zap.String("order_id", s.orderID),
					zap.Duration("timeout", p.timeout))
				onFailure(s.orderID, fmt.Sprintf("timed out waiting for payment confirmation after %s", p.timeout))
			}
			return
		case <-ticker.C:
			if p.check(ctx, s, onSuccess, onFailure) {
				return
			}
		}
	}
}

// check performs one status request. Returns true when the session is
// finished and the polling loop should exit.
func (p *Poller) check(ctx context.Context, s *Session, onSuccess func(string), onFailure func(string, string)) bool {
	status, err := p.checker.CheckStatus(ctx, s.orderID)
	if err != nil {
		if ctx.Err() != nil {
			// Stopped while the request was in flight; no callback.
			return true
		}
		if s.deactivate() {
			p.logger.Warn("order status check failed",
				zap.String("order_id", s.orderID),
				zap.Error(err))
			onFailure(s.orderID, fmt.Sprintf("order status check failed: %v", err))
		}
		return true
	}

	switch status {
	case StatusCompleted:
		if s.deactivate() {
			onSuccess(s.orderID)
		}
		return true
	case StatusFailed, StatusCancelled:
		if s.deactivate() {
			onFailure(s.orderID, "payment "+status.String())
		}
		return true
	case StatusCreated, StatusPending, StatusAuthorised:
		return false
	default:
		// Soft no-op: log and keep waiting for a state we understand.
		p.logger.Warn("unrecognized order state, continuing to poll",
			zap.String("order_id", s.orderID),
			zap.String("state", status.String()))
		return false
	}
}
