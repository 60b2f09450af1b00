package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"

	"github.com/semmidev/phylaxctl/internal/domain"
	"github.com/semmidev/phylaxctl/internal/infrastructure/metrics"
)

// DefaultPollInterval separates two verification status requests.
const DefaultPollInterval = 2500 * time.Millisecond

var (
	// ErrPollStopped is returned when a poll session is cancelled.
	ErrPollStopped = errors.New("verification polling stopped")

	errStillVerifying = errors.New("verification still in progress")
)

// StatusPoller asks the backend for the verification state of a connection
// until it reports a terminal state. Requests are strictly sequential.
type StatusPoller struct {
	api      domain.ConnectionAPI
	clock    clock.Clock
	interval time.Duration
	logger   Logger
}

func NewStatusPoller(api domain.ConnectionAPI, clk clock.Clock, interval time.Duration, logger Logger) *StatusPoller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &StatusPoller{api: api, clock: clk, interval: interval, logger: logger}
}

// Poll blocks until a terminal state arrives, stop is closed, or the
// backend returns a value the client cannot interpret. Request failures
// are retried on the same interval. onProgress sees every non-terminal
// state and may be nil.
func (p *StatusPoller) Poll(
	ctx context.Context,
	connectionID string,
	stop <-chan struct{},
	onProgress func(domain.VerifyState),
) (domain.VerificationStatus, error) {
	var (
		terminal domain.VerificationStatus
		fatal    error
	)

	err := retry.Call(retry.CallArgs{
		Func: func() error {
			status, err := p.api.GetVerificationStatus(ctx, connectionID)
			if err != nil {
				return err
			}
			if status.State.Terminal() {
				terminal = status
				return nil
			}
			metrics.PollRequests.WithLabelValues("pending").Inc()
			if onProgress != nil {
				onProgress(status.State)
			}
			return errStillVerifying
		},
		IsFatalError: func(err error) bool {
			if errors.Is(err, domain.ErrUnexpectedValue) {
				fatal = err
				return true
			}
			return ctx.Err() != nil
		},
		NotifyFunc: func(err error, attempt int) {
			if errors.Is(err, errStillVerifying) {
				p.logger.Debugf("[%s] Verification pending (request %d)", connectionID, attempt)
				return
			}
			metrics.PollRequests.WithLabelValues("transient").Inc()
			p.logger.Warnf("[%s] Status request %d failed, retrying: %v", connectionID, attempt, err)
		},
		Attempts: -1,
		Delay:    p.interval,
		Clock:    p.clock,
		Stop:     stop,
	})

	switch {
	case err == nil:
		metrics.PollRequests.WithLabelValues(string(terminal.State)).Inc()
		return terminal, nil
	case fatal != nil:
		metrics.PollRequests.WithLabelValues("fatal").Inc()
		return domain.VerificationStatus{}, fmt.Errorf("poll verification status: %w", fatal)
	case retry.IsRetryStopped(err), ctx.Err() != nil:
		return domain.VerificationStatus{}, ErrPollStopped
	default:
		return domain.VerificationStatus{}, fmt.Errorf("poll verification status: %w", err)
	}
}
