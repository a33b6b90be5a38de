// Package worker implements the orchestrator side of the worker boundary:
// an AgentClient per remote worker and the transports it can speak.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/semaphore"

	"food-router/internal/domain"
	"food-router/internal/infra/config"
	"food-router/internal/infra/tracer"
)

// Default circuit breaker settings.
const (
	defaultCBMaxFailures uint32        = 5
	defaultCBTimeout     time.Duration = 30 * time.Second
	defaultCBInterval    time.Duration = 60 * time.Second

	defaultCallTimeout = 5 * time.Second
	// maxResponseBytes caps a worker reply body.
	maxResponseBytes = 1 << 20
)

// Options configures a Client.
type Options struct {
	// MaxConcurrent caps in-flight calls to the worker; 0 means unlimited.
	MaxConcurrent  int
	CircuitBreaker config.CircuitBreakerConfig
	Logger         *slog.Logger
}

// Client is the AgentClient for one worker. Call never returns an error and
// never outlives its timeout, even when the transport ignores cancellation.
type Client struct {
	id        domain.WorkerID
	transport domain.Transport
	sem       *semaphore.Weighted
	breaker   *gobreaker.CircuitBreaker[domain.WireResponse]
	logger    *slog.Logger
}

// NewClient binds a Client to a worker identity and transport.
func NewClient(id domain.WorkerID, t domain.Transport, opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		id:        id,
		transport: t,
		logger:    logger.With("worker", string(id)),
	}
	if opts.MaxConcurrent > 0 {
		c.sem = semaphore.NewWeighted(int64(opts.MaxConcurrent))
	}
	if opts.CircuitBreaker.Enabled {
		c.breaker = newBreaker(string(id), opts.CircuitBreaker, c.logger)
	}
	return c
}

func newBreaker(name string, cfg config.CircuitBreakerConfig, logger *slog.Logger) *gobreaker.CircuitBreaker[domain.WireResponse] {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultCBMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultCBTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultCBInterval
	}

	return gobreaker.NewCircuitBreaker[domain.WireResponse](gobreaker.Settings{
		Name:        "worker:" + name,
		MaxRequests: 1, // one probe while half-open
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		// A worker that answered with a business error is healthy.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrWorkerBusiness)
		},
	})
}

// ID returns the worker identity.
func (c *Client) ID() domain.WorkerID { return c.id }

// Call sends task to the worker and classifies the outcome. Waiting for a
// concurrency slot counts against timeout.
func (c *Client) Call(ctx context.Context, task domain.SubTask, timeout time.Duration) domain.WorkerResult {
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cctx, span := tracer.StartSpan(cctx, "worker.call")
	defer span.End()
	span.SetAttributes(
		tracer.StringAttr("worker", string(c.id)),
		tracer.StringAttr("task.id", task.ID),
		tracer.StringAttr("task.kind", string(task.Kind())),
	)

	req := domain.WireRequest{ID: uuid.NewString(), Kind: task.Kind(), Fields: task.Query.Fields()}

	// Buffered so the exchange goroutine never blocks after we stop waiting.
	done := make(chan domain.WorkerResult, 1)
	go func() {
		done <- c.exchange(cctx, req)
	}()

	var res domain.WorkerResult
	select {
	case res = <-done:
	case <-cctx.Done():
		res = domain.TimeoutResult()
	}

	if res.OK() {
		tracer.SetOK(span)
	} else {
		tracer.RecordFailure(span, string(res.Failure.Kind), res.Failure.Reason)
		c.logger.Debug("worker call failed",
			"request_id", req.ID,
			"kind", string(req.Kind),
			"failure", string(res.Failure.Kind),
			"reason", res.Failure.Reason,
		)
	}
	return res
}

func (c *Client) exchange(ctx context.Context, req domain.WireRequest) domain.WorkerResult {
	if c.sem != nil {
		if err := c.sem.Acquire(ctx, 1); err != nil {
			return domain.TimeoutResult()
		}
		defer c.sem.Release(1)
	}

	var (
		resp domain.WireResponse
		err  error
	)
	if c.breaker != nil {
		resp, err = c.breaker.Execute(func() (domain.WireResponse, error) {
			return c.send(ctx, req)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = domain.NewDomainError("Client.Call", domain.ErrCircuitOpen, string(c.id))
		}
	} else {
		resp, err = c.send(ctx, req)
	}
	if err != nil {
		return domain.ResultFromError(err)
	}
	return domain.Success(resp.Payload)
}

// send performs one exchange and turns a well-formed error reply into an
// ErrWorkerBusiness error so the breaker can tell it apart.
func (c *Client) send(ctx context.Context, req domain.WireRequest) (domain.WireResponse, error) {
	resp, err := c.transport.Send(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return resp, ctxErr
		}
		return resp, err
	}
	if resp.ID != "" && resp.ID != req.ID {
		return resp, fmt.Errorf("%w: response id %q for request %q", domain.ErrMalformedResponse, resp.ID, req.ID)
	}
	switch resp.Status {
	case domain.StatusOK:
		if len(resp.Payload) == 0 {
			return resp, fmt.Errorf("%w: ok without payload", domain.ErrMalformedResponse)
		}
		return resp, nil
	case domain.StatusError:
		reason := resp.Error
		if reason == "" {
			reason = "worker reported an error"
		}
		return resp, domain.NewDomainError("Client.Call", domain.ErrWorkerBusiness, reason)
	default:
		return resp, fmt.Errorf("%w: unknown status %q", domain.ErrMalformedResponse, resp.Status)
	}
}

// Card fetches the worker's self-description.
func (c *Client) Card(ctx context.Context, timeout time.Duration) (domain.AgentCard, error) {
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	card, err := c.transport.Card(cctx)
	if err != nil {
		return domain.AgentCard{}, domain.WrapOp("fetch agent card "+string(c.id), err)
	}
	return card, nil
}

// BreakerState reports the circuit state, or "disabled".
func (c *Client) BreakerState() string {
	if c.breaker == nil {
		return "disabled"
	}
	return c.breaker.State().String()
}

// Close releases the transport.
func (c *Client) Close() error {
	return c.transport.Close()
}
