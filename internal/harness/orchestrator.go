// ABOUTME: Reliability run state machine: health check, then N sequential paced requests
// ABOUTME: Publishes progress to an Observer and returns the run summary

package harness

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/mauromedda/streamcheck/internal/config"
	"github.com/mauromedda/streamcheck/internal/httputil"
	pilog "github.com/mauromedda/streamcheck/internal/log"
)

// State is a phase of a reliability run.
type State int32

const (
	NotStarted State = iota
	HealthChecking
	Aborted
	Running
	Completed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case HealthChecking:
		return "health-checking"
	case Aborted:
		return "aborted"
	case Running:
		return "running"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

// Observer receives progress notifications. Calls happen on the run's goroutine.
type Observer interface {
	HealthChecked(HealthResult)
	RequestStarted(index, total int)
	RequestFinished(RequestOutcome)
	RunFinished(*RunSummary)
}

type nopObserver struct{}

func (nopObserver) HealthChecked(HealthResult)     {}
func (nopObserver) RequestStarted(int, int)        {}
func (nopObserver) RequestFinished(RequestOutcome) {}
func (nopObserver) RunFinished(*RunSummary)        {}

type healthChecker interface {
	Wait(ctx context.Context) HealthResult
}

type requestTester interface {
	Test(ctx context.Context, index int, req ChatRequest) RequestOutcome
}

// Orchestrator runs one reliability run. It is single-use.
type Orchestrator struct {
	cfg      *config.Config
	client   *httputil.Client
	prober   healthChecker
	tester   requestTester
	observer Observer
	state    atomic.Int32
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithObserver sets the progress observer.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// NewClient builds the HTTP client for cfg's server, authenticated with its API key.
func NewClient(cfg *config.Config) *httputil.Client {
	return httputil.NewClient(cfg.BaseURL, httputil.WithBearerToken(cfg.APIKey))
}

// WithClient overrides the HTTP client shared by the prober and the tester.
func WithClient(c *httputil.Client) Option {
	return func(o *Orchestrator) {
		o.client = c
		o.prober = NewProber(c, o.cfg)
		o.tester = NewTester(c, o.cfg)
	}
}

// New creates an Orchestrator for cfg, which should already be validated.
func New(cfg *config.Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		observer: nopObserver{},
	}
	WithClient(NewClient(cfg))(o)
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current phase of the run.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

func (o *Orchestrator) setState(s State) {
	pilog.Debug("run: %s → %s", o.State(), s)
	o.state.Store(int32(s))
}

// Run checks liveness and then issues the configured number of requests strictly
// one after another, pausing between them. Pooled connections are closed on return.
//
// If the health check fails, Run returns an error wrapping ErrUnhealthy and no
// request is sent. If ctx is cancelled, no new request starts; the partial
// summary is returned together with ctx's error. A request aborted by the
// cancellation is kept aside in InFlight rather than counted as a failure.
// Individual request failures are recorded in the summary and never returned as
// errors.
func (o *Orchestrator) Run(ctx context.Context) (*RunSummary, error) {
	if !o.state.CompareAndSwap(int32(NotStarted), int32(HealthChecking)) {
		return nil, errors.New("orchestrator has already run")
	}
	start := time.Now()
	defer o.client.CloseIdleConnections()

	health := o.prober.Wait(ctx)
	o.observer.HealthChecked(health)
	if !health.Healthy {
		o.setState(Aborted)
		return nil, fmt.Errorf("%w: %v", ErrUnhealthy, health.Err)
	}

	o.setState(Running)
	n := o.cfg.Requests
	summary := newSummary(n)

	for i := 1; i <= n; i++ {
		if ctx.Err() != nil {
			summary.Interrupted = true
			break
		}

		o.observer.RequestStarted(i, n)
		out := o.tester.Test(ctx, i, NewChatRequest(o.cfg))
		summary.record(out)
		o.observer.RequestFinished(out)
		if out.Cancelled {
			break
		}

		if i < n {
			if err := pause(ctx, o.cfg.Delay); err != nil {
				summary.Interrupted = true
				break
			}
		}
	}

	summary.Duration = time.Since(start)
	o.setState(Completed)
	o.observer.RunFinished(summary)

	if summary.Interrupted {
		return summary, ctx.Err()
	}
	return summary, nil
}

// pause waits for d or until ctx is cancelled.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
