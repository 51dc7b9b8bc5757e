// ABOUTME: Liveness probe run before any streaming request
// ABOUTME: Bounded GET on the health path; optional readiness wait via retry-go

package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/mauromedda/streamcheck/internal/config"
	"github.com/mauromedda/streamcheck/internal/httputil"
	pilog "github.com/mauromedda/streamcheck/internal/log"
)

// HealthResult is the outcome of a liveness check.
type HealthResult struct {
	Healthy    bool
	StatusCode int
	Latency    time.Duration
	Attempts   int
	// Err is the cause of an unhealthy result, a *RequestError.
	Err error
}

// Prober checks the server's liveness endpoint.
type Prober struct {
	client   *httputil.Client
	path     string
	timeout  time.Duration
	attempts int
	interval time.Duration
}

// NewProber creates a Prober for cfg's health endpoint.
func NewProber(client *httputil.Client, cfg *config.Config) *Prober {
	return &Prober{
		client:   client,
		path:     cfg.HealthPath,
		timeout:  cfg.HealthTimeout,
		attempts: max(cfg.HealthAttempts, 1),
		interval: cfg.HealthInterval,
	}
}

// Check performs a single probe. Any 2xx status within the timeout is healthy.
func (p *Prober) Check(ctx context.Context) HealthResult {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	resp, err := p.client.Get(ctx, p.path)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("no response within %s: %w", p.timeout, err)
		}
		return HealthResult{Latency: time.Since(start), Attempts: 1, Err: transportErr(err)}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	res := HealthResult{StatusCode: resp.StatusCode, Latency: time.Since(start), Attempts: 1}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		res.Err = serverErr(resp.StatusCode, "")
		return res
	}
	res.Healthy = true
	return res
}

// Wait probes until the server is healthy or the configured attempts run out.
// With a single attempt it is equivalent to Check.
func (p *Prober) Wait(ctx context.Context) HealthResult {
	var last HealthResult
	attempts := 0

	err := retry.Do(
		func() error {
			attempts++
			last = p.Check(ctx)
			if !last.Healthy {
				return last.Err
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(p.attempts)),
		retry.Delay(p.interval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			pilog.Debug("health: attempt %d/%d failed: %v", n+1, p.attempts, err)
		}),
	)

	last.Attempts = attempts
	// ctx may end before the first probe runs.
	if !last.Healthy && last.Err == nil {
		last.Err = transportErr(err)
	}
	return last
}
