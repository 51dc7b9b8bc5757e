// ABOUTME: Drives one streaming chat-completion request and classifies its outcome
// ABOUTME: Decodes the body as it arrives; partial text is kept when the stream fails

package harness

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mauromedda/streamcheck/internal/config"
	"github.com/mauromedda/streamcheck/internal/httputil"
	pilog "github.com/mauromedda/streamcheck/internal/log"
	"github.com/mauromedda/streamcheck/internal/sse"
)

const maxErrorBody = 4096

// Tester sends a single streaming request and reports what came back.
type Tester struct {
	client          *httputil.Client
	path            string
	requestTimeout  time.Duration
	readTimeout     time.Duration
	maxDuration     time.Duration
	failOnMalformed bool
}

// Watchdogs that can abort a request.
const (
	watchNone int32 = iota
	watchHeaders
	watchIdle
)

// NewTester creates a Tester for cfg's completion endpoint.
func NewTester(client *httputil.Client, cfg *config.Config) *Tester {
	return &Tester{
		client:          client,
		path:            cfg.CompletionPath,
		requestTimeout:  cfg.RequestTimeout,
		readTimeout:     cfg.ReadTimeout(),
		maxDuration:     cfg.MaxDuration,
		failOnMalformed: cfg.FailOnMalformed,
	}
}

// Test runs request number index. It never returns an error: every failure is
// folded into the outcome so the run can continue with the next request.
//
// The request timeout bounds the wait for response headers and each silence in
// the body, not the whole stream; only MaxDuration caps the total. A failure
// caused by ctx being cancelled is marked Cancelled.
func (t *Tester) Test(ctx context.Context, index int, req ChatRequest) RequestOutcome {
	start := time.Now()
	parent := ctx
	out := RequestOutcome{Index: index, RequestID: uuid.NewString()}

	fail := func(err *RequestError) RequestOutcome {
		out.Succeeded = false
		out.Cancelled = parent.Err() != nil
		out.Err = err
		out.FailureReason = err.Error()
		out.Duration = time.Since(start)
		return out
	}

	if err := req.Validate(); err != nil {
		return fail(protocolErr(fmt.Errorf("invalid request: %w", err)))
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fail(protocolErr(fmt.Errorf("marshaling request: %w", err)))
	}

	var cancel context.CancelFunc
	if t.maxDuration > 0 {
		ctx, cancel = context.WithTimeout(ctx, t.maxDuration)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	var fired atomic.Int32
	headers := time.AfterFunc(t.requestTimeout, func() {
		fired.CompareAndSwap(watchNone, watchHeaders)
		cancel()
	})

	pilog.Debug("http: POST %s request=%d id=%s", t.client.URL(t.path), index, out.RequestID)
	resp, err := t.client.PostStream(ctx, t.path, body, out.RequestID)
	headers.Stop()
	if err != nil {
		return fail(transportErr(t.describe(ctx, err, fired.Load())))
	}
	defer resp.Body.Close()
	out.StatusCode = resp.StatusCode
	pilog.Debug("http: POST %s → %d", t.client.URL(t.path), resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fail(serverErr(resp.StatusCode, strings.TrimSpace(string(errBody))))
	}

	watched := httputil.NewIdleReader(resp.Body, t.readTimeout, func() {
		fired.CompareAndSwap(watchNone, watchIdle)
		cancel()
	})
	defer watched.Stop()

	acc, streamErr := t.consume(sse.NewReader(watched), start, &out)
	res := acc.Result()
	out.Text = res.Text
	out.ChunkCount = res.ChunkCount
	out.MalformedCount = res.MalformedCount
	out.BytesReceived = watched.BytesRead()

	switch {
	case streamErr == nil && res.TerminatedCleanly:
	case errors.Is(streamErr, sse.ErrTruncated):
		return fail(protocolErr(sse.ErrTruncated))
	case errors.Is(streamErr, bufio.ErrTooLong):
		return fail(protocolErr(fmt.Errorf("frame exceeds line limit: %w", streamErr)))
	case streamErr != nil:
		return fail(transportErr(t.describe(ctx, streamErr, fired.Load())))
	default:
		return fail(protocolErr(sse.ErrTruncated))
	}

	if t.failOnMalformed && res.MalformedCount > 0 {
		return fail(protocolErr(fmt.Errorf("%d malformed frame(s) in stream", res.MalformedCount)))
	}

	out.Succeeded = true
	out.Duration = time.Since(start)
	return out
}

// consume reads events until the terminator or an error. A nil error means the
// stream ended with StreamEnd.
func (t *Tester) consume(r *sse.Reader, start time.Time, out *RequestOutcome) (*Accumulator, error) {
	acc := &Accumulator{}
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			return acc, nil
		}
		if err != nil {
			return acc, err
		}
		acc.Add(*ev)

		switch ev.Kind {
		case sse.ContentDelta:
			if acc.ChunkCount() == 1 {
				out.TimeToFirstChunk = time.Since(start)
			}
			pilog.Debug("request %d: chunk %d: %q", out.Index, acc.ChunkCount(), ev.Text)
		case sse.Malformed:
			pilog.Warn("request %d: malformed frame tolerated: %.200s", out.Index, ev.Raw)
		case sse.StreamEnd:
			pilog.Debug("request %d: stream completed with [DONE]", out.Index)
			return acc, nil
		}
	}
}

// describe adds the watchdog or deadline that fired, if any, to a transport error.
func (t *Tester) describe(ctx context.Context, err error, fired int32) error {
	switch {
	case fired == watchHeaders:
		return fmt.Errorf("no response headers within %s: %w", t.requestTimeout, err)
	case fired == watchIdle:
		return fmt.Errorf("no data for %s mid-stream: %w", t.readTimeout, err)
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("request exceeded max duration %s: %w", t.maxDuration, err)
	default:
		return err
	}
}
