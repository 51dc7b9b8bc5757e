// ABOUTME: Tests for the progress reporter, verdict wording and JSON summary
// ABOUTME: Output goes to a buffer so styling is disabled and text is compared verbatim

package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mauromedda/streamcheck/internal/harness"
)

func ok(index int, text string) harness.RequestOutcome {
	return harness.RequestOutcome{
		Index:         index,
		Succeeded:     true,
		Text:          text,
		ChunkCount:    5,
		BytesReceived: 1200,
		RequestID:     "req-" + text,
		Duration:      120 * time.Millisecond,
	}
}

func failed(index int, reason string) harness.RequestOutcome {
	return harness.RequestOutcome{
		Index:         index,
		FailureReason: reason,
		Err:           &harness.RequestError{Kind: harness.TransportError, Err: errors.New(reason)},
		Duration:      40 * time.Millisecond,
	}
}

func summaryOf(outcomes ...harness.RequestOutcome) *harness.RunSummary {
	s := &harness.RunSummary{Planned: len(outcomes), Total: len(outcomes), Outcomes: outcomes}
	for _, o := range outcomes {
		if o.Succeeded {
			s.Succeeded++
		}
	}
	return s
}

func TestVerdictLines(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		summary *harness.RunSummary
		want    []string
	}{
		{
			name:    "full pass",
			summary: summaryOf(ok(1, "a"), ok(2, "b")),
			want:    []string{"✓ All streaming requests succeeded!", "✓ No evidence of second request failures"},
		},
		{
			name:    "total failure",
			summary: summaryOf(failed(1, "x"), failed(2, "y")),
			want:    []string{"✗ All requests failed - server may not be responding"},
		},
		{
			name:    "nothing ran",
			summary: &harness.RunSummary{Planned: 3},
			want:    []string{"⚠ No request completed; nothing to judge"},
		},
		{
			name:    "isolated",
			summary: summaryOf(ok(1, "a"), failed(2, "x"), ok(3, "c")),
			want:    []string{"⚠ 1 requests failed (#2)", "The failure looks isolated: only request 2 failed"},
		},
		{
			name:    "degrading",
			summary: summaryOf(ok(1, "a"), failed(2, "x"), failed(3, "y")),
			want: []string{
				"⚠ 2 requests failed (#2, #3)",
				"Requests succeeded until request 2 and failed from then on",
				"This may indicate an issue with consecutive streaming requests",
			},
		},
		{
			name:    "only the last request fails",
			summary: summaryOf(ok(1, "a"), ok(2, "b"), failed(3, "x")),
			want: []string{
				"⚠ 1 requests failed (#3)",
				"Requests succeeded until request 3 and failed from then on",
				"This may indicate an issue with consecutive streaming requests",
			},
		},
		{
			name:    "recurring",
			summary: summaryOf(failed(1, "x"), ok(2, "b"), failed(3, "y")),
			want: []string{
				"⚠ 2 requests failed (#1, #3)",
				"Failures recur across the run",
				"This may indicate an issue with consecutive streaming requests",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, VerdictLines(tt.summary))
		})
	}
}

func TestReporter_Progress(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := New(&buf)

	r.HealthChecked(harness.HealthResult{Healthy: true, StatusCode: 200, Latency: 3 * time.Millisecond, Attempts: 1})
	r.RequestStarted(1, 2)
	first := ok(1, "Hello! How can I help")
	first.TimeToFirstChunk = 30 * time.Millisecond
	r.RequestFinished(first)
	r.RequestStarted(2, 2)
	partial := failed(2, "stream truncated before terminator")
	partial.Text = "Hello!"
	partial.ChunkCount = 2
	partial.BytesReceived = 300
	r.RequestFinished(partial)

	out := buf.String()
	assert.Contains(t, out, "✓ Server is running and healthy (3ms)")
	assert.Contains(t, out, "=== Request 1/2 ===")
	assert.Contains(t, out, "SUCCESS: 5 chunks, 1.2 kB in 120ms (first chunk after 30ms, local)")
	assert.Contains(t, out, `Full response: "Hello! How can I help"`)
	assert.Contains(t, out, "FAILED [transport]: stream truncated before terminator")
	assert.Contains(t, out, `Partial response: "Hello!"`)
	assert.NotContains(t, out, "\x1b[", "no escape codes when writing to a buffer")
}

func TestReporter_InterruptedRequest(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := New(&buf)

	inFlight := failed(2, "context canceled")
	inFlight.Cancelled = true
	r.RequestFinished(inFlight)

	s := summaryOf(ok(1, "a"))
	s.Planned = 3
	s.Interrupted = true
	s.InFlight = &inFlight
	r.RunFinished(s)

	out := buf.String()
	assert.Contains(t, out, "CANCELLED: interrupted after 40ms; not counted")
	assert.NotContains(t, out, "FAILED")
	assert.Contains(t, out, "Request 2 was in flight and is excluded from the verdict")
	assert.Contains(t, out, "✓ All streaming requests succeeded!")

	buf.Reset()
	require.NoError(t, WriteJSON(&buf, s))
	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.EqualValues(t, 2, doc["in_flight_request"])
}

func TestReporter_HealthFailures(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := New(&buf)
	r.HealthChecked(harness.HealthResult{StatusCode: 503, Attempts: 3})
	r.HealthChecked(harness.HealthResult{Err: errors.New("connection refused"), Attempts: 1})

	out := buf.String()
	assert.Contains(t, out, "✗ Health check failed with status 503, 3 attempts")
	assert.Contains(t, out, "✗ Cannot connect to server: connection refused")
}

func TestReporter_RunFinished(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	s := summaryOf(ok(1, "first reply"), failed(2, "connection reset by peer"), ok(3, "third reply"))
	s.Planned = 5
	s.Interrupted = true
	s.Outcomes[0].TimeToFirstChunk = 20 * time.Millisecond
	s.Outcomes[2].TimeToFirstChunk = 60 * time.Millisecond
	New(&buf).RunFinished(s)

	out := buf.String()
	assert.Contains(t, out, "=== SUMMARY ===")
	assert.Contains(t, out, "first reply")
	assert.Contains(t, out, "FAIL transport")
	assert.Contains(t, out, "connection reset by peer")
	assert.Contains(t, out, "Successful requests: 2/3")
	assert.Contains(t, out, "First chunk latency: min 20ms, median 60ms, max 60ms")
	assert.Contains(t, out, "⚠ Run interrupted after 3 of 5 requests")
	assert.Contains(t, out, "The failure looks isolated: only request 2 failed")
}

func TestPreview(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a b c", preview("a\nb\t c"))
	long := preview(strings.Repeat("x", 100))
	assert.LessOrEqual(t, len([]rune(long)), previewWidth)
	assert.True(t, strings.HasSuffix(long, "…"))
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, summaryOf(ok(1, "hi"), failed(2, "boom"))))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "partial-failure", doc["verdict"])
	assert.EqualValues(t, 2, doc["total"])
	assert.EqualValues(t, 1, doc["succeeded"])

	outcomes := doc["outcomes"].([]any)
	require.Len(t, outcomes, 2)
	second := outcomes[1].(map[string]any)
	assert.Equal(t, "transport", second["error_kind"])
	assert.Equal(t, "boom", second["failure_reason"])
	assert.Equal(t, "hi", outcomes[0].(map[string]any)["reconstructed_text"])
}
