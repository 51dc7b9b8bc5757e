// ABOUTME: Folds decoded SSE events into the reconstructed response text and counters
// ABOUTME: Accumulate is the pure fold; Accumulator.Add is its incremental form for live streams

package harness

import (
	"strings"

	"github.com/mauromedda/streamcheck/internal/sse"
)

// AccumulatedResponse is the result of folding a stream's events.
type AccumulatedResponse struct {
	Text       string
	ChunkCount int
	// MalformedCount counts frames that were tolerated but could not be decoded.
	MalformedCount int
	// TerminatedCleanly is true iff the last event observed was StreamEnd.
	TerminatedCleanly bool
}

// Accumulator builds an AccumulatedResponse one event at a time.
type Accumulator struct {
	text      strings.Builder
	chunks    int
	malformed int
	last      sse.Kind
}

// Add folds ev into the accumulator.
func (a *Accumulator) Add(ev sse.Event) {
	a.last = ev.Kind
	switch ev.Kind {
	case sse.ContentDelta:
		a.text.WriteString(ev.Text)
		a.chunks++
	case sse.Malformed:
		a.malformed++
	}
}

// ChunkCount returns the number of content deltas folded so far.
func (a *Accumulator) ChunkCount() int {
	return a.chunks
}

// Result returns the current state of the fold.
func (a *Accumulator) Result() AccumulatedResponse {
	return AccumulatedResponse{
		Text:              a.text.String(),
		ChunkCount:        a.chunks,
		MalformedCount:    a.malformed,
		TerminatedCleanly: a.last == sse.StreamEnd,
	}
}

// Accumulate folds events in order.
func Accumulate(events []sse.Event) AccumulatedResponse {
	var a Accumulator
	for _, ev := range events {
		a.Add(ev)
	}
	return a.Result()
}
