// ABOUTME: Time-to-first-chunk classification and per-run latency spread
// ABOUTME: Local (<50ms), Fast (<500ms) or Slow; slow first chunks often precede drops

package harness

import (
	"slices"
	"time"
)

// LatencyClass buckets a time-to-first-chunk measurement.
type LatencyClass int

const (
	LatencyUnknown LatencyClass = iota
	LatencyLocal                // <50ms
	LatencyFast                 // <500ms
	LatencySlow                 // >=500ms
)

func (l LatencyClass) String() string {
	switch l {
	case LatencyLocal:
		return "local"
	case LatencyFast:
		return "fast"
	case LatencySlow:
		return "slow"
	default:
		return "unknown"
	}
}

// ClassifyLatency maps a first-chunk delay to a LatencyClass. Zero means no
// content arrived and yields LatencyUnknown.
func ClassifyLatency(d time.Duration) LatencyClass {
	switch {
	case d <= 0:
		return LatencyUnknown
	case d < 50*time.Millisecond:
		return LatencyLocal
	case d < 500*time.Millisecond:
		return LatencyFast
	default:
		return LatencySlow
	}
}

// Latency classifies the request's time to first chunk.
func (o RequestOutcome) Latency() LatencyClass {
	return ClassifyLatency(o.TimeToFirstChunk)
}

// LatencySpread summarises time-to-first-chunk over the requests that received content.
type LatencySpread struct {
	Samples int
	Min     time.Duration
	Median  time.Duration
	Max     time.Duration
}

// FirstChunkSpread returns the spread of time-to-first-chunk across the run.
// Samples is zero when no request received content.
func (s *RunSummary) FirstChunkSpread() LatencySpread {
	var d []time.Duration
	for _, o := range s.Outcomes {
		if o.TimeToFirstChunk > 0 {
			d = append(d, o.TimeToFirstChunk)
		}
	}
	if len(d) == 0 {
		return LatencySpread{}
	}
	slices.Sort(d)
	return LatencySpread{
		Samples: len(d),
		Min:     d[0],
		Median:  d[len(d)/2],
		Max:     d[len(d)-1],
	}
}
