// ABOUTME: Per-request outcomes and the run summary with verdict and failure pattern
// ABOUTME: Outcomes are immutable once recorded; the summary is derived after the run loop

package harness

import (
	"time"
)

// RequestOutcome is the classified result of one streaming request.
type RequestOutcome struct {
	// Index is the 1-based position of the request within the run.
	Index     int
	Succeeded bool
	// Text is the reconstructed response, kept on failure for diagnostics.
	Text          string
	ChunkCount    int
	FailureReason string
	// Err is the classified cause of a failure; nil on success.
	Err error

	StatusCode       int
	MalformedCount   int
	BytesReceived    int64
	RequestID        string
	Duration         time.Duration
	TimeToFirstChunk time.Duration

	// Cancelled is set when the run was interrupted while this request was in
	// flight. Such an outcome says nothing about the server and is not counted.
	Cancelled bool
}

// Kind returns the failure kind, or 0 for a successful request.
func (o RequestOutcome) Kind() ErrorKind {
	return KindOf(o.Err)
}

// Verdict classifies a completed run.
type Verdict int

const (
	// Inconclusive means no request ran (the run was interrupted first).
	Inconclusive Verdict = iota
	FullPass
	PartialFailure
	TotalFailure
)

func (v Verdict) String() string {
	switch v {
	case FullPass:
		return "full-pass"
	case PartialFailure:
		return "partial-failure"
	case TotalFailure:
		return "total-failure"
	default:
		return "inconclusive"
	}
}

// Pattern describes how failures are distributed across a run.
type Pattern int

const (
	PatternNone Pattern = iota
	// PatternIsolated is a single failure followed by at least one success.
	PatternIsolated
	// PatternDegrading means requests passed at first, then every request from the
	// first failure to the end failed. A lone failure on the last request counts.
	PatternDegrading
	// PatternRecurring is any other mix of passes and failures.
	PatternRecurring
	// PatternPersistent means every request failed.
	PatternPersistent
)

func (p Pattern) String() string {
	switch p {
	case PatternIsolated:
		return "isolated"
	case PatternDegrading:
		return "degrading"
	case PatternRecurring:
		return "recurring"
	case PatternPersistent:
		return "persistent"
	default:
		return "none"
	}
}

// RunSummary aggregates the outcomes of a reliability run in request order.
type RunSummary struct {
	// Total is the number of requests that ran; Planned is how many were configured.
	Total     int
	Planned   int
	Succeeded int
	Outcomes  []RequestOutcome
	// Interrupted is set when cancellation stopped the run before Planned requests.
	Interrupted bool
	// InFlight is the request aborted by the interruption, if any. It is excluded
	// from Total, Succeeded and Outcomes.
	InFlight    *RequestOutcome
	Duration    time.Duration
}

func newSummary(planned int) *RunSummary {
	return &RunSummary{
		Planned:  planned,
		Outcomes: make([]RequestOutcome, 0, planned),
	}
}

func (s *RunSummary) record(o RequestOutcome) {
	if o.Cancelled {
		s.InFlight = &o
		s.Interrupted = true
		return
	}
	s.Outcomes = append(s.Outcomes, o)
	s.Total = len(s.Outcomes)
	if o.Succeeded {
		s.Succeeded++
	}
}

// Failed returns the number of failed requests.
func (s *RunSummary) Failed() int {
	return s.Total - s.Succeeded
}

// Verdict classifies the run.
func (s *RunSummary) Verdict() Verdict {
	switch {
	case s.Total == 0:
		return Inconclusive
	case s.Succeeded == s.Total:
		return FullPass
	case s.Succeeded == 0:
		return TotalFailure
	default:
		return PartialFailure
	}
}

// FailedIndices returns the 1-based indices of failed requests.
func (s *RunSummary) FailedIndices() []int {
	var idx []int
	for _, o := range s.Outcomes {
		if !o.Succeeded {
			idx = append(idx, o.Index)
		}
	}
	return idx
}

// Pattern describes whether failures are isolated or recurring.
func (s *RunSummary) Pattern() Pattern {
	failed := s.Failed()
	switch {
	case s.Total == 0 || failed == 0:
		return PatternNone
	case failed == s.Total:
		return PatternPersistent
	}

	first := -1
	for i, o := range s.Outcomes {
		if !o.Succeeded {
			first = i
			break
		}
	}
	if first > 0 && failed == s.Total-first {
		return PatternDegrading
	}
	if failed == 1 {
		return PatternIsolated
	}
	return PatternRecurring
}
