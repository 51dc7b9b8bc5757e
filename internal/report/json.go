// ABOUTME: Machine-readable run summary for CI pipelines
// ABOUTME: Stable snake_case field names; durations in milliseconds

package report

import (
	"encoding/json"
	"io"

	"github.com/mauromedda/streamcheck/internal/harness"
)

type jsonOutcome struct {
	Index              int    `json:"index"`
	Succeeded          bool   `json:"succeeded"`
	ReconstructedText  string `json:"reconstructed_text"`
	ChunkCount         int    `json:"chunk_count"`
	FailureReason      string `json:"failure_reason,omitempty"`
	ErrorKind          string `json:"error_kind,omitempty"`
	StatusCode         int    `json:"status_code,omitempty"`
	MalformedCount     int    `json:"malformed_count"`
	BytesReceived      int64  `json:"bytes_received"`
	RequestID          string `json:"request_id"`
	DurationMs         int64  `json:"duration_ms"`
	TimeToFirstChunkMs int64  `json:"time_to_first_chunk_ms,omitempty"`
	LatencyClass       string `json:"latency_class"`
}

type jsonSummary struct {
	Total       int           `json:"total"`
	Planned     int           `json:"planned"`
	Succeeded   int           `json:"succeeded"`
	Verdict     string        `json:"verdict"`
	Pattern     string        `json:"pattern"`
	Interrupted bool          `json:"interrupted"`
	InFlight    *int          `json:"in_flight_request,omitempty"`
	DurationMs  int64         `json:"duration_ms"`
	Outcomes    []jsonOutcome `json:"outcomes"`
}

// WriteJSON writes s as an indented JSON document.
func WriteJSON(w io.Writer, s *harness.RunSummary) error {
	doc := jsonSummary{
		Total:       s.Total,
		Planned:     s.Planned,
		Succeeded:   s.Succeeded,
		Verdict:     s.Verdict().String(),
		Pattern:     s.Pattern().String(),
		Interrupted: s.Interrupted,
		DurationMs:  s.Duration.Milliseconds(),
		Outcomes:    make([]jsonOutcome, 0, len(s.Outcomes)),
	}
	if s.InFlight != nil {
		idx := s.InFlight.Index
		doc.InFlight = &idx
	}
	for _, o := range s.Outcomes {
		jo := jsonOutcome{
			Index:              o.Index,
			Succeeded:          o.Succeeded,
			ReconstructedText:  o.Text,
			ChunkCount:         o.ChunkCount,
			FailureReason:      o.FailureReason,
			StatusCode:         o.StatusCode,
			MalformedCount:     o.MalformedCount,
			BytesReceived:      o.BytesReceived,
			RequestID:          o.RequestID,
			DurationMs:         o.Duration.Milliseconds(),
			TimeToFirstChunkMs: o.TimeToFirstChunk.Milliseconds(),
			LatencyClass:       o.Latency().String(),
		}
		if !o.Succeeded {
			jo.ErrorKind = o.Kind().String()
		}
		doc.Outcomes = append(doc.Outcomes, jo)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
