// ABOUTME: Server-Sent Events decoder for chat-completion streams read from an io.Reader
// ABOUTME: Yields content deltas, the [DONE] terminator and malformed frames one line at a time

package sse

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

const (
	maxLineSize = 1024 * 1024 // 1MB max line size
	dataPrefix  = "data: "
	doneToken   = "[DONE]"
)

// ErrTruncated is returned when the stream ends before the [DONE] terminator.
var ErrTruncated = errors.New("stream truncated before terminator")

// Kind identifies the variant carried by an Event.
type Kind int

const (
	// ContentDelta carries a non-empty fragment of generated text in Text.
	ContentDelta Kind = iota + 1
	// StreamEnd marks the [DONE] terminator.
	StreamEnd
	// Malformed carries a data payload that is not a chat-completion chunk in Raw.
	Malformed
)

func (k Kind) String() string {
	switch k {
	case ContentDelta:
		return "content_delta"
	case StreamEnd:
		return "stream_end"
	case Malformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Event is a single decoded protocol event.
type Event struct {
	Kind Kind
	Text string
	Raw  string
}

// Reader decodes chat-completion SSE frames from an io.Reader.
type Reader struct {
	scanner *bufio.Scanner
	done    bool
	lines   int
}

// NewReader creates a new SSE reader from the given io.Reader.
func NewReader(r io.Reader) *Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Reader{
		scanner: s,
	}
}

// Next reads lines until one produces an event and returns it.
//
// After a StreamEnd event every call returns nil, io.EOF without reading further.
// If the input ends before the terminator, Next returns nil, ErrTruncated. Read
// errors from the underlying reader are returned unchanged.
func (r *Reader) Next() (*Event, error) {
	if r.done {
		return nil, io.EOF
	}

	for r.scanner.Scan() {
		r.lines++
		line := r.scanner.Text()

		// Blank lines separate frames; other SSE fields and comments carry no payload here.
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}
		payload := line[len(dataPrefix):]

		if payload == doneToken {
			r.done = true
			return &Event{Kind: StreamEnd}, nil
		}

		content, err := decodeContent(payload)
		if err != nil {
			return &Event{Kind: Malformed, Raw: payload}, nil
		}
		if content == "" {
			continue
		}
		return &Event{Kind: ContentDelta, Text: content}, nil
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, ErrTruncated
}

// Lines returns how many lines have been read so far, blank lines included.
func (r *Reader) Lines() int {
	return r.lines
}
