// ABOUTME: Fault kinds injectable into individual mock requests
// ABOUTME: Parses "n=kind" specs as given on the command line

package mockserver

import (
	"fmt"
	"strconv"
	"strings"
)

// Fault is a misbehaviour injected into one completion request.
type Fault string

const (
	FaultNone Fault = ""
	// FaultServerError answers HTTP 500 instead of streaming.
	FaultServerError Fault = "server_error"
	// FaultDrop closes the connection halfway through the stream.
	FaultDrop Fault = "drop"
	// FaultTruncate ends the body cleanly but without [DONE].
	FaultTruncate Fault = "truncate"
	// FaultMalformed inserts a non-JSON frame among the content frames.
	FaultMalformed Fault = "malformed"
	// FaultStall waits Config.StallFor before sending [DONE].
	FaultStall Fault = "stall"
)

var faults = []Fault{FaultServerError, FaultDrop, FaultTruncate, FaultMalformed, FaultStall}

// ParseFault validates a fault name.
func ParseFault(s string) (Fault, error) {
	for _, f := range faults {
		if string(f) == s {
			return f, nil
		}
	}
	names := make([]string, len(faults))
	for i, f := range faults {
		names[i] = string(f)
	}
	return FaultNone, fmt.Errorf("unknown fault %q (want one of %s)", s, strings.Join(names, ", "))
}

// ParseFaults turns specs like "2=drop" into a request-number keyed map.
func ParseFaults(specs []string) (map[int]Fault, error) {
	out := make(map[int]Fault, len(specs))
	for _, spec := range specs {
		num, name, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("fault %q: want <request>=<kind>", spec)
		}
		n, err := strconv.Atoi(strings.TrimSpace(num))
		if err != nil || n < 1 {
			return nil, fmt.Errorf("fault %q: request must be a positive integer", spec)
		}
		f, err := ParseFault(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		out[n] = f
	}
	return out, nil
}
