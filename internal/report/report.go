// ABOUTME: Human-readable progress lines and run summary for a reliability run
// ABOUTME: Implements harness.Observer; colour only when writing to a terminal

package report

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/term"

	"github.com/mauromedda/streamcheck/internal/harness"
)

const previewWidth = 48

type styles struct {
	ok    lipgloss.Style
	fail  lipgloss.Style
	warn  lipgloss.Style
	title lipgloss.Style
	dim   lipgloss.Style
}

func newStyles(w io.Writer) styles {
	if !isTerminal(w) {
		return styles{}
	}
	r := lipgloss.NewRenderer(w)
	return styles{
		ok:    r.NewStyle().Foreground(lipgloss.Color("2")),
		fail:  r.NewStyle().Foreground(lipgloss.Color("1")),
		warn:  r.NewStyle().Foreground(lipgloss.Color("3")),
		title: r.NewStyle().Bold(true),
		dim:   r.NewStyle().Faint(true),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Reporter prints progress and the final summary.
type Reporter struct {
	w  io.Writer
	st styles
}

// New creates a Reporter writing to w.
func New(w io.Writer) *Reporter {
	return &Reporter{w: w, st: newStyles(w)}
}

func (r *Reporter) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.w, format, args...)
}

// Banner prints the run header.
func (r *Reporter) Banner(target string, requests int, delay time.Duration) {
	title := "Testing streaming API at " + target
	r.printf("%s\n%s\n", r.st.title.Render(title), strings.Repeat("=", runewidth.StringWidth(title)))
	r.printf("%s\n", r.st.dim.Render(fmt.Sprintf("%d sequential requests, %s apart", requests, delay)))
}

// HealthChecked implements harness.Observer.
func (r *Reporter) HealthChecked(h harness.HealthResult) {
	attempts := ""
	if h.Attempts > 1 {
		attempts = fmt.Sprintf(", %d attempts", h.Attempts)
	}
	switch {
	case h.Healthy:
		r.printf("%s\n", r.st.ok.Render(fmt.Sprintf("✓ Server is running and healthy (%s%s)", round(h.Latency), attempts)))
	case h.StatusCode != 0:
		r.printf("%s\n", r.st.fail.Render(fmt.Sprintf("✗ Health check failed with status %d%s", h.StatusCode, attempts)))
	default:
		r.printf("%s\n", r.st.fail.Render(fmt.Sprintf("✗ Cannot connect to server: %v%s", h.Err, attempts)))
	}
}

// RequestStarted implements harness.Observer.
func (r *Reporter) RequestStarted(index, total int) {
	r.printf("\n%s\n", r.st.title.Render(fmt.Sprintf("=== Request %d/%d ===", index, total)))
}

// RequestFinished implements harness.Observer.
func (r *Reporter) RequestFinished(o harness.RequestOutcome) {
	stats := fmt.Sprintf("%d chunks, %s in %s", o.ChunkCount, humanize.Bytes(uint64(o.BytesReceived)), round(o.Duration))
	if o.TimeToFirstChunk > 0 {
		stats += fmt.Sprintf(" (first chunk after %s, %s)", round(o.TimeToFirstChunk), o.Latency())
	}
	if o.MalformedCount > 0 {
		stats += fmt.Sprintf(", %d malformed frame(s) skipped", o.MalformedCount)
	}

	if o.Cancelled {
		r.printf("%s interrupted after %s; not counted\n", r.st.warn.Render("CANCELLED:"), round(o.Duration))
		return
	}
	if o.Succeeded {
		r.printf("%s %s\n", r.st.ok.Render("SUCCESS:"), stats)
		r.printf("Full response: %q\n", o.Text)
		return
	}

	r.printf("%s %s\n", r.st.fail.Render(fmt.Sprintf("FAILED [%s]:", o.Kind())), o.FailureReason)
	if o.ChunkCount > 0 || o.BytesReceived > 0 {
		r.printf("%s\n", r.st.dim.Render("Partial: "+stats))
		r.printf("Partial response: %q\n", o.Text)
	}
}

// RunFinished implements harness.Observer.
func (r *Reporter) RunFinished(s *harness.RunSummary) {
	r.printf("\n%s\n", r.st.title.Render("=== SUMMARY ==="))
	if s.Total > 0 {
		r.table(s)
	}
	r.printf("Successful requests: %d/%d\n", s.Succeeded, s.Total)
	if sp := s.FirstChunkSpread(); sp.Samples > 1 {
		r.printf("First chunk latency: min %s, median %s, max %s\n", round(sp.Min), round(sp.Median), round(sp.Max))
	}
	if s.Interrupted {
		r.printf("%s\n", r.st.warn.Render(fmt.Sprintf("⚠ Run interrupted after %d of %d requests", s.Total, s.Planned)))
		if s.InFlight != nil {
			r.printf("%s\n", r.st.dim.Render(fmt.Sprintf("Request %d was in flight and is excluded from the verdict", s.InFlight.Index)))
		}
	}
	for _, line := range VerdictLines(s) {
		r.printf("%s\n", r.styleFor(s.Verdict()).Render(line))
	}
}

func (r *Reporter) styleFor(v harness.Verdict) lipgloss.Style {
	switch v {
	case harness.FullPass:
		return r.st.ok
	case harness.TotalFailure:
		return r.st.fail
	default:
		return r.st.warn
	}
}

func (r *Reporter) table(s *harness.RunSummary) {
	table := tablewriter.NewWriter(r.w)
	table.SetHeader([]string{"#", "Result", "Chunks", "Bytes", "Time", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	for _, o := range s.Outcomes {
		result, detail := "ok", o.Text
		if !o.Succeeded {
			result, detail = "FAIL "+o.Kind().String(), o.FailureReason
		}
		table.Append([]string{
			strconv.Itoa(o.Index),
			result,
			strconv.Itoa(o.ChunkCount),
			humanize.Bytes(uint64(o.BytesReceived)),
			round(o.Duration).String(),
			preview(detail),
		})
	}
	table.Render()
}

// VerdictLines describes the run's verdict and, for partial failures, whether the
// failures look isolated or recurring.
func VerdictLines(s *harness.RunSummary) []string {
	switch s.Verdict() {
	case harness.FullPass:
		return []string{
			"✓ All streaming requests succeeded!",
			"✓ No evidence of second request failures",
		}
	case harness.TotalFailure:
		return []string{"✗ All requests failed - server may not be responding"}
	case harness.Inconclusive:
		return []string{"⚠ No request completed; nothing to judge"}
	}

	failed := s.FailedIndices()
	lines := []string{fmt.Sprintf("⚠ %d requests failed (%s)", len(failed), joinInts(failed))}
	switch s.Pattern() {
	case harness.PatternIsolated:
		lines = append(lines, fmt.Sprintf("The failure looks isolated: only request %d failed", failed[0]))
	case harness.PatternDegrading:
		lines = append(lines,
			fmt.Sprintf("Requests succeeded until request %d and failed from then on", failed[0]),
			"This may indicate an issue with consecutive streaming requests")
	default:
		lines = append(lines,
			"Failures recur across the run",
			"This may indicate an issue with consecutive streaming requests")
	}
	return lines
}

func joinInts(v []int) string {
	s := make([]string, len(v))
	for i, n := range v {
		s[i] = "#" + strconv.Itoa(n)
	}
	return strings.Join(s, ", ")
}

// preview flattens text to one line and truncates it to the preview width.
func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return runewidth.Truncate(s, previewWidth, "…")
}

func round(d time.Duration) time.Duration {
	if d < time.Second {
		return d.Round(time.Millisecond)
	}
	return d.Round(10 * time.Millisecond)
}
