// ABOUTME: Tests for the mock streaming server: stream shape, max_tokens, each injected fault
// ABOUTME: Decodes responses with the real SSE reader so both sides agree on the wire format

package mockserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mauromedda/streamcheck/internal/sse"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

const streamBody = `{"model":"test-llama","messages":[{"role":"user","content":"Hello"}],"max_tokens":50,"stream":true}`

func start(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()
	s := New(cfg)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, srv
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url+"/v1/chat/completions", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// drain decodes the whole body and returns the deltas, malformed count and final error.
func drain(resp *http.Response) (text string, chunks, malformed int, err error) {
	r := sse.NewReader(resp.Body)
	var sb strings.Builder
	for {
		ev, nerr := r.Next()
		if nerr != nil {
			if errors.Is(nerr, io.EOF) {
				nerr = nil
			}
			return sb.String(), chunks, malformed, nerr
		}
		switch ev.Kind {
		case sse.ContentDelta:
			sb.WriteString(ev.Text)
			chunks++
		case sse.Malformed:
			malformed++
		}
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	_, srv := start(t, Config{})
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, sick := start(t, Config{Unhealthy: true})
	resp2, err := http.Get(sick.URL + "/health")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp2.StatusCode)
}

func TestStreamsReplyWordByWord(t *testing.T) {
	t.Parallel()

	s, srv := start(t, Config{Reply: "one two three"})
	resp := post(t, srv.URL, streamBody)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	text, chunks, malformed, err := drain(resp)
	require.NoError(t, err)
	assert.Equal(t, "one two three", text)
	assert.Equal(t, 3, chunks)
	assert.Zero(t, malformed)
	assert.Equal(t, 1, s.Requests())
}

func TestMaxTokensCapsChunks(t *testing.T) {
	t.Parallel()

	_, srv := start(t, Config{Reply: "a b c d e f g"})
	resp := post(t, srv.URL, `{"model":"m","messages":[{"role":"user","content":"hi"}],"max_tokens":2,"stream":true}`)

	text, chunks, _, err := drain(resp)
	require.NoError(t, err)
	assert.Equal(t, "a b ", text)
	assert.Equal(t, 2, chunks)
}

func TestRejectsNonStreaming(t *testing.T) {
	t.Parallel()

	_, srv := start(t, Config{})
	resp := post(t, srv.URL, `{"model":"m","messages":[{"role":"user","content":"hi"}]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFaults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		fault         Fault
		wantStatus    int
		wantErr       error
		wantTransport bool
		wantMalformed int
	}{
		{name: "server error", fault: FaultServerError, wantStatus: http.StatusInternalServerError},
		{name: "truncate", fault: FaultTruncate, wantStatus: http.StatusOK, wantErr: sse.ErrTruncated},
		{name: "malformed", fault: FaultMalformed, wantStatus: http.StatusOK, wantMalformed: 1},
		{name: "drop", fault: FaultDrop, wantStatus: http.StatusOK, wantTransport: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, srv := start(t, Config{Reply: "one two three four", Faults: map[int]Fault{2: tt.fault}})

			// Request 1 is always clean.
			first := post(t, srv.URL, streamBody)
			_, _, _, err := drain(first)
			require.NoError(t, err)

			resp := post(t, srv.URL, streamBody)
			require.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantStatus != http.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				assert.Contains(t, string(body), "injected failure on request 2")
				return
			}

			_, _, malformed, err := drain(resp)
			switch {
			case tt.wantTransport:
				require.Error(t, err)
				assert.NotErrorIs(t, err, sse.ErrTruncated)
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			default:
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantMalformed, malformed)
		})
	}
}

func TestStallHonoursClientCancel(t *testing.T) {
	t.Parallel()

	_, srv := start(t, Config{Faults: map[int]Fault{1: FaultStall}, StallFor: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, srv.URL+"/v1/chat/completions", strings.NewReader(streamBody))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	_, _, _, err = drain(resp)
	require.Error(t, err)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(Config{}).Serve(ctx, "127.0.0.1:0") }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
