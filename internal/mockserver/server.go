// ABOUTME: Deterministic OpenAI-compatible streaming server for exercising the harness
// ABOUTME: Per-request fault injection: HTTP 500, dropped connection, truncation, bad frames, stalls

package mockserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	pilog "github.com/mauromedda/streamcheck/internal/log"
)

// DefaultReply is streamed when Config.Reply is empty.
const DefaultReply = "Hello! How can I help you today?"

// Config controls what the server streams and which requests misbehave.
type Config struct {
	Reply string
	// ChunkDelay is the pause between content frames.
	ChunkDelay time.Duration
	// StallFor is how long a FaultStall request hangs before its terminator.
	StallFor time.Duration
	// Faults maps a 1-based request number to the fault injected into it.
	Faults map[int]Fault
	// Unhealthy makes the health endpoint answer 503.
	Unhealthy bool
}

// Server serves /health and /v1/chat/completions.
type Server struct {
	cfg      Config
	engine   *gin.Engine
	requests atomic.Int64
}

// New creates a Server. Call gin.SetMode beforehand to silence gin's debug output.
func New(cfg Config) *Server {
	if cfg.Reply == "" {
		cfg.Reply = DefaultReply
	}
	if cfg.StallFor <= 0 {
		cfg.StallFor = time.Minute
	}

	s := &Server{cfg: cfg}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	r.GET("/health", s.health)
	r.POST("/v1/chat/completions", s.chatCompletions)
	s.engine = r

	return s
}

// Handler returns the HTTP handler, e.g. for httptest.NewServer.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Requests returns how many completion requests have been received.
func (s *Server) Requests() int {
	return int(s.requests.Load())
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pilog.Info("mock: listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("mock server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		pilog.Debug("mock: %s %s → %d (%s) id=%s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start), c.GetHeader("X-Request-ID"))
	}
}

func (s *Server) health(c *gin.Context) {
	if s.cfg.Unhealthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "loading"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func apiError(c *gin.Context, status int, typ, msg string) {
	c.JSON(status, gin.H{"error": gin.H{"message": msg, "type": typ}})
}

func (s *Server) chatCompletions(c *gin.Context) {
	n := int(s.requests.Add(1))
	fault := s.cfg.Faults[n]

	var req openai.ChatCompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiError(c, http.StatusBadRequest, "invalid_request_error", err.Error())
		return
	}
	if !req.Stream {
		apiError(c, http.StatusBadRequest, "invalid_request_error", "only stream=true is supported")
		return
	}
	if fault == FaultServerError {
		apiError(c, http.StatusInternalServerError, "server_error", fmt.Sprintf("injected failure on request %d", n))
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	chunks := s.chunks(fmt.Sprintf("chatcmpl-mock-%d", n), req.Model, req.MaxTokens)
	ctx := c.Request.Context()

	for i, chunk := range chunks {
		if fault == FaultMalformed && i == 2 {
			writeFrame(c, "not-json")
		}
		if fault == FaultDrop && i == len(chunks)/2 {
			dropConnection(c)
			return
		}
		payload, err := json.Marshal(chunk)
		if err != nil {
			pilog.Error("mock: marshaling chunk: %v", err)
			return
		}
		writeFrame(c, string(payload))
		if !sleep(ctx, s.cfg.ChunkDelay) {
			return
		}
	}

	switch fault {
	case FaultTruncate:
		return
	case FaultStall:
		if !sleep(ctx, s.cfg.StallFor) {
			return
		}
	}
	writeFrame(c, "[DONE]")
}

// chunks builds the stream: a role-only chunk, one chunk per word (at most maxTokens
// when positive) and a final chunk carrying the finish reason.
func (s *Server) chunks(id, model string, maxTokens int) []openai.ChatCompletionStreamResponse {
	words := strings.SplitAfter(s.cfg.Reply, " ")
	finish := openai.FinishReasonStop
	if maxTokens > 0 && len(words) > maxTokens {
		words = words[:maxTokens]
		finish = openai.FinishReasonLength
	}

	created := time.Now().Unix()
	mk := func(delta openai.ChatCompletionStreamChoiceDelta, reason openai.FinishReason) openai.ChatCompletionStreamResponse {
		return openai.ChatCompletionStreamResponse{
			ID:      id,
			Object:  "chat.completion.chunk",
			Created: created,
			Model:   model,
			Choices: []openai.ChatCompletionStreamChoice{{Index: 0, Delta: delta, FinishReason: reason}},
		}
	}

	out := make([]openai.ChatCompletionStreamResponse, 0, len(words)+2)
	out = append(out, mk(openai.ChatCompletionStreamChoiceDelta{Role: openai.ChatMessageRoleAssistant}, ""))
	for _, w := range words {
		out = append(out, mk(openai.ChatCompletionStreamChoiceDelta{Content: w}, ""))
	}
	out = append(out, mk(openai.ChatCompletionStreamChoiceDelta{}, finish))
	return out
}

func writeFrame(c *gin.Context, payload string) {
	_, _ = fmt.Fprintf(c.Writer, "data: %s\n\n", payload)
	c.Writer.Flush()
}

// dropConnection closes the TCP connection in the middle of a chunked body so the
// client sees an unexpected EOF rather than a clean end of stream.
func dropConnection(c *gin.Context) {
	conn, _, err := c.Writer.Hijack()
	if err != nil {
		pilog.Error("mock: hijack failed: %v", err)
		return
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetLinger(0)
	}
	_ = conn.Close()
	c.Abort()
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
