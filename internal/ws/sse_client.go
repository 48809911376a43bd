package ws

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
)

// SSEClient delivers deploy progress as Server-Sent Events for dashboards
// that cannot hold a websocket. The mutex keeps hub broadcasts and the
// handler's heartbeat ticker from interleaving frames.
type SSEClient struct {
	mu      sync.Mutex
	writer  io.Writer
	flusher http.Flusher
	log     *slog.Logger
	closed  bool
}

// NewSSEClient wraps a streaming response.
func NewSSEClient(writer io.Writer, flusher http.Flusher, logger *slog.Logger) *SSEClient {
	return &SSEClient{writer: writer, flusher: flusher, log: logger}
}

// Send emits one data event.
func (c *SSEClient) Send(payload []byte) error {
	return c.write(fmt.Sprintf("data: %s\n\n", payload))
}

// Heartbeat emits a comment frame so proxies keep the connection open.
func (c *SSEClient) Heartbeat() error {
	return c.write(": ping\n\n")
}

// Close marks the stream closed; later writes return io.EOF.
func (c *SSEClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *SSEClient) write(frame string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return io.EOF
	}
	if _, err := io.WriteString(c.writer, frame); err != nil {
		c.closed = true
		c.log.Warn("sse write failed", "error", err)
		return err
	}
	c.flusher.Flush()
	return nil
}
