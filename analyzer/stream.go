package analyzer

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Gl0balRak/textanalyzer-gateway/models"
)

// Stream is one live progress channel scoped to a single task id.
// Events arrive on Events() in server order; the channel closes when a
// terminal frame is seen, the transport fails, or Close is called.
type Stream struct {
	events chan models.ProgressEvent
	cancel context.CancelFunc
	body   io.ReadCloser

	closed    atomic.Bool
	closeOnce sync.Once

	mu  sync.Mutex
	err error
}

// OpenProgress attaches to the SSE progress stream for one task.
// A non-2xx response fails with *models.RemoteError.
func (c *Client) OpenProgress(ctx context.Context, taskID string) (*Stream, error) {
	ctx, cancel := context.WithCancel(ctx)

	endpoint := c.baseURL + "/analyzer/analyze-a-tags-progress?task_id=" + url.QueryEscape(taskID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, &models.StreamError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		cancel()
		return nil, &models.RemoteError{Status: resp.StatusCode, Body: string(body)}
	}

	s := &Stream{
		events: make(chan models.ProgressEvent),
		cancel: cancel,
		body:   resp.Body,
	}
	go s.readLoop(ctx, taskID)
	return s, nil
}

// Events returns the inbound frame channel. It is closed exactly once.
func (s *Stream) Events() <-chan models.ProgressEvent { return s.events }

// Err reports the transport failure that ended the stream, if any.
// Valid after Events() has closed. A stream that ended on a terminal
// frame, clean EOF, or explicit Close has a nil Err.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close tears the stream down. Safe to call more than once, and safe
// after the stream has already closed itself.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.cancel()
		s.body.Close()
	})
}

// readLoop parses SSE frames off the wire: "data:" lines accumulate
// until a blank line dispatches the payload.
func (s *Stream) readLoop(ctx context.Context, taskID string) {
	defer close(s.events)
	defer s.Close()

	scanner := bufio.NewScanner(s.body)
	scanner.Buffer(make([]byte, 0, 4096), 1024*1024)

	var data []string
	dispatch := func() bool {
		if len(data) == 0 {
			return true
		}
		payload := strings.Join(data, "\n")
		data = data[:0]

		ev, err := models.DecodeProgressEvent([]byte(payload))
		if err != nil {
			slog.Warn("undecodable progress frame", "task_id", taskID, "error", err)
			return true
		}
		select {
		case s.events <- ev:
		case <-ctx.Done():
			return false
		}
		return !ev.Terminal()
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if !dispatch() {
				return
			}
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		default:
			// event:/id:/retry: and comment lines carry nothing we need.
		}
	}
	// Trailing frame without a final blank line.
	dispatch()

	if err := scanner.Err(); err != nil && !s.closed.Load() {
		s.mu.Lock()
		s.err = &models.StreamError{Err: err}
		s.mu.Unlock()
	}
}
