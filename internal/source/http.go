package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/pembem22/eyetrackvr-go/internal/frame"
)

// idleTimeout is how long an HTTP MJPEG source waits for the next part
// before treating the connection as stalled and reconnecting.
const idleTimeout = 1 * time.Second

// reconnectDelay is how long every source variant sleeps between attempts.
const reconnectDelay = 1 * time.Second

// Sink receives decoded frames from a source and forwards them wherever
// the wiring configured (see the dispatch package).
type Sink interface {
	Dispatch(f *frame.Frame)
}

// HTTPSource pulls an MJPEG-over-multipart stream from an HTTP URL,
// reconnecting forever on any I/O, protocol, or decode error.
type HTTPSource struct {
	URL string
	log *slog.Logger
}

// NewHTTPSource returns a source that will read from url once Run starts.
func NewHTTPSource(url string) *HTTPSource {
	return &HTTPSource{URL: url, log: slog.With("component", "http-source", "url", url)}
}

// Run loops forever: connect, stream parts to sink, and on any failure log,
// sleep, and retry. It returns only when ctx is cancelled.
func (s *HTTPSource) Run(ctx context.Context, sink Sink) error {
	for ctx.Err() == nil {
		if err := s.runOnce(ctx, sink); err != nil {
			s.log.Warn("connection failed, reconnecting", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
	return ctx.Err()
}

func (s *HTTPSource) runOnce(ctx context.Context, sink Sink) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer resp.Body.Close()

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return fmt.Errorf("parse content-type: %w", err)
	}
	if mediaType != "multipart/x-mixed-replace" {
		return fmt.Errorf("unexpected content-type %q", mediaType)
	}
	boundary, ok := params["boundary"]
	if !ok {
		return fmt.Errorf("multipart response missing boundary")
	}

	mr := multipart.NewReader(resp.Body, boundary)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		part, err := s.readPartWithTimeout(ctx, mr)
		if err != nil {
			return err
		}

		body, err := io.ReadAll(part)
		if err != nil {
			return fmt.Errorf("read part body: %w", err)
		}

		f, err := frame.Decode(body, time.Now())
		if err != nil {
			s.log.Warn("dropping undecodable frame", "error", err)
			continue
		}
		sink.Dispatch(f)
	}
}

// readPartWithTimeout bounds a single NextPart call by idleTimeout, since
// multipart.Reader has no native deadline support.
func (s *HTTPSource) readPartWithTimeout(ctx context.Context, mr *multipart.Reader) (*multipart.Part, error) {
	type result struct {
		part *multipart.Part
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		p, err := mr.NextPart()
		ch <- result{p, err}
	}()

	select {
	case r := <-ch:
		return r.part, r.err
	case <-time.After(idleTimeout):
		return nil, fmt.Errorf("idle timeout waiting for next part")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
