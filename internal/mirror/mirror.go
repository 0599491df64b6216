// Package mirror serves the camera mirror HTTP server from spec.md §6: an
// MJPEG-over-multipart stream of any wired camera, one shared boundary per
// path for every connected client, grounded on the multipart.Writer /
// textproto.MIMEHeader / flush-per-part idiom used by the pack's MJPEG
// examples.
package mirror

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/pembem22/eyetrackvr-go/internal/broadcast"
	"github.com/pembem22/eyetrackvr-go/internal/certs"
	"github.com/pembem22/eyetrackvr-go/internal/frame"
	"github.com/pembem22/eyetrackvr-go/internal/gaze"
)

// boundary is shared by every client of every path, per spec.md §6.
const boundary = "eyetrackvr"

// Server serves /L, /R, /F as independent multipart/x-mixed-replace
// streams; any other path falls through to the mux's built-in 404.
type Server struct {
	addr string
	tls  bool
	eyes *broadcast.Broadcaster[gaze.EyesFrame]
	face *broadcast.Broadcaster[*frame.Frame]
	log  *slog.Logger
}

// NewServer returns a mirror server listening on addr (0.0.0.0:8881 per
// spec.md §6). Either eyes or face may be nil if that source isn't wired;
// the corresponding path then 404s. When useTLS is set, Run generates a
// short-lived self-signed certificate via internal/certs and serves HTTPS
// instead of plain HTTP.
func NewServer(addr string, useTLS bool, eyes *broadcast.Broadcaster[gaze.EyesFrame], face *broadcast.Broadcaster[*frame.Frame]) *Server {
	return &Server{addr: addr, tls: useTLS, eyes: eyes, face: face, log: slog.With("component", "mirror")}
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	if s.eyes != nil {
		mux.HandleFunc("/L", s.handleEye(gaze.TagLeft))
		mux.HandleFunc("/R", s.handleEye(gaze.TagRight))
	}
	if s.face != nil {
		mux.HandleFunc("/F", s.handleFace)
	}

	srv := &http.Server{Addr: s.addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if s.tls {
		cert, err := certs.Generate(0)
		if err != nil {
			return fmt.Errorf("mirror server: generate cert: %w", err)
		}
		srv.TLSConfig = &tls.Config{Certificates: []tls.Certificate{cert.TLSCert}}
		s.log.Info("listening", "addr", s.addr, "tls", true, "fingerprint", cert.FingerprintBase64())
		if err := srv.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("mirror server: %w", err)
		}
		return nil
	}

	s.log.Info("listening", "addr", s.addr, "tls", false)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("mirror server: %w", err)
	}
	return nil
}

// handleEye streams the requested eye's crop from the shared eyes
// broadcaster; tag selects which half of a Both frame (or whether a Mono
// frame matches at all) to serve.
func (s *Server) handleEye(tag gaze.FrameTag) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recv := s.eyes.NewReceiver()
		recv.Activate()

		stream(w, r, s.log, func(ctx context.Context) (image.Image, bool) {
			ef, status := recv.RecvAsync(ctx)
			if status != broadcast.Value && status != broadcast.Overflowed {
				return nil, false
			}
			var view image.Image
			var ok bool
			switch tag {
			case gaze.TagLeft:
				view, ok = ef.LeftView()
			case gaze.TagRight:
				view, ok = ef.RightView()
			}
			return view, ok
		})
	}
}

// handleFace streams the mono face broadcaster unchanged.
func (s *Server) handleFace(w http.ResponseWriter, r *http.Request) {
	recv := s.face.NewReceiver()
	recv.Activate()

	stream(w, r, s.log, func(ctx context.Context) (image.Image, bool) {
		f, status := recv.RecvAsync(ctx)
		if status != broadcast.Value && status != broadcast.Overflowed {
			return nil, false
		}
		return f.Decoded, true
	})
}

// stream runs the multipart write loop shared by every mirror path: fetch
// the next image via next, encode it as a JPEG part, write, and flush.
func stream(w http.ResponseWriter, r *http.Request, log *slog.Logger, next func(ctx context.Context) (image.Image, bool)) {
	ctx := r.Context()

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")

	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary(boundary); err != nil {
		log.Error("set multipart boundary", "error", err)
		return
	}

	flusher, _ := w.(http.Flusher)

	for {
		img, ok := next(ctx)
		if !ok {
			if ctx.Err() != nil {
				return
			}
			continue
		}

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
			log.Warn("encode mirror frame", "error", err)
			continue
		}

		header := textproto.MIMEHeader{}
		header.Set("Content-Type", "image/jpeg")
		part, err := mw.CreatePart(header)
		if err != nil {
			return
		}
		if _, err := part.Write(buf.Bytes()); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}
