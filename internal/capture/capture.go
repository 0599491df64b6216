// Package capture implements the dataset capture TCP server: a
// line-delimited JSON request protocol that saves stereo eye frames plus
// their request payload to disk for offline model training, per
// spec.md §4.9.
package capture

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/pembem22/eyetrackvr-go/internal/broadcast"
	"github.com/pembem22/eyetrackvr-go/internal/gaze"
)

// FramesPerRequest is N from spec.md §4.9: how many stereo frames are
// captured per client request, to let the sensor stabilize.
const FramesPerRequest = 3

const timestampLayout = "2006-01-02_15-04-05.000"

// Server listens for capture requests and saves frames from the eyes
// broadcast channel.
type Server struct {
	listenAddr string
	outDir     string
	eyes       *broadcast.Broadcaster[gaze.EyesFrame]
	log        *slog.Logger
}

// NewServer returns a capture server listening on listenAddr (0.0.0.0:7070
// per spec.md §6), writing captures to outDir (./images per spec.md
// §4.9), and sourcing stereo frames from eyes.
func NewServer(listenAddr, outDir string, eyes *broadcast.Broadcaster[gaze.EyesFrame]) *Server {
	return &Server{
		listenAddr: listenAddr,
		outDir:     outDir,
		eyes:       eyes,
		log:        slog.With("component", "capture-server"),
	}
}

// Run accepts connections until ctx is cancelled, serving each on its own
// goroutine.
func (s *Server) Run(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.listenAddr, err)
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	s.log.Info("listening", "addr", s.listenAddr)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Warn("accept failed", "error", err)
			continue
		}
		go s.serveConn(ctx, conn)
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	log := s.log.With("remote", conn.RemoteAddr())

	scanner := bufio.NewScanner(conn)
	receiver := s.eyes.NewReceiver()
	receiver.Activate()

	for scanner.Scan() {
		message := scanner.Text()

		if err := s.handleRequest(ctx, message, receiver); err != nil {
			log.Warn("capture request failed", "error", err)
			return
		}
		if _, err := conn.Write([]byte("k")); err != nil {
			log.Debug("write response failed", "error", err)
			return
		}
	}
	if err := scanner.Err(); err != nil {
		log.Debug("connection closed with error", "error", err)
	}
}

// handleRequest captures FramesPerRequest stereo frames and writes each
// one's JPEGs plus the client's request message, verbatim, to outDir.
func (s *Server) handleRequest(ctx context.Context, message string, receiver *broadcast.Receiver[gaze.EyesFrame]) error {
	for i := 0; i < FramesPerRequest; i++ {
		frame, status := receiver.RecvAsync(ctx)
		switch status {
		case broadcast.Closed:
			return fmt.Errorf("eyes channel closed")
		case broadcast.Empty:
			if err := ctx.Err(); err != nil {
				return err
			}
			return fmt.Errorf("capture cancelled")
		}

		if frame.Tag != gaze.TagBoth {
			return fmt.Errorf("mono-tagged frame not supported for capture")
		}

		if err := s.saveFrame(frame, message); err != nil {
			return err
		}
	}
	return nil
}

// saveFrame writes <timestamp>.json (the client's request, verbatim) and
// <timestamp>_{L,R}.jpg (the left/right crops) into outDir.
func (s *Server) saveFrame(frame gaze.EyesFrame, message string) error {
	if err := os.MkdirAll(s.outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	timestamp := time.Now().Format(timestampLayout)

	jsonPath := filepath.Join(s.outDir, timestamp+".json")
	if err := os.WriteFile(jsonPath, []byte(message), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", jsonPath, err)
	}

	left, ok := frame.LeftView()
	if !ok {
		return fmt.Errorf("stereo frame missing left view")
	}
	right, ok := frame.RightView()
	if !ok {
		return fmt.Errorf("stereo frame missing right view")
	}

	if err := writeJPEG(filepath.Join(s.outDir, timestamp+"_L.jpg"), left); err != nil {
		return err
	}
	if err := writeJPEG(filepath.Join(s.outDir, timestamp+"_R.jpg"), right); err != nil {
		return err
	}
	return nil
}

func writeJPEG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := jpeg.Encode(f, img, nil); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}
