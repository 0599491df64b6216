// Command eyetrackvr is the desktop entry point: it parses the CLI flag
// surface from spec.md §6, wires camera sources through the dispatch and
// inference stages into gaze fusion, and supervises every stage under one
// errgroup, exactly as cmd/prism/main.go supervises its ingest/distribution
// stages.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/pembem22/eyetrackvr-go/internal/bridge"
	"github.com/pembem22/eyetrackvr-go/internal/broadcast"
	"github.com/pembem22/eyetrackvr-go/internal/capture"
	"github.com/pembem22/eyetrackvr-go/internal/config"
	"github.com/pembem22/eyetrackvr-go/internal/dispatch"
	"github.com/pembem22/eyetrackvr-go/internal/frame"
	"github.com/pembem22/eyetrackvr-go/internal/fusion"
	"github.com/pembem22/eyetrackvr-go/internal/gaze"
	"github.com/pembem22/eyetrackvr-go/internal/inference"
	"github.com/pembem22/eyetrackvr-go/internal/mirror"
	"github.com/pembem22/eyetrackvr-go/internal/oscsender"
	"github.com/pembem22/eyetrackvr-go/internal/source"
)

var version = "dev"

func main() {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		if errors.Is(err, config.ErrConflictingFlags) {
			slog.Error("invalid flags", "error", err)
		} else {
			slog.Error("failed to parse flags", "error", err)
		}
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	slog.Info("eyetrackvr starting",
		"version", version,
		"inference", cfg.Inference,
		"osc", cfg.OSCEndpoint,
		"headless", cfg.Headless,
	)

	a, err := newApp(cfg)
	if err != nil {
		slog.Error("failed to initialize pipeline", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	g, ctx := errgroup.WithContext(ctx)
	a.run(ctx, g)

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		slog.Error("pipeline error", "error", err)
		os.Exit(1)
	}
}

// app holds every broadcast fabric and long-lived worker the pipeline
// wires together, per spec.md §2's B -> C -> A -> D -> E -> {F, G} data
// flow.
type app struct {
	cfg *config.Config

	faceFrames   *broadcast.Broadcaster[*frame.Frame]
	eyesFrames   *broadcast.Broadcaster[gaze.EyesFrame]
	rawGaze      *broadcast.Broadcaster[gaze.EyesGazeState]
	combinedGaze *broadcast.Broadcaster[gaze.CombinedEyeGazeState]

	sources []namedSource

	worker *inference.Worker
	bridge *bridge.Bridge
}

type namedSource struct {
	name string
	run  func(ctx context.Context) error
}

// newApp builds the broadcast fabric and every source/worker the config
// requests, failing fast on configuration errors per spec.md §7.
func newApp(cfg *config.Config) (*app, error) {
	a := &app{
		cfg:          cfg,
		faceFrames:   broadcast.New[*frame.Frame](),
		eyesFrames:   broadcast.New[gaze.EyesFrame](),
		rawGaze:      broadcast.New[gaze.EyesGazeState](),
		combinedGaze: broadcast.New[gaze.CombinedEyeGazeState](),
	}

	if err := a.wireSources(); err != nil {
		return nil, err
	}

	if cfg.Inference {
		worker, err := inference.NewWorker(cfg.ModelPath, cfg.ThreadsPerEye)
		if err != nil {
			return nil, err
		}
		a.worker = worker
	}

	a.bridge = bridge.New()

	return a, nil
}

// wireSources resolves every configured camera URL to a concrete source
// and hooks it to the dispatcher matching its role, per spec.md §4.2/§4.3.
func (a *app) wireSources() error {
	if a.cfg.StereoURL != "" {
		src, err := buildSource(a.cfg.StereoURL)
		if err != nil {
			return fmt.Errorf("stereo source: %w", err)
		}
		sink := dispatch.StereoEyes{Sender: a.eyesFrames}
		a.addSource("stereo", src, sink)
	}

	if a.cfg.LeftURL != "" {
		src, err := buildSource(a.cfg.LeftURL)
		if err != nil {
			return fmt.Errorf("left source: %w", err)
		}
		sink := dispatch.MonoEye{Side: gaze.TagLeft, Sender: a.eyesFrames}
		a.addSource("left", src, sink)
	}

	if a.cfg.RightURL != "" {
		src, err := buildSource(a.cfg.RightURL)
		if err != nil {
			return fmt.Errorf("right source: %w", err)
		}
		sink := dispatch.MonoEye{Side: gaze.TagRight, Sender: a.eyesFrames}
		a.addSource("right", src, sink)
	}

	if a.cfg.FaceURL != "" {
		src, err := buildSource(a.cfg.FaceURL)
		if err != nil {
			return fmt.Errorf("face source: %w", err)
		}
		sink := dispatch.MonoFace{Sender: a.faceFrames}
		a.addSource("face", src, sink)
	}

	return nil
}

func (a *app) addSource(name string, src runner, sink source.Sink) {
	a.sources = append(a.sources, namedSource{
		name: name,
		run:  func(ctx context.Context) error { return src.Run(ctx, sink) },
	})
}

// runner is the contract every source variant shares, per spec.md §4.2.
type runner interface {
	Run(ctx context.Context, sink source.Sink) error
}

// run starts every wired stage as a supervised errgroup goroutine.
func (a *app) run(ctx context.Context, g *errgroup.Group) {
	for _, s := range a.sources {
		s := s
		g.Go(func() error { return s.run(ctx) })
	}

	if a.worker != nil {
		g.Go(func() error {
			return a.worker.Run(ctx, a.eyesFrames.NewReceiver(), a.rawGaze)
		})

		engine := fusion.NewEngine()
		g.Go(func() error {
			return engine.Run(ctx, a.rawGaze.NewReceiver(), a.combinedGaze)
		})

		a.bridge.Init(a.combinedGaze.NewReceiver())
		bridge.SetGlobal(a.bridge)

		sender, err := oscsender.New(a.cfg.OSCEndpoint)
		if err != nil {
			slog.Error("failed to start OSC sender", "error", err)
		} else {
			g.Go(func() error { return sender.Run(ctx, a.combinedGaze.NewReceiver()) })
		}
	}

	mirrorSrv := mirror.NewServer(a.cfg.MirrorAddr, a.cfg.MirrorTLS, a.eyesFrames, a.faceFrames)
	g.Go(func() error { return mirrorSrv.Run(ctx) })

	captureSrv := capture.NewServer(a.cfg.CaptureAddr, a.cfg.CaptureOutDir, a.eyesFrames)
	g.Go(func() error { return captureSrv.Run(ctx) })
}

// Close releases the inference session, if one was loaded.
func (a *app) Close() {
	if a.worker != nil {
		if err := a.worker.Close(); err != nil {
			slog.Warn("failed to close inference worker", "error", err)
		}
	}
}

// buildSource resolves a configured URL to a concrete source per the
// schemes in spec.md §6: http(s):// for MJPEG, uvc://<index> for a local
// UVC camera, and anything else treated as a serial port path (COM3,
// /dev/ttyACM0, ...).
func buildSource(rawURL string) (runner, error) {
	switch {
	case strings.HasPrefix(rawURL, "http://"), strings.HasPrefix(rawURL, "https://"):
		return source.NewHTTPSource(rawURL), nil
	case strings.HasPrefix(rawURL, "uvc://"):
		idxStr := strings.TrimPrefix(rawURL, "uvc://")
		idx, err := strconv.Atoi(idxStr)
		if err != nil {
			return nil, fmt.Errorf("parse uvc index %q: %w", idxStr, err)
		}
		return source.NewUVCSource(idx), nil
	default:
		return source.NewSerialSource(rawURL), nil
	}
}
