// Package config parses the desktop CLI flag surface from spec.md §6 into
// a validated Config, the way cmd/prism/main.go's envOr helper keeps
// configuration parsing out of main's body: a plain flag.FlagSet, no CLI
// framework.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
)

// ErrConflictingFlags is returned when --lr is combined with -l or -r,
// per spec.md §6.
var ErrConflictingFlags = errors.New("config: --lr cannot be combined with -l or -r")

// Config is the validated result of parsing the desktop CLI flags.
type Config struct {
	LeftURL   string // -l
	RightURL  string // -r
	FaceURL   string // -f
	StereoURL string // --lr

	Inference     bool   // -I
	ModelPath     string // -m
	ThreadsPerEye int    // -t
	OSCEndpoint   string // -o
	Headless      bool   // -H
	MirrorAddr    string // camera mirror HTTP server, spec.md §6
	MirrorTLS     bool   // serve the mirror over a self-signed HTTPS listener
	CaptureAddr   string // dataset capture TCP server, spec.md §6
	CaptureOutDir string
}

// defaultOSCEndpoint matches spec.md §6's documented default.
const defaultOSCEndpoint = "localhost:9000"

const (
	defaultMirrorAddr    = "0.0.0.0:8881"
	defaultCaptureAddr   = "0.0.0.0:7070"
	defaultCaptureOutDir = "./images"
)

// Parse parses args (excluding the program name, i.e. os.Args[1:]) into a
// validated Config. A conflicting --lr/-l/-r combination is reported as
// ErrConflictingFlags; main turns that into os.Exit(1) per spec.md §6.
func Parse(args []string) (*Config, error) {
	fs := flag.NewFlagSet("eyetrackvr", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	c := &Config{
		OSCEndpoint:   defaultOSCEndpoint,
		ThreadsPerEye: 1,
		MirrorAddr:    defaultMirrorAddr,
		CaptureAddr:   defaultCaptureAddr,
		CaptureOutDir: defaultCaptureOutDir,
	}

	fs.StringVar(&c.LeftURL, "l", "", "left eye camera URL (http://..., uvc://N, or a serial port)")
	fs.StringVar(&c.RightURL, "r", "", "right eye camera URL")
	fs.StringVar(&c.FaceURL, "f", "", "mono face camera URL")
	fs.StringVar(&c.StereoURL, "lr", "", "single camera URL delivering a side-by-side stereo eye frame")
	fs.BoolVar(&c.Inference, "I", false, "enable eye-gaze inference")
	fs.StringVar(&c.OSCEndpoint, "o", defaultOSCEndpoint, "OSC endpoint (host:port) to publish combined gaze to")
	fs.StringVar(&c.ModelPath, "m", "", "path to the ONNX eye-gaze model (desktop only; embedded on headset builds)")
	fs.IntVar(&c.ThreadsPerEye, "t", 1, "ONNX intra-op threads per eye")
	fs.BoolVar(&c.Headless, "H", false, "disable the overlay GUI")
	fs.BoolVar(&c.MirrorTLS, "tls", false, "serve the camera mirror over a self-signed HTTPS listener")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if c.StereoURL != "" && (c.LeftURL != "" || c.RightURL != "") {
		return nil, ErrConflictingFlags
	}

	if c.Inference && c.ModelPath == "" {
		return nil, fmt.Errorf("config: -I requires -m <model-path>")
	}

	return c, nil
}
