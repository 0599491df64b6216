package config

import (
	"errors"
	"testing"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.OSCEndpoint != defaultOSCEndpoint {
		t.Errorf("OSCEndpoint = %q, want %q", cfg.OSCEndpoint, defaultOSCEndpoint)
	}
	if cfg.ThreadsPerEye != 1 {
		t.Errorf("ThreadsPerEye = %d, want 1", cfg.ThreadsPerEye)
	}
	if cfg.Inference {
		t.Error("Inference should default to false")
	}
}

func TestParseConflictingLrAndL(t *testing.T) {
	_, err := Parse([]string{"--lr", "http://cam/both", "-l", "http://cam/left"})
	if !errors.Is(err, ErrConflictingFlags) {
		t.Fatalf("Parse() error = %v, want ErrConflictingFlags", err)
	}
}

func TestParseConflictingLrAndR(t *testing.T) {
	_, err := Parse([]string{"--lr", "http://cam/both", "-r", "http://cam/right"})
	if !errors.Is(err, ErrConflictingFlags) {
		t.Fatalf("Parse() error = %v, want ErrConflictingFlags", err)
	}
}

func TestParseInferenceRequiresModel(t *testing.T) {
	_, err := Parse([]string{"-I"})
	if err == nil {
		t.Fatal("expected error when -I is set without -m")
	}
}

func TestParseFullFlagSet(t *testing.T) {
	cfg, err := Parse([]string{
		"-l", "COM3",
		"-r", "uvc://0",
		"-f", "http://cam/face",
		"-I",
		"-m", "/models/eye.onnx",
		"-t", "2",
		"-o", "127.0.0.1:9001",
		"-H",
	})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.LeftURL != "COM3" || cfg.RightURL != "uvc://0" || cfg.FaceURL != "http://cam/face" {
		t.Errorf("unexpected URLs: %+v", cfg)
	}
	if !cfg.Inference || cfg.ModelPath != "/models/eye.onnx" || cfg.ThreadsPerEye != 2 {
		t.Errorf("unexpected inference config: %+v", cfg)
	}
	if cfg.OSCEndpoint != "127.0.0.1:9001" {
		t.Errorf("OSCEndpoint = %q", cfg.OSCEndpoint)
	}
	if !cfg.Headless {
		t.Error("Headless should be true")
	}
}
