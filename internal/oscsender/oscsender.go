// Package oscsender publishes every combined gaze state to a configured
// OSC endpoint as two always-on bundles: VRChat's native eye-tracking
// protocol and VRCFT v2, per spec.md §4.6.
package oscsender

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net"
	"strconv"
	"sync"

	"github.com/hypebeast/go-osc/osc"

	"github.com/pembem22/eyetrackvr-go/internal/broadcast"
	"github.com/pembem22/eyetrackvr-go/internal/gaze"
)

// eyelidOpenScale matches gaze.EyelidOpen: the eyelid value reported when
// an eye is fully, neutrally open.
const eyelidOpenScale = gaze.EyelidOpen

// Sender owns the UDP client for one OSC endpoint.
type Sender struct {
	client *osc.Client
	log    *slog.Logger
}

// New resolves endpoint (host:port, default "localhost:9000" per spec.md
// §6) and returns a Sender ready to publish combined states.
func New(endpoint string) (*Sender, error) {
	host, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse osc endpoint %q: %w", endpoint, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("parse osc endpoint %q: %w", endpoint, err)
	}

	return &Sender{
		client: osc.NewClient(host, port),
		log:    slog.With("component", "osc-sender", "endpoint", endpoint),
	}, nil
}

// Run publishes every combined state received from in until ctx is
// cancelled or in's Broadcaster closes. A single malformed send is logged
// and does not stop the loop, matching the transient-I/O handling used
// throughout the pipeline.
func (s *Sender) Run(ctx context.Context, in *broadcast.Receiver[gaze.CombinedEyeGazeState]) error {
	in.Activate()
	for {
		state, status := in.RecvAsync(ctx)
		switch status {
		case broadcast.Closed:
			return nil
		case broadcast.Empty:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := s.sendVRChatNative(state); err != nil {
				s.log.Warn("osc send failed", "schema", "vrchat-native", "error", err)
			}
		}()
		go func() {
			defer wg.Done()
			if err := s.sendVRCFTv2(state); err != nil {
				s.log.Warn("osc send failed", "schema", "vrcft-v2", "error", err)
			}
		}()
		wg.Wait()
	}
}

// sendVRChatNative sends VRChat's native eye-tracking addresses: combined
// pitch/yaw per eye, and an overall eyes-closed amount.
func (s *Sender) sendVRChatNative(c gaze.CombinedEyeGazeState) error {
	pitchYaw := osc.NewMessage("/tracking/eye/LeftRightPitchYaw")
	pitchYaw.Append(c.Pitch, c.LYaw, c.Pitch, c.RYaw)
	if err := s.client.Send(pitchYaw); err != nil {
		return err
	}

	closedAmount := clamp(1-(c.LEyelid+c.REyelid)/(eyelidOpenScale*2), 0, 1)
	closed := osc.NewMessage("/tracking/eye/EyesClosedAmount")
	closed.Append(closedAmount)
	return s.client.Send(closed)
}

// sendVRCFTv2 sends the VRCFT v2 face-tracking parameters as a single
// timestamped bundle.
func (s *Sender) sendVRCFTv2(c gaze.CombinedEyeGazeState) error {
	bundle := osc.NewBundle(c.Timestamp)

	eyeY := osc.NewMessage("/avatar/parameters/FT/v2/EyeY")
	eyeY.Append(-sinDeg(c.GazePitch))
	bundle.Append(eyeY)

	lx := osc.NewMessage("/avatar/parameters/FT/v2/EyeLeftX")
	lx.Append(sinDeg(c.LYaw))
	bundle.Append(lx)

	ly := osc.NewMessage("/avatar/parameters/FT/v2/EyeLeftY")
	ly.Append(-sinDeg(c.Pitch))
	bundle.Append(ly)

	lLid := osc.NewMessage("/avatar/parameters/FT/v2/EyeLidLeft")
	lLid.Append(c.LEyelid)
	bundle.Append(lLid)

	rx := osc.NewMessage("/avatar/parameters/FT/v2/EyeRightX")
	rx.Append(sinDeg(c.RYaw))
	bundle.Append(rx)

	ry := osc.NewMessage("/avatar/parameters/FT/v2/EyeRightY")
	ry.Append(-sinDeg(c.Pitch))
	bundle.Append(ry)

	rLid := osc.NewMessage("/avatar/parameters/FT/v2/EyeLidRight")
	rLid.Append(c.REyelid)
	bundle.Append(rLid)

	return s.client.Send(bundle)
}

func sinDeg(deg float32) float32 {
	return float32(math.Sin(float64(deg) * math.Pi / 180))
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
