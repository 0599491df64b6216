package mirror

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pembem22/eyetrackvr-go/internal/broadcast"
	"github.com/pembem22/eyetrackvr-go/internal/frame"
	"github.com/pembem22/eyetrackvr-go/internal/gaze"
)

func sampleFrame(t *testing.T) *frame.Frame {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, frame.Size, frame.Size))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode sample jpeg: %v", err)
	}
	f, err := frame.Decode(buf.Bytes(), time.Now())
	if err != nil {
		t.Fatalf("decode sample jpeg: %v", err)
	}
	return f
}

func TestFaceHandlerServesMultipartJPEG(t *testing.T) {
	face := broadcast.New[*frame.Frame]()
	srv := NewServer(":0", false, nil, face)

	req := httptest.NewRequest(http.MethodGet, "/F", nil)
	ctx, cancel := context.WithCancel(req.Context())
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		srv.handleFace(rec, req)
		close(done)
	}()

	face.Send(sampleFrame(t))
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	ct := rec.Header().Get("Content-Type")
	mediaType, params, err := mime.ParseMediaType(ct)
	if err != nil {
		t.Fatalf("parse content type %q: %v", ct, err)
	}
	if mediaType != "multipart/x-mixed-replace" {
		t.Fatalf("media type = %q", mediaType)
	}
	if params["boundary"] != boundary {
		t.Fatalf("boundary = %q, want %q", params["boundary"], boundary)
	}

	mr := multipart.NewReader(rec.Body, boundary)
	part, err := mr.NextPart()
	if err != nil {
		t.Fatalf("read first part: %v", err)
	}
	if ctype := part.Header.Get("Content-Type"); ctype != "image/jpeg" {
		t.Errorf("part content-type = %q", ctype)
	}
}

func TestEyeHandlerSkipsWrongTag(t *testing.T) {
	eyes := broadcast.New[gaze.EyesFrame]()
	srv := NewServer(":0", false, eyes, nil)

	req := httptest.NewRequest(http.MethodGet, "/L", nil)
	ctx, cancel := context.WithCancel(req.Context())
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		srv.handleEye(gaze.TagLeft)(rec, req)
		close(done)
	}()

	// A right-only frame never satisfies LeftView(); the handler should
	// just keep waiting without writing a part.
	eyes.Send(gaze.EyesFrame{Tag: gaze.TagRight, Frame: sampleFrame(t)})
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	if rec.Body.Len() != 0 {
		t.Errorf("expected no body written for mismatched tag, got %d bytes", rec.Body.Len())
	}
}
