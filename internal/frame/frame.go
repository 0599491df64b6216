// Package frame defines the decoded-image carrier that flows through the
// acquisition, dispatch, and inference stages.
package frame

import (
	"bytes"
	"image"
	"image/draw"
	"image/jpeg"
	"sync"
	"time"
)

// Size is the fixed decoded frame dimension used throughout the pipeline.
const Size = 240

// Frame is a decoded RGB image plus its creation timestamp. The original
// JPEG bytes are kept if the source had them; otherwise a JPEG encoding is
// produced lazily and cached on first use, since most frames are never
// re-encoded. The dataset capture server and the camera mirror encode
// their own JPEGs from the decoded image and do not call JPEG.
type Frame struct {
	Decoded   *image.RGBA
	CreatedAt time.Time

	raw []byte // original JPEG bytes from the source, if any

	jpegOnce  sync.Once
	jpegBytes []byte
	jpegErr   error
}

// Decode decodes JPEG bytes b into a Frame stamped with the current time.
// The image is resized to Size x Size is NOT performed here: sources are
// expected to already deliver Size x Size frames (or, for stereo rigs,
// 2*Size x Size); decode only validates and converts the pixel format.
func Decode(b []byte, now time.Time) (*Frame, error) {
	img, err := jpeg.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}

	rgba, ok := img.(*image.RGBA)
	if !ok {
		rgba = image.NewRGBA(img.Bounds())
		draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	}

	raw := make([]byte, len(b))
	copy(raw, b)

	return &Frame{
		Decoded:   rgba,
		CreatedAt: now,
		raw:       raw,
	}, nil
}

// JPEG returns a JPEG encoding of the decoded image, computing and caching
// it on first call.
func (f *Frame) JPEG() ([]byte, error) {
	if f.raw != nil {
		return f.raw, nil
	}
	f.jpegOnce.Do(func() {
		var buf bytes.Buffer
		f.jpegErr = jpeg.Encode(&buf, f.Decoded, &jpeg.Options{Quality: 90})
		f.jpegBytes = buf.Bytes()
	})
	return f.jpegBytes, f.jpegErr
}
