package ocr

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{255, 255, 255, 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

// noisyPNG encodes an image that compresses poorly.
func noisyPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{})
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x*31 + y*17), uint8(x*7 ^ y*13), uint8(x + y*y*3), 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

func TestCaptureAcceptsImage(t *testing.T) {
	a := NewAcquirer(0)
	assert.Equal(t, DefaultMaxImageBytes, a.MaxBytes())

	img, err := a.Capture(BytesSource{Label: "frame", Data: pngBytes(t, 40, 20)})
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIME)
	assert.Equal(t, int64(len(img.Data)), img.Size)

	held, ok := a.Current()
	require.True(t, ok)
	assert.Equal(t, img.Data, held.Data)
}

func TestCaptureReplacesPreviousImage(t *testing.T) {
	a := NewAcquirer(0)
	_, err := a.Capture(BytesSource{Label: "first", Data: pngBytes(t, 10, 10)})
	require.NoError(t, err)
	_, err = a.Capture(BytesSource{Label: "second", Data: pngBytes(t, 20, 20)})
	require.NoError(t, err)
	held, ok := a.Current()
	require.True(t, ok)
	assert.Equal(t, "second", held.Name)
}

func TestCaptureRejectsNonImage(t *testing.T) {
	a := NewAcquirer(0)
	_, err := a.Capture(BytesSource{Label: "notes.txt", Data: []byte("plain text, not a picture")})
	assert.ErrorIs(t, err, ErrNotAnImage)
	assert.True(t, IsKind(err, KindValidation))
	_, ok := a.Current()
	assert.False(t, ok)
	assert.ErrorIs(t, a.Err(), ErrNotAnImage)
}

func TestCaptureRejectsTooLarge(t *testing.T) {
	a := NewAcquirer(1024)
	_, err := a.Capture(BytesSource{Label: "ok", Data: pngBytes(t, 1, 1)})
	require.NoError(t, err)

	big := noisyPNG(t, 100, 100)
	require.Greater(t, len(big), 1024)
	_, err = a.Capture(BytesSource{Label: "big", Data: big})
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Equal(t, "too-large", Reason(err))
	_, ok := a.Current()
	assert.False(t, ok, "no image may be retained after a failed capture")
}

type unsizedSource struct{ data []byte }

func (u unsizedSource) Name() string { return "stream" }
func (u unsizedSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(u.data)), nil
}

func TestCaptureRejectsTooLargeUnsizedSource(t *testing.T) {
	a := NewAcquirer(1024)
	_, err := a.Capture(unsizedSource{data: noisyPNG(t, 100, 100)})
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestCaptureFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "card.png")
	require.NoError(t, os.WriteFile(path, pngBytes(t, 30, 30), 0o600))

	img, err := NewAcquirer(0).Capture(FileSource(path))
	require.NoError(t, err)
	assert.Equal(t, "card.png", img.Name)
}

type grabber struct {
	frame []byte
	err   error
}

func (g grabber) Grab(context.Context) ([]byte, error) { return g.frame, g.err }

func TestCaptureFromFrameGrabber(t *testing.T) {
	a := NewAcquirer(0)
	img, err := a.Capture(FrameSource{Grabber: grabber{frame: pngBytes(t, 8, 8)}})
	require.NoError(t, err)
	assert.Equal(t, "camera", img.Name)

	_, err = a.Capture(FrameSource{Grabber: grabber{err: errors.New("device busy")}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device busy")
}

func TestResetIsIdempotent(t *testing.T) {
	a := NewAcquirer(0)
	_, _ = a.Capture(BytesSource{Data: []byte("nope")})
	a.Reset()
	a.Reset()
	_, ok := a.Current()
	assert.False(t, ok)
	assert.NoError(t, a.Err())
}
