package ocr

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rotisserie/eris"
)

// DefaultMaxImageBytes is the upload ceiling used when no limit is configured (5 MiB).
const DefaultMaxImageBytes int64 = 5 * 1024 * 1024

// RawImage is an encoded still image plus its sniffed MIME type.
type RawImage struct {
	Name string
	Data []byte
	MIME string
	Size int64
}

// Source yields the bytes of one still image.
type Source interface {
	Name() string
	Open() (io.ReadCloser, error)
}

// sizer is implemented by sources that know their length up front, which
// lets Capture reject oversized input without reading it.
type sizer interface {
	Size() int64
}

// FileSource reads an image picked from the local filesystem.
type FileSource string

func (f FileSource) Name() string { return filepath.Base(string(f)) }

func (f FileSource) Open() (io.ReadCloser, error) { return os.Open(filepath.Clean(string(f))) }

func (f FileSource) Size() int64 {
	st, err := os.Stat(string(f))
	if err != nil {
		return -1
	}
	return st.Size()
}

// BytesSource wraps an in-memory frame, e.g. a still grabbed from a camera.
type BytesSource struct {
	Label string
	Data  []byte
}

func (b BytesSource) Name() string { return b.Label }

func (b BytesSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.Data)), nil
}

func (b BytesSource) Size() int64 { return int64(len(b.Data)) }

// MultipartSource adapts an uploaded form file.
type MultipartSource struct {
	Header *multipart.FileHeader
}

func (m MultipartSource) Name() string { return m.Header.Filename }

func (m MultipartSource) Open() (io.ReadCloser, error) { return m.Header.Open() }

func (m MultipartSource) Size() int64 { return m.Header.Size }

// FrameGrabber is a live camera stream that can hand out one still frame.
type FrameGrabber interface {
	Grab(ctx context.Context) ([]byte, error)
}

// FrameSource captures a single frame from a live stream when opened.
type FrameSource struct {
	Ctx     context.Context
	Grabber FrameGrabber
	Label   string
}

func (f FrameSource) Name() string {
	if f.Label == "" {
		return "camera"
	}
	return f.Label
}

func (f FrameSource) Open() (io.ReadCloser, error) {
	ctx := f.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	frame, err := f.Grabber.Grab(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "acquire: grab frame")
	}
	return io.NopCloser(bytes.NewReader(frame)), nil
}

// Acquirer validates captured images and holds at most one of them.
type Acquirer struct {
	maxBytes int64

	mu      sync.Mutex
	current *RawImage
	lastErr error
}

// NewAcquirer returns an Acquirer enforcing maxBytes (DefaultMaxImageBytes when <= 0).
func NewAcquirer(maxBytes int64) *Acquirer {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	return &Acquirer{maxBytes: maxBytes}
}

// MaxBytes returns the configured size limit.
func (a *Acquirer) MaxBytes() int64 { return a.maxBytes }

// Capture reads and validates one image from src. On success it replaces the
// held image; on failure nothing is held and the error is remembered.
func (a *Acquirer) Capture(src Source) (RawImage, error) {
	img, err := a.read(src)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = nil
	a.lastErr = err
	if err != nil {
		return RawImage{}, err
	}
	a.current = &img
	return img, nil
}

func (a *Acquirer) read(src Source) (RawImage, error) {
	if s, ok := src.(sizer); ok && s.Size() > a.maxBytes {
		return RawImage{}, ErrTooLarge
	}
	rc, err := src.Open()
	if err != nil {
		return RawImage{}, eris.Wrapf(err, "acquire: open %s", src.Name())
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, a.maxBytes+1))
	if err != nil {
		return RawImage{}, eris.Wrapf(err, "acquire: read %s", src.Name())
	}
	if int64(len(data)) > a.maxBytes {
		return RawImage{}, ErrTooLarge
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return RawImage{}, ErrNotAnImage
	}
	return RawImage{
		Name: src.Name(),
		Data: data,
		MIME: mt.String(),
		Size: int64(len(data)),
	}, nil
}

// Current returns the held image, if any.
func (a *Acquirer) Current() (RawImage, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return RawImage{}, false
	}
	return *a.current, true
}

// Take hands the held image to the caller and stops holding it.
func (a *Acquirer) Take() (RawImage, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return RawImage{}, false
	}
	img := *a.current
	a.current = nil
	return img, true
}

// Restore puts back an image returned by Take unless a newer one was captured.
func (a *Acquirer) Restore(img RawImage) {
	a.mu.Lock()
	if a.current == nil {
		a.current = &img
	}
	a.mu.Unlock()
}

// Err returns the error of the last failed capture.
func (a *Acquirer) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}

// Reset drops the held image and any remembered error.
func (a *Acquirer) Reset() {
	a.mu.Lock()
	a.current = nil
	a.lastErr = nil
	a.mu.Unlock()
}
