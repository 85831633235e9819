package ocr

import (
	"bytes"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/rotisserie/eris"
)

// PreprocessOptions tunes the deterministic cleanup applied before recognition.
type PreprocessOptions struct {
	Contrast     float64 // imaging.AdjustContrast percentage
	Sharpen      float64 // imaging.Sharpen sigma
	MinHeight    int     // images shorter than this are upscaled to TargetHeight
	TargetHeight int
	MaxWidth     int // wider images are downscaled to this width
	Window       int // adaptive threshold window (odd)
	Bias         int // adaptive threshold bias subtracted from the local mean
}

// DefaultPreprocessOptions are tuned for phone photos of ID-sized cards.
func DefaultPreprocessOptions() PreprocessOptions {
	return PreprocessOptions{
		Contrast:     20,
		Sharpen:      0.7,
		MinHeight:    900,
		TargetHeight: 1300,
		MaxWidth:     2400,
		Window:       15,
		Bias:         7,
	}
}

// Preprocess runs the default pipeline. See Preprocessor.Run.
func Preprocess(img RawImage) (RawImage, error) {
	return Preprocessor{Options: DefaultPreprocessOptions()}.Run(img)
}

// Preprocessor converts a captured photo into a high contrast black on white PNG.
type Preprocessor struct {
	Options PreprocessOptions
}

// Run is a pure function of img: it never touches img.Data and returns a new
// PNG payload. Errors are *Error with KindPreprocess.
func (p Preprocessor) Run(img RawImage) (RawImage, error) {
	if len(img.Data) == 0 {
		return RawImage{}, newError(KindPreprocess, "empty-image", nil)
	}
	src, err := imaging.Decode(bytes.NewReader(img.Data), imaging.AutoOrientation(true))
	if err != nil {
		return RawImage{}, newError(KindPreprocess, "decode", err)
	}
	o := p.Options

	gray := imaging.Grayscale(src)
	if o.Contrast != 0 {
		gray = imaging.AdjustContrast(gray, o.Contrast)
	}
	if o.Sharpen > 0 {
		gray = imaging.Sharpen(gray, o.Sharpen)
	}
	if o.MinHeight > 0 && gray.Bounds().Dy() < o.MinHeight {
		gray = imaging.Resize(gray, 0, o.TargetHeight, imaging.Lanczos)
	}
	if o.MaxWidth > 0 && gray.Bounds().Dx() > o.MaxWidth {
		gray = imaging.Resize(gray, o.MaxWidth, 0, imaging.Lanczos)
	}
	out := adaptiveThreshold(gray, o.Window, o.Bias)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
		return RawImage{}, newError(KindPreprocess, "encode", eris.Wrap(err, "png"))
	}
	return RawImage{
		Name: img.Name,
		Data: buf.Bytes(),
		MIME: "image/png",
		Size: int64(buf.Len()),
	}, nil
}

// luma reads the 8-bit gray level of every pixel into a row-major slice.
func luma(img image.Image) ([]int, int, int) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	px := make([]int, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bb, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			px[y*w+x] = int((r + g + bb) / 3 >> 8)
		}
	}
	return px, w, h
}

// adaptiveThreshold performs a mean adaptive threshold using an integral image.
func adaptiveThreshold(img image.Image, window int, bias int) *image.NRGBA {
	if window < 3 {
		window = 3
	}
	if window%2 == 0 {
		window++
	}
	px, w, h := luma(img)
	out := imaging.New(w, h, color.NRGBA{255, 255, 255, 255})
	if w == 0 || h == 0 {
		return out
	}
	half := window / 2

	ints := make([]int, w*h)
	for y := 0; y < h; y++ {
		rowSum := 0
		for x := 0; x < w; x++ {
			rowSum += px[y*w+x]
			idx := y*w + x
			if y == 0 {
				ints[idx] = rowSum
			} else {
				ints[idx] = ints[(y-1)*w+x] + rowSum
			}
		}
	}
	at := func(x, y int) int {
		if x < 0 || y < 0 {
			return 0
		}
		return ints[y*w+x]
	}

	black := color.NRGBA{0, 0, 0, 255}
	for y := 0; y < h; y++ {
		y0, y1 := max(y-half, 0), min(y+half, h-1)
		for x := 0; x < w; x++ {
			x0, x1 := max(x-half, 0), min(x+half, w-1)
			sum := at(x1, y1) - at(x0-1, y1) - at(x1, y0-1) + at(x0-1, y0-1)
			mean := sum / ((x1 - x0 + 1) * (y1 - y0 + 1))
			th := max(mean-bias, 0)
			if px[y*w+x] < th {
				out.SetNRGBA(x, y, black)
			}
		}
	}
	return out
}
