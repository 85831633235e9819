package ocr

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cardImage(t *testing.T) RawImage {
	t.Helper()
	img := imaging.New(200, 120, color.NRGBA{230, 230, 220, 255})
	for x := 30; x < 170; x++ {
		for y := 50; y < 58; y++ {
			img.SetNRGBA(x, y, color.NRGBA{20, 20, 30, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.JPEG))
	return RawImage{Name: "card.jpg", Data: buf.Bytes(), MIME: "image/jpeg", Size: int64(buf.Len())}
}

func TestPreprocessIsDeterministicAndPure(t *testing.T) {
	in := cardImage(t)
	orig := append([]byte(nil), in.Data...)

	a, err := Preprocess(in)
	require.NoError(t, err)
	b, err := Preprocess(in)
	require.NoError(t, err)

	assert.Equal(t, a.Data, b.Data)
	assert.Equal(t, orig, in.Data)
	assert.Equal(t, "image/png", a.MIME)

	out, err := imaging.Decode(bytes.NewReader(a.Data))
	require.NoError(t, err)
	assert.Equal(t, 1300, out.Bounds().Dy(), "short images are upscaled")
}

func TestPreprocessBinarizes(t *testing.T) {
	out, err := Preprocess(cardImage(t))
	require.NoError(t, err)
	img, err := imaging.Decode(bytes.NewReader(out.Data))
	require.NoError(t, err)
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y += 37 {
		for x := b.Min.X; x < b.Max.X; x += 41 {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			assert.True(t, g.Y == 0 || g.Y == 255, "pixel %d,%d = %d", x, y, g.Y)
		}
	}
}

func TestPreprocessFailsSoftly(t *testing.T) {
	_, err := Preprocess(RawImage{})
	assert.True(t, IsKind(err, KindPreprocess))

	_, err = Preprocess(RawImage{Data: []byte("\x89PNG garbage")})
	assert.True(t, IsKind(err, KindPreprocess))
	assert.Equal(t, "decode", Reason(err))
}

func TestAdaptiveThresholdEmptyImage(t *testing.T) {
	out := adaptiveThreshold(image.NewGray(image.Rect(0, 0, 0, 0)), 15, 7)
	assert.Equal(t, 0, out.Bounds().Dx())
}
