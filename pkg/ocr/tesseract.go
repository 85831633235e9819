package ocr

import (
	"context"
	"fmt"
	"os"

	"github.com/otiai10/gosseract/v2"
	"github.com/rotisserie/eris"
)

// Tesseract runs recognition through a local libtesseract via gosseract.
// A fresh client is created per request so a Tesseract value is safe for
// concurrent use by independent recognizers.
type Tesseract struct {
	tessdataPrefix string
	configFile     string
}

// NewTesseract prepares a Tesseract engine. The engine mode is an init-only
// Tesseract parameter, so it is written to a config file passed at client init.
func NewTesseract(tessdataPrefix string, oem EngineMode) (*Tesseract, error) {
	if oem == 0 {
		oem = OEMLSTMOnly
	}
	f, err := os.CreateTemp("", "regscan-tess-*.cfg")
	if err != nil {
		return nil, eris.Wrap(err, "tesseract: create config")
	}
	_, werr := fmt.Fprintf(f, "tessedit_ocr_engine_mode %d\npreserve_interword_spaces 1\n", int(oem))
	cerr := f.Close()
	if werr != nil || cerr != nil {
		_ = os.Remove(f.Name())
		return nil, eris.New("tesseract: write config")
	}
	return &Tesseract{tessdataPrefix: tessdataPrefix, configFile: f.Name()}, nil
}

// Close removes the generated config file.
func (t *Tesseract) Close() error {
	if t.configFile == "" {
		return nil
	}
	err := os.Remove(t.configFile)
	t.configFile = ""
	return err
}

// Recognize implements Engine. Tesseract has no incremental progress hook,
// so progress is reported at stage boundaries.
func (t *Tesseract) Recognize(ctx context.Context, req RecognitionRequest, progress func(float64)) (EngineResult, error) {
	report := func(p float64) {
		if progress != nil {
			progress(p)
		}
	}
	report(0)

	client := gosseract.NewClient()
	defer client.Close()

	if t.tessdataPrefix != "" {
		if err := client.SetTessdataPrefix(t.tessdataPrefix); err != nil {
			return EngineResult{}, eris.Wrap(err, "tesseract: tessdata prefix")
		}
	}
	if t.configFile != "" {
		if err := client.SetConfigFile(t.configFile); err != nil {
			return EngineResult{}, eris.Wrap(err, "tesseract: config file")
		}
	}
	if err := client.SetLanguage(req.Language()); err != nil {
		return EngineResult{}, eris.Wrap(err, "tesseract: language")
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(req.PageSegMode())); err != nil {
		return EngineResult{}, eris.Wrap(err, "tesseract: page seg mode")
	}
	if err := client.SetImageFromBytes(req.Image().Data); err != nil {
		return EngineResult{}, eris.Wrap(err, "tesseract: set image")
	}
	report(0.1)
	if err := ctx.Err(); err != nil {
		return EngineResult{}, err
	}

	text, err := client.Text()
	if err != nil {
		return EngineResult{}, eris.Wrap(err, "tesseract: text")
	}
	report(0.8)
	if err := ctx.Err(); err != nil {
		return EngineResult{}, err
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return EngineResult{}, eris.Wrap(err, "tesseract: word boxes")
	}
	report(1)

	return EngineResult{Text: text, Confidence: meanConfidence(boxes)}, nil
}

// meanConfidence averages word confidences, ignoring Tesseract's -1 markers
// for non-text blocks.
func meanConfidence(boxes []gosseract.BoundingBox) float64 {
	var sum float64
	n := 0
	for _, b := range boxes {
		if b.Confidence < 0 {
			continue
		}
		sum += b.Confidence
		n++
	}
	if n == 0 {
		return 0
	}
	return clampPercent(sum / float64(n))
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
