package ocr

import "context"

// PageSegMode mirrors Tesseract's --psm values.
type PageSegMode int

// EngineMode mirrors Tesseract's --oem values.
type EngineMode int

const (
	PSMSingleBlock PageSegMode = 6
	OEMLSTMOnly    EngineMode  = 1
	DefaultLang                = "eng"
)

// RecognitionRequest is the immutable input handed to an Engine.
type RecognitionRequest struct {
	image       RawImage
	language    string
	engineMode  EngineMode
	pageSegMode PageSegMode
}

// NewRecognitionRequest builds a request with the fixed scan configuration.
// Zero values fall back to English, LSTM-only and single-block segmentation.
func NewRecognitionRequest(img RawImage, language string, oem EngineMode, psm PageSegMode) RecognitionRequest {
	if language == "" {
		language = DefaultLang
	}
	if oem == 0 {
		oem = OEMLSTMOnly
	}
	if psm == 0 {
		psm = PSMSingleBlock
	}
	data := make([]byte, len(img.Data))
	copy(data, img.Data)
	img.Data = data
	return RecognitionRequest{image: img, language: language, engineMode: oem, pageSegMode: psm}
}

func (r RecognitionRequest) Image() RawImage          { return r.image }
func (r RecognitionRequest) Language() string         { return r.language }
func (r RecognitionRequest) EngineMode() EngineMode   { return r.engineMode }
func (r RecognitionRequest) PageSegMode() PageSegMode { return r.pageSegMode }

// EngineResult is the raw engine output before cleaning.
type EngineResult struct {
	Text       string
	Confidence float64 // 0-100
}

// Engine is the external recognition capability. progress receives
// completion fractions in [0,1]; it may be called from any goroutine.
type Engine interface {
	Recognize(ctx context.Context, req RecognitionRequest, progress func(float64)) (EngineResult, error)
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(ctx context.Context, req RecognitionRequest, progress func(float64)) (EngineResult, error)

func (f EngineFunc) Recognize(ctx context.Context, req RecognitionRequest, progress func(float64)) (EngineResult, error) {
	return f(ctx, req, progress)
}
