package ocr

import (
	"os"
	"strings"
	"testing"

	"github.com/otiai10/gosseract/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTesseractConfigFile(t *testing.T) {
	tess, err := NewTesseract("", 0)
	require.NoError(t, err)
	path := tess.configFile

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	cfg := string(data)
	assert.Contains(t, cfg, "tessedit_ocr_engine_mode 1\n")
	assert.Equal(t, 1, strings.Count(cfg, "preserve_interword_spaces"))

	require.NoError(t, tess.Close())
	assert.NoFileExists(t, path)
	assert.NoError(t, tess.Close())
}

func TestMeanConfidenceSkipsNonText(t *testing.T) {
	boxes := []gosseract.BoundingBox{{Confidence: 90}, {Confidence: -1}, {Confidence: 70}}
	assert.InDelta(t, 80, meanConfidence(boxes), 1e-9)
	assert.Zero(t, meanConfidence([]gosseract.BoundingBox{{Confidence: -1}}))
}
