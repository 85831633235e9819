package ocr

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	lineBreaks    = strings.NewReplacer("\r\n", "\n", "\r", "\n", "\u2028", "\n", "\u2029", "\n", "\u0085", "\n")
	hSpaceRun     = regexp.MustCompile(`[\t\f\v \p{Zs}]+`)
	blankLineRuns = regexp.MustCompile(`\n(?:[\t\f\v \p{Zs}]*\n){2,}`)
)

// CleanText normalizes raw OCR output. The steps run in a fixed order and the
// result is stable under repeated application.
func CleanText(raw string) string {
	t := lineBreaks.Replace(raw)
	t = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || r == unicode.ReplacementChar || unicode.Is(unicode.Cf, r) {
			return -1
		}
		return r
	}, t)
	// NFKC folds ligatures and full-width forms Tesseract sometimes emits.
	t = norm.NFKC.String(t)
	t = lineBreaks.Replace(t)
	t = hSpaceRun.ReplaceAllString(t, " ")
	t = blankLineRuns.ReplaceAllString(t, "\n\n")

	lines := strings.Split(t, "\n")
	kept := lines[:0]
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		kept = append(kept, l)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// snippet shortens text for log fields.
func snippet(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}
