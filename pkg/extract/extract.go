package extract

import (
	"strings"
	"time"
	"unicode"
)

const minYear = 1950

// Document is cleaned recognition text prepared for the strategies.
type Document struct {
	Text       string
	Lines      []string
	Confidence float64
	MaxYear    int

	lineStarts []int
}

// NewDocument splits text into lines. Years later than maxYear are rejected.
func NewDocument(text string, confidence float64, maxYear int) *Document {
	d := &Document{Text: text, Confidence: confidence, MaxYear: maxYear}
	off := 0
	for _, l := range strings.Split(text, "\n") {
		d.Lines = append(d.Lines, l)
		d.lineStarts = append(d.lineStarts, off)
		off += len(l) + 1
	}
	return d
}

// lineAt returns the line containing byte offset pos of Text.
func (d *Document) lineAt(pos int) string {
	i := len(d.lineStarts) - 1
	for i > 0 && d.lineStarts[i] > pos {
		i--
	}
	return d.Lines[i]
}

// Strategy attempts to read one field from a document. Returned values are
// already normalized for the field.
type Strategy interface {
	Name() string
	Attempt(doc *Document, f Field) (string, bool)
}

// Match records which strategy produced a field value.
type Match struct {
	Field    Field
	Strategy string
	Value    string
}

// Extractor evaluates its strategies in order for every field; the first one
// that yields a value wins.
type Extractor struct {
	strategies []Strategy
	now        func() time.Time
}

// New returns an Extractor over the given strategies, or the default
// label, pattern, position chain when none are given.
func New(strategies ...Strategy) *Extractor {
	if len(strategies) == 0 {
		strategies = []Strategy{NewLabelStrategy(), NewPatternStrategy(), NewPositionStrategy()}
	}
	return &Extractor{strategies: strategies, now: time.Now}
}

var defaultExtractor = New()

// Default returns the shared default Extractor.
func Default() *Extractor { return defaultExtractor }

// Extract runs the default Extractor.
func Extract(text string, confidence float64) Record {
	return defaultExtractor.Extract(text, confidence)
}

// Strategies returns the strategy names in evaluation order.
func (e *Extractor) Strategies() []string {
	names := make([]string, len(e.strategies))
	for i, s := range e.strategies {
		names[i] = s.Name()
	}
	return names
}

// Extract maps cleaned text onto a Record. It never fails: fields no strategy
// can read stay empty.
func (e *Extractor) Extract(text string, confidence float64) Record {
	rec, _ := e.Explain(text, confidence)
	return rec
}

// Explain is Extract plus the strategy that produced each non-empty field.
func (e *Extractor) Explain(text string, confidence float64) (Record, []Match) {
	var rec Record
	var matches []Match
	if strings.TrimSpace(text) == "" {
		return rec, nil
	}
	doc := NewDocument(text, confidence, e.now().Year()+1)
	for _, f := range Fields {
		for _, s := range e.strategies {
			if v, ok := s.Attempt(doc, f); ok && v != "" {
				rec.Set(f, v)
				matches = append(matches, Match{Field: f, Strategy: s.Name(), Value: v})
				break
			}
		}
	}
	return rec, matches
}

// headingWords mark title lines of a card rather than a person's name.
var headingWords = map[string]bool{
	"certificate": true, "registration": true, "transport": true, "government": true,
	"department": true, "form": true, "vehicle": true, "india": true, "state": true,
	"authority": true, "republic": true, "union": true, "rc": true, "card": true,
	"smart": true, "motor": true, "issued": true, "office": true, "rto": true,
	"licence": true, "license": true, "regional": true, "road": true,
}

// PositionStrategy reads the owner name from its conventional place: the first
// line that looks like a personal name. It is the last resort and is skipped
// when the recognition confidence is below MinConfidence.
type PositionStrategy struct {
	MinConfidence float64
	labels        *labelSet
}

func NewPositionStrategy() *PositionStrategy {
	return &PositionStrategy{labels: builtinLabels}
}

func (s *PositionStrategy) Name() string { return "position" }

func (s *PositionStrategy) Attempt(doc *Document, f Field) (string, bool) {
	if f != FieldOwnerName || doc.Confidence < s.MinConfidence {
		return "", false
	}
	for _, line := range doc.Lines {
		if s.labels.startsWithLabel(line) || !looksLikeName(line) {
			continue
		}
		return Normalize(FieldOwnerName, line, doc.MaxYear)
	}
	return "", false
}

// looksLikeName accepts two to four words made of letters, dots and
// apostrophes, none of them a heading word.
func looksLikeName(line string) bool {
	words := strings.Fields(line)
	if len(words) < 2 || len(words) > 4 {
		return false
	}
	for _, w := range words {
		if headingWords[strings.ToLower(strings.Trim(w, ".,:"))] {
			return false
		}
		letters := 0
		for _, r := range w {
			switch {
			case unicode.IsLetter(r):
				letters++
			case r == '.' || r == '\'' || r == '-':
			default:
				return false
			}
		}
		if letters == 0 {
			return false
		}
	}
	return true
}
