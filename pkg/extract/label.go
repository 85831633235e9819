package extract

import (
	"regexp"
	"sort"
	"strings"
)

// labelDef describes one printed label. Words are matched case-insensitively
// with any run of spaces or punctuation (or none) between them. A zero Field
// marks labels of card fields this package does not extract; they still end
// the value of a preceding label. Inline labels split a line even without a
// separator after them.
type labelDef struct {
	Field  Field
	Text   string
	Inline bool
}

var defaultLabels = []labelDef{
	{Field: FieldOwnerName, Text: "owner name"},
	{Field: FieldOwnerName, Text: "owner's name"},
	{Field: FieldOwnerName, Text: "name of owner"},
	{Field: FieldOwnerName, Text: "name of the owner"},
	{Field: FieldOwnerName, Text: "registered owner"},
	{Field: FieldOwnerName, Text: "owner"},
	{Field: FieldOwnerName, Text: "name"},

	{Field: FieldRegistrationNo, Text: "registration number"},
	{Field: FieldRegistrationNo, Text: "registration no"},
	{Field: FieldRegistrationNo, Text: "regn number"},
	{Field: FieldRegistrationNo, Text: "regn no"},
	{Field: FieldRegistrationNo, Text: "reg number"},
	{Field: FieldRegistrationNo, Text: "reg no"},
	{Field: FieldRegistrationNo, Text: "registration mark"},
	{Field: FieldRegistrationNo, Text: "vehicle number"},
	{Field: FieldRegistrationNo, Text: "vehicle no"},
	{Field: FieldRegistrationNo, Text: "plate number"},
	{Field: FieldRegistrationNo, Text: "plate no"},

	{Field: FieldMake, Text: "maker's name"},
	{Field: FieldMake, Text: "maker name"},
	{Field: FieldMake, Text: "manufacturer"},
	{Field: FieldMake, Text: "maker"},
	{Field: FieldMake, Text: "make"},
	{Field: FieldMake, Text: "mfr"},

	{Field: FieldModel, Text: "maker's model"},
	{Field: FieldModel, Text: "vehicle model"},
	{Field: FieldModel, Text: "model name"},
	{Field: FieldModel, Text: "model"},

	{Field: FieldYear, Text: "year of manufacture"},
	{Field: FieldYear, Text: "month year of mfg"},
	{Field: FieldYear, Text: "manufacturing year"},
	{Field: FieldYear, Text: "mfg year"},
	{Field: FieldYear, Text: "mfg date"},
	{Field: FieldYear, Text: "mfg dt"},
	{Field: FieldYear, Text: "mfd"},
	{Field: FieldYear, Text: "yom"},
	{Field: FieldYear, Text: "year"},

	{Field: FieldVIN, Text: "vehicle identification number"},
	{Field: FieldVIN, Text: "chassis number"},
	{Field: FieldVIN, Text: "chassis no"},
	{Field: FieldVIN, Text: "chassis"},
	{Field: FieldVIN, Text: "vin no"},
	{Field: FieldVIN, Text: "vin"},

	{Field: FieldAddress, Text: "permanent address"},
	{Field: FieldAddress, Text: "present address"},
	{Field: FieldAddress, Text: "address"},
	{Field: FieldAddress, Text: "addr"},

	{Field: FieldPhone, Text: "mobile number"},
	{Field: FieldPhone, Text: "mobile no"},
	{Field: FieldPhone, Text: "phone number"},
	{Field: FieldPhone, Text: "phone no"},
	{Field: FieldPhone, Text: "contact number"},
	{Field: FieldPhone, Text: "contact no"},
	{Field: FieldPhone, Text: "mobile"},
	{Field: FieldPhone, Text: "phone"},
	{Field: FieldPhone, Text: "tel"},

	{Field: FieldEmail, Text: "email address"},
	{Field: FieldEmail, Text: "email id"},
	{Field: FieldEmail, Text: "e-mail"},
	{Field: FieldEmail, Text: "mail id"},

	{Text: "owner sr no"},
	{Text: "owner serial no"},
	{Text: "owner serial number"},
	{Text: "name of financier"},
	{Text: "father's name"},
	{Text: "husband's name"},
	{Text: "s/w/d of", Inline: true},
	{Text: "son of", Inline: true},
	{Text: "wife of", Inline: true},
	{Text: "daughter of", Inline: true},
	{Text: "s/o", Inline: true},
	{Text: "d/o", Inline: true},
	{Text: "w/o", Inline: true},
	{Text: "date of registration"},
	{Text: "registration date"},
	{Text: "regn date"},
	{Text: "reg date"},
	{Text: "registration validity"},
	{Text: "regn validity"},
	{Text: "valid upto"},
	{Text: "tax upto"},
	{Text: "engine number"},
	{Text: "engine no"},
	{Text: "motor no"},
	{Text: "fuel type"},
	{Text: "fuel used"},
	{Text: "fuel"},
	{Text: "vehicle class"},
	{Text: "body type"},
	{Text: "colour"},
	{Text: "color"},
	{Text: "seating capacity"},
	{Text: "cubic capacity"},
	{Text: "unladen weight"},
	{Text: "wheel base"},
	{Text: "emission norms"},
	{Text: "insurance"},
	{Text: "financier"},
	{Text: "hypothecated to"},
}

// labelSet is a compiled label vocabulary.
type labelSet struct {
	defs []labelDef
	re   *regexp.Regexp
}

// separatorRE matches the punctuation between a label and its value.
var separatorRE = regexp.MustCompile(`^[\s.]*([:=|>\-\x{2013}\x{2014}]+)?\s*`)

func labelPattern(text string) string {
	words := strings.Fields(strings.ToLower(text))
	parts := make([]string, len(words))
	for i, w := range words {
		q := regexp.QuoteMeta(w)
		q = strings.ReplaceAll(q, "-", `[\s-]?`)
		q = strings.ReplaceAll(q, "'", `['\x{2019}]?`)
		q = strings.ReplaceAll(q, "/", `\s*/\s*`)
		parts[i] = q
	}
	return strings.Join(parts, `[\s.,_'/-]*`)
}

// compileLabels builds one anchored alternation, longest label first, so the
// leftmost-first match at any position is the longest label there.
func compileLabels(defs []labelDef) *labelSet {
	sorted := make([]labelDef, len(defs))
	copy(sorted, defs)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i].Text) > len(sorted[j].Text) })

	alts := make([]string, len(sorted))
	for i, d := range sorted {
		alts[i] = "(" + labelPattern(d.Text) + `)\b`
	}
	return &labelSet{
		defs: sorted,
		re:   regexp.MustCompile(`^(?i:` + strings.Join(alts, "|") + `)`),
	}
}

// labelHit is one label occurrence inside a line.
type labelHit struct {
	def   labelDef
	start int // offset of the label
	value int // offset of the value after label and separator
	sep   bool
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b|0x20 >= 'a' && b|0x20 <= 'z')
}

// hits scans line for labels. A label at the start of the line always counts;
// further in, it counts only when a separator follows it or it is inline.
func (ls *labelSet) hits(line string) []labelHit {
	var out []labelHit
	for i := 0; i < len(line); {
		if i > 0 && isWordByte(line[i-1]) {
			i++
			continue
		}
		m := ls.re.FindStringSubmatchIndex(line[i:])
		if m == nil {
			i++
			continue
		}
		def, ok := ls.matched(m)
		if !ok {
			i++
			continue
		}
		end := i + m[1]
		sep := separatorRE.FindStringSubmatchIndex(line[end:])
		hasSep := sep != nil && sep[2] >= 0
		if i == 0 || hasSep || def.Inline {
			v := end
			if sep != nil {
				v += sep[1]
			}
			out = append(out, labelHit{def: def, start: i, value: v, sep: hasSep})
			i = v
			continue
		}
		i++
	}
	return out
}

func (ls *labelSet) matched(m []int) (labelDef, bool) {
	for g := 1; g*2 < len(m); g++ {
		if m[g*2] >= 0 {
			return ls.defs[g-1], true
		}
	}
	return labelDef{}, false
}

// startsWithLabel reports whether line opens with any known label.
func (ls *labelSet) startsWithLabel(line string) bool {
	h := ls.hits(line)
	return len(h) > 0 && h[0].start == 0
}

// LabelStrategy reads the value printed after a known field label, on the
// same line or, when the label ends its line, on the next line.
type LabelStrategy struct {
	labels *labelSet
}

// NewLabelStrategy uses the built-in label vocabulary.
func NewLabelStrategy() *LabelStrategy {
	return &LabelStrategy{labels: builtinLabels}
}

var builtinLabels = compileLabels(defaultLabels)

func (s *LabelStrategy) Name() string { return "label" }

func (s *LabelStrategy) Attempt(doc *Document, f Field) (string, bool) {
	var fallback string
	valueAbove := false
	for li, line := range doc.Lines {
		hs := s.labels.hits(line)
		labelled := false
		for k, h := range hs {
			end := len(line)
			if k+1 < len(hs) {
				end = hs[k+1].start
			}
			raw := strings.TrimSpace(line[h.value:end])
			// "Model Town" right under an address is value text, not a label.
			bare := raw != "" && !h.sep && !h.def.Inline
			if h.def.Field == "" || raw != "" && !bare {
				labelled = true
			}
			if h.def.Field != f || bare && valueAbove {
				continue
			}
			if raw == "" && k+1 == len(hs) && li+1 < len(doc.Lines) {
				raw = s.leadingValue(doc.Lines[li+1])
			}
			v, ok := Normalize(f, raw, doc.MaxYear)
			if !ok {
				continue
			}
			if !bare {
				return v, true
			}
			if fallback == "" {
				fallback = v
			}
		}
		valueAbove = labelled
	}
	return fallback, fallback != ""
}

// leadingValue returns the text of a continuation line up to its first label,
// or "" when the line is itself a label line or opens with a relation marker.
// A bare word at the start of the line ("Model Town") is read as value text.
func (s *LabelStrategy) leadingValue(line string) string {
	hs := s.labels.hits(line)
	if len(hs) > 0 && hs[0].start == 0 {
		if hs[0].sep || hs[0].def.Field == "" || strings.TrimSpace(line[hs[0].value:]) == "" {
			return ""
		}
		hs = hs[1:]
	}
	if len(hs) == 0 {
		return line
	}
	return strings.TrimSpace(line[:hs[0].start])
}
