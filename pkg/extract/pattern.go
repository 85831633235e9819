package extract

import (
	"regexp"
	"strings"
)

var (
	registrationRE = regexp.MustCompile(`(?i)\b([A-Z]{2})[\s.-]?(\d{1,2})[\s.-]?([A-Z]{0,3})[\s.-]?(\d{4})\b`)
	bharatSeriesRE = regexp.MustCompile(`(?i)\b(\d{2})[\s.-]?(BH)[\s.-]?(\d{4})[\s.-]?([A-Z]{1,2})\b`)
	vinTokenRE     = regexp.MustCompile(`(?i)\b[A-Z0-9]{17}\b`)
	yearTokenRE    = regexp.MustCompile(`\b(19[5-9]\d|20\d{2})\b`)
	phoneRE        = regexp.MustCompile(`(?:^|[^0-9A-Za-z+])(\+?\d{2,5}(?:[ -]?\d{2,5}){1,4})\b`)
	emailTokenRE   = regexp.MustCompile(`(?i)[a-z0-9._%+-]+\s?@\s?[a-z0-9-]+(?:\.[a-z0-9-]+)*\.[a-z]{2,}`)
	yearContextRE  = regexp.MustCompile(`(?i)\b(mfg|mfd|manufactur\w*|year|yom|model)\b`)
	phoneContextRE = regexp.MustCompile(`(?i)\b(mob\w*|phone|ph|tel|contact|cell)\b`)
)

var stateCodes = map[string]bool{
	"AN": true, "AP": true, "AR": true, "AS": true, "BR": true, "CG": true, "CH": true,
	"DD": true, "DL": true, "DN": true, "GA": true, "GJ": true, "HP": true, "HR": true,
	"JH": true, "JK": true, "KA": true, "KL": true, "LA": true, "LD": true, "MH": true,
	"ML": true, "MN": true, "MP": true, "MZ": true, "NL": true, "OD": true, "OR": true,
	"PB": true, "PY": true, "RJ": true, "SK": true, "TN": true, "TR": true, "TS": true,
	"UK": true, "UP": true, "WB": true,
}

// knownMakes maps the upper-case spelling printed on cards to a display name.
// Longer spellings come first so "MARUTI SUZUKI" matches before "MARUTI".
var knownMakes = []struct{ printed, name string }{
	{"MARUTI SUZUKI", "Maruti Suzuki"},
	{"MERCEDES-BENZ", "Mercedes-Benz"},
	{"MERCEDES BENZ", "Mercedes-Benz"},
	{"ROYAL ENFIELD", "Royal Enfield"},
	{"LAND ROVER", "Land Rover"},
	{"ASHOK LEYLAND", "Ashok Leyland"},
	{"VOLKSWAGEN", "Volkswagen"},
	{"MAHINDRA", "Mahindra"},
	{"HYUNDAI", "Hyundai"},
	{"TOYOTA", "Toyota"},
	{"MARUTI", "Maruti Suzuki"},
	{"SUZUKI", "Suzuki"},
	{"RENAULT", "Renault"},
	{"NISSAN", "Nissan"},
	{"SKODA", "Skoda"},
	{"HONDA", "Honda"},
	{"TATA", "Tata"},
	{"FORD", "Ford"},
	{"KIA", "Kia"},
	{"MG MOTOR", "MG"},
	{"BAJAJ", "Bajaj"},
	{"HERO", "Hero"},
	{"YAMAHA", "Yamaha"},
	{"TVS", "TVS"},
	{"BMW", "BMW"},
	{"AUDI", "Audi"},
	{"JEEP", "Jeep"},
	{"FIAT", "Fiat"},
	{"CHEVROLET", "Chevrolet"},
}

var makeRE, makeNames = compileMakes()

func compileMakes() (*regexp.Regexp, map[string]string) {
	alts := make([]string, len(knownMakes))
	names := make(map[string]string, len(knownMakes))
	for i, m := range knownMakes {
		alts[i] = strings.ReplaceAll(regexp.QuoteMeta(m.printed), " ", `\s+`)
		names[m.printed] = m.name
	}
	return regexp.MustCompile(`(?i)\b(` + strings.Join(alts, "|") + `)\b`), names
}

// candidate is one pattern hit. Higher score wins; ties go to the earlier hit.
type candidate struct {
	value string
	pos   int
	score int
}

func best(cands []candidate) (string, bool) {
	if len(cands) == 0 {
		return "", false
	}
	b := cands[0]
	for _, c := range cands[1:] {
		if c.score > b.score || (c.score == b.score && c.pos < b.pos) {
			b = c
		}
	}
	return b.value, true
}

// PatternStrategy recognizes fields by the shape of their values anywhere in
// the text: registration marks, VINs, years, phone numbers, e-mail addresses
// and well-known manufacturer names.
type PatternStrategy struct{}

func NewPatternStrategy() *PatternStrategy { return &PatternStrategy{} }

func (s *PatternStrategy) Name() string { return "pattern" }

func (s *PatternStrategy) Attempt(doc *Document, f Field) (string, bool) {
	var cands []candidate
	switch f {
	case FieldRegistrationNo:
		cands = registrationCandidates(doc)
	case FieldVIN:
		cands = vinCandidates(doc)
	case FieldYear:
		cands = yearCandidates(doc)
	case FieldPhone:
		cands = phoneCandidates(doc)
	case FieldEmail:
		cands = emailCandidates(doc)
	case FieldMake:
		cands = makeCandidates(doc)
	default:
		return "", false
	}
	return best(cands)
}

func registrationCandidates(doc *Document) []candidate {
	var out []candidate
	for _, m := range registrationRE.FindAllStringSubmatchIndex(doc.Text, -1) {
		raw := doc.Text[m[0]:m[1]]
		v, ok := Normalize(FieldRegistrationNo, raw, doc.MaxYear)
		if !ok {
			continue
		}
		sc := 0
		if stateCodes[strings.ToUpper(doc.Text[m[2]:m[3]])] {
			sc += 5
		}
		if m[6] < m[7] {
			sc++ // has a series
		}
		if raw == strings.ToUpper(raw) {
			sc += 2
		}
		out = append(out, candidate{value: v, pos: m[0], score: sc})
	}
	for _, m := range bharatSeriesRE.FindAllStringIndex(doc.Text, -1) {
		if v, ok := Normalize(FieldRegistrationNo, doc.Text[m[0]:m[1]], doc.MaxYear); ok {
			out = append(out, candidate{value: v, pos: m[0], score: 6})
		}
	}
	return out
}

func vinCandidates(doc *Document) []candidate {
	var out []candidate
	for _, m := range vinTokenRE.FindAllStringIndex(doc.Text, -1) {
		raw := strings.ToUpper(doc.Text[m[0]:m[1]])
		v := repairVIN(raw)
		if !hasLetterAndDigit(v) {
			continue
		}
		sc := 0
		if len(onlyDigits(v)) >= 5 {
			sc += 2
		}
		if tail := v[len(v)-4:]; onlyDigits(tail) == tail {
			sc += 2
		}
		if v == raw {
			sc++
		}
		out = append(out, candidate{value: v, pos: m[0], score: sc})
	}
	return out
}

func yearCandidates(doc *Document) []candidate {
	var out []candidate
	for _, m := range yearTokenRE.FindAllStringIndex(doc.Text, -1) {
		v, ok := Normalize(FieldYear, doc.Text[m[0]:m[1]], doc.MaxYear)
		if !ok {
			continue
		}
		sc := 0
		if !inDate(doc.Text, m[0], m[1]) {
			sc += 2
		}
		if yearContextRE.MatchString(doc.lineAt(m[0])) {
			sc += 5
		}
		out = append(out, candidate{value: v, pos: m[0], score: sc})
	}
	return out
}

// inDate reports whether text[start:end] is glued to a date separator.
func inDate(text string, start, end int) bool {
	isSep := func(b byte) bool { return b == '/' || b == '-' || b == '.' }
	return (start > 0 && isSep(text[start-1])) || (end < len(text) && isSep(text[end]))
}

func phoneCandidates(doc *Document) []candidate {
	var out []candidate
	for _, m := range phoneRE.FindAllStringSubmatchIndex(doc.Text, -1) {
		raw := doc.Text[m[2]:m[3]]
		digits := onlyDigits(raw)
		if len(digits) < 10 || len(digits) > 13 {
			continue
		}
		v, ok := Normalize(FieldPhone, raw, doc.MaxYear)
		if !ok {
			continue
		}
		sc := 0
		if strings.HasPrefix(raw, "+") {
			sc += 3
		}
		if len(digits) == 10 && digits[0] >= '6' {
			sc += 3
		}
		if !strings.ContainsAny(raw, " -") {
			sc++
		}
		if phoneContextRE.MatchString(doc.lineAt(m[2])) {
			sc += 5
		}
		out = append(out, candidate{value: v, pos: m[2], score: sc})
	}
	return out
}

func emailCandidates(doc *Document) []candidate {
	var out []candidate
	for _, m := range emailTokenRE.FindAllStringIndex(doc.Text, -1) {
		if v, ok := Normalize(FieldEmail, doc.Text[m[0]:m[1]], doc.MaxYear); ok {
			out = append(out, candidate{value: v, pos: m[0]})
		}
	}
	return out
}

func makeCandidates(doc *Document) []candidate {
	var out []candidate
	for _, m := range makeRE.FindAllStringIndex(doc.Text, -1) {
		printed := strings.Join(strings.Fields(strings.ToUpper(doc.Text[m[0]:m[1]])), " ")
		name, ok := makeNames[printed]
		if !ok {
			continue
		}
		out = append(out, candidate{value: name, pos: m[0]})
	}
	return out
}
