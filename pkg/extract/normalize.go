package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	emailRE    = regexp.MustCompile(`(?i)^[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}$`)
	yearRE     = regexp.MustCompile(`(?:^|\D)((?:19|20)\d{2})(?:\D|$)`)
	edgePunct  = ":;,.|=>-_*#~ "
	vinRepairs = strings.NewReplacer("I", "1", "O", "0", "Q", "0")
	// digitLookalikes maps letters OCR reads in place of a digit.
	digitLookalikes = map[byte]byte{'O': '0', 'Q': '0', 'D': '0', 'I': '1', 'L': '1', 'Z': '2', 'S': '5', 'B': '8'}
)

// normalizer turns a raw candidate into the canonical form of its field.
// ok is false when the candidate cannot be a value of that field.
type normalizer func(raw string, maxYear int) (string, bool)

var normalizers = map[Field]normalizer{
	FieldOwnerName:      normalizeName,
	FieldRegistrationNo: normalizeRegistration,
	FieldMake:           normalizeText,
	FieldModel:          normalizeText,
	FieldYear:           normalizeYear,
	FieldVIN:            normalizeVIN,
	FieldAddress:        normalizeText,
	FieldPhone:          normalizePhone,
	FieldEmail:          normalizeEmail,
}

// Normalize canonicalizes raw as a value of f. Year candidates must fall in
// [1950, maxYear].
func Normalize(f Field, raw string, maxYear int) (string, bool) {
	n, ok := normalizers[f]
	if !ok {
		return "", false
	}
	return n(raw, maxYear)
}

func alnumUpper(s string) string {
	return strings.Map(func(r rune) rune {
		r = unicode.ToUpper(r)
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, s)
}

func hasLetterAndDigit(s string) bool {
	var l, d bool
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			l = true
		case unicode.IsDigit(r):
			d = true
		}
	}
	return l && d
}

// repairRegistration fixes the district code of a state-series mark: after the
// two state letters come one or two digits, so a lookalike letter directly
// after the state code, or after a leading district digit, is read as a digit.
func repairRegistration(s string) string {
	if len(s) < 5 || !isUpperLetter(s[0]) || !isUpperLetter(s[1]) {
		return s
	}
	b := []byte(s)
	if d, ok := digitLookalikes[b[2]]; ok && isDigit(b[3]) {
		b[2] = d
	}
	if isDigit(b[2]) && (b[3] == 'O' || b[3] == 'I') && len(b) > 4 && isUpperLetter(b[4]) {
		b[3] = digitLookalikes[b[3]]
	}
	return string(b)
}

func isUpperLetter(b byte) bool { return b >= 'A' && b <= 'Z' }

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func normalizeRegistration(raw string, _ int) (string, bool) {
	s := repairRegistration(alnumUpper(raw))
	if len(s) < 6 || len(s) > 11 || !hasLetterAndDigit(s) {
		return "", false
	}
	return s, true
}

// repairVIN maps the letters a VIN never contains to the digits OCR confuses them with.
func repairVIN(s string) string { return vinRepairs.Replace(alnumUpper(s)) }

func normalizeVIN(raw string, _ int) (string, bool) {
	s := repairVIN(raw)
	if len(s) < 6 || len(s) > 17 || !hasLetterAndDigit(s) {
		return "", false
	}
	return s, true
}

func normalizeYear(raw string, maxYear int) (string, bool) {
	for _, m := range yearRE.FindAllStringSubmatch(raw, -1) {
		y, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if y >= minYear && y <= maxYear {
			return m[1], true
		}
	}
	return "", false
}

func normalizePhone(raw string, _ int) (string, bool) {
	s := strings.TrimSpace(raw)
	plus := strings.HasPrefix(s, "+")
	digits := onlyDigits(s)
	if len(digits) < 7 || len(digits) > 15 {
		return "", false
	}
	if plus {
		return "+" + digits, true
	}
	return digits, true
}

func normalizeEmail(raw string, _ int) (string, bool) {
	s := strings.ToLower(strings.Join(strings.Fields(raw), ""))
	s = strings.Trim(s, edgePunct)
	if !emailRE.MatchString(s) {
		return "", false
	}
	return s, true
}

func normalizeText(raw string, _ int) (string, bool) {
	s := strings.Trim(strings.Join(strings.Fields(raw), " "), edgePunct)
	if !strings.ContainsFunc(s, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) {
		return "", false
	}
	return s, true
}

func normalizeName(raw string, y int) (string, bool) {
	s, ok := normalizeText(raw, y)
	if !ok || !strings.ContainsFunc(s, unicode.IsLetter) {
		return "", false
	}
	return s, true
}

// onlyDigits extracts decimal digits from a string.
func onlyDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
