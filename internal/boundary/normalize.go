package boundary

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// turkishFold maps the Turkish-specific letters to their closest ASCII letter.
// İ and ı have no canonical decomposition that yields a plain "i", so all six
// pairs are mapped explicitly before the generic mark stripping.
func turkishFold(r rune) rune {
	switch r {
	case 'ı', 'İ':
		return 'i'
	case 'ş':
		return 's'
	case 'Ş':
		return 'S'
	case 'ğ':
		return 'g'
	case 'Ğ':
		return 'G'
	case 'ü':
		return 'u'
	case 'Ü':
		return 'U'
	case 'ö':
		return 'o'
	case 'Ö':
		return 'O'
	case 'ç':
		return 'c'
	case 'Ç':
		return 'C'
	}
	return r
}

// NormalizeName returns the join key used for name-based matching between
// boundary files and score payloads: Turkish letters folded to ASCII, any
// remaining combining marks (Hakkâri, Şırnak) removed, lowercased and trimmed.
// It never fails; the empty string maps to itself.
func NormalizeName(name string) string {
	if name == "" {
		return ""
	}
	t := transform.Chain(
		norm.NFC,
		runes.Map(turkishFold),
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = strings.Map(turkishFold, name)
	}
	return strings.TrimSpace(strings.ToLower(folded))
}

// ExtractProvinceCode parses a geoBoundaries shapeISO value such as "TR-34"
// into the bare province code "34". Anything that does not split into exactly
// two dash-separated parts yields ok=false, which callers treat as "match by
// name instead".
func ExtractProvinceCode(shapeISO string) (string, bool) {
	parts := strings.Split(strings.TrimSpace(shapeISO), "-")
	if len(parts) != 2 || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// PadProvinceCode zero-pads a numeric province code to two digits ("6" -> "06").
// Non-numeric input is returned trimmed but otherwise untouched.
func PadProvinceCode(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	n, err := strconv.Atoi(code)
	if err != nil || n < 0 {
		return code
	}
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
