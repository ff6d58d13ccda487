package table

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// NumberFormat controls numeric parsing. Zero separators are auto-detected per value.
type NumberFormat struct {
	DecimalSeparator   rune
	ThousandsSeparator rune
}

var nullTokens = map[string]struct{}{
	"":     {},
	"nan":  {},
	"null": {},
	"none": {},
	"n/a":  {},
	"na":   {},
	"#n/a": {},
	"-":    {},
	"--":   {},
}

// IsNull reports whether a cell carries no value.
func IsNull(s string) bool {
	_, ok := nullTokens[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// trailing engineering units, e.g. "72.5 °F" or "45 %RH"
var unitSuffix = regexp.MustCompile(`^([-+]?[0-9][0-9.,\x{00A0} ]*(?:[eE][-+]?[0-9]+)?)\s*[%°\x{00B5}\p{L}][\p{L}\p{N}%°/\x{00B5}\s²³·^-]*$`)

// ParseNumeric parses a cell as a number, tolerating percent signs, locale
// separators and a trailing unit. NaN and Inf are rejected.
func ParseNumeric(s string, nf NumberFormat) (float64, bool) {
	raw := strings.TrimSpace(s)
	if IsNull(raw) {
		return 0, false
	}
	if f, ok := parseNumber(raw, nf); ok {
		return f, true
	}
	if m := unitSuffix.FindStringSubmatch(raw); m != nil {
		return parseNumber(m[1], nf)
	}
	return 0, false
}

func parseNumber(s string, nf NumberFormat) (float64, bool) {
	raw := strings.ReplaceAll(s, "%", "")
	raw = strings.ReplaceAll(raw, "\u00A0", " ")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	dec := nf.DecimalSeparator
	thou := nf.ThousandsSeparator
	if dec == 0 {
		cpos := strings.LastIndex(raw, ",")
		dpos := strings.LastIndex(raw, ".")
		switch {
		case cpos >= 0 && dpos >= 0:
			if cpos > dpos {
				dec, thou = ',', '.'
			} else {
				dec, thou = '.', ','
			}
		case cpos >= 0:
			dec = ','
		default:
			dec = '.'
		}
	}
	if thou == 0 {
		for _, sep := range []rune{',', '.', ' '} {
			if sep != dec {
				raw = strings.ReplaceAll(raw, string(sep), "")
			}
		}
	} else if thou != dec {
		raw = strings.ReplaceAll(raw, string(thou), "")
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// FormatNumber renders a float with the shortest exact representation.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Coerce types a raw cell slice: numeric when more than half of the non-null
// cells parse as numbers (the rest become absent), otherwise text kept verbatim.
func Coerce(name, rawName string, cells []string, nf NumberFormat) Column {
	nums := make([]float64, len(cells))
	present := make([]bool, len(cells))
	numeric, nonNull := 0, 0
	for i, c := range cells {
		if IsNull(c) {
			continue
		}
		nonNull++
		if f, ok := ParseNumeric(c, nf); ok {
			nums[i] = f
			present[i] = true
			numeric++
		}
	}
	if numeric > 0 && 2*numeric > nonNull {
		return Column{Name: name, RawName: rawName, Kind: KindNumeric, Nums: nums, Present: present}
	}
	texts := make([]string, len(cells))
	for i, c := range cells {
		v := strings.TrimSpace(c)
		texts[i] = v
		present[i] = !IsNull(v)
	}
	return Column{Name: name, RawName: rawName, Kind: KindText, Texts: texts, Present: present}
}
