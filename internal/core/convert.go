package core

// convert.go infers column kinds from raw cell text and renders values back
// to text.
//
// Inference follows the defaults most tabular readers share:
//   - NA markers ("", "NA", "NaN", "null", ...) become nil
//   - a column is int when every present cell is an integer
//   - a column is float when every present cell is numeric
//   - a column is bool when every present cell is true/false
//   - anything else stays string, keeping the raw cell text

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// numericRegex validates that a string is a plain decimal number.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// infRegex matches the infinity spellings readers accept as floats.
var infRegex = regexp.MustCompile(`(?i)^[+-]?(inf|infinity)$`)

// integerRegex matches cells that parse as whole numbers.
var integerRegex = regexp.MustCompile(`^[+-]?\d+$`)

// naValues are the cell texts read as missing.
var naValues = map[string]struct{}{
	"":         {},
	"#N/A":     {},
	"#N/A N/A": {},
	"#NA":      {},
	"-1.#IND":  {},
	"-1.#QNAN": {},
	"-NaN":     {},
	"-nan":     {},
	"1.#IND":   {},
	"1.#QNAN":  {},
	"<NA>":     {},
	"N/A":      {},
	"NA":       {},
	"NULL":     {},
	"NaN":      {},
	"None":     {},
	"n/a":      {},
	"nan":      {},
	"null":     {},
}

// boolValues are the accepted spellings of true and false.
var boolValues = map[string]bool{
	"True": true, "TRUE": true, "true": true,
	"False": false, "FALSE": false, "false": false,
}

// IsNA reports whether a raw cell is a missing-value marker.
func IsNA(s string) bool {
	_, ok := naValues[strings.TrimSpace(s)]
	return ok
}

// InferKind returns the narrowest kind every present cell fits.
// Cells that are NA markers are ignored. A column with cells but no present
// value is float; a column with no cells at all is string.
func InferKind(cells []string) Kind {
	if len(cells) == 0 {
		return KindString
	}

	allInt, allNum, allBool, present := true, true, true, false
	for _, raw := range cells {
		if IsNA(raw) {
			continue
		}
		present = true
		s := strings.TrimSpace(raw)

		if allBool {
			if _, ok := boolValues[s]; !ok {
				allBool = false
			}
		}
		if allNum {
			if infRegex.MatchString(s) {
				allInt = false
			} else if !numericRegex.MatchString(s) {
				allNum = false
				allInt = false
			} else if allInt {
				if _, err := strconv.ParseInt(s, 10, 64); err != nil || !integerRegex.MatchString(s) {
					allInt = false
				}
			}
		}
		if !allBool && !allNum {
			return KindString
		}
	}

	switch {
	case !present:
		return KindFloat
	case allInt:
		return KindInt
	case allNum:
		return KindFloat
	case allBool:
		return KindBool
	default:
		return KindString
	}
}

// ParseCell converts raw cell text into a value of the given kind.
// NA markers become nil regardless of kind.
func ParseCell(raw string, kind Kind) any {
	if IsNA(raw) {
		return nil
	}
	s := strings.TrimSpace(raw)

	switch kind {
	case KindInt:
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
	case KindFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err == nil || errors.Is(err, strconv.ErrRange) {
			return f
		}
	case KindBool:
		if b, ok := boolValues[s]; ok {
			return b
		}
	}
	return raw
}

// FormatValue renders a table value as cell text.
// Integral floats keep a trailing ".0" so the column reads back as float.
func FormatValue(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case bool:
		if x {
			return "True", nil
		}
		return "False", nil
	case float64:
		return formatFloat(x), nil
	default:
		nv, err := normalizeValue(v)
		if err != nil {
			return "", err
		}
		return FormatValue(nv)
	}
}

// formatFloat renders f in shortest round-trip form.
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return ""
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}

	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".") {
		s += ".0"
	}
	return s
}
