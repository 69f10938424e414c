package dataset

import (
	"math"
	"strconv"
	"strings"
)

// Kind identifies what a Value holds
type Kind uint8

const (
	KindMissing Kind = iota
	KindNumber
	KindText
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	default:
		return "missing"
	}
}

// Value is a single table cell: missing, a number or raw text.
// The zero Value is missing.
type Value struct {
	kind Kind
	num  float64
	text string
}

// Missing returns a missing value
func Missing() Value {
	return Value{}
}

// Number returns a numeric value. NaN is stored as missing.
func Number(f float64) Value {
	if math.IsNaN(f) {
		return Value{}
	}
	return Value{kind: KindNumber, num: f}
}

// Text returns a text value
func Text(s string) Value {
	return Value{kind: KindText, text: s}
}

// Kind returns the kind of the value
func (v Value) Kind() Kind {
	return v.kind
}

// IsMissing reports whether the value is missing
func (v Value) IsMissing() bool {
	return v.kind == KindMissing
}

// IsNumber reports whether the value is numeric
func (v Value) IsNumber() bool {
	return v.kind == KindNumber
}

// Float returns the numeric value and true, or 0 and false for non-numeric values
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// String renders the value the way it is written to CSV output
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindText:
		return v.text
	default:
		return ""
	}
}

// Equal compares two values by kind and content
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == o.num
	case KindText:
		return v.text == o.text
	default:
		return true
	}
}

// DefaultNAValues are the cell contents read as missing
var DefaultNAValues = []string{"", "NA", "N/A", "n/a", "NaN", "nan", "null", "NULL", "None", "#N/A"}

// cellParser turns raw cell text into values
type cellParser struct {
	na map[string]struct{}
}

func newCellParser(naValues []string) cellParser {
	if naValues == nil {
		naValues = DefaultNAValues
	}
	na := make(map[string]struct{}, len(naValues)+1)
	na[""] = struct{}{}
	for _, s := range naValues {
		na[s] = struct{}{}
	}
	return cellParser{na: na}
}

func (p cellParser) parse(raw string) Value {
	s := strings.TrimSpace(raw)
	if _, ok := p.na[s]; ok {
		return Missing()
	}
	return Text(s)
}

// toNumber converts a value to a number. Text that does not parse becomes missing.
func toNumber(v Value) Value {
	switch v.kind {
	case KindNumber, KindMissing:
		return v
	}
	f, ok := parseNumber(v.text)
	if !ok {
		return Missing()
	}
	return Number(f)
}

// parseNumber parses a decimal number, tolerating surrounding spaces and
// comma thousands separators
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
