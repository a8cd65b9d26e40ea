// Package barcode implements the barcode template language used to classify
// internal barcodes and to route external ones to supplier search pages.
//
// Template alphabet:
//
//	#  exactly one ASCII digit
//	*  exactly one arbitrary character
//	$  zero or one arbitrary character
//
// Every other character matches itself.
package barcode

import (
	"regexp"
	"strings"
)

const (
	tokenDigit    = '#'
	tokenAny      = '*'
	tokenOptional = '$'
)

// Matches reports whether value satisfies pattern. Comparison is case
// sensitive. An empty pattern matches every value; it is how "no internal
// pattern configured" is expressed.
func Matches(value, pattern string) bool {
	if pattern == "" {
		return true
	}
	return newMatcher(value, pattern).match(0, 0)
}

// MatchesFold is the supplier variant of Matches: both sides are upper-cased
// before matching and an empty pattern never matches.
func MatchesFold(value, pattern string) bool {
	if pattern == "" || value == "" {
		return false
	}
	return newMatcher(strings.ToUpper(value), strings.ToUpper(pattern)).match(0, 0)
}

type matcher struct {
	value   []rune
	pattern []rune
	// memo[i][j]: 0 unknown, 1 matched, 2 failed
	memo [][]uint8
}

func newMatcher(value, pattern string) *matcher {
	v, p := []rune(value), []rune(pattern)
	memo := make([][]uint8, len(v)+1)
	for i := range memo {
		memo[i] = make([]uint8, len(p)+1)
	}
	return &matcher{value: v, pattern: p, memo: memo}
}

func (m *matcher) match(vi, pi int) bool {
	if cached := m.memo[vi][pi]; cached != 0 {
		return cached == 1
	}
	ok := m.step(vi, pi)
	if ok {
		m.memo[vi][pi] = 1
	} else {
		m.memo[vi][pi] = 2
	}
	return ok
}

func (m *matcher) step(vi, pi int) bool {
	if pi == len(m.pattern) {
		return vi == len(m.value)
	}

	p := m.pattern[pi]
	if p == tokenOptional {
		if m.match(vi, pi+1) {
			return true
		}
		return vi < len(m.value) && m.match(vi+1, pi+1)
	}

	if vi == len(m.value) {
		return false
	}

	v := m.value[vi]
	switch p {
	case tokenDigit:
		if v < '0' || v > '9' {
			return false
		}
	case tokenAny:
	default:
		if v != p {
			return false
		}
	}
	return m.match(vi+1, pi+1)
}

// ToRegex renders pattern as an anchored regular expression for display.
// The result accepts exactly the values Matches accepts.
func ToRegex(pattern string) string {
	if pattern == "" {
		return ".*"
	}

	var b strings.Builder
	b.WriteByte('^')
	for _, r := range pattern {
		switch r {
		case tokenDigit:
			b.WriteString("[0-9]")
		case tokenAny:
			b.WriteString(".")
		case tokenOptional:
			b.WriteString(".?")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteByte('$')
	return b.String()
}

// Examples returns count sample values accepted by pattern.
func Examples(pattern string, count int) []string {
	if pattern == "" {
		return []string{"ABC123", "XYZ789"}
	}
	if count <= 0 {
		return nil
	}

	out := make([]string, 0, count)
	for i := 0; i < count; i++ {
		var b strings.Builder
		digit := i
		for _, r := range pattern {
			switch r {
			case tokenDigit:
				b.WriteByte(byte('0' + digit%10))
				digit++
			case tokenAny:
				b.WriteByte(byte('A' + i%26))
			case tokenOptional:
				if i%2 == 0 {
					b.WriteByte(byte('A' + i%26))
				}
			default:
				b.WriteRune(r)
			}
		}
		out = append(out, b.String())
	}
	return out
}
