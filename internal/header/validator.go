package header

import (
	"strings"
	"unicode/utf8"
)

// Validator scores header strings against a Grammar. It holds no mutable
// state and is safe for concurrent use.
type Validator struct {
	grammar  Grammar
	sep      rune
	prefixes map[rune]bool
}

// NewValidator builds a validator for g. An empty separator falls back to "-".
func NewValidator(g Grammar) *Validator {
	sep := '-'
	if r, _ := utf8.DecodeRuneInString(g.Separator); r != utf8.RuneError {
		sep = r
	}
	prefixes := make(map[rune]bool, len(g.SerialPrefixes))
	for _, p := range g.SerialPrefixes {
		if r, _ := utf8.DecodeRuneInString(strings.ToUpper(p)); r != utf8.RuneError {
			prefixes[r] = true
		}
	}
	return &Validator{grammar: g, sep: sep, prefixes: prefixes}
}

// Grammar returns the grammar the validator was built with.
func (v *Validator) Grammar() Grammar {
	return v.grammar
}

// Validate normalizes text and scores it.
func (v *Validator) Validate(text string) Result {
	normalized, noise := v.normalize(text)
	res := Result{Raw: text, Normalized: normalized, NoiseChars: noise}
	if normalized == "" {
		return res
	}

	w := v.grammar.Weights
	parts := v.splitSegments(normalized)
	res.Segments = parts

	score := 0
	switch len(parts) {
	case 4:
		score += w.Structure4
		score += v.segmentScore(v.validPrefix(parts[0]))
		score += v.segmentScore(v.validRegion(parts[1]))
		score += v.segmentScore(v.validCode(parts[2]))
	case 3:
		score += w.Structure3
		score += v.segmentScore(v.validPrefix(parts[0]))
		score += v.segmentScore(v.validRegion(parts[1]) || v.validCode(parts[1]))
	default:
		score += w.BadStructure
	}

	serialScore, strict := v.serialScore(parts[len(parts)-1])
	score += serialScore
	score += w.NoisePerChar * noise

	if !strict && score > v.grammar.InvalidCap {
		score = v.grammar.InvalidCap
	}
	res.Score = score
	res.StrictValid = strict
	return res
}

// Serial returns the trailing serial segment of a normalized header.
func (v *Validator) Serial(normalized string) string {
	if i := strings.LastIndex(normalized, string(v.sep)); i >= 0 {
		return normalized[i+1:]
	}
	return normalized
}

// head returns everything before the serial segment.
func (v *Validator) head(normalized string) string {
	if i := strings.LastIndex(normalized, string(v.sep)); i >= 0 {
		return normalized[:i]
	}
	return ""
}

func (v *Validator) segmentScore(ok bool) int {
	if ok {
		return v.grammar.Weights.SegmentOK
	}
	return v.grammar.Weights.SegmentBad
}

func (v *Validator) serialScore(serial string) (int, bool) {
	w := v.grammar.Weights
	score := 0
	if n := len(serial); n >= v.grammar.SerialMin && n <= v.grammar.SerialMax && isAlnum(serial) {
		score += w.SerialOK
	} else {
		score += w.SerialBad
	}

	first, _ := utf8.DecodeRuneInString(serial)
	if !v.prefixes[first] {
		return score + w.SerialBadPrefix, false
	}
	tail := serial[1:]
	switch {
	case isDigits(tail) && len(tail) == v.grammar.SerialDigits:
		return score + w.SerialIdeal, true
	case isDigits(tail):
		return score, false
	default:
		return score + w.SerialBadTail, false
	}
}

// strictSerial reports whether seg passes the strict serial gate.
func (v *Validator) strictSerial(seg string) bool {
	if len(seg) != v.grammar.SerialDigits+1 {
		return false
	}
	first, _ := utf8.DecodeRuneInString(seg)
	return v.prefixes[first] && isDigits(seg[1:])
}

func (v *Validator) validPrefix(seg string) bool {
	return len(seg) == v.grammar.PrefixLength && isLetters(seg)
}

func (v *Validator) validRegion(seg string) bool {
	return len(seg) >= v.grammar.RegionMin && len(seg) <= v.grammar.RegionMax && isLetters(seg)
}

func (v *Validator) validCode(seg string) bool {
	return len(seg) >= v.grammar.CodeMin && len(seg) <= v.grammar.CodeMax && isAlnum(seg)
}

func isLetters(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return s != ""
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

func isAlnum(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return s != ""
}
