package header

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Characters OCR engines commonly emit in place of the separator.
const separatorLookalikes = "-–—‐‑‒−_~=.:/|"

// Double prefixes produced when a letter is read twice or merged with its
// neighbour ("BL" for "B").
var doublePrefixes = map[string]string{
	"BL": "B",
	"RB": "B",
	"PL": "P",
}

// Digit read where a letter belongs.
var letterSlot = map[rune]rune{
	'0': 'O',
	'1': 'I',
	'2': 'Z',
	'5': 'S',
	'6': 'G',
	'8': 'B',
}

// Letter read where a digit belongs.
var digitSlot = map[rune]rune{
	'O': '0',
	'D': '0',
	'Q': '0',
	'I': '1',
	'L': '1',
	'Z': '2',
	'S': '5',
	'B': '8',
	'G': '6',
	'T': '7',
}

// Digit read where the serial letter belongs.
var serialLetterSlot = map[rune]rune{
	'5': 'S',
	'8': 'S',
}

// Normalize returns the canonical form of text. It is idempotent.
func (v *Validator) Normalize(text string) string {
	normalized, _ := v.normalize(text)
	return normalized
}

// normalize canonicalizes text and reports how many isolated characters
// around the main body were discarded as noise.
func (v *Validator) normalize(text string) (string, int) {
	folded := strings.ToUpper(norm.NFKC.String(text))

	var b strings.Builder
	for _, r := range folded {
		switch {
		case r == v.sep || strings.ContainsRune(separatorLookalikes, r):
			b.WriteRune(v.sep)
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}

	tokens := v.joinAroundSeparators(strings.Fields(b.String()))
	if len(tokens) == 0 {
		return "", 0
	}

	main := 0
	for i, tok := range tokens {
		if v.outranks(tok, tokens[main]) {
			main = i
		}
	}
	lo, hi := v.extendBody(tokens, main)

	// Single characters outside the body are noise. Longer leftovers are
	// unrelated words and are dropped without penalty.
	noise := 0
	for i, tok := range tokens {
		if (i < lo || i > hi) && len(tok) == 1 {
			noise++
		}
	}

	body := strings.Join(tokens[lo:hi+1], string(v.sep))
	parts := v.splitSegments(body)
	if v.grammar.AmbiguityRepair {
		parts = v.repair(parts)
	}
	return strings.Join(parts, string(v.sep)), noise
}

// extendBody grows the main token into neighbouring tokens when OCR split a
// header at whitespace. Longer tokens to the right are taken while the body
// still lacks a serial, tokens to the left while it lacks a prefix. The body never
// grows past four segments.
func (v *Validator) extendBody(tokens []string, main int) (int, int) {
	lo, hi := main, main
	segments := func() []string {
		return v.splitSegments(strings.Join(tokens[lo:hi+1], string(v.sep)))
	}
	for hi+1 < len(tokens) && len(tokens[hi+1]) > 1 {
		parts := segments()
		if len(parts) >= 4 || (len(parts) > 0 && len(parts[len(parts)-1]) >= v.grammar.SerialMin) {
			break
		}
		hi++
	}
	for lo > 0 && v.mayLead(tokens[lo-1]) {
		parts := segments()
		if len(parts) >= 4 || (len(parts) > 0 && v.validPrefix(parts[0])) {
			break
		}
		lo--
	}
	return lo, hi
}

// mayLead reports whether tok can be glued in front of the body. A single
// character must be able to stand in for the prefix letter.
func (v *Validator) mayLead(tok string) bool {
	if len(tok) > 1 {
		return true
	}
	_, misread := letterSlot[rune(tok[0])]
	return isLetters(tok) || misread
}

// joinAroundSeparators glues whitespace-separated fields back together when a
// separator sits on either side of the gap, so "B - HK" becomes "B-HK".
func (v *Validator) joinAroundSeparators(fields []string) []string {
	var tokens []string
	for _, f := range fields {
		n := len(tokens)
		if n > 0 && (strings.HasSuffix(tokens[n-1], string(v.sep)) || strings.HasPrefix(f, string(v.sep))) {
			tokens[n-1] += f
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// outranks orders main-body candidates by separator count, then length.
// Earlier tokens win ties.
func (v *Validator) outranks(a, b string) bool {
	sa, sb := strings.Count(a, string(v.sep)), strings.Count(b, string(v.sep))
	if sa != sb {
		return sa > sb
	}
	return len(a) > len(b)
}

// splitSegments splits on the separator and drops empty segments, which
// collapses repeated separators and trims leading and trailing ones.
func (v *Validator) splitSegments(token string) []string {
	raw := strings.Split(token, string(v.sep))
	parts := raw[:0]
	for _, p := range raw {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// repair applies ambiguity substitutions to segments that are invalid in
// their structural slot, keeping a substitution only if it makes the segment
// valid. Valid segments are never touched.
func (v *Validator) repair(parts []string) []string {
	out := append([]string(nil), parts...)
	n := len(out)
	if n == 0 {
		return out
	}

	last := n - 1
	out[last] = v.repairSerial(out[last])

	if n != 3 && n != 4 {
		return out
	}

	out[0] = v.repairPrefix(out[0])
	if n == 4 {
		out[1] = v.repairLetters(out[1], v.validRegion)
		return out
	}
	if !v.validRegion(out[1]) && !v.validCode(out[1]) {
		out[1] = v.repairLetters(out[1], v.validRegion)
	}
	return out
}

func (v *Validator) repairPrefix(seg string) string {
	if v.validPrefix(seg) {
		return seg
	}
	if fixed, ok := doublePrefixes[seg]; ok && v.validPrefix(fixed) {
		return fixed
	}
	return v.repairLetters(seg, v.validPrefix)
}

func (v *Validator) repairLetters(seg string, valid func(string) bool) string {
	if valid(seg) {
		return seg
	}
	fixed := strings.Map(func(r rune) rune {
		if l, ok := letterSlot[r]; ok {
			return l
		}
		return r
	}, seg)
	if valid(fixed) {
		return fixed
	}
	return seg
}

func (v *Validator) repairSerial(seg string) string {
	if v.strictSerial(seg) || seg == "" {
		return seg
	}
	runes := []rune(seg)
	if l, ok := serialLetterSlot[runes[0]]; ok && v.prefixes[l] {
		runes[0] = l
	}
	for i := 1; i < len(runes); i++ {
		if d, ok := digitSlot[runes[i]]; ok {
			runes[i] = d
		}
	}
	fixed := string(runes)
	if v.strictSerial(fixed) {
		return fixed
	}
	return seg
}
