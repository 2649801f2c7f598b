package header

// Levenshtein returns the edit distance between a and b.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// Similarity is the normalized Levenshtein similarity in [0, 1].
func Similarity(a, b string) float64 {
	n := max(len([]rune(a)), len([]rune(b)))
	if n == 0 {
		return 1
	}
	return 1 - float64(Levenshtein(a, b))/float64(n)
}

// Match reports whether two normalized labels name the same header.
// With serialBased set, labels with equal serials match at any threshold.
// Beyond that, a threshold of 1 or more means exact matching only, and
// remaining pairs match on Similarity. Two labels whose serials both pass
// the strict gate never match when the serials differ.
func (v *Validator) Match(a, b string, threshold float64, serialBased bool) bool {
	if a == b {
		return true
	}
	if a == "" || b == "" {
		return false
	}
	sa, sb := v.Serial(a), v.Serial(b)
	if serialBased && sa == sb && len(sa) >= v.grammar.SerialMin {
		return true
	}
	if threshold >= 1 {
		return false
	}
	if sa != sb && v.strictSerial(sa) && v.strictSerial(sb) {
		return false
	}
	return Similarity(a, b) >= threshold
}

// damagedHeadSimilarity is the overall similarity required to accept two
// labels with identical serials but differing leading segments as close.
const damagedHeadSimilarity = 0.7

// CloseSerial reports whether b looks like a misread of a: same leading
// segments and serial letter with digit runs at most maxEdits apart, or an
// identical serial under lightly damaged leading segments.
func (v *Validator) CloseSerial(a, b string, maxEdits int) bool {
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	sa, sb := v.Serial(a), v.Serial(b)
	if sa == "" || sb == "" {
		return false
	}
	if v.head(a) == v.head(b) && sa[0] == sb[0] && Levenshtein(sa[1:], sb[1:]) <= maxEdits {
		return true
	}
	return sa == sb && len(sa) >= v.grammar.SerialMin && Similarity(a, b) >= damagedHeadSimilarity
}
