package commit

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"docsplit/pkg/models"
)

// DefaultPattern names each split after its header and page span.
const DefaultPattern = "{header}_pages_{start}-{end}"

const unnamed = "unnamed"

// Sanitize turns a label into a file-name-safe stem. Whitespace becomes
// spaceReplacement, anything outside letters, digits, '-', '_' and '.' is
// dropped, and the result is cut to maxLen runes.
func Sanitize(name string, maxLen int, spaceReplacement string) string {
	var b strings.Builder
	var last rune
	for _, r := range strings.TrimSpace(name) {
		switch {
		case unicode.IsSpace(r):
			if spaceReplacement == "" {
				continue
			}
			for _, s := range spaceReplacement {
				if s != last || !isSeparator(s) {
					b.WriteRune(s)
				}
				last = s
			}
			continue
		case unicode.IsLetter(r), unicode.IsDigit(r):
		case isSeparator(r):
			if r == last {
				continue
			}
		default:
			continue
		}
		b.WriteRune(r)
		last = r
	}

	out := strings.Trim(b.String(), "._-")
	if maxLen > 0 {
		if runes := []rune(out); len(runes) > maxLen {
			out = strings.TrimRight(string(runes[:maxLen]), "._-")
		}
	}
	if out == "" {
		return unnamed
	}
	return out
}

func isSeparator(r rune) bool {
	return r == '-' || r == '_' || r == '.'
}

// Namer renders destination names for one job and keeps them unique
// within that job.
type Namer struct {
	pattern          string
	original         string
	maxLen           int
	spaceReplacement string
	seen             map[string]int
}

// NewNamer creates a Namer for the source document stem original.
func NewNamer(pattern, original string, maxLen int, spaceReplacement string) *Namer {
	if strings.TrimSpace(pattern) == "" {
		pattern = DefaultPattern
	}
	return &Namer{
		pattern:          pattern,
		original:         original,
		maxLen:           maxLen,
		spaceReplacement: spaceReplacement,
		seen:             make(map[string]int),
	}
}

// Name returns the file name for the group at position index (0-based).
// Placeholders use 1-based page numbers and indexes.
func (n *Namer) Name(group models.Group, index int) string {
	header := Sanitize(group.Label, n.maxLen, n.spaceReplacement)
	stem := strings.NewReplacer(
		"{header}", header,
		"{start}", strconv.Itoa(group.StartPage+1),
		"{end}", strconv.Itoa(group.EndPage+1),
		"{index}", strconv.Itoa(index+1),
		"{original}", Sanitize(n.original, n.maxLen, n.spaceReplacement),
	).Replace(strings.TrimSuffix(n.pattern, ".pdf"))
	stem = Sanitize(stem, n.maxLen, n.spaceReplacement)

	key := strings.ToLower(stem)
	n.seen[key]++
	if count := n.seen[key]; count > 1 {
		stem = fmt.Sprintf("%s_%02d", stem, count)
	}
	return stem + ".pdf"
}
