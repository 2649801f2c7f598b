package grouping

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsplit/internal/header"
	"docsplit/pkg/models"
)

var validator = header.NewValidator(header.DefaultGrammar())

// pages builds page results starting at index 0, validating each label the
// same way the extractor does.
func pages(labels ...string) []models.PageResult {
	out := make([]models.PageResult, len(labels))
	for i, label := range labels {
		out[i] = pageAt(i, label)
	}
	return out
}

func pageAt(index int, label string) models.PageResult {
	res := validator.Validate(label)
	return models.PageResult{
		PageIndex: index,
		Winner: models.Candidate{
			RawText:        label,
			NormalizedText: res.Normalized,
			Score:          res.Score,
			StrictValid:    res.StrictValid,
		},
	}
}

type span struct {
	start, end int
	label      string
}

func spans(groups []models.Group) []span {
	out := make([]span, len(groups))
	for i, g := range groups {
		out[i] = span{g.StartPage, g.EndPage, g.Label}
	}
	return out
}

func newTestGrouper() *Grouper {
	return New(validator, DefaultOptions())
}

const (
	hdrA = "B-E-UUY-R40925274"
	hdrB = "B-E-UUY-R4092527" // one digit missing, fails the strict gate
	hdrC = "B-HK-WFE-S17975643"
)

func TestGroup_OutlierBridged(t *testing.T) {
	groups := newTestGrouper().Group(pages(hdrA, hdrA, hdrA, hdrB, hdrA, hdrA))

	assert.Equal(t, []span{{0, 5, hdrA}}, spans(groups))
	assert.Len(t, groups[0].Members, 6)
}

func TestGroup_TwoPageRunNotCorrected(t *testing.T) {
	groups := newTestGrouper().Group(pages(hdrA, hdrA, hdrB, hdrB, hdrA, hdrA))

	assert.Equal(t, []span{{0, 1, hdrA}, {2, 3, hdrB}, {4, 5, hdrA}}, spans(groups))
}

func TestGroup_TwelvePages(t *testing.T) {
	labels := []string{hdrA, hdrA, hdrA, hdrC, hdrC, hdrC, hdrC, hdrC, hdrA, hdrA, hdrA, hdrA}
	groups := newTestGrouper().Group(pages(labels...))

	assert.Equal(t, []span{{0, 2, hdrA}, {3, 7, hdrC}, {8, 11, hdrA}}, spans(groups))
}

func TestGroup_StrictOutlierKept(t *testing.T) {
	// a strict serial one digit away is a different document
	other := "B-E-UUY-R40925275"
	groups := newTestGrouper().Group(pages(hdrA, hdrA, other, hdrA, hdrA))

	assert.Equal(t, []span{{0, 1, hdrA}, {2, 2, other}, {3, 4, hdrA}}, spans(groups))
}

func TestGroup_AmbiguousOutlierKept(t *testing.T) {
	left, right := "B-E-UUY-R40925274", "B-E-UUY-R40925279"
	outlier := "B-E-UUY-R4092527"
	groups := newTestGrouper().Group(pages(left, left, outlier, right, right))

	assert.Equal(t, []span{{0, 1, left}, {2, 2, outlier}, {3, 4, right}}, spans(groups))
}

func TestGroup_LeadingOutlierJoinsNext(t *testing.T) {
	groups := newTestGrouper().Group(pages(hdrB, hdrA, hdrA, hdrA))

	assert.Equal(t, []span{{0, 3, hdrA}}, spans(groups))
}

func TestGroup_TrailingOutlierJoinsPrevious(t *testing.T) {
	groups := newTestGrouper().Group(pages(hdrC, hdrC, "B-HK-WFE-S1797564"))

	assert.Equal(t, []span{{0, 2, hdrC}}, spans(groups))
}

func TestGroup_UnrelatedOutlierKept(t *testing.T) {
	groups := newTestGrouper().Group(pages(hdrA, hdrA, "", hdrA))

	assert.Equal(t, []span{{0, 1, hdrA}, {2, 2, ""}, {3, 3, hdrA}}, spans(groups))
}

func TestGroup_CorrectionDisabled(t *testing.T) {
	opts := DefaultOptions()
	opts.OutlierCorrection = false
	groups := New(validator, opts).Group(pages(hdrA, hdrB, hdrA))

	assert.Len(t, groups, 3)
}

func TestGroup_SortsByPageIndex(t *testing.T) {
	in := []models.PageResult{pageAt(2, hdrC), pageAt(0, hdrA), pageAt(1, hdrA)}
	groups := newTestGrouper().Group(in)

	assert.Equal(t, []span{{0, 1, hdrA}, {2, 2, hdrC}}, spans(groups))
}

func TestGroup_Empty(t *testing.T) {
	assert.Nil(t, newTestGrouper().Group(nil))
}

func TestGroup_FuzzyMatching(t *testing.T) {
	opts := DefaultOptions()
	opts.SimilarityThreshold = 0.85
	g := New(validator, opts)

	// same serial under a misread code segment
	groups := g.Group(pages("B-TW-UET-S18010794", "B-TW-UEI-S18010794", "B-TW-UET-S18010794"))
	require.Len(t, groups, 1)
	assert.Equal(t, "B-TW-UET-S18010794", groups[0].Label)

	// strict serials that differ never match
	groups = g.Group(pages("B-TW-UET-S18010794", "B-TW-UET-S18010794", "B-TW-UEI-S18010792", "B-TW-UEI-S18010792"))
	assert.Len(t, groups, 2)
}

func TestGroup_SerialMatchingAtExactThreshold(t *testing.T) {
	labels := pages("B-TW-UET-S18010794", "B-TW-UEI-S18010794", "B-TW-UET-S18010794")

	groups := newTestGrouper().Group(labels)
	require.Len(t, groups, 1)
	assert.Equal(t, "B-TW-UET-S18010794", groups[0].Label)

	opts := DefaultOptions()
	opts.SerialBasedMatching = false
	assert.Len(t, New(validator, opts).Group(labels), 3)
}

func TestGroup_PartitionProperty(t *testing.T) {
	alphabet := []string{hdrA, hdrB, hdrC, "", "B-HK-WFE-S1797564", "B-E-UUY-R40925275"}
	rng := rand.New(rand.NewSource(7))

	for _, correction := range []bool{false, true} {
		opts := DefaultOptions()
		opts.OutlierCorrection = correction
		g := New(validator, opts)

		for trial := 0; trial < 200; trial++ {
			n := 1 + rng.Intn(30)
			labels := make([]string, n)
			for i := range labels {
				labels[i] = alphabet[rng.Intn(len(alphabet))]
			}

			groups := g.Group(pages(labels...))

			require.NotEmpty(t, groups)
			next := 0
			for _, grp := range groups {
				require.Equal(t, next, grp.StartPage, "labels %v", labels)
				require.GreaterOrEqual(t, grp.EndPage, grp.StartPage)
				require.Len(t, grp.Members, grp.PageCount())
				for k, m := range grp.Members {
					require.Equal(t, grp.StartPage+k, m.PageIndex)
				}
				next = grp.EndPage + 1
			}
			require.Equal(t, n, next)
		}
	}
}

func TestCanonicalLabel(t *testing.T) {
	assert.Equal(t, "X", CanonicalLabel(pages("X", "X", "Y")))
	assert.Equal(t, "", CanonicalLabel(pages("", "")))
	assert.Equal(t, "X", CanonicalLabel(pages("", "X", "")))

	// equal counts: strict wins over a higher position
	assert.Equal(t, hdrA, CanonicalLabel(pages(hdrB, hdrA)))

	// equal counts and strictness: earliest page wins
	assert.Equal(t, "Y", CanonicalLabel(pages("Y", "X")))
}
