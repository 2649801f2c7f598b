package header

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 0, Levenshtein("R4092527", "R4092527"))
	assert.Equal(t, 1, Levenshtein("R4092527", "R40925274"))
	assert.Equal(t, 1, Levenshtein("R4092558", "R4092528"))
	assert.Equal(t, 3, Levenshtein("", "abc"))
	assert.Equal(t, 3, Levenshtein("kitten", "sitting"))
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("", ""))
	assert.Equal(t, 1.0, Similarity("ABC", "ABC"))
	assert.InDelta(t, 0.75, Similarity("ABCD", "ABCE"), 1e-9)
}

func TestMatch(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name        string
		a, b        string
		threshold   float64
		serialBased bool
		want        bool
	}{
		{"exact", "B-E-UUY-R4092527", "B-E-UUY-R4092527", 1, false, true},
		{"exact only", "B-E-UUY-R4092527", "B-E-UUY-R4092528", 1, false, false},
		{"strict serials differ", "B-TW-UET-S18010794", "B-TW-UEI-S18010792", 0.5, true, false},
		{"same serial", "B-TW-UET-S18010794", "B-TW-UEI-S18010794", 0.99, true, true},
		{"same serial without serial matching", "B-TW-UET-S18010794", "B-TW-UEI-S18010794", 0.99, false, false},
		{"same serial at exact threshold", "B-TW-UET-S18010794", "B-TW-UEI-S18010794", 1, true, true},
		{"different serials at exact threshold", "B-TW-UET-S18010794", "B-TW-UET-S18010795", 1, true, false},
		{"fuzzy", "B-E-UUY-R409252", "B-E-UUY-R409253", 0.9, false, true},
		{"empty never fuzzy", "", "B", 0.1, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.Match(tt.a, tt.b, tt.threshold, tt.serialBased))
		})
	}
}

func TestCloseSerial(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"extra trailing digit", "B-E-UUY-R4092527", "B-E-UUY-R40925274", true},
		{"one substituted digit", "B-HK-WFE-S17975643", "B-HK-WFE-S17975648", true},
		{"missing digit", "B-HK-WFE-S17975643", "B-HK-WFE-S1797564", true},
		{"two edits", "B-HK-WFE-S17975643", "B-HK-WFE-S17975611", false},
		{"different head", "B-HK-WFE-S17975643", "B-HK-ZN1-S17975648", false},
		{"different serial letter", "B-HK-WFE-S17975643", "B-HK-WFE-R17975643", false},
		{"serial letter outside whitelist", "B-HK-WFE-S17975643", "B-HK-WFE-T17975643", false},
		{"damaged head same serial", "B-HK-WFE-S17975643", "B-HK-WFF-S17975643", true},
		{"empty", "", "B-HK-WFE-S17975643", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.CloseSerial(tt.a, tt.b, 1))
		})
	}
}
