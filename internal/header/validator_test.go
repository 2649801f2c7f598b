package header

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestValidator() *Validator {
	return NewValidator(DefaultGrammar())
}

func TestValidate_StrictGate(t *testing.T) {
	v := newTestValidator()
	cap := DefaultGrammar().InvalidCap

	tests := []struct {
		name   string
		input  string
		strict bool
	}{
		{"eight digits after S", "S17893848", true},
		{"too few digits", "S178938", false},
		{"letter outside whitelist", "T17893848", false},
		{"letter in digit run", "S1789384A", false},
		{"full header", "B-HK-WFE-S17975643", true},
		{"R serial", "B-E-UUY-R40925274", true},
		{"extra digit", "B-E-UUY-R409252745", false},
		{"missing digit", "B-E-UUY-R4092527", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.Validate(tt.input)
			assert.Equal(t, tt.strict, res.StrictValid)
			if !tt.strict {
				assert.LessOrEqual(t, res.Score, cap)
			}
		})
	}
}

func TestValidate_Scores(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		input string
		score int
	}{
		{"B-HK-WFE-S17975643", 150},
		{"B-WFE-S17975643", 120},
		{"S17893848", 40},
		{"S178938", 20},
		{"T17893848", -10},
		{"S1789384A", 10},
		{"", 0},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.score, v.Validate(tt.input).Score)
		})
	}
}

func TestValidate_NoisePenalty(t *testing.T) {
	v := newTestValidator()

	clean := v.Validate("B-HK-WFE-S17975643")
	noisy := v.Validate("i B-HK-WFE-S17975643 4")

	assert.Equal(t, clean.Normalized, noisy.Normalized)
	assert.Equal(t, 2, noisy.NoiseChars)
	assert.Equal(t, clean.Score-10, noisy.Score)
	assert.True(t, noisy.StrictValid)
}

func TestValidate_SpacedHeader(t *testing.T) {
	v := newTestValidator()
	clean := v.Validate("B-HK-WFE-S17975643")

	for _, input := range []string{"B-HK-WFE S17975643", "B HK WFE S17975643", "B-HK-WFE S17975643 7"} {
		res := v.Validate(input)
		assert.Equal(t, clean.Normalized, res.Normalized, "input %q", input)
		assert.True(t, res.StrictValid, "input %q", input)
	}

	res := v.Validate("B-HK-WFE S17975643 7")
	assert.Equal(t, 1, res.NoiseChars)
	assert.Equal(t, clean.Score-5, res.Score)

	// longer leftovers are not scored as noise
	res = v.Validate("B-HK-WFE-S17975643 PAGE")
	assert.Equal(t, 0, res.NoiseChars)
	assert.Equal(t, clean.Score, res.Score)
}

func TestValidate_StructureSegments(t *testing.T) {
	v := newTestValidator()

	res := v.Validate("B-HK-WFE-S17975643")
	require.Len(t, res.Segments, 4)
	assert.Equal(t, []string{"B", "HK", "WFE", "S17975643"}, res.Segments)

	bad := v.Validate("BX-HKL-W-S17975643")
	assert.True(t, bad.StrictValid)
	assert.Less(t, bad.Score, res.Score)
}

func TestNormalize(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercase", "b-hk-wfe-s17975643", "B-HK-WFE-S17975643"},
		{"spaced separators", "B - HK - WFE - S17975643", "B-HK-WFE-S17975643"},
		{"dash lookalikes", "B–HK—WFE_S17975643", "B-HK-WFE-S17975643"},
		{"full width", "Ｂ-ＨＫ-ＷＦＥ-Ｓ１７９７５６４３", "B-HK-WFE-S17975643"},
		{"trailing dash", "B-HK-WFE-S17975643-", "B-HK-WFE-S17975643"},
		{"doubled dash", "B--HK-WFE-S17975643", "B-HK-WFE-S17975643"},
		{"punctuation", "B-HK-WFE-S17975643.,;", "B-HK-WFE-S17975643"},
		{"double prefix", "BL-HK-WFE-S17975643", "B-HK-WFE-S17975643"},
		{"serial letter read as digit", "B-HK-WFE-517975643", "B-HK-WFE-S17975643"},
		{"serial digit read as letter", "B-HK-WFE-S1797O643", "B-HK-WFE-S17970643"},
		{"region digit", "B-H1-WFE-S17975643", "B-HI-WFE-S17975643"},
		{"code untouched", "B-HK-02OH-S17975643", "B-HK-02OH-S17975643"},
		{"unrepairable serial kept", "B-HK-WFE-X1797O643", "B-HK-WFE-X1797O643"},
		{"noise tokens dropped", "a B-HK-WFE-S17975643 7", "B-HK-WFE-S17975643"},
		{"serial split off", "B-HK-WFE S17975643", "B-HK-WFE-S17975643"},
		{"fully spaced", "B HK WFE S17975643", "B-HK-WFE-S17975643"},
		{"spaced with misreads", "PL H1 020H 5l7893848", "P-HI-020H-S17893848"},
		{"trailing word dropped", "B-HK-WFE-S17975643 PAGE", "B-HK-WFE-S17975643"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.Normalize(tt.input))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	v := newTestValidator()

	corpus := []string{
		"B-HK-WFE-S17975643",
		"  b - hk -- wfe - 517975643 -- ",
		"i  RB-E-UUY-R40925274 |",
		"Ｂ－ＨＫ－ＺＮ１－Ｓ１７９７８００７",
		"B.E.UUY.R4092533EE",
		"8-E-UUY-R4O92533",
		"~~~",
		"S1789384A",
		"PL H1 020H 5l7893848",
		"x y z",
		"-B-HK-",
		"B-HK-WFE-S17975643 B-HK",
		"B-HK-WFE S17975643",
		"B HK WFE S17975643 7",
		"7 S17893848",
		"HK WFE-S17975643",
	}
	for _, input := range corpus {
		once := v.Normalize(input)
		assert.Equal(t, once, v.Normalize(once), "input %q", input)
	}
}

func TestValidate_CustomGrammar(t *testing.T) {
	g := DefaultGrammar()
	g.SerialPrefixes = []string{"K"}
	g.SerialDigits = 6
	v := NewValidator(g)

	assert.True(t, v.Validate("A-BC-K123456").StrictValid)
	assert.False(t, v.Validate("A-BC-S12345678").StrictValid)
}
