// Package header recognizes and scores structured page headers such as
// "B-HK-WFE-S17975643".
//
// A header is three or four separator-delimited segments:
//
//	prefix  exactly one letter
//	region  one or two letters
//	code    two to four alphanumerics (optional)
//	serial  whitelisted letter followed by a fixed number of digits
//
// Validation never fails. Every input gets a signed structural score and a
// strict flag that is only set when the serial passes the strict gate.
package header

// Weights are the additive score contributions. Penalties are negative.
type Weights struct {
	Structure4      int `mapstructure:"structure4"`
	Structure3      int `mapstructure:"structure3"`
	BadStructure    int `mapstructure:"bad_structure"`
	SegmentOK       int `mapstructure:"segment_ok"`
	SegmentBad      int `mapstructure:"segment_bad"`
	SerialOK        int `mapstructure:"serial_ok"`
	SerialBad       int `mapstructure:"serial_bad"`
	SerialIdeal     int `mapstructure:"serial_ideal"`
	SerialBadTail   int `mapstructure:"serial_bad_tail"`
	SerialBadPrefix int `mapstructure:"serial_bad_prefix"`
	NoisePerChar    int `mapstructure:"noise_per_char"`
}

// Grammar describes the accepted header shape.
type Grammar struct {
	Separator       string   `mapstructure:"separator"`
	PrefixLength    int      `mapstructure:"prefix_length"`
	RegionMin       int      `mapstructure:"region_min"`
	RegionMax       int      `mapstructure:"region_max"`
	CodeMin         int      `mapstructure:"code_min"`
	CodeMax         int      `mapstructure:"code_max"`
	SerialMin       int      `mapstructure:"serial_min"`
	SerialMax       int      `mapstructure:"serial_max"`
	SerialPrefixes  []string `mapstructure:"serial_prefixes"`
	SerialDigits    int      `mapstructure:"serial_digits"`
	InvalidCap      int      `mapstructure:"invalid_serial_cap"`
	AmbiguityRepair bool     `mapstructure:"ambiguity_repair"`
	Weights         Weights  `mapstructure:"weights"`
}

// DefaultWeights returns the production scoring weights.
func DefaultWeights() Weights {
	return Weights{
		Structure4:      60,
		Structure3:      40,
		BadStructure:    -20,
		SegmentOK:       10,
		SegmentBad:      -20,
		SerialOK:        40,
		SerialBad:       -30,
		SerialIdeal:     20,
		SerialBadTail:   -10,
		SerialBadPrefix: -30,
		NoisePerChar:    -5,
	}
}

// DefaultGrammar returns the grammar used for production headers.
func DefaultGrammar() Grammar {
	return Grammar{
		Separator:       "-",
		PrefixLength:    1,
		RegionMin:       1,
		RegionMax:       2,
		CodeMin:         2,
		CodeMax:         4,
		SerialMin:       7,
		SerialMax:       10,
		SerialPrefixes:  []string{"S", "R"},
		SerialDigits:    8,
		InvalidCap:      89,
		AmbiguityRepair: true,
		Weights:         DefaultWeights(),
	}
}

// Result is the outcome of validating one string.
type Result struct {
	Raw         string
	Normalized  string
	Segments    []string
	Score       int
	StrictValid bool
	NoiseChars  int
}
