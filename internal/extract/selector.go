package extract

import "docsplit/pkg/models"

// Weights combine structural score, engine confidence and how often a
// normalized text was produced across methods.
type Weights struct {
	Score      float64 `mapstructure:"score_weight"`
	Confidence float64 `mapstructure:"confidence_weight"`
	Frequency  float64 `mapstructure:"frequency_weight"`
}

// DefaultWeights returns the production voting weights.
func DefaultWeights() Weights {
	return Weights{Score: 1.0, Confidence: 0.3, Frequency: 40}
}

// Selector picks the winning candidate of a page and decides when
// generation may stop.
type Selector struct {
	weights         Weights
	earlyExitScore  int
	escalationScore int
}

// NewSelector creates a selector.
func NewSelector(weights Weights, earlyExitScore, escalationScore int) *Selector {
	return &Selector{
		weights:         weights,
		earlyExitScore:  earlyExitScore,
		escalationScore: escalationScore,
	}
}

// Select returns the best candidate. Ranking is strict-valid first, then the
// weighted vote, then the structural score, then generation order. Candidates
// without text only win when nothing else was produced.
func (s *Selector) Select(cands []models.Candidate) models.Candidate {
	if len(cands) == 0 {
		return models.Candidate{}
	}

	counts := make(map[string]int)
	total := 0
	for _, c := range cands {
		if !c.Empty() {
			counts[c.NormalizedText]++
			total++
		}
	}
	if total == 0 {
		return cands[0]
	}

	best := -1
	var bestWeighted float64
	for i, c := range cands {
		if c.Empty() {
			continue
		}
		weighted := s.weights.Score*float64(c.Score) +
			s.weights.Confidence*c.EngineConfidence +
			s.weights.Frequency*float64(counts[c.NormalizedText])/float64(total)
		if best < 0 || outranks(c, weighted, cands[best], bestWeighted) {
			best, bestWeighted = i, weighted
		}
	}
	return cands[best]
}

func outranks(c models.Candidate, weighted float64, best models.Candidate, bestWeighted float64) bool {
	if c.StrictValid != best.StrictValid {
		return c.StrictValid
	}
	if weighted != bestWeighted {
		return weighted > bestWeighted
	}
	return c.Score > best.Score
}

// Satisfied reports whether c allows generation to stop immediately.
func (s *Selector) Satisfied(c models.Candidate) bool {
	return c.StrictValid && c.Score >= s.earlyExitScore
}

// GoodEnough reports whether the current best candidate makes further
// render scales unnecessary.
func (s *Selector) GoodEnough(cands []models.Candidate) bool {
	for _, c := range cands {
		if s.Satisfied(c) || (!c.Empty() && c.Score >= s.escalationScore) {
			return true
		}
	}
	return false
}

// NeedsFallback reports whether the secondary engine should be consulted.
func (s *Selector) NeedsFallback(best models.Candidate) bool {
	return !best.StrictValid || best.Score < s.escalationScore
}
