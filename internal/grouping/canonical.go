package grouping

import "docsplit/pkg/models"

type labelStats struct {
	count  int
	strict bool
	score  int
	first  int
}

// CanonicalLabel picks the label of a group: the most frequent member text,
// then any strict-valid occurrence, then the best score, then the earliest
// page. Empty texts only win when every member is empty.
func CanonicalLabel(members []models.PageResult) string {
	stats := make(map[string]*labelStats)
	var order []string
	for i, m := range members {
		text := m.Label()
		if text == "" {
			continue
		}
		s, ok := stats[text]
		if !ok {
			s = &labelStats{score: m.Winner.Score, first: i}
			stats[text] = s
			order = append(order, text)
		}
		s.count++
		s.strict = s.strict || m.Winner.StrictValid
		s.score = max(s.score, m.Winner.Score)
	}

	best := ""
	for _, text := range order {
		if best == "" || better(stats[text], stats[best]) {
			best = text
		}
	}
	return best
}

func better(a, b *labelStats) bool {
	if a.count != b.count {
		return a.count > b.count
	}
	if a.strict != b.strict {
		return a.strict
	}
	if a.score != b.score {
		return a.score > b.score
	}
	return a.first < b.first
}
