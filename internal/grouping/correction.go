package grouping

import "docsplit/pkg/models"

type side int

const (
	keep side = iota
	intoPrevious
	intoNext
)

// correctOutliers folds single-page groups into an adjacent group whose label
// they closely resemble. Only groups that were single pages after the
// contiguous pass are considered.
func (g *Grouper) correctOutliers(groups []models.Group) []models.Group {
	out := make([]models.Group, 0, len(groups))
	for i := 0; i < len(groups); i++ {
		grp := groups[i]
		if grp.PageCount() != 1 {
			out = append(out, grp)
			continue
		}

		var prev, next *models.Group
		if len(out) > 0 {
			prev = &out[len(out)-1]
		}
		if i+1 < len(groups) {
			next = &groups[i+1]
		}

		page := grp.Members[0]
		switch g.mergeSide(page, prev, next) {
		case intoPrevious:
			g.log.Info().
				Int("page", page.PageIndex+1).
				Str("from", page.Label()).
				Str("into", prev.Label).
				Msg("Merged single-page outlier into previous group")
			prev.Members = append(prev.Members, page)
			prev.EndPage = page.PageIndex
		case intoNext:
			g.log.Info().
				Int("page", page.PageIndex+1).
				Str("from", page.Label()).
				Str("into", next.Label).
				Msg("Merged single-page outlier into next group")
			next.Members = append([]models.PageResult{page}, next.Members...)
			next.StartPage = page.PageIndex
		default:
			out = append(out, grp)
		}
	}
	return coalesce(out)
}

// mergeSide decides where an outlier page goes. Two matching neighbours with
// the same label bridge through the outlier; two matching neighbours with
// different labels are ambiguous and keep the page separate.
func (g *Grouper) mergeSide(page models.PageResult, prev, next *models.Group) side {
	prevOK := prev != nil && g.absorbs(*prev, page.Winner)
	nextOK := next != nil && g.absorbs(*next, page.Winner)

	switch {
	case prevOK && nextOK:
		if prev.Label == next.Label {
			return intoPrevious
		}
		g.log.Info().
			Int("page", page.PageIndex+1).
			Str("label", page.Label()).
			Str("previous", prev.Label).
			Str("next", next.Label).
			Msg("Outlier matches both neighbours, keeping it separate")
		return keep
	case prevOK:
		return intoPrevious
	case nextOK:
		return intoNext
	default:
		return keep
	}
}

// absorbs reports whether neighbour may take over the outlier candidate.
func (g *Grouper) absorbs(neighbour models.Group, outlier models.Candidate) bool {
	if !g.validator.CloseSerial(neighbour.Label, outlier.NormalizedText, g.opts.MaxSerialEdits) {
		return false
	}
	anchor := strongest(neighbour.Members)
	if outlier.StrictValid && anchor.StrictValid && outlier.NormalizedText != neighbour.Label {
		return false
	}
	return !outlier.StrictValid || outlier.Score <= anchor.Score-g.opts.MaterialScoreGap
}

// strongest returns the member winner ranked strict first, then by score.
func strongest(members []models.PageResult) models.Candidate {
	var best models.Candidate
	for i, m := range members {
		c := m.Winner
		if i == 0 || (c.StrictValid && !best.StrictValid) || (c.StrictValid == best.StrictValid && c.Score > best.Score) {
			best = c
		}
	}
	return best
}

// coalesce joins adjacent groups carrying the same label.
func coalesce(groups []models.Group) []models.Group {
	if len(groups) == 0 {
		return groups
	}
	out := []models.Group{groups[0]}
	for _, grp := range groups[1:] {
		last := &out[len(out)-1]
		if grp.Label == last.Label {
			last.Members = append(last.Members, grp.Members...)
			last.EndPage = grp.EndPage
			continue
		}
		out = append(out, grp)
	}
	return out
}
