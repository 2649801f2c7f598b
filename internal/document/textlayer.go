package document

import (
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// textInRegion joins the glyph runs that fall inside roi on a page of the
// given size in points. PDF coordinates grow upwards from the bottom edge.
func textInRegion(texts []pdf.Text, roi Rect, widthPt, heightPt float64) string {
	x0 := widthPt * roi.Left / 100
	x1 := widthPt * (roi.Left + roi.Width) / 100
	yTop := heightPt * (1 - roi.Top/100)
	yBottom := heightPt * (1 - (roi.Top+roi.Height)/100)

	var inside []pdf.Text
	for _, t := range texts {
		if t.S == "" {
			continue
		}
		if t.X >= x0 && t.X <= x1 && t.Y >= yBottom && t.Y <= yTop {
			inside = append(inside, t)
		}
	}
	if len(inside) == 0 {
		return ""
	}

	sort.SliceStable(inside, func(i, j int) bool {
		if !sameLine(inside[i], inside[j]) {
			return inside[i].Y > inside[j].Y
		}
		return inside[i].X < inside[j].X
	})

	var b strings.Builder
	prev := inside[0]
	b.WriteString(prev.S)
	for _, t := range inside[1:] {
		gap := t.X - (prev.X + prev.W)
		if !sameLine(prev, t) || gap > t.FontSize*0.25 {
			b.WriteByte(' ')
		}
		b.WriteString(t.S)
		prev = t
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func sameLine(a, b pdf.Text) bool {
	tolerance := math.Max(a.FontSize, b.FontSize) / 2
	if tolerance == 0 {
		tolerance = 1
	}
	return math.Abs(a.Y-b.Y) <= tolerance
}
