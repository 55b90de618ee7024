package bubble

// BindReport describes how coordinates were attached to bubbles.
type BindReport struct {
	Keyed   bool `json:"keyed"`
	Bubbles int  `json:"bubbles"`
	Coords  int  `json:"coords"`
	Bound   int  `json:"bound"`
	// DroppedBubbles and DroppedCoords are the items left without a partner.
	DroppedBubbles int `json:"dropped_bubbles"`
	DroppedCoords  int `json:"dropped_coords"`
}

// Mismatched reports whether anything was dropped while binding.
func (r BindReport) Mismatched() bool {
	return r.DroppedBubbles > 0 || r.DroppedCoords > 0
}

// BindPositional pairs bubble i with coordinate i and truncates both lists to
// the shorter length. The result is only meaningful when the coordinates were
// produced from bubbles in the same order.
func BindPositional(bubbles []Bubble, coords [][2]float64) ([]Bubble, BindReport) {
	n := min(len(bubbles), len(coords))

	out := make([]Bubble, n)
	for i := 0; i < n; i++ {
		out[i] = bubbles[i]
		out[i].X = coords[i][0]
		out[i].Y = coords[i][1]
	}

	return out, BindReport{
		Bubbles:        len(bubbles),
		Coords:         len(coords),
		Bound:          n,
		DroppedBubbles: len(bubbles) - n,
		DroppedCoords:  len(coords) - n,
	}
}

// BindByFeature joins bubbles to coordinates through the feature index of each
// coordinate row. Bubbles without a coordinate are dropped; bubble order is kept.
// If a feature appears more than once, its first coordinate wins.
func BindByFeature(bubbles []Bubble, coords [][2]float64, features []int) ([]Bubble, BindReport) {
	pos := make(map[int]int, len(features))
	for i, f := range features {
		if i >= len(coords) {
			break
		}
		if _, ok := pos[f]; !ok {
			pos[f] = i
		}
	}

	used := make(map[int]bool, len(bubbles))
	out := make([]Bubble, 0, len(bubbles))
	for _, b := range bubbles {
		i, ok := pos[b.Feature]
		if !ok {
			continue
		}
		b.X = coords[i][0]
		b.Y = coords[i][1]
		out = append(out, b)
		used[i] = true
	}

	return out, BindReport{
		Keyed:          true,
		Bubbles:        len(bubbles),
		Coords:         len(coords),
		Bound:          len(out),
		DroppedBubbles: len(bubbles) - len(out),
		DroppedCoords:  len(coords) - len(used),
	}
}
