package bubble

import (
	"fmt"

	"github.com/bubblemap/server/internal/activation"
)

// Ellipsis is appended to truncated labels.
const Ellipsis = "..."

// Truncate shortens text to n runes plus Ellipsis; shorter texts are returned unchanged.
func Truncate(text string, n int) string {
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n]) + Ellipsis
}

// Dataset is an immutable, ordered collection of bubbles.
type Dataset struct {
	bubbles []Bubble
	report  BindReport
}

// NewDataset fills in the derived fields (truncated text, size) and freezes the bubbles.
func NewDataset(bubbles []Bubble, truncateLen int, report BindReport) *Dataset {
	out := make([]Bubble, len(bubbles))
	for i, b := range bubbles {
		b.Truncated = Truncate(b.Text, truncateLen)
		b.Size = float64(b.Count) / 2
		if b.Expansions == nil {
			b.Expansions = []string{}
		}
		out[i] = b
	}
	return &Dataset{bubbles: out, report: report}
}

// Len returns the number of bubbles.
func (d *Dataset) Len() int {
	return len(d.bubbles)
}

// Bubble returns bubble i.
func (d *Dataset) Bubble(i int) (Bubble, bool) {
	if i < 0 || i >= len(d.bubbles) {
		return Bubble{}, false
	}
	return d.bubbles[i], true
}

// Bubbles returns a copy of the bubble list.
func (d *Dataset) Bubbles() []Bubble {
	return append([]Bubble(nil), d.bubbles...)
}

// Counts returns the count of every bubble, in order.
func (d *Dataset) Counts() []int {
	out := make([]int, len(d.bubbles))
	for i, b := range d.bubbles {
		out[i] = b.Count
	}
	return out
}

// MaxCount returns the largest count, or false for an empty dataset.
func (d *Dataset) MaxCount() (int, bool) {
	if len(d.bubbles) == 0 {
		return 0, false
	}
	m := d.bubbles[0].Count
	for _, b := range d.bubbles[1:] {
		if b.Count > m {
			m = b.Count
		}
	}
	return m, true
}

// BindReport returns how coordinates were attached.
func (d *Dataset) BindReport() BindReport {
	return d.report
}

// Table returns the dataset as parallel columns.
func (d *Dataset) Table() Table {
	return NewTable(d.bubbles)
}

// Input bundles what Build needs.
type Input struct {
	Activations *activation.Matrix
	Labels      map[int]string
	Texts       TextSource
	Coords      [][2]float64
	// CoordFeatures enables keyed binding when non-nil and KeyCoords is set.
	CoordFeatures []int
}

// BuildOptions controls Build.
type BuildOptions struct {
	Aggregate   Options
	KeyCoords   bool
	TruncateLen int
}

// Build aggregates, binds coordinates and returns the frozen dataset.
func Build(in Input, opts BuildOptions) (*Dataset, error) {
	bubbles, err := Aggregate(in.Activations, in.Labels, in.Texts, opts.Aggregate)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}

	var (
		bound  []Bubble
		report BindReport
	)
	if opts.KeyCoords && in.CoordFeatures != nil {
		bound, report = BindByFeature(bubbles, in.Coords, in.CoordFeatures)
	} else {
		bound, report = BindPositional(bubbles, in.Coords)
	}

	return NewDataset(bound, opts.TruncateLen, report), nil
}
