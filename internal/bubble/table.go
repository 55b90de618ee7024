package bubble

// Table holds bubbles as parallel columns, the shape the chart consumes.
// Every column has the same length.
type Table struct {
	X          []float64  `json:"x"`
	Y          []float64  `json:"y"`
	Text       []string   `json:"text"`
	Truncated  []string   `json:"truncated"`
	Number     []int      `json:"number"`
	Size       []float64  `json:"size"`
	Expansions [][]string `json:"expansions"`
}

// NewTable lays bubbles out as columns.
func NewTable(bubbles []Bubble) Table {
	t := Table{
		X:          make([]float64, 0, len(bubbles)),
		Y:          make([]float64, 0, len(bubbles)),
		Text:       make([]string, 0, len(bubbles)),
		Truncated:  make([]string, 0, len(bubbles)),
		Number:     make([]int, 0, len(bubbles)),
		Size:       make([]float64, 0, len(bubbles)),
		Expansions: make([][]string, 0, len(bubbles)),
	}
	for _, b := range bubbles {
		t.appendRow(b.X, b.Y, b.Text, b.Truncated, b.Count, b.Size, b.Expansions)
	}
	return t
}

func (t *Table) appendRow(x, y float64, text, truncated string, number int, size float64, expansions []string) {
	t.X = append(t.X, x)
	t.Y = append(t.Y, y)
	t.Text = append(t.Text, text)
	t.Truncated = append(t.Truncated, truncated)
	t.Number = append(t.Number, number)
	t.Size = append(t.Size, size)
	t.Expansions = append(t.Expansions, expansions)
}

// Len returns the number of rows.
func (t Table) Len() int {
	return len(t.X)
}

// Filter returns the rows whose number is at least threshold, in their original order.
// The receiver is not modified.
func (t Table) Filter(threshold float64) Table {
	out := NewTable(nil)
	for i := range t.X {
		if float64(t.Number[i]) >= threshold {
			out.appendRow(t.X[i], t.Y[i], t.Text[i], t.Truncated[i], t.Number[i], t.Size[i], t.Expansions[i])
		}
	}
	return out
}
