// Package bubble turns feature activations into labeled, positioned bubbles.
package bubble

import (
	"errors"
	"fmt"
	"sort"

	"github.com/bubblemap/server/internal/activation"
)

// ErrNoLabels is returned when the label mapping is empty.
var ErrNoLabels = errors.New("no feature labels")

// Bubble is one rendered point: a deduplicated label with its aggregate count,
// position and expansion texts.
type Bubble struct {
	Text       string   `json:"text"`
	Truncated  string   `json:"truncated"`
	Count      int      `json:"number"`
	Size       float64  `json:"size"`
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Expansions []string `json:"expansions"`
	// Feature is the feature index whose occurrence created the bubble.
	Feature int `json:"feature"`
}

// Options controls aggregation.
type Options struct {
	// SkipTop ranked features are ignored before bubbles are collected.
	SkipTop int
	// MinCount is the exclusive lower bound on a feature's nonzero count.
	MinCount           int
	MaxExpansions      int
	ExpansionThreshold float64
}

// DefaultOptions returns the aggregation policy of the upstream notebooks.
func DefaultOptions() Options {
	return Options{
		SkipTop:            100,
		MinCount:           50,
		MaxExpansions:      10,
		ExpansionThreshold: 0.1,
	}
}

// TextSource resolves example rows to their text.
type TextSource interface {
	Text(row int) (string, error)
}

// MapTexts adapts a plain map to TextSource.
type MapTexts map[int]string

// Text implements TextSource.
func (m MapTexts) Text(row int) (string, error) {
	t, ok := m[row]
	if !ok {
		return "", fmt.Errorf("no text for row %d", row)
	}
	return t, nil
}

// Rank returns feature indices ordered by descending count. Ties are ordered by
// descending index: the result is a stable ascending sort, reversed.
func Rank(counts []int) []int {
	order := make([]int, len(counts))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] < counts[order[j]]
	})
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// Aggregate ranks features by nonzero count and collects one bubble per distinct
// label. Counts cover the columns below the largest labeled feature index.
// When several features share a label the bubble keeps the largest count, while
// its expansions and feature stay those of the first (highest ranked) occurrence.
func Aggregate(m *activation.Matrix, labels map[int]string, texts TextSource, opts Options) ([]Bubble, error) {
	if len(labels) == 0 {
		return nil, ErrNoLabels
	}

	maxKey := 0
	first := true
	for k := range labels {
		if first || k > maxKey {
			maxKey = k
			first = false
		}
	}

	counts := m.NonzeroCounts(maxKey)
	ranked := Rank(counts)
	if opts.SkipTop > len(ranked) {
		ranked = nil
	} else if opts.SkipTop > 0 {
		ranked = ranked[opts.SkipTop:]
	}

	bubbles := make([]Bubble, 0)
	byLabel := make(map[string]int)

	for _, f := range ranked {
		label, ok := labels[f]
		if !ok || counts[f] <= opts.MinCount {
			continue
		}

		if idx, seen := byLabel[label]; seen {
			if counts[f] > bubbles[idx].Count {
				bubbles[idx].Count = counts[f]
			}
			continue
		}

		expansions, err := expansionsFor(m, f, texts, opts)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", f, err)
		}

		byLabel[label] = len(bubbles)
		bubbles = append(bubbles, Bubble{
			Text:       label,
			Count:      counts[f],
			Expansions: expansions,
			Feature:    f,
		})
	}

	return bubbles, nil
}

func expansionsFor(m *activation.Matrix, feature int, texts TextSource, opts Options) ([]string, error) {
	top := m.TopRows(feature, opts.MaxExpansions, opts.ExpansionThreshold)
	out := make([]string, 0, len(top))
	for _, e := range top {
		t, err := texts.Text(e.Row)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
