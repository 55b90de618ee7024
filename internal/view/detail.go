// Package view renders the interactive bubble page. Decisions the page makes in
// the browser live in client.js; the Go functions here serve the JSON API.
package view

import (
	"html"
	"strings"

	"github.com/bubblemap/server/internal/bubble"
)

// PlaceholderHTML is shown in the detail panel when nothing is selected.
const PlaceholderHTML = "<i>Click a bubble to see details...</i>"

// DetailHTML returns the detail panel contents for a selected bubble, or the
// placeholder when b is nil. Texts are escaped.
func DetailHTML(b *bubble.Bubble) string {
	if b == nil {
		return PlaceholderHTML
	}

	text := html.EscapeString(b.Text)
	if len(b.Expansions) == 0 {
		return "<b>No expansions found for:</b> " + text
	}

	var sb strings.Builder
	sb.WriteString(`<div style="font-size: 12px;">`)
	sb.WriteString(text)
	sb.WriteString(`</div><ul style="font-size: 12px;">`)
	for _, e := range b.Expansions {
		sb.WriteString("<li>")
		sb.WriteString(html.EscapeString(e))
		sb.WriteString("</li>")
	}
	sb.WriteString("</ul>")
	return sb.String()
}

// Slider describes the count threshold control.
type Slider struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Step  int    `json:"step"`
	Value int    `json:"value"`
	Title string `json:"title"`
}

// SliderTitle labels the count threshold control.
const SliderTitle = "Minimum Non-Zero Features"

// SliderRange returns the slider for the given counts. It starts at floor and
// ends at the largest count, or at fallback when there are no counts.
func SliderRange(counts []int, floor, fallback int) Slider {
	end := fallback
	if len(counts) > 0 {
		end = counts[0]
		for _, c := range counts[1:] {
			if c > end {
				end = c
			}
		}
	}
	return Slider{
		Start: floor,
		End:   end,
		Step:  1,
		Value: floor,
		Title: SliderTitle,
	}
}
