package view

import (
	"strings"
	"testing"

	"github.com/bubblemap/server/internal/bubble"
)

func TestDetailHTML(t *testing.T) {
	tests := []struct {
		name   string
		bubble *bubble.Bubble
		want   string
	}{
		{
			name:   "nothing selected",
			bubble: nil,
			want:   "<i>Click a bubble to see details...</i>",
		},
		{
			name:   "no expansions",
			bubble: &bubble.Bubble{Text: "cooking"},
			want:   "<b>No expansions found for:</b> cooking",
		},
		{
			name:   "with expansions",
			bubble: &bubble.Bubble{Text: "cooking", Expansions: []string{"how to boil", "best pan"}},
			want:   `<div style="font-size: 12px;">cooking</div><ul style="font-size: 12px;"><li>how to boil</li><li>best pan</li></ul>`,
		},
		{
			name:   "escaped",
			bubble: &bubble.Bubble{Text: "<b>", Expansions: []string{"a & b"}},
			want:   `<div style="font-size: 12px;">&lt;b&gt;</div><ul style="font-size: 12px;"><li>a &amp; b</li></ul>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetailHTML(tt.bubble); got != tt.want {
				t.Errorf("DetailHTML() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSliderRange(t *testing.T) {
	s := SliderRange([]int{60, 3, 120, 10}, 5, 100)
	if s.Start != 5 || s.End != 120 || s.Value != 5 || s.Step != 1 {
		t.Errorf("unexpected slider: %+v", s)
	}
	if s.Title != "Minimum Non-Zero Features" {
		t.Errorf("unexpected title %q", s.Title)
	}

	empty := SliderRange(nil, 5, 100)
	if empty.End != 100 {
		t.Errorf("empty slider end = %d, want 100", empty.End)
	}
}

func TestGeneratePage(t *testing.T) {
	d := bubble.NewDataset([]bubble.Bubble{
		{Text: "</script><script>alert(1)</script>", Count: 70, X: 1, Y: 2},
		{Text: "plain", Count: 55, X: 3, Y: 4, Expansions: []string{"example"}},
	}, 20, bubble.BindReport{})

	opts := DefaultOptions()
	opts.APIBase = "/d/default"
	page, err := GeneratePage(d, opts)
	if err != nil {
		t.Fatalf("GeneratePage: %v", err)
	}
	html := string(page)

	for _, want := range []string{
		"<title>Data Viz w/ SAEs</title>",
		"Minimum Non-Zero Features",
		`max="70"`,
		`min="5"`,
		"Text Bubbles by Semantic Similarity",
		"<i>Click a bubble to see details...</i>",
		"/d/default/api/bubbles",
		"cdn.plot.ly",
		"function filterTable(",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(html, "</script><script>alert(1)") {
		t.Error("label text was embedded unescaped")
	}
}

func TestGeneratePage_Empty(t *testing.T) {
	page, err := GeneratePage(bubble.NewDataset(nil, 20, bubble.BindReport{}), DefaultOptions())
	if err != nil {
		t.Fatalf("GeneratePage: %v", err)
	}
	if !strings.Contains(string(page), `max="100"`) {
		t.Error("expected fallback slider maximum")
	}
}

func TestGeneratePage_InvalidSize(t *testing.T) {
	opts := DefaultOptions()
	opts.Width = 0
	if _, err := GeneratePage(bubble.NewDataset(nil, 20, bubble.BindReport{}), opts); err == nil {
		t.Fatal("expected error for zero width")
	}
}
