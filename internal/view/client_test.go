package view

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/dop251/goja"

	"github.com/bubblemap/server/internal/bubble"
)

// newClient loads client.js into a fresh JavaScript runtime.
func newClient(t *testing.T) *goja.Runtime {
	t.Helper()
	vm := goja.New()
	if _, err := vm.RunString(clientScript); err != nil {
		t.Fatalf("client.js: %v", err)
	}
	return vm
}

// jsValue converts v to a plain JavaScript value through JSON.
func jsValue(t *testing.T, vm *goja.Runtime, v interface{}) goja.Value {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	val, err := vm.RunString("(" + string(data) + ")")
	if err != nil {
		t.Fatalf("parse %s: %v", data, err)
	}
	return val
}

func callJS(t *testing.T, vm *goja.Runtime, name string, args ...goja.Value) goja.Value {
	t.Helper()
	fn, ok := goja.AssertFunction(vm.Get(name))
	if !ok {
		t.Fatalf("client.js does not define %s", name)
	}
	v, err := fn(goja.Undefined(), args...)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return v
}

// decodeJSON normalizes JSON so Go and JavaScript encodings compare equal.
func decodeJSON(t *testing.T, data []byte) interface{} {
	t.Helper()
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	return v
}

func sampleDataset() *bubble.Dataset {
	return bubble.NewDataset([]bubble.Bubble{
		{Text: "low", Count: 3, X: 0, Y: 0},
		{Text: "mid", Count: 10, X: 1, Y: 2},
		{Text: "high", Count: 60, X: 3, Y: 1, Expansions: []string{"e1", "e2"}},
	}, 20, bubble.BindReport{})
}

func TestClientScriptEmbedded(t *testing.T) {
	page, err := GeneratePage(sampleDataset(), DefaultOptions())
	if err != nil {
		t.Fatalf("GeneratePage: %v", err)
	}
	if !strings.Contains(string(page), clientScript) {
		t.Error("page does not carry client.js verbatim")
	}
}

func TestClientDetailHTML(t *testing.T) {
	vm := newClient(t)

	tests := []struct {
		name   string
		bubble *bubble.Bubble
		want   string
	}{
		{"nothing selected", nil, PlaceholderHTML},
		{"no expansions", &bubble.Bubble{Text: "mid"}, "<b>No expansions found for:</b> mid"},
		{
			name:   "with expansions",
			bubble: &bubble.Bubble{Text: "high", Expansions: []string{"e1", "e2"}},
			want:   `<div style="font-size: 12px;">high</div><ul style="font-size: 12px;"><li>e1</li><li>e2</li></ul>`,
		},
		{
			name:   "escaped",
			bubble: &bubble.Bubble{Text: `<b>"it's"</b>`, Expansions: []string{"a & b"}},
			want: `<div style="font-size: 12px;">&lt;b&gt;&#34;it&#39;s&#34;&lt;/b&gt;</div>` +
				`<ul style="font-size: 12px;"><li>a &amp; b</li></ul>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := callJS(t, vm, "detailHTML", jsValue(t, vm, tt.bubble), vm.ToValue(PlaceholderHTML)).String()
			if got != tt.want {
				t.Errorf("detailHTML() = %q, want %q", got, tt.want)
			}
			if goHTML := DetailHTML(tt.bubble); got != goHTML {
				t.Errorf("client and server panels differ:\n js: %q\n go: %q", got, goHTML)
			}
		})
	}
}

func TestClientSelection(t *testing.T) {
	vm := newClient(t)
	table := jsValue(t, vm, sampleDataset().Table())

	tests := []struct {
		index int
		want  string
	}{
		{-1, PlaceholderHTML},
		{1, "<b>No expansions found for:</b> mid"},
		{2, `<div style="font-size: 12px;">high</div><ul style="font-size: 12px;"><li>e1</li><li>e2</li></ul>`},
		{3, PlaceholderHTML},
	}
	for _, tt := range tests {
		row := callJS(t, vm, "rowOf", table, vm.ToValue(tt.index))
		if got := callJS(t, vm, "detailHTML", row, vm.ToValue(PlaceholderHTML)).String(); got != tt.want {
			t.Errorf("selecting %d: got %q, want %q", tt.index, got, tt.want)
		}
	}
}

func TestClientLabelsVisible(t *testing.T) {
	vm := newClient(t)

	tests := []struct {
		name     string
		xRange   []float64
		yRange   []float64
		want     bool
		wantMode string
	}{
		{"zoomed in", []float64{0, 4}, []float64{10, 13}, true, "markers+text"},
		{"too wide", []float64{0, 6}, []float64{0, 3}, false, "markers"},
		{"too tall", []float64{0, 4}, []float64{0, 6}, false, "markers"},
		{"exactly threshold", []float64{0, 5}, []float64{0, 1}, false, "markers"},
		{"default view", []float64{-20, 20}, []float64{-20, 20}, false, "markers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			visible := callJS(t, vm, "labelsVisible",
				jsValue(t, vm, tt.xRange), jsValue(t, vm, tt.yRange), vm.ToValue(5), vm.ToValue(5))
			if visible.ToBoolean() != tt.want {
				t.Errorf("labelsVisible() = %v, want %v", visible.ToBoolean(), tt.want)
			}
			if mode := callJS(t, vm, "traceMode", visible).String(); mode != tt.wantMode {
				t.Errorf("traceMode() = %q, want %q", mode, tt.wantMode)
			}
		})
	}
}

func TestClientFilterTable(t *testing.T) {
	vm := newClient(t)
	full := sampleDataset().Table()

	for _, threshold := range []float64{0, 5, 10, 60, 61} {
		table := jsValue(t, vm, full)
		filtered := callJS(t, vm, "filterTable", table, vm.ToValue(threshold))
		stringify, _ := goja.AssertFunction(vm.Get("JSON").ToObject(vm).Get("stringify"))
		out, err := stringify(goja.Undefined(), filtered)
		if err != nil {
			t.Fatalf("stringify: %v", err)
		}

		goJSON, err := json.Marshal(full.Filter(threshold))
		if err != nil {
			t.Fatal(err)
		}
		if got, want := decodeJSON(t, []byte(out.String())), decodeJSON(t, goJSON); !reflect.DeepEqual(got, want) {
			t.Errorf("threshold %v: client table %s, server table %s", threshold, out.String(), goJSON)
		}
	}

	working := callJS(t, vm, "filterTable", jsValue(t, vm, full), vm.ToValue(10))
	var texts []string
	if err := vm.ExportTo(working.ToObject(vm).Get("text"), &texts); err != nil {
		t.Fatalf("export: %v", err)
	}
	if want := []string{"mid", "high"}; !reflect.DeepEqual(texts, want) {
		t.Errorf("texts at 10 = %v, want %v", texts, want)
	}
}
