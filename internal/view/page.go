package view

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"

	"github.com/bubblemap/server/internal/bubble"
	"github.com/bubblemap/server/pkg/colormap"
)

// compiledTemplate is parsed at init time to fail fast on template errors.
var compiledTemplate *template.Template

func init() {
	compiledTemplate = template.Must(template.New("page").Parse(pageTemplate))
}

// clientScript holds the DOM-free functions the page script calls.
//
//go:embed client.js
var clientScript string

// ChartTitle is the heading drawn above the scatter plot.
const ChartTitle = "Text Bubbles by Semantic Similarity"

const plotlyCDN = "https://cdn.plot.ly/plotly-2.35.2.min.js"

// Options configures page generation.
type Options struct {
	Title          string
	Width          int
	Height         int
	SliderFloor    int
	SliderFallback int
	ZoomThresholdX float64
	ZoomThresholdY float64
	// APIBase, when set, is shown as the JSON endpoint for the dataset.
	APIBase string
}

// DefaultOptions returns the standard page layout.
func DefaultOptions() Options {
	return Options{
		Title:          "Data Viz w/ SAEs",
		Width:          1000,
		Height:         1000,
		SliderFloor:    5,
		SliderFallback: 100,
		ZoomThresholdX: 5,
		ZoomThresholdY: 5,
	}
}

// templateData holds data for the HTML template.
type templateData struct {
	Title       string
	ScriptSrc   string
	Width       int
	Height      int
	Slider      Slider
	Placeholder template.HTML
	APIBase     string
	ClientJS    template.JS
	TableJSON   template.JS
	ConfigJSON  template.JS
}

type clientConfig struct {
	ChartTitle     string  `json:"chartTitle"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	ZoomThresholdX float64 `json:"zoomThresholdX"`
	ZoomThresholdY float64 `json:"zoomThresholdY"`
	Placeholder    string  `json:"placeholder"`
	FillColor      string  `json:"fillColor"`
	SelectColor    string  `json:"selectColor"`
}

// GeneratePage renders the self-contained interactive page for a dataset.
func GeneratePage(d *bubble.Dataset, opts Options) ([]byte, error) {
	if d == nil {
		return nil, fmt.Errorf("dataset cannot be nil")
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("invalid chart size %dx%d", opts.Width, opts.Height)
	}

	tableJSON, err := json.Marshal(d.Table())
	if err != nil {
		return nil, fmt.Errorf("encode table: %w", err)
	}
	cfgJSON, err := json.Marshal(clientConfig{
		ChartTitle:     ChartTitle,
		Width:          opts.Width,
		Height:         opts.Height,
		ZoomThresholdX: opts.ZoomThresholdX,
		ZoomThresholdY: opts.ZoomThresholdY,
		Placeholder:    PlaceholderHTML,
		FillColor:      colormap.Hex(colormap.Categorical.AtIndex(0)),
		SelectColor:    colormap.Hex(colormap.Reds.At(1)),
	})
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}

	data := templateData{
		Title:       opts.Title,
		ScriptSrc:   plotlyCDN,
		Width:       opts.Width,
		Height:      opts.Height,
		Slider:      SliderRange(d.Counts(), opts.SliderFloor, opts.SliderFallback),
		Placeholder: template.HTML(PlaceholderHTML),
		APIBase:     opts.APIBase,
		ClientJS:    template.JS(clientScript),
		TableJSON:   template.JS(tableJSON),
		ConfigJSON:  template.JS(cfgJSON),
	}

	var buf bytes.Buffer
	if err := compiledTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

const pageTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <script src="{{.ScriptSrc}}"></script>
  <style>
    body {
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif;
      margin: 0;
      padding: 16px 24px;
    }
    h1 {
      font-size: 28px;
      margin: 0 0 16px 0;
    }
    .layout {
      display: flex;
      align-items: flex-start;
    }
    .slider label {
      display: block;
      font-size: 13px;
      margin-bottom: 4px;
    }
    .slider input {
      width: 400px;
    }
    #detail {
      width: 400px;
      min-height: 200px;
      margin-left: 20px;
      font-size: 12px;
    }
    .api {
      font-size: 11px;
      color: #888;
      margin-top: 8px;
    }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="layout">
    <div>
      <div class="slider">
        <label for="threshold">{{.Slider.Title}}: <span id="threshold-value">{{.Slider.Value}}</span></label>
        <input type="range" id="threshold" min="{{.Slider.Start}}" max="{{.Slider.End}}" step="{{.Slider.Step}}" value="{{.Slider.Value}}">
      </div>
      <div id="chart" style="width: {{.Width}}px; height: {{.Height}}px;"></div>
      {{if .APIBase}}<div class="api">JSON: <a href="{{.APIBase}}/api/bubbles">{{.APIBase}}/api/bubbles</a></div>{{end}}
    </div>
    <div id="detail">{{.Placeholder}}</div>
  </div>
  <script>{{.ClientJS}}</script>
  <script>
    const fullData = {{.TableJSON}};
    const cfg = {{.ConfigJSON}};

    let source = filterTable(fullData, -Infinity);
    let selected = -1;
    let showLabels = false;

    function trace() {
      const colors = source.x.map((_, i) => i === selected ? cfg.selectColor : cfg.fillColor);
      return {
        type: 'scatter',
        mode: traceMode(showLabels),
        x: source.x,
        y: source.y,
        text: source.truncated,
        textposition: 'top right',
        customdata: source.text.map((t, i) => [t, source.number[i]]),
        hovertemplate: 'Text: %{customdata[0]}<br>Number: %{customdata[1]}<extra></extra>',
        marker: {
          size: source.size,
          sizemode: 'diameter',
          color: colors,
          opacity: 0.6,
          line: { color: 'black', width: 1 }
        }
      };
    }

    const layout = {
      title: cfg.chartTitle,
      width: cfg.width,
      height: cfg.height,
      dragmode: 'pan',
      hovermode: 'closest',
      showlegend: false
    };
    const plotConfig = {
      scrollZoom: true,
      modeBarButtonsToAdd: ['zoom2d', 'pan2d', 'resetScale2d']
    };

    const chart = document.getElementById('chart');
    const detail = document.getElementById('detail');

    function redraw() {
      Plotly.react(chart, [trace()], chart.layout || layout, plotConfig);
      detail.innerHTML = detailHTML(rowOf(source, selected), cfg.placeholder);
    }

    function updateLabels() {
      const visible = labelsVisible(chart.layout.xaxis.range, chart.layout.yaxis.range,
        cfg.zoomThresholdX, cfg.zoomThresholdY);
      if (visible !== showLabels) {
        showLabels = visible;
        redraw();
      }
    }

    Plotly.newPlot(chart, [trace()], layout, plotConfig).then(() => {
      chart.on('plotly_relayout', updateLabels);
      chart.on('plotly_click', ev => {
        selected = ev.points.length > 0 ? ev.points[0].pointIndex : -1;
        redraw();
      });
      chart.on('plotly_doubleclick', () => {
        selected = -1;
        redraw();
      });
    });

    const slider = document.getElementById('threshold');
    slider.addEventListener('input', () => {
      document.getElementById('threshold-value').textContent = slider.value;
      source = filterTable(fullData, Number(slider.value));
      selected = -1;
      redraw();
    });
  </script>
</body>
</html>`
