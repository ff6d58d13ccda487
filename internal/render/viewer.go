package render

import (
	"fmt"
	"html/template"
	"io"

	"github.com/KaramelBytes/trendmerge/internal/export"
)

const plotlyCDN = "https://cdn.plot.ly/plotly-2.35.2.min.js"

var viewerTemplate = template.Must(template.New("viewer").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
{{if .PlotlyJS}}<script>{{.PlotlyJS}}</script>{{else}}<script src="{{.PlotlyURL}}"></script>{{end}}
<style>
  body { margin: 0; font-family: system-ui, sans-serif; }
  #chart { width: 100%; height: 800px; }
</style>
</head>
<body>
<div id="chart"></div>
<script>
const model = {{.Model}};
const traces = model.traces.map(t => ({
  x: t.x, y: t.y, name: t.name, yaxis: t.yaxis,
  type: "scatter", mode: "lines", connectgaps: false,
  hovertemplate: t.name + ": %{y:.2f}<extra></extra>"
}));
const layout = {
  title: model.title,
  xaxis: { title: model.timeColumn, type: "date", rangeslider: { visible: true },
           showspikes: true, spikemode: "across", spikesnap: "cursor" },
  yaxis: model.y1Range ? { title: "Percent", range: model.y1Range } : { title: "Percent", autorange: true },
  yaxis2: { title: model.y2Title, overlaying: "y", side: "right", showgrid: false, autorange: true },
  legend: { orientation: "h", yanchor: "bottom", y: 1.02, xanchor: "left", x: 0 },
  margin: { l: 60, r: 80, t: 60, b: 40 },
  hovermode: "x unified",
  hoverdistance: 30,
  height: 800
};
Plotly.newPlot("chart", traces, layout, { responsive: true });
</script>
</body>
</html>
`))

type viewerTrace struct {
	Name  string     `json:"name"`
	YAxis string     `json:"yaxis"`
	X     []string   `json:"x"`
	Y     []*float64 `json:"y"`
}

type viewerModel struct {
	Title      string        `json:"title"`
	TimeColumn string        `json:"timeColumn"`
	Y1Range    []float64     `json:"y1Range,omitempty"`
	Y2Title    string        `json:"y2Title"`
	Traces     []viewerTrace `json:"traces"`
}

// WriteHTML writes a standalone interactive trend viewer. The setpoint trace,
// if any, is drawn against a right-hand axis.
func WriteHTML(w io.Writer, asm *export.Assembly, opt Options) error {
	model := viewerModel{
		Title:      opt.title(),
		TimeColumn: asm.TimeColumn,
		Y2Title:    "Setpoint",
	}
	if opt.Y1Max > opt.Y1Min {
		model.Y1Range = []float64{opt.Y1Min, opt.Y1Max}
	}
	if name, ok := asm.Secondary(); ok {
		model.Y2Title = name
	}
	for _, tr := range asm.Traces {
		vt := viewerTrace{Name: tr.Name, YAxis: tr.Axis.String(), X: make([]string, len(tr.X)), Y: tr.Y}
		for i, ts := range tr.X {
			vt.X[i] = ts.Format(export.TimeLayout)
		}
		model.Traces = append(model.Traces, vt)
	}
	data := struct {
		Title     string
		PlotlyURL string
		PlotlyJS  template.JS
		Model     viewerModel
	}{Title: model.Title, PlotlyURL: plotlyCDN, PlotlyJS: template.JS(opt.PlotlyJS), Model: model}
	if err := viewerTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("execute viewer template: %w", err)
	}
	return nil
}
