package render

import (
	"fmt"
	"io"

	"github.com/KaramelBytes/trendmerge/internal/axis"
	"github.com/KaramelBytes/trendmerge/internal/export"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

const (
	chartWidth  = 14 * vg.Inch
	chartHeight = 8 * vg.Inch
)

var timeTicks = plot.TimeTicks{Format: "01/02 15:04"}

// WritePNG draws the primary traces in one panel and, when a setpoint is
// assigned, the secondary trace in a panel below sharing the time range.
func WritePNG(w io.Writer, asm *export.Assembly, opt Options) error {
	primary := newPanel(opt.title(), asm.TimeColumn)
	panels := []*plot.Plot{primary}

	var secondary *plot.Plot
	if name, ok := asm.Secondary(); ok {
		secondary = newPanel("", asm.TimeColumn)
		secondary.Y.Label.Text = name
		panels = append(panels, secondary)
	}

	for i, tr := range asm.Traces {
		xys := points(tr)
		if len(xys) == 0 {
			continue
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return fmt.Errorf("trace %q: %w", tr.Name, err)
		}
		line.Color = plotutil.Color(i)
		target := primary
		if tr.Axis == axis.Secondary && secondary != nil {
			target = secondary
		}
		target.Add(line)
		target.Legend.Add(tr.Name, line)
	}
	// Add widens the ranges, so the fixed primary range goes on afterwards.
	if opt.Y1Max > opt.Y1Min {
		primary.Y.Min, primary.Y.Max = opt.Y1Min, opt.Y1Max
	}
	if secondary != nil && primary.X.Min < primary.X.Max {
		secondary.X.Min, secondary.X.Max = primary.X.Min, primary.X.Max
	}

	img := vgimg.New(chartWidth, chartHeight)
	dc := draw.New(img)
	rows := make([][]*plot.Plot, len(panels))
	for i, p := range panels {
		rows[i] = []*plot.Plot{p}
	}
	tiles := draw.Tiles{
		Rows:      len(panels),
		Cols:      1,
		PadY:      vg.Millimeter,
		PadTop:    vg.Millimeter,
		PadBottom: vg.Millimeter,
		PadLeft:   vg.Millimeter,
		PadRight:  vg.Millimeter,
	}
	canvases := plot.Align(rows, tiles, dc)
	for i, p := range panels {
		p.Draw(canvases[i][0])
	}
	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(w); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

func newPanel(title, timeLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = timeLabel
	p.X.Tick.Marker = timeTicks
	p.Legend.Top = true
	p.Legend.Left = true
	p.Legend.Padding = vg.Points(5)
	p.Add(plotter.NewGrid())
	return p
}

// points drops absent cells; plotter rejects NaN.
func points(tr export.Trace) plotter.XYs {
	out := make(plotter.XYs, 0, len(tr.Y))
	for i, y := range tr.Y {
		if y == nil {
			continue
		}
		out = append(out, plotter.XY{X: float64(tr.X[i].Unix()), Y: *y})
	}
	return out
}
