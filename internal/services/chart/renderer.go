package chart

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"

	"CoinPulse/internal/domain/models"
	domsvc "CoinPulse/internal/domain/service"
	"CoinPulse/pkg/util"

	"github.com/fogleman/gg"
	"gonum.org/v1/gonum/floats"
)

const (
	Width  = 800
	Height = 400

	// LabelBudget caps the number of date labels on the x axis.
	LabelBudget = 6

	gridLines = 5
	padLeft   = 70.0
	padRight  = 30.0
	padTop    = 50.0
	padBottom = 50.0
)

var ErrNoPoints = errors.New("chart: no points")

// Renderer draws smoothed area charts as PNG.
type Renderer struct{}

func NewRenderer() *Renderer { return &Renderer{} }

var _ domsvc.ChartRenderer = (*Renderer)(nil)

type plot struct {
	dc             *gg.Context
	min, valueSpan float64
	n              int
}

func (p plot) x(i int) float64 {
	w := Width - padLeft - padRight
	if p.n == 1 {
		return padLeft + w/2
	}
	return padLeft + float64(i)*w/float64(p.n-1)
}

func (p plot) y(v float64) float64 {
	h := Height - padTop - padBottom
	return padTop + h - (v-p.min)/p.valueSpan*h
}

// Render draws points on a fixed canvas. A flat series is drawn mid-range;
// a single point is drawn as a marker only.
func (r *Renderer) Render(points []models.ChartPoint, title, hex string) ([]byte, error) {
	if len(points) == 0 {
		return nil, ErrNoPoints
	}
	line, err := parseHex(hex)
	if err != nil {
		return nil, err
	}

	values := make([]float64, len(points))
	for i, pt := range points {
		values[i] = pt.Value
	}
	lo, hi := floats.Min(values), floats.Max(values)
	span := hi - lo
	if span == 0 {
		span = 1
		lo -= 0.5
	}

	dc := gg.NewContext(Width, Height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	p := plot{dc: dc, min: lo, valueSpan: span, n: len(points)}

	drawTitle(dc, title)
	drawGrid(p)
	drawDateLabels(p, points)

	if len(points) > 1 {
		smoothPath(p, values)
		dc.LineTo(p.x(len(values)-1), Height-padBottom)
		dc.LineTo(p.x(0), Height-padBottom)
		dc.ClosePath()
		dc.SetRGBA(line.r, line.g, line.b, 0.18)
		dc.Fill()

		smoothPath(p, values)
		dc.SetRGB(line.r, line.g, line.b)
		dc.SetLineWidth(2.5)
		dc.Stroke()
	}

	dc.SetRGB(line.r, line.g, line.b)
	for i, v := range values {
		dc.DrawCircle(p.x(i), p.y(v), 3)
		dc.Fill()
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func drawTitle(dc *gg.Context, title string) {
	dc.SetRGB(0.12, 0.16, 0.22)
	dc.DrawStringAnchored(title, Width/2, padTop/2, 0.5, 0.5)
}

func drawGrid(p plot) {
	dc := p.dc
	dc.SetLineWidth(1)
	for i := 0; i <= gridLines; i++ {
		v := p.min + p.valueSpan*float64(i)/gridLines
		y := p.y(v)
		dc.SetColor(color.RGBA{R: 229, G: 231, B: 235, A: 255})
		dc.DrawLine(padLeft, y, Width-padRight, y)
		dc.Stroke()
		dc.SetRGB(0.42, 0.45, 0.5)
		dc.DrawStringAnchored(util.Abbreviate(v), padLeft-8, y, 1, 0.5)
	}
}

func drawDateLabels(p plot, points []models.ChartPoint) {
	p.dc.SetRGB(0.42, 0.45, 0.5)
	for _, i := range LabelIndices(len(points), LabelBudget) {
		p.dc.DrawStringAnchored(points[i].Date.Format("Jan 02"), p.x(i), Height-padBottom+18, 0.5, 0.5)
	}
}

// smoothPath traces a cubic Bezier through the values with horizontal
// tangents at every point.
func smoothPath(p plot, values []float64) {
	dc := p.dc
	dc.NewSubPath()
	dc.MoveTo(p.x(0), p.y(values[0]))
	for i := 1; i < len(values); i++ {
		x0, y0 := p.x(i-1), p.y(values[i-1])
		x1, y1 := p.x(i), p.y(values[i])
		mid := x0 + (x1-x0)/2
		dc.CubicTo(mid, y0, mid, y1, x1, y1)
	}
}

// LabelIndices picks every ceil(n/budget)-th index so at most budget labels
// are drawn.
func LabelIndices(n, budget int) []int {
	if n <= 0 || budget <= 0 {
		return nil
	}
	step := (n + budget - 1) / budget
	out := make([]int, 0, budget)
	for i := 0; i < n; i += step {
		out = append(out, i)
	}
	return out
}

type rgb struct{ r, g, b float64 }

func parseHex(s string) (rgb, error) {
	if s == "" {
		s = "#3b82f6"
	}
	if s[0] == '#' {
		s = s[1:]
	}
	if len(s) != 6 {
		return rgb{}, fmt.Errorf("chart: invalid color %q", s)
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
		return rgb{}, fmt.Errorf("chart: invalid color %q: %w", s, err)
	}
	return rgb{float64(r) / 255, float64(g) / 255, float64(b) / 255}, nil
}
