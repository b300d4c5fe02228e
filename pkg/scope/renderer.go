package scope

import (
	"image/color"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"github.com/chewxy/math32"
)

const (
	marginLeft   = float32(50)
	marginRight  = float32(10)
	marginTop    = float32(22)
	marginBottom = float32(22)

	maxHLines = 6
	maxVLines = 10
)

var (
	gridColor  = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	labelColor = color.RGBA{R: 150, G: 150, B: 150, A: 255}
)

// scopeRenderer renders the scope widget.
type scopeRenderer struct {
	scope *ScopeWidget

	background *canvas.Rectangle
	titleText  *canvas.Text

	// Objects list for Fyne
	objects []fyne.CanvasObject

	// Track last size to detect changes
	lastSize fyne.Size
}

// plotArea maps data coordinates to widget coordinates.
type plotArea struct {
	x, y, w, h             float32
	xMin, xMax, yMin, yMax float32
}

func (p plotArea) pos(x, y float32) fyne.Position {
	px := p.x + (x-p.xMin)/(p.xMax-p.xMin)*p.w
	py := p.y + p.h - (y-p.yMin)/(p.yMax-p.yMin)*p.h
	// Keep out-of-range points on the plot edge
	px = math32.Min(math32.Max(px, p.x), p.x+p.w)
	py = math32.Min(math32.Max(py, p.y), p.y+p.h)
	return fyne.NewPos(px, py)
}

// MinSize returns the minimum size of the widget.
func (r *scopeRenderer) MinSize() fyne.Size {
	return fyne.NewSize(300, 160)
}

// Layout arranges the widget components.
func (r *scopeRenderer) Layout(size fyne.Size) {
	r.background.Resize(size)

	if r.lastSize != size {
		r.lastSize = size
		r.scope.BaseWidget.Refresh()
	}
}

// Refresh rebuilds the grid and trace from the current data.
func (r *scopeRenderer) Refresh() {
	r.scope.mu.RLock()
	xs := append([]float32(nil), r.scope.xs...)
	ys := append([]float32(nil), r.scope.ys...)
	title := r.scope.titleLocked()
	traceColor := r.scope.color
	area := plotArea{
		xMin: r.scope.xMin,
		xMax: r.scope.xMax,
		yMin: r.scope.yMin,
		yMax: r.scope.yMax,
	}
	r.scope.mu.RUnlock()

	r.titleText.Text = title
	r.titleText.Move(fyne.NewPos(marginLeft, 3))
	r.objects = []fyne.CanvasObject{r.background, r.titleText}

	size := r.scope.Size()
	if size.Width == 0 || size.Height == 0 {
		return
	}

	area.x = marginLeft
	area.y = marginTop
	area.w = size.Width - marginLeft - marginRight
	area.h = size.Height - marginTop - marginBottom
	if area.w <= 0 || area.h <= 0 {
		return
	}

	r.drawGrid(area)
	r.drawTrace(area, xs, ys, traceColor)
	canvas.Refresh(r.titleText)
}

func (r *scopeRenderer) drawGrid(a plotArea) {
	// Horizontal lines (value)
	step := gridStep(a.yMax-a.yMin, maxHLines)
	for v := math32.Ceil(a.yMin/step) * step; v <= a.yMax; v += step {
		p := a.pos(a.xMin, v)
		r.addLine(fyne.NewPos(a.x, p.Y), fyne.NewPos(a.x+a.w, p.Y), gridColor, 1)
		r.addLabel(formatValue(v, step), fyne.NewPos(a.x-4, p.Y-7), fyne.TextAlignTrailing)
	}

	// Vertical lines (tick)
	step = gridStep(a.xMax-a.xMin, maxVLines)
	for v := math32.Ceil(a.xMin/step) * step; v <= a.xMax; v += step {
		p := a.pos(v, a.yMin)
		r.addLine(fyne.NewPos(p.X, a.y), fyne.NewPos(p.X, a.y+a.h), gridColor, 1)
		r.addLabel(formatValue(v, step), fyne.NewPos(p.X, a.y+a.h+3), fyne.TextAlignCenter)
	}
}

func (r *scopeRenderer) drawTrace(a plotArea, xs, ys []float32, c color.Color) {
	if len(xs) < 2 || len(xs) != len(ys) {
		return
	}
	prev := a.pos(xs[0], ys[0])
	for i := 1; i < len(xs); i++ {
		p := a.pos(xs[i], ys[i])
		r.addLine(prev, p, c, 1.5)
		prev = p
	}
}

func (r *scopeRenderer) addLine(p1, p2 fyne.Position, c color.Color, width float32) {
	line := canvas.NewLine(c)
	line.Position1 = p1
	line.Position2 = p2
	line.StrokeWidth = width
	r.objects = append(r.objects, line)
}

func (r *scopeRenderer) addLabel(text string, pos fyne.Position, align fyne.TextAlign) {
	label := canvas.NewText(text, labelColor)
	label.TextSize = 10
	label.Alignment = align
	label.Move(pos)
	r.objects = append(r.objects, label)
}

// Objects returns all canvas objects for rendering.
func (r *scopeRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

// Destroy cleans up resources.
func (r *scopeRenderer) Destroy() {}

// formatValue prints v with as many decimals as step needs.
func formatValue(v, step float32) string {
	decimals := 0
	if step < 1 {
		decimals = int(math32.Ceil(-math32.Log10(step)))
	}
	if math32.Abs(v) < step/1000 {
		v = 0
	}
	return strconv.FormatFloat(float64(v), 'f', decimals, 32)
}
