package scope

import (
	"fmt"
	"image/color"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
)

const (
	defaultMaxDisplayPoints = 600
	// minVoltageSpan keeps a flat trace from filling the plot with noise.
	minVoltageSpan = 1
)

// ScopeWidget is a strip chart of one series against the tick axis.
// The title shows the newest value.
type ScopeWidget struct {
	widget.BaseWidget

	title string
	unit  string
	color color.Color

	// Data (protected by mu)
	mu      sync.RWMutex
	xs, ys  []float32
	latest  float64
	hasData bool

	// Auto-scaling
	yMin, yMax float32
	xMin, xMax float32

	maxDisplayPoints int
}

// New creates a scope titled title whose values are in unit, drawn in c.
func New(title, unit string, c color.Color) *ScopeWidget {
	s := &ScopeWidget{
		title:            title,
		unit:             unit,
		color:            c,
		yMin:             0,
		yMax:             1,
		xMax:             1,
		maxDisplayPoints: defaultMaxDisplayPoints,
	}
	s.ExtendBaseWidget(s)
	s.Refresh()
	return s
}

// UpdateData replaces the plotted series. x and y must have the same length;
// the last element of y is shown in the title.
// Call it from the UI goroutine (fyne.Do).
func (s *ScopeWidget) UpdateData(x, y []float64) {
	if len(x) != len(y) {
		return
	}

	s.mu.Lock()
	s.xs = Downsample(s.xs, x, s.maxDisplayPoints)
	s.ys = Downsample(s.ys, y, s.maxDisplayPoints)
	s.hasData = len(y) > 0
	if s.hasData {
		s.latest = y[len(y)-1]
		s.xMin, s.xMax = s.xs[0], s.xs[len(s.xs)-1]
		if s.xMax <= s.xMin {
			s.xMax = s.xMin + 1
		}
	}
	s.yMin, s.yMax = autoScale(s.ys, minVoltageSpan)
	s.mu.Unlock()

	s.Refresh()
}

// Title returns the chart title including the newest value.
func (s *ScopeWidget) Title() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.titleLocked()
}

func (s *ScopeWidget) titleLocked() string {
	if !s.hasData {
		return s.title
	}
	return fmt.Sprintf("%s: %.2f %s", s.title, s.latest, s.unit)
}

// CreateRenderer creates the widget renderer.
func (s *ScopeWidget) CreateRenderer() fyne.WidgetRenderer {
	background := canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255})
	title := canvas.NewText(s.title, color.RGBA{R: 220, G: 220, B: 220, A: 255})
	title.TextSize = 12
	title.TextStyle = fyne.TextStyle{Bold: true}
	return &scopeRenderer{
		scope:      s,
		background: background,
		titleText:  title,
		objects:    []fyne.CanvasObject{background, title},
	}
}
