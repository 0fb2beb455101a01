package ttyfeed

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"

	"github.com/karfly/ball-satisfaction/internal/geom"
	"github.com/karfly/ball-satisfaction/internal/render"
)

const (
	DefaultUnit = 8.0 // world units per text row
	drawHz      = 30

	ringGlyph   = '▓'
	ballGlyph   = '●'
	boundsGlyph = '·'
)

// projection maps world coordinates (origin center, +y up) onto screen
// cells (origin top-left, +y down). Terminal cells are roughly twice as
// tall as they are wide, so columns get double the scale to keep the ring
// round.
type projection struct {
	unit   float64 // world units per row
	cx, cy int     // screen cell of the world origin
}

func (p projection) cell(x, y float64) (int, int) {
	col := p.cx + int(math.Round(2*x/p.unit))
	row := p.cy - int(math.Round(y/p.unit))
	return col, row
}

// Viewer draws feed frames on a tcell screen and forwards terminal events.
// It owns no simulation state; a resize only reports the terminal's new
// world extent through the viewport callback.
type Viewer struct {
	screen tcell.Screen
	feed   *Feed
	unit   float64
	log    *zap.Logger

	onViewport func(w, h float64)
}

// NewViewer wraps an initialized screen. unit is how many world units one
// text row spans; zero picks a default.
func NewViewer(screen tcell.Screen, feed *Feed, unit float64, log *zap.Logger) *Viewer {
	if unit <= 0 {
		unit = DefaultUnit
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Viewer{
		screen: screen,
		feed:   feed,
		unit:   unit,
		log:    log,
	}
}

// SetOnViewport registers the resize callback. It receives the terminal's
// world-unit extent and runs on the viewer goroutine; set it before Run.
func (v *Viewer) SetOnViewport(fn func(w, h float64)) {
	v.onViewport = fn
}

// Run draws at a fixed rate until the viewer quits (q, Esc, Ctrl-C) or ctx
// is cancelled. The caller finalizes the screen after Run returns, which
// also stops the event poll goroutine.
func (v *Viewer) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second / drawHz)
	defer ticker.Stop()

	events := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := v.screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	v.pushViewport()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			if !v.handleEvent(ev) {
				return
			}
		case <-ticker.C:
			v.Draw()
		}
	}
}

func (v *Viewer) handleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
			return false
		}
		if ev.Key() == tcell.KeyRune && (ev.Rune() == 'q' || ev.Rune() == 'Q') {
			return false
		}
	case *tcell.EventResize:
		v.screen.Sync()
		v.pushViewport()
	}
	return true
}

func (v *Viewer) pushViewport() {
	if v.onViewport == nil {
		return
	}
	cols, rows := v.screen.Size()
	w, h := v.worldExtent(cols, rows)
	v.onViewport(w, h)
	v.log.Debug("terminal viewport",
		zap.Int("cols", cols),
		zap.Int("rows", rows),
		zap.Float64("world_w", w),
		zap.Float64("world_h", h))
}

// worldExtent converts a terminal size to the world rectangle it shows.
func (v *Viewer) worldExtent(cols, rows int) (float64, float64) {
	return float64(cols) * v.unit / 2, float64(rows) * v.unit
}

// Draw renders the newest frame. Run calls it on its ticker; tests call it
// directly.
func (v *Viewer) Draw() {
	frame, flashes := v.feed.Snapshot()

	s := v.screen
	s.Clear()
	cols, rows := s.Size()
	p := projection{unit: v.unit, cx: cols / 2, cy: rows / 2}

	if frame == nil {
		drawText(s, 0, 0, tcell.StyleDefault, "waiting for first frame  [q] quit")
		s.Show()
		return
	}

	for i := range frame.Entities {
		v.drawEntity(p, &frame.Entities[i])
	}
	for _, fx := range flashes {
		v.drawFlash(p, fx)
	}
	v.drawHUD(frame)
	s.Show()
}

func (v *Viewer) drawEntity(p projection, e *render.EntityState) {
	switch e.Class {
	case "ring":
		v.drawRing(p, e)
	case "ball":
		style := tcell.StyleDefault.Foreground(tcell.ColorWhite)
		if c, ok := parseHexColor(e.Color); ok {
			style = tcell.StyleDefault.Foreground(c)
		}
		col, row := p.cell(e.X, e.Y)
		v.screen.SetContent(col, row, ballGlyph, nil, style)
	case "bounds":
		v.drawBounds(p, e)
	}
}

// drawRing samples the wall band, skipping the gap arc. Sample angles are
// ring-local so the gap test needs no unwrapping; only the plotted point
// is rotated into world space.
func (v *Viewer) drawRing(p projection, e *render.EntityState) {
	if e.GapWidth >= 2*math.Pi {
		return
	}
	style := tcell.StyleDefault.Foreground(tcell.ColorSilver)
	gapStart := geom.NormAngle(e.GapCenter - e.GapWidth/2)
	gapEnd := geom.NormAngle(e.GapCenter + e.GapWidth/2)

	const samples = 720
	for i := 0; i < samples; i++ {
		local := 2 * math.Pi * float64(i) / samples
		if e.GapWidth > 0 && geom.InArc(local, gapStart, gapEnd) {
			continue
		}
		pt := geom.Polar(local+e.Rot, e.RingRadius)
		col, row := p.cell(pt.X, pt.Y)
		v.screen.SetContent(col, row, ringGlyph, nil, style)
	}
}

func (v *Viewer) drawBounds(p projection, e *render.EntityState) {
	style := tcell.StyleDefault.Foreground(tcell.ColorGray)
	left, top := p.cell(-e.W/2, e.H/2)
	right, bottom := p.cell(e.W/2, -e.H/2)
	for col := left; col <= right; col++ {
		v.screen.SetContent(col, top, boundsGlyph, nil, style)
		v.screen.SetContent(col, bottom, boundsGlyph, nil, style)
	}
	for row := top; row <= bottom; row++ {
		v.screen.SetContent(left, row, boundsGlyph, nil, style)
		v.screen.SetContent(right, row, boundsGlyph, nil, style)
	}
}

func (v *Viewer) drawFlash(p projection, fx render.Effect) {
	var (
		glyph rune
		color tcell.Color
	)
	switch fx.Kind {
	case "spawn":
		glyph, color = '+', tcell.ColorGreen
	case "escape":
		glyph, color = '*', tcell.ColorYellow
	case "kill":
		glyph, color = 'x', tcell.ColorRed
	case "touch":
		glyph, color = '~', tcell.ColorPurple
	default:
		return
	}
	col, row := p.cell(fx.X, fx.Y)
	v.screen.SetContent(col, row, glyph, nil, tcell.StyleDefault.Foreground(color))
}

func (v *Viewer) drawHUD(frame *render.Frame) {
	hud := fmt.Sprintf("step %d  t %.2fs  live %d  spawned %d  escaped %d  killed %d  [q] quit",
		frame.Step, frame.Time,
		frame.Stats.Live, frame.Stats.Spawned, frame.Stats.Escaped, frame.Stats.Killed)
	drawText(v.screen, 0, 0, tcell.StyleDefault.Foreground(tcell.ColorWhite), hud)
}

func drawText(s tcell.Screen, x, y int, style tcell.Style, text string) {
	for _, r := range text {
		s.SetContent(x, y, r, nil, style)
		x++
	}
}

// parseHexColor parses "#rrggbb" ball colors.
func parseHexColor(s string) (tcell.Color, bool) {
	if len(s) != 7 || s[0] != '#' {
		return 0, false
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return 0, false
	}
	return tcell.NewRGBColor(int32(v>>16&0xff), int32(v>>8&0xff), int32(v&0xff)), true
}
