// Package tray draws the glucose panel and pushes it to the system tray
package tray

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"runtime"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/mrcode/glucose-widget/internal/app"
	"github.com/mrcode/glucose-widget/internal/display"
	"github.com/mrcode/glucose-widget/internal/models"
)

// DefaultPanelSize is the edge of the square panel image in pixels
const DefaultPanelSize = 64

const osWindows = "windows"

// Panel state colours
var stateColors = map[string]string{
	models.StateOK:       "#4ade80",
	models.StateWarning:  "#facc15",
	models.StateCritical: "#ef4444",
	models.StateFrozen:   "#9ca3af",
}

const unknownStateColor = "#808080"

// Panel renders views into small square images
type Panel struct {
	size      int
	valueFace font.Face
}

// NewPanel creates a renderer for size x size images
func NewPanel(size int) (*Panel, error) {
	if size <= 0 {
		size = DefaultPanelSize
	}
	ttf, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}
	return &Panel{
		size:      size,
		valueFace: truetype.NewFace(ttf, &truetype.Options{Size: float64(size) * 0.5}),
	}, nil
}

// Image draws view: the value on top, the trend arrow below and the
// history as a faint sparkline behind both
func (p *Panel) Image(view app.View) image.Image {
	size := float64(p.size)
	dc := gg.NewContext(p.size, p.size)

	dc.SetRGBA(0, 0, 0, 0)
	dc.Clear()

	r, g, b := parseHexColor(stateColor(view.State))
	dc.SetRGB255(int(r), int(g), int(b))
	dc.DrawRoundedRectangle(0, 0, size, size, size/4)
	dc.Fill()

	ink := inkFor(r, g, b)

	drawSparkline(dc, view.Values, view.Thresholds, ink, size)

	dc.SetColor(ink)
	dc.SetFontFace(p.valueFace)
	dc.DrawStringAnchored(view.Record.Last, size/2, size/2-size*0.19, 0.5, 0.5)

	if view.Error == "" || view.State != models.StateFrozen {
		drawArrow(dc, size/2, size-size/4, size*0.375, view.Record.Trend)
	}

	return dc.Image()
}

// Encode renders view to the icon format the host tray expects
func (p *Panel) Encode(view app.View) ([]byte, error) {
	img := p.Image(view)
	if runtime.GOOS == osWindows {
		return imageToICO(img)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

// Label is the short text shown next to the tray icon
func Label(view app.View) string {
	label := view.Record.Last
	if view.Record.Trend != "" {
		label += " " + models.DirectionGlyph(view.Record.Trend)
	}
	if view.Record.Delta != "" {
		label += " " + view.Record.Delta
	}
	if view.ShowAge && view.Record.Last != "" {
		label += " (" + display.FormatAge(view.Record.AgeMinutes) + "m)"
	}
	if view.Error != "" {
		label = "⚠ " + label
	}
	return label
}

func stateColor(state string) string {
	if c, ok := stateColors[state]; ok {
		return c
	}
	return unknownStateColor
}

// inkFor picks black or white text for a background
func inkFor(r, g, b byte) color.Color {
	brightness := (int(r)*299 + int(g)*587 + int(b)*114) / 1000
	if brightness > 128 {
		return color.Black
	}
	return color.White
}

// drawSparkline plots values oldest to newest across the panel, scaled to
// include the target range so in-range history stays mid panel
func drawSparkline(dc *gg.Context, values []float64, bg models.Thresholds, ink color.Color, size float64) {
	if len(values) < 2 {
		return
	}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if bg.TargetBottom > 0 {
		lo = min(lo, bg.TargetBottom)
	}
	hi = max(hi, bg.TargetTop)
	span := hi - lo
	if span == 0 {
		span = 1
	}

	margin := size / 8
	step := (size - 2*margin) / float64(len(values)-1)
	y := func(v float64) float64 {
		return size - margin - (v-lo)/span*(size-2*margin)
	}

	r, g, b, _ := ink.RGBA()
	dc.SetRGBA(float64(r)/0xffff, float64(g)/0xffff, float64(b)/0xffff, 0.25)
	dc.SetLineWidth(size / 32)
	dc.MoveTo(margin, y(values[0]))
	for i, v := range values[1:] {
		dc.LineTo(margin+float64(i+1)*step, y(v))
	}
	dc.Stroke()
}

// arrowAngles maps trend labels to a rotation from pointing up, in degrees
var arrowAngles = map[string]float64{
	models.DirectionTripleUp:      0,
	models.DirectionDoubleUp:      0,
	models.DirectionSingleUp:      0,
	models.DirectionFortyFiveUp:   45,
	models.DirectionFlat:          90,
	models.DirectionFortyFiveDown: 135,
	models.DirectionSingleDown:    180,
	models.DirectionDoubleDown:    180,
	models.DirectionTripleDown:    180,
}

// arrowCount returns how many stacked heads a trend label draws
func arrowCount(direction string) int {
	switch direction {
	case models.DirectionTripleUp, models.DirectionTripleDown:
		return 3
	case models.DirectionDoubleUp, models.DirectionDoubleDown:
		return 2
	default:
		return 1
	}
}

// drawArrow draws the vector arrow for a trend label; unknown labels draw nothing
func drawArrow(dc *gg.Context, x, y, size float64, direction string) {
	angle, ok := arrowAngles[direction]
	if !ok {
		return
	}

	dc.Push()
	defer dc.Pop()

	dc.Translate(x, y)
	dc.Rotate(gg.Radians(angle))

	n := arrowCount(direction)
	if n == 1 {
		drawSingleArrow(dc, 0, 0, size)
		return
	}
	s := size * 0.8
	spacing := size / float64(n+1)
	for i := 0; i < n; i++ {
		drawSingleArrow(dc, 0, (float64(i)-float64(n-1)/2)*spacing, s)
	}
}

func drawSingleArrow(dc *gg.Context, ox, oy, s float64) {
	w := s * 0.5

	dc.NewSubPath()
	dc.MoveTo(ox, oy-s/2)
	dc.LineTo(ox+w/2, oy)
	dc.LineTo(ox+w/6, oy)
	dc.LineTo(ox+w/6, oy+s/2)
	dc.LineTo(ox-w/6, oy+s/2)
	dc.LineTo(ox-w/6, oy)
	dc.LineTo(ox-w/2, oy)
	dc.ClosePath()
	dc.Fill()
}

// parseHexColor parses a #rrggbb string
func parseHexColor(hex string) (r, g, b byte) {
	if len(hex) == 7 && hex[0] == '#' {
		_, _ = fmt.Sscanf(hex, "#%02x%02x%02x", &r, &g, &b)
	}
	return
}

// imageToICO wraps img as a single-entry ICO with embedded PNG data
func imageToICO(img image.Image) ([]byte, error) {
	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, img); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	pngData := pngBuf.Bytes()

	var buf bytes.Buffer
	// ICONDIR: reserved, type 1 (icon), one image
	_ = binary.Write(&buf, binary.LittleEndian, [3]uint16{0, 1, 1})

	bounds := img.Bounds()
	buf.WriteByte(icoDimension(bounds.Dx()))
	buf.WriteByte(icoDimension(bounds.Dy()))
	buf.WriteByte(0) // no palette
	buf.WriteByte(0)
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))  // planes
	_ = binary.Write(&buf, binary.LittleEndian, uint16(32)) // bits per pixel
	// #nosec G115 -- a panel PNG is far below 4 GiB
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pngData)))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(22)) // 6 byte header + 16 byte entry

	buf.Write(pngData)
	return buf.Bytes(), nil
}

// icoDimension encodes a width or height; 0 means 256
func icoDimension(n int) byte {
	if n >= 256 {
		return 0
	}
	return byte(n)
}
