package ai

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Label text is anchored this far right of and below the box corner.
const (
	labelOffsetX = 5
	labelOffsetY = 15
)

// Annotate returns a copy of img with every detection drawn in the given style.
func Annotate(img image.Image, detections []Detection, style Style) *image.NRGBA {
	canvas := imaging.Clone(img)

	for _, det := range detections {
		drawRect(canvas, det.Box.Rect(), style)

		if style.ShowLabels {
			drawLabel(canvas, det, style)
		}
	}

	return canvas
}

// LabelText formats the caption drawn next to a box.
func LabelText(det Detection) string {
	return fmt.Sprintf("%s: %.2f", det.Label, det.Confidence)
}

// drawRect draws an outline growing inwards from r. Pixels outside the
// canvas are skipped by Set.
func drawRect(canvas *image.NRGBA, r image.Rectangle, style Style) {
	thickness := style.Thickness
	if thickness < 1 {
		thickness = 1
	}

	for i := 0; i < thickness; i++ {
		x1, y1, x2, y2 := r.Min.X+i, r.Min.Y+i, r.Max.X-i, r.Max.Y-i
		if x1 > x2 || y1 > y2 {
			break
		}
		for x := x1; x <= x2; x++ {
			canvas.Set(x, y1, style.Color)
			canvas.Set(x, y2, style.Color)
		}
		for y := y1; y <= y2; y++ {
			canvas.Set(x1, y, style.Color)
			canvas.Set(x2, y, style.Color)
		}
	}
}

func drawLabel(canvas *image.NRGBA, det Detection, style Style) {
	origin := det.Box.Rect().Min
	d := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(style.Color),
		Face: basicfont.Face7x13,
	}

	text := LabelText(det)
	// Second pass one pixel over gives the caption a bold stroke.
	for dx := 0; dx < 2; dx++ {
		d.Dot = fixed.P(origin.X+labelOffsetX+dx, origin.Y+labelOffsetY)
		d.DrawString(text)
	}
}
