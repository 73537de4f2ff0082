package pipeline

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

const (
	boxThickness = 2
	labelHeight  = 35
	labelPadding = 6
	labelScale   = 1.0
)

var (
	boxColor   = color.RGBA{R: 255, A: 255}
	labelColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// ScaleBox maps a box found on a 1/factor frame back to full resolution.
func ScaleBox(r image.Rectangle, factor int) image.Rectangle {
	if factor <= 1 {
		return r
	}
	return image.Rect(r.Min.X*factor, r.Min.Y*factor, r.Max.X*factor, r.Max.Y*factor)
}

// DrawDetections draws a box per face with its label in a filled band along
// the bottom edge of the box.
func DrawDetections(mat *gocv.Mat, detections []Detection) error {
	for _, d := range detections {
		box := d.Box
		if box.Empty() {
			continue
		}

		if err := gocv.Rectangle(mat, box, boxColor, boxThickness); err != nil {
			return fmt.Errorf("failed to draw face box: %w", err)
		}

		band := image.Rect(box.Min.X, box.Max.Y-labelHeight, box.Max.X, box.Max.Y)
		if err := gocv.Rectangle(mat, band, boxColor, -1); err != nil {
			return fmt.Errorf("failed to draw label band: %w", err)
		}

		origin := image.Pt(box.Min.X+labelPadding, box.Max.Y-labelPadding)
		if err := gocv.PutText(mat, d.Label, origin, gocv.FontHersheyDuplex, labelScale, labelColor, 1); err != nil {
			return fmt.Errorf("failed to draw label: %w", err)
		}
	}
	return nil
}
