package analyzer

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/geongi-im/yolo-traffic-monitor/internal/model"

	"gocv.io/x/gocv"
)

const statsFont = gocv.FontHersheySimplex

// StatsLines renders the statistics block text. With avg set the block starts with the
// average and the frame's own count, otherwise with the frame count alone, followed by one
// line per class in name order.
func StatsLines(detections []model.Detection, avg *float64) []string {
	if len(detections) == 0 && avg == nil {
		return []string{"Vehicles: 0"}
	}

	perClass := make(map[string]int)
	for _, det := range detections {
		perClass[det.ClassName]++
	}

	var lines []string
	if avg != nil {
		lines = append(lines,
			fmt.Sprintf("Avg Vehicles: %.1f", *avg),
			fmt.Sprintf("(Frame: %d)", len(detections)),
		)
	} else {
		lines = append(lines, fmt.Sprintf("Vehicles: %d", len(detections)))
	}

	names := make([]string, 0, len(perClass))
	for name := range perClass {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("  %s: %d", name, perClass[name]))
	}
	return lines
}

type overlayLayout struct {
	fontScale   float64
	thickness   int
	padding     int
	lineSpacing int
}

// layoutFor scales text with image height, clamped to a readable minimum.
func layoutFor(height int) overlayLayout {
	fontScale := math.Max(0.3, float64(height)/2000)
	thickness := height / 1000
	if thickness < 1 {
		thickness = 1
	}
	return overlayLayout{
		fontScale:   fontScale,
		thickness:   thickness,
		padding:     int(float64(height) * 0.02),
		lineSpacing: int(fontScale * 30),
	}
}

// DrawStats blends a half transparent black box into the bottom-right corner of mat and
// writes StatsLines on it in white.
func DrawStats(mat *gocv.Mat, detections []model.Detection, avg *float64) error {
	if mat.Empty() {
		return fmt.Errorf("cannot draw on an empty image")
	}
	lines := StatsLines(detections, avg)
	h, w := mat.Rows(), mat.Cols()
	l := layoutFor(h)

	sizes := make([]image.Point, len(lines))
	maxWidth, totalHeight := 0, 0
	for i, text := range lines {
		sizes[i] = gocv.GetTextSize(text, statsFont, l.fontScale, l.thickness)
		if sizes[i].X > maxWidth {
			maxWidth = sizes[i].X
		}
		totalHeight += sizes[i].Y + l.lineSpacing
	}

	boxWidth := maxWidth + l.padding*2
	boxHeight := totalHeight + l.padding
	x := max(w-boxWidth-l.padding, 0)
	y := max(h-boxHeight-l.padding, 0)

	overlay := mat.Clone()
	defer overlay.Close()
	err := gocv.Rectangle(&overlay, image.Rect(x, y, x+boxWidth, y+boxHeight), color.RGBA{A: 0}, -1)
	if err != nil {
		return fmt.Errorf("failed to draw background: %v", err)
	}
	gocv.AddWeighted(overlay, 0.5, *mat, 0.5, 0, mat)

	white := color.RGBA{R: 255, G: 255, B: 255, A: 0}
	yOffset := y + l.padding
	for i, text := range lines {
		err = gocv.PutText(mat, text, image.Pt(x+l.padding, yOffset+sizes[i].Y), statsFont, l.fontScale, white, l.thickness)
		if err != nil {
			return fmt.Errorf("failed to draw text: %v", err)
		}
		yOffset += sizes[i].Y + l.lineSpacing
	}
	return nil
}
