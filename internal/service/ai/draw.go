package ai

import (
	"fmt"
	"image"

	"github.com/geongi-im/yolo-traffic-monitor/internal/model"

	"gocv.io/x/gocv"
)

// DrawDetections draws a box and a "class conf" label for every detection.
func DrawDetections(mat *gocv.Mat, detections []model.Detection) error {
	thickness := 2
	if mat.Rows() < 480 {
		thickness = 1
	}

	for _, det := range detections {
		c := classColor(det.ClassID)
		rect := image.Rect(int(det.BBox[0]), int(det.BBox[1]), int(det.BBox[2]), int(det.BBox[3]))
		err := gocv.Rectangle(mat, rect, c, thickness)
		if err != nil {
			return fmt.Errorf("failed to draw rectangle: %v", err)
		}

		label := fmt.Sprintf("%s %.2f", det.ClassName, det.Confidence)
		y := rect.Min.Y - 5
		if y < 10 {
			y = rect.Min.Y + 15
		}
		err = gocv.PutText(mat, label, image.Pt(rect.Min.X, y), gocv.FontHersheySimplex, 0.5, c, 1)
		if err != nil {
			return fmt.Errorf("failed to draw text: %v", err)
		}
	}
	return nil
}
