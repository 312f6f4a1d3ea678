package ai

import (
	"image"
	"math"
)

type candidate struct {
	classID    int
	confidence float32
	box        image.Rectangle // inference space
}

// decodeYOLO reads a YOLOv8 head laid out attribute major: data[a*anchors+i] is attribute a
// of anchor i, attributes being cx, cy, w, h and one score per class. The best class of each
// anchor is kept when it is allowed and scores at least threshold.
func decodeYOLO(data []float32, attrs, anchors int, threshold float32, allowed map[int]bool) []candidate {
	if attrs <= 4 || anchors <= 0 || len(data) < attrs*anchors {
		return nil
	}
	numClasses := attrs - 4

	var out []candidate
	for i := 0; i < anchors; i++ {
		best, bestScore := -1, float32(0)
		for c := 0; c < numClasses; c++ {
			score := data[(4+c)*anchors+i]
			if score > bestScore {
				best, bestScore = c, score
			}
		}
		if best < 0 || bestScore < threshold || !allowed[best] {
			continue
		}

		cx := data[i]
		cy := data[anchors+i]
		w := data[2*anchors+i]
		h := data[3*anchors+i]
		out = append(out, candidate{
			classID:    best,
			confidence: bestScore,
			box: image.Rect(
				int(cx-w/2), int(cy-h/2),
				int(cx+w/2), int(cy+h/2),
			),
		})
	}
	return out
}

// classAwareBoxes shifts boxes by class so one NMS pass never suppresses across classes.
func classAwareBoxes(cands []candidate, span int) []image.Rectangle {
	boxes := make([]image.Rectangle, len(cands))
	for i, c := range cands {
		boxes[i] = c.box.Add(image.Pt(c.classID*span, 0))
	}
	return boxes
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// letterbox fits a w x h frame into a size x size square without distorting it.
// The scaled frame is centered and the remaining bands are padding.
type letterbox struct {
	scale      float64
	width      int // scaled frame width
	height     int // scaled frame height
	padX, padY int
}

func newLetterbox(w, h, size int) letterbox {
	scale := math.Min(float64(size)/float64(w), float64(size)/float64(h))
	nw := min(size, max(1, int(math.Round(float64(w)*scale))))
	nh := min(size, max(1, int(math.Round(float64(h)*scale))))
	return letterbox{
		scale:  scale,
		width:  nw,
		height: nh,
		padX:   (size - nw) / 2,
		padY:   (size - nh) / 2,
	}
}

// toSource maps a point in inference space back to frame pixels.
func (l letterbox) toSource(x, y int) (float64, float64) {
	return float64(x-l.padX) / l.scale, float64(y-l.padY) / l.scale
}
