package ai

import (
	"fmt"
	"image/color"
)

// cocoClasses are the 80 labels of COCO trained YOLO models, indexed by class id.
var cocoClasses = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat", "traffic light",
	"fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat", "dog", "horse", "sheep", "cow",
	"elephant", "bear", "zebra", "giraffe", "backpack", "umbrella", "handbag", "tie", "suitcase", "frisbee",
	"skis", "snowboard", "sports ball", "kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket", "bottle",
	"wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple", "sandwich", "orange",
	"broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair", "couch", "potted plant", "bed",
	"dining table", "toilet", "tv", "laptop", "mouse", "remote", "keyboard", "cell phone", "microwave", "oven",
	"toaster", "sink", "refrigerator", "book", "clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}

// ClassName maps a model class id to its label.
func ClassName(classID int) string {
	if classID >= 0 && classID < len(cocoClasses) {
		return cocoClasses[classID]
	}
	return fmt.Sprintf("class%d", classID)
}

var classColors = map[int]color.RGBA{
	2: {R: 56, G: 56, B: 255, A: 0},
	3: {R: 151, G: 157, B: 255, A: 0},
	5: {R: 31, G: 112, B: 255, A: 0},
	7: {R: 29, G: 178, B: 255, A: 0},
}

func classColor(classID int) color.RGBA {
	if c, ok := classColors[classID]; ok {
		return c
	}
	return color.RGBA{R: 255, G: 0, B: 0, A: 0}
}
