package imgproc

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// DownscaleFactor is the fixed shrink applied to both dimensions before
// detection and identification.
const DownscaleFactor = 4

// BoxColor is the gray used to outline detected faces.
var BoxColor = color.RGBA{R: 128, G: 128, B: 128, A: 0}

// BoxThickness is the outline width in pixels.
const BoxThickness = 2

// ToGray returns a single channel copy of src. Gray input is cloned as is.
func ToGray(src gocv.Mat) gocv.Mat {
	if src.Channels() == 1 {
		return src.Clone()
	}
	dst := gocv.NewMat()
	gocv.CvtColor(src, &dst, gocv.ColorBGRToGray)
	return dst
}

// Downscale shrinks src by DownscaleFactor in each dimension using area
// interpolation. The result is floor(rows/4) x floor(cols/4).
func Downscale(src gocv.Mat) gocv.Mat {
	size := DownscaledSize(src.Cols(), src.Rows())
	dst := gocv.NewMat()
	gocv.Resize(src, &dst, size, 0, 0, gocv.InterpolationArea)
	return dst
}

// DownscaledSize returns the output size Downscale produces for a w x h input.
func DownscaledSize(w, h int) image.Point {
	return image.Pt(w/DownscaleFactor, h/DownscaleFactor)
}

// Mirror flips img horizontally in place.
func Mirror(img *gocv.Mat) {
	gocv.Flip(*img, img, 1)
}

// DrawBoxes outlines every rectangle on img.
func DrawBoxes(img *gocv.Mat, boxes []image.Rectangle) {
	for _, r := range boxes {
		gocv.Rectangle(img, r, BoxColor, BoxThickness)
	}
}
