package recognition

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// YuNetConfig holds the ONNX face detector settings.
type YuNetConfig struct {
	ModelPath        string  // Path to the YuNet ONNX model
	ConfidenceThresh float32 // Minimum face score
	NMSThresh        float32
	TopK             int
}

// DefaultYuNetConfig returns production defaults for YuNet.
func DefaultYuNetConfig() YuNetConfig {
	return YuNetConfig{
		ModelPath:        "models/face_detection_yunet.onnx",
		ConfidenceThresh: 0.6,
		NMSThresh:        0.3,
		TopK:             5000,
	}
}

// YuNetDetector uses OpenCV's FaceDetectorYN. It is an alternative to the
// cascade for low resolution frames where Haar features miss faces.
type YuNetDetector struct {
	detector gocv.FaceDetectorYN
	mu       sync.Mutex // Protects inference
}

// NewYuNetDetector loads the model at cfg.ModelPath.
func NewYuNetDetector(cfg YuNetConfig) (*YuNetDetector, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, &StorageError{Op: "load yunet model", Path: cfg.ModelPath, Err: err}
	}

	// Input size is updated per image.
	detector := gocv.NewFaceDetectorYNWithParams(
		cfg.ModelPath,
		"",
		image.Pt(320, 320),
		cfg.ConfidenceThresh,
		cfg.NMSThresh,
		cfg.TopK,
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)
	return &YuNetDetector{detector: detector}, nil
}

// Detect returns the face rectangles in img. Gray input is expanded to
// three channels because the network expects BGR.
func (d *YuNetDetector) Detect(img gocv.Mat) ([]image.Rectangle, error) {
	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	bgr := img
	if img.Channels() == 1 {
		bgr = gocv.NewMat()
		defer bgr.Close()
		gocv.CvtColor(img, &bgr, gocv.ColorGrayToBGR)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.detector.SetInputSize(image.Pt(bgr.Cols(), bgr.Rows()))

	faces := gocv.NewMat()
	defer faces.Close()
	d.detector.Detect(bgr, &faces)

	// Each row: x, y, w, h, five landmark pairs, score.
	bounds := image.Rect(0, 0, bgr.Cols(), bgr.Rows())
	rects := make([]image.Rectangle, 0, faces.Rows())
	for r := 0; r < faces.Rows(); r++ {
		x := int(faces.GetFloatAt(r, 0))
		y := int(faces.GetFloatAt(r, 1))
		w := int(faces.GetFloatAt(r, 2))
		h := int(faces.GetFloatAt(r, 3))
		rect := image.Rect(x, y, x+w, y+h).Intersect(bounds)
		if !rect.Empty() {
			rects = append(rects, rect)
		}
	}
	return rects, nil
}

// Close releases the detector resources.
func (d *YuNetDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.detector.Close()
	return nil
}
