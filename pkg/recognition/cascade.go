package recognition

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// Cascade detection parameters.
const (
	CascadeScaleFactor  = 1.1
	CascadeMinNeighbors = 4
)

// CascadeDetector wraps an OpenCV Haar/LBP cascade classifier.
type CascadeDetector struct {
	classifier gocv.CascadeClassifier
	mu         sync.Mutex // DetectMultiScale is not safe for concurrent use
}

// NewCascadeDetector loads the cascade XML at path.
func NewCascadeDetector(path string) (*CascadeDetector, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &StorageError{Op: "load cascade", Path: path, Err: err}
	}
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return nil, &StorageError{Op: "load cascade", Path: path, Err: fmt.Errorf("not a cascade classifier file")}
	}
	return &CascadeDetector{classifier: classifier}, nil
}

// Detect returns the face rectangles found in img.
func (d *CascadeDetector) Detect(img gocv.Mat) ([]image.Rectangle, error) {
	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.classifier.DetectMultiScaleWithParams(img, CascadeScaleFactor, CascadeMinNeighbors, 0,
		image.Point{}, image.Point{}), nil
}

// Close releases the classifier.
func (d *CascadeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.classifier.Close()
}
