// Package recognition is the service side of the pipeline: it turns a raw
// frame into a gray, quarter-size annotated frame with the boxes of every
// detected face and, when asked, the name of the person it shows.
package recognition

import (
	"image"
	"sort"

	"gocv.io/x/gocv"
)

// Detector finds faces in a single channel image.
type Detector interface {
	Detect(img gocv.Mat) ([]image.Rectangle, error)
	Close() error
}

// Recognizer predicts the label of the person in a single channel image.
// There is no reject outcome: the nearest known label is always returned.
type Recognizer interface {
	Predict(img gocv.Mat) (int, error)
	Labels() LabelTable
}

// LabelTable maps training labels to person names. It is built during
// training and read-only afterwards.
type LabelTable map[int]string

// Name returns the person name for label, or "" if the label is unknown.
func (t LabelTable) Name(label int) string {
	return t[label]
}

// Sorted returns the labels in ascending order.
func (t LabelTable) Sorted() []int {
	out := make([]int, 0, len(t))
	for l := range t {
		out = append(out, l)
	}
	sort.Ints(out)
	return out
}

// Names returns the person names in label order.
func (t LabelTable) Names() []string {
	labels := t.Sorted()
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = t[l]
	}
	return out
}
