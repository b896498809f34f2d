package recognition

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-facerecog/internal/log"
	"gocv.io/x/gocv"
	"gocv.io/x/gocv/contrib"
)

// LBPHRecognizer wraps OpenCV's local binary pattern histogram face
// recognizer together with its label table.
type LBPHRecognizer struct {
	model  *contrib.LBPHFaceRecognizer
	labels LabelTable
	logger *slog.Logger

	mu      sync.RWMutex
	trained bool
}

// NewLBPHRecognizer returns an untrained recognizer.
func NewLBPHRecognizer() *LBPHRecognizer {
	return &LBPHRecognizer{
		model:  contrib.NewLBPHFaceRecognizer(),
		labels: LabelTable{},
		logger: log.Component("lbph"),
	}
}

// Train fits the model to set and adopts its label table.
func (r *LBPHRecognizer) Train(set *TrainingSet) error {
	if set == nil || set.Len() == 0 {
		return ErrEmptyTrainingSet
	}
	if len(set.Images) != len(set.Labels) {
		return fmt.Errorf("training set has %d images and %d labels", len(set.Images), len(set.Labels))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.model.Train(set.Images, set.Labels)
	r.labels = make(LabelTable, len(set.Names))
	for k, v := range set.Names {
		r.labels[k] = v
	}
	r.trained = true
	r.logger.Info("recognizer trained", "samples", set.Len(), "people", len(r.labels))
	return nil
}

// Predict returns the label nearest to img.
func (r *LBPHRecognizer) Predict(img gocv.Mat) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.trained {
		return 0, ErrNotTrained
	}
	if img.Empty() {
		return 0, fmt.Errorf("empty image")
	}
	res := r.model.PredictExtendedResponse(img)
	r.logger.Debug("prediction", "label", res.Label, "distance", res.Confidence)
	return int(res.Label), nil
}

// Labels returns the label table.
func (r *LBPHRecognizer) Labels() LabelTable {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.labels
}

// Trained reports whether the model can predict.
func (r *LBPHRecognizer) Trained() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.trained
}

func (r *LBPHRecognizer) saveModel(path string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.model.SaveFile(path)
}

func (r *LBPHRecognizer) loadModel(path string, labels LabelTable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.model.LoadFile(path)
	r.labels = labels
	r.trained = true
}
