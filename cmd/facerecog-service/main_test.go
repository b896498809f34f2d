package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/teslashibe/go-facerecog/pkg/recognition"
)

func TestRecognitionConfigResolvesPaths(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "cascade.xml")
	cfg := recognitionConfig(Options{
		DataDir:     "/srv/facerecog",
		Detector:    recognition.DetectorCascade,
		CascadePath: abs,
		TrainingDir: "training",
		ModelPath:   "model/lbph.yaml",
		ReuseModel:  true,
		Concurrency: 2,
	})

	assert.Equal(t, abs, cfg.CascadePath)
	assert.Equal(t, "/srv/facerecog/training", cfg.TrainingDir)
	assert.Equal(t, "/srv/facerecog/model/lbph.yaml", cfg.ModelPath)
	assert.Empty(t, cfg.YuNet.ModelPath)
	assert.True(t, cfg.ReuseModel)
	assert.Equal(t, int64(2), cfg.IdentifyConcurrency)
	assert.Empty(t, cfg.Validate())
}

func TestRecognitionConfigRejectsUnknownDetector(t *testing.T) {
	cfg := recognitionConfig(Options{Detector: "hog", ModelPath: "m", TrainingDir: "t", Concurrency: 1})
	assert.NotEmpty(t, cfg.Validate())
}
