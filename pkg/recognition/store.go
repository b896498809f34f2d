package recognition

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// LabelsSuffix is appended to the model path to name the label sidecar.
const LabelsSuffix = ".labels.yaml"

// ModelStore persists a trained LBPH model and its label table.
// The model goes to Path in OpenCV's own format, the labels to
// Path + LabelsSuffix as YAML.
type ModelStore struct {
	Path string
}

type labelFile struct {
	Version int            `yaml:"version"`
	SavedAt time.Time      `yaml:"saved_at"`
	Labels  map[int]string `yaml:"labels"`
}

const labelFileVersion = 1

// LabelsPath returns the sidecar path.
func (s ModelStore) LabelsPath() string {
	return s.Path + LabelsSuffix
}

// Exists reports whether both the model and its labels are on disk.
func (s ModelStore) Exists() bool {
	for _, p := range []string{s.Path, s.LabelsPath()} {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

// Save writes the model and label table of rec.
func (s ModelStore) Save(rec *LBPHRecognizer) error {
	if !rec.Trained() {
		return &StorageError{Op: "save model", Path: s.Path, Err: ErrNotTrained}
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return &StorageError{Op: "save model", Path: s.Path, Err: err}
	}

	data, err := yaml.Marshal(labelFile{
		Version: labelFileVersion,
		SavedAt: time.Now().UTC(),
		Labels:  rec.Labels(),
	})
	if err != nil {
		return &StorageError{Op: "save labels", Path: s.LabelsPath(), Err: err}
	}
	tmp := s.LabelsPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &StorageError{Op: "save labels", Path: s.LabelsPath(), Err: err}
	}
	if err := os.Rename(tmp, s.LabelsPath()); err != nil {
		return &StorageError{Op: "save labels", Path: s.LabelsPath(), Err: err}
	}

	rec.saveModel(s.Path)
	if _, err := os.Stat(s.Path); err != nil {
		return &StorageError{Op: "save model", Path: s.Path, Err: err}
	}
	return nil
}

// Load restores a recognizer saved by Save.
func (s ModelStore) Load() (*LBPHRecognizer, error) {
	if _, err := os.Stat(s.Path); err != nil {
		return nil, &StorageError{Op: "load model", Path: s.Path, Err: err}
	}
	labels, err := s.loadLabels()
	if err != nil {
		return nil, err
	}

	rec := NewLBPHRecognizer()
	rec.loadModel(s.Path, labels)
	return rec, nil
}

func (s ModelStore) loadLabels() (LabelTable, error) {
	path := s.LabelsPath()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &StorageError{Op: "load labels", Path: path, Err: err}
	}
	var lf labelFile
	if err := yaml.Unmarshal(data, &lf); err != nil {
		return nil, &StorageError{Op: "load labels", Path: path, Err: err}
	}
	if lf.Version != labelFileVersion {
		return nil, &StorageError{Op: "load labels", Path: path,
			Err: fmt.Errorf("unsupported version %d", lf.Version)}
	}
	if len(lf.Labels) == 0 {
		return nil, &StorageError{Op: "load labels", Path: path, Err: errors.New("no labels")}
	}
	return LabelTable(lf.Labels), nil
}
