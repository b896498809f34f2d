package recognition

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/teslashibe/go-facerecog/internal/log"
)

// Detector backends.
const (
	DetectorCascade = "cascade"
	DetectorYuNet   = "yunet"
)

// Config describes the service capabilities and where their state lives.
type Config struct {
	Detector    string      `yaml:"detector"`
	CascadePath string      `yaml:"cascade_path"`
	YuNet       YuNetConfig `yaml:"yunet"`

	TrainingDir string `yaml:"training_dir"`
	ModelPath   string `yaml:"model_path"`
	// ReuseModel loads a previously saved model instead of training.
	ReuseModel bool `yaml:"reuse_model"`

	IdentifyConcurrency int64 `yaml:"identify_concurrency"`
}

// DefaultConfig returns paths relative to the data directory.
func DefaultConfig() Config {
	return Config{
		Detector:            DetectorCascade,
		CascadePath:         "data/haar/haarcascade_frontalface_alt.xml",
		YuNet:               DefaultYuNetConfig(),
		TrainingDir:         "data/training",
		ModelPath:           "data/model/lbph.yaml",
		IdentifyConcurrency: DefaultIdentifyConcurrency,
	}
}

// Validate checks the values without touching the filesystem.
func (c *Config) Validate() []string {
	var errors []string
	switch c.Detector {
	case DetectorCascade:
		if c.CascadePath == "" {
			errors = append(errors, "cascade_path is required for the cascade detector")
		}
	case DetectorYuNet:
		if c.YuNet.ModelPath == "" {
			errors = append(errors, "yunet model path is required for the yunet detector")
		}
	default:
		errors = append(errors, "detector must be cascade or yunet")
	}
	if c.TrainingDir == "" && !c.ReuseModel {
		errors = append(errors, "training_dir is required unless reuse_model is set")
	}
	if c.ModelPath == "" {
		errors = append(errors, "model_path is required")
	}
	if c.IdentifyConcurrency < 1 {
		errors = append(errors, "identify_concurrency must be at least 1")
	}
	return errors
}

// Capabilities are the loaded detector and recognizer.
type Capabilities struct {
	Detector   Detector
	Recognizer *LBPHRecognizer
}

// Close releases the detector.
func (c *Capabilities) Close() error {
	if c.Detector == nil {
		return nil
	}
	return c.Detector.Close()
}

// Setup loads the detector and then either restores the saved model (when
// ReuseModel is set and one exists) or trains from TrainingDir and saves
// the result. Any missing resource yields a *StorageError.
func Setup(cfg Config, progress io.Writer, logger *slog.Logger) (*Capabilities, error) {
	if logger == nil {
		logger = log.Component("setup")
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid recognition config: %v", errs)
	}

	detector, err := newDetector(cfg)
	if err != nil {
		return nil, err
	}
	caps := &Capabilities{Detector: detector}

	store := ModelStore{Path: cfg.ModelPath}
	if cfg.ReuseModel && store.Exists() {
		rec, err := store.Load()
		if err != nil {
			caps.Close()
			return nil, err
		}
		logger.Info("model loaded", "path", cfg.ModelPath, "people", rec.Labels().Names())
		caps.Recognizer = rec
		return caps, nil
	}
	if cfg.ReuseModel {
		logger.Warn("no saved model, training instead", "path", cfg.ModelPath)
	}

	if err := checkDir(cfg.TrainingDir); err != nil {
		caps.Close()
		return nil, err
	}
	set, err := LoadTrainingSet(cfg.TrainingDir, LoadOptions{Progress: progress, Logger: logger})
	if err != nil {
		caps.Close()
		return nil, err
	}
	defer set.Close()

	rec := NewLBPHRecognizer()
	if err := rec.Train(set); err != nil {
		caps.Close()
		return nil, err
	}
	if err := store.Save(rec); err != nil {
		caps.Close()
		return nil, err
	}
	logger.Info("model saved", "path", cfg.ModelPath, "people", rec.Labels().Names())
	caps.Recognizer = rec
	return caps, nil
}

func newDetector(cfg Config) (Detector, error) {
	if cfg.Detector == DetectorYuNet {
		return NewYuNetDetector(cfg.YuNet)
	}
	return NewCascadeDetector(cfg.CascadePath)
}

func checkDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &StorageError{Op: "open training dir", Path: path, Err: err}
	}
	if !info.IsDir() {
		return &StorageError{Op: "open training dir", Path: path, Err: fmt.Errorf("not a directory")}
	}
	return nil
}
