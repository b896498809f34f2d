package recognition

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/teslashibe/go-facerecog/internal/log"
	"github.com/teslashibe/go-facerecog/pkg/imgproc"
	"gocv.io/x/gocv"
)

// trainingName matches "<label>-<name>_<seq>.<ext>", for example 2-Gustav_3.jpg.
// The sequence part is optional.
var trainingName = regexp.MustCompile(`^(\d+)-([^-_.]+)(?:_[^.]*)?\.[A-Za-z]+$`)

// TrainingExtensions are the image types picked up from a training directory.
var TrainingExtensions = []string{".jpg", ".pgm", ".png"}

// ParseTrainingName extracts the label and person name from a training
// file name.
func ParseTrainingName(name string) (int, string, error) {
	m := trainingName.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return 0, "", fmt.Errorf("%q does not match <label>-<name>_<seq>.<ext>", name)
	}
	label, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", fmt.Errorf("%q: label: %w", name, err)
	}
	return label, m[2], nil
}

// TrainingSet holds the preprocessed training samples. The caller must
// Close it.
type TrainingSet struct {
	Images []gocv.Mat
	Labels []int
	Names  LabelTable
}

// Len returns the number of samples.
func (s *TrainingSet) Len() int {
	return len(s.Images)
}

// Close releases every sample.
func (s *TrainingSet) Close() {
	for i := range s.Images {
		s.Images[i].Close()
	}
	s.Images = nil
}

// LoadOptions tunes LoadTrainingSet.
type LoadOptions struct {
	Progress io.Writer // progress bar destination, nil for none
	Logger   *slog.Logger
}

// LoadTrainingSet reads every training image in dir. Each image is read as
// gray, mirrored and shrunk to a quarter in each dimension, the same
// preprocessing live frames get on their way to the recognizer. Files with
// malformed names or unreadable content are skipped with a warning.
func LoadTrainingSet(dir string, opts LoadOptions) (*TrainingSet, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Component("training")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &StorageError{Op: "read training set", Path: dir, Err: err}
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !isTrainingImage(e.Name()) {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)

	var bar *progressbar.ProgressBar
	if opts.Progress != nil {
		bar = progressbar.NewOptions(len(files),
			progressbar.OptionSetWriter(opts.Progress),
			progressbar.OptionSetDescription("loading training images"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	set := &TrainingSet{Names: LabelTable{}}
	for _, name := range files {
		if bar != nil {
			bar.Add(1)
		}
		label, person, err := ParseTrainingName(name)
		if err != nil {
			logger.Warn("skipping training image", "file", name, "error", err)
			continue
		}
		img, err := loadSample(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("skipping training image", "file", name, "error", err)
			continue
		}
		if prev, ok := set.Names[label]; ok && prev != person {
			logger.Warn("label reused for a different name", "label", label, "kept", prev, "file", name)
		} else {
			set.Names[label] = person
		}
		set.Images = append(set.Images, img)
		set.Labels = append(set.Labels, label)
	}
	if bar != nil {
		bar.Finish()
	}

	if set.Len() == 0 {
		return nil, &StorageError{Op: "read training set", Path: dir, Err: ErrEmptyTrainingSet}
	}
	logger.Info("training set loaded", "images", set.Len(), "people", len(set.Names), "dir", dir)
	return set, nil
}

func isTrainingImage(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range TrainingExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

func loadSample(path string) (gocv.Mat, error) {
	img := gocv.IMRead(path, gocv.IMReadGrayScale)
	defer img.Close()
	if img.Empty() {
		return gocv.NewMat(), fmt.Errorf("unreadable image")
	}
	if img.Cols() < imgproc.DownscaleFactor || img.Rows() < imgproc.DownscaleFactor {
		return gocv.NewMat(), fmt.Errorf("image smaller than %dx%d", imgproc.DownscaleFactor, imgproc.DownscaleFactor)
	}
	imgproc.Mirror(&img)
	return imgproc.Downscale(img), nil
}
