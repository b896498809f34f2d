package recognition

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-facerecog/internal/log"
)

func TestParseTrainingName(t *testing.T) {
	tests := []struct {
		file    string
		label   int
		name    string
		wantErr bool
	}{
		{file: "2-Gustav_3.jpg", label: 2, name: "Gustav"},
		{file: "10-Alice_01.png", label: 10, name: "Alice"},
		{file: "7-Bob.pgm", label: 7, name: "Bob"},
		{file: "/some/dir/1-Eve_2.JPG", label: 1, name: "Eve"},
		{file: "Gustav_3.jpg", wantErr: true},
		{file: "x-Gustav_3.jpg", wantErr: true},
		{file: "2-_3.jpg", wantErr: true},
		{file: "2-Gustav_3", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.file, func(t *testing.T) {
			label, name, err := ParseTrainingName(tc.file)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.label, label)
			assert.Equal(t, tc.name, name)
		})
	}
}

func TestLoadTrainingSet(t *testing.T) {
	dir := t.TempDir()
	writeNoiseImage(t, dir, "1-Alice_1.png", 64, 48, 1)
	writeNoiseImage(t, dir, "1-Alice_2.png", 64, 48, 2)
	writeNoiseImage(t, dir, "2-Bob_1.png", 64, 48, 3)
	writeNoiseImage(t, dir, "nolabel.png", 64, 48, 4)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "3-Broken_1.png"), []byte("not an image"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	set, err := LoadTrainingSet(dir, LoadOptions{Logger: log.Discard()})
	require.NoError(t, err)
	defer set.Close()

	assert.Equal(t, 3, set.Len())
	assert.Equal(t, []int{1, 1, 2}, set.Labels)
	assert.Equal(t, LabelTable{1: "Alice", 2: "Bob"}, set.Names)
	for _, img := range set.Images {
		assert.Equal(t, 16, img.Cols())
		assert.Equal(t, 12, img.Rows())
	}
}

func TestLoadTrainingSetErrors(t *testing.T) {
	var storageErr *StorageError

	_, err := LoadTrainingSet(filepath.Join(t.TempDir(), "missing"), LoadOptions{Logger: log.Discard()})
	require.ErrorAs(t, err, &storageErr)

	empty := t.TempDir()
	writeNoiseImage(t, empty, "unlabeled.png", 8, 8, 1)
	_, err = LoadTrainingSet(empty, LoadOptions{Logger: log.Discard()})
	require.ErrorAs(t, err, &storageErr)
	assert.ErrorIs(t, err, ErrEmptyTrainingSet)
}
