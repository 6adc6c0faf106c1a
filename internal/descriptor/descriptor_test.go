package descriptor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/mitate/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestFileDetector_Read(t *testing.T) {
	det := NewFileDetector(3)
	input := "# tag v1 v2 v3\n1\t0.5\t1\t2\n\n-1\t3\t4\t5\t\n"
	descs, err := det.Read(strings.NewReader(input), "q.desc")
	require.NoError(t, err)
	assert.Equal(t, []models.Descriptor{
		{Vector: models.FeatureVector{0.5, 1, 2}, Tag: 1},
		{Vector: models.FeatureVector{3, 4, 5}, Tag: -1},
	}, descs)
}

func TestFileDetector_Errors(t *testing.T) {
	det := NewFileDetector(2)
	tests := []struct {
		name     string
		input    string
		wantLine int
	}{
		{"too few fields", "1\t0\n", 1},
		{"too many fields", "0\t1\t2\n1\t1\t2\t3\n", 2},
		{"bad tag", "x\t1\t2\n", 1},
		{"bad value", "1\t1\tnan?\n", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := det.Read(strings.NewReader(tt.input), "img.desc")
			var de *models.DetectorError
			require.True(t, errors.As(err, &de), "got %v", err)
			assert.Equal(t, tt.wantLine, de.Line)
			assert.Equal(t, "img.desc", de.Image)
		})
	}
}

func TestFileDetector_Detect(t *testing.T) {
	dir := t.TempDir()
	det := NewFileDetector(0)
	assert.Equal(t, models.DefaultDimensions, det.Dimensions)

	empty := filepath.Join(dir, "empty.desc")
	writeFile(t, empty, "")
	descs, err := det.Detect(context.Background(), empty)
	require.NoError(t, err)
	assert.Empty(t, descs)

	_, err = det.Detect(context.Background(), filepath.Join(dir, "missing.desc"))
	var de *models.DetectorError
	assert.True(t, errors.As(err, &de))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = det.Detect(ctx, empty)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCollect(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b", "img2.desc"), "0\t1\t1\n1\t2\t2\n")
	writeFile(t, filepath.Join(root, "a.desc"), "0\t0\t0\n")
	writeFile(t, filepath.Join(root, "b", "notes.txt"), "ignored")
	writeFile(t, filepath.Join(root, ".cache", "x.desc"), "0\t9\t9\n")
	writeFile(t, filepath.Join(root, "c", "none.DESC"), "")

	images, err := Collect(context.Background(), NewFileDetector(2), root, []string{".desc"})
	require.NoError(t, err)
	require.Len(t, images, 3)
	assert.Equal(t, "a.desc", images[0].ID)
	assert.Equal(t, "b/img2.desc", images[1].ID)
	assert.Equal(t, "c/none.DESC", images[2].ID)
	assert.Len(t, images[1].Vectors(), 2)

	corpus := Corpus(images)
	assert.Equal(t, []models.FeatureVector{{0, 0}, {1, 1}, {2, 2}}, corpus)
}

func TestCollect_PropagatesDetectorError(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "bad.desc"), "0\t1\n")
	_, err := Collect(context.Background(), NewFileDetector(2), root, nil)
	var de *models.DetectorError
	assert.True(t, errors.As(err, &de))

	_, err = Collect(context.Background(), NewFileDetector(2), filepath.Join(root, "bad.desc"), nil)
	assert.Error(t, err)
}

func TestExtensionAllowed(t *testing.T) {
	assert.True(t, ExtensionAllowed("x.surf", nil))
	assert.True(t, ExtensionAllowed("x.SURF", []string{"surf"}))
	assert.True(t, ExtensionAllowed("x.surf", []string{".desc", ".surf"}))
	assert.False(t, ExtensionAllowed("x.txt", []string{".desc"}))
	assert.False(t, ExtensionAllowed("noext", []string{".desc"}))
}
