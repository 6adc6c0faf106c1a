package descriptor

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/mitate/internal/models"
)

// Image is the descriptor set of one image. ID is the path relative to the
// collection root, slash-separated.
type Image struct {
	ID          string
	Path        string
	Descriptors []models.Descriptor
}

// Vectors returns the image's feature vectors.
func (img Image) Vectors() []models.FeatureVector {
	return models.Vectors(img.Descriptors)
}

// Collect runs det over every regular file under root whose extension is in
// exts (all files when exts is empty). Files are visited in lexical order.
func Collect(ctx context.Context, det Detector, root string, exts []string) ([]Image, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", absRoot)
	}

	var images []Image
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != absRoot && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !ExtensionAllowed(path, exts) {
			return nil
		}
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		descs, err := det.Detect(ctx, path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return err
		}
		images = append(images, Image{ID: filepath.ToSlash(rel), Path: path, Descriptors: descs})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return images, nil
}

// Corpus flattens the feature vectors of every image, in image order.
func Corpus(images []Image) []models.FeatureVector {
	n := 0
	for _, img := range images {
		n += len(img.Descriptors)
	}
	out := make([]models.FeatureVector, 0, n)
	for _, img := range images {
		for _, d := range img.Descriptors {
			out = append(out, d.Vector)
		}
	}
	return out
}

// ExtensionAllowed reports whether path's extension is in exts. Comparison is
// case-insensitive and ignores a leading dot. An empty exts allows everything.
func ExtensionAllowed(path string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	for _, a := range exts {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == ext {
			return true
		}
	}
	return false
}
