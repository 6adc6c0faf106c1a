// Package descriptor reads local-feature descriptors produced by an external
// detector and gathers them into per-image sets and training corpora.
package descriptor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hyperjump/mitate/internal/models"
	"github.com/hyperjump/mitate/internal/table"
)

// Detector returns the descriptors of one image.
type Detector interface {
	Detect(ctx context.Context, imagePath string) ([]models.Descriptor, error)
}

// FileDetector reads descriptors precomputed by an external SURF/SIFT tool.
// Each line is "tag<TAB>v1<TAB>...<TAB>vN" with N == Dimensions.
type FileDetector struct {
	Dimensions int
}

// NewFileDetector returns a detector for dim-length descriptors.
// dim <= 0 selects models.DefaultDimensions.
func NewFileDetector(dim int) *FileDetector {
	if dim <= 0 {
		dim = models.DefaultDimensions
	}
	return &FileDetector{Dimensions: dim}
}

// Detect parses the descriptor file at imagePath. An empty file yields no
// descriptors and no error.
func (d *FileDetector) Detect(ctx context.Context, imagePath string) ([]models.Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(imagePath)
	if err != nil {
		return nil, &models.DetectorError{Image: imagePath, Err: err}
	}
	defer f.Close()
	return d.Read(f, imagePath)
}

// Read parses descriptor rows from r. name labels errors.
func (d *FileDetector) Read(r io.Reader, name string) ([]models.Descriptor, error) {
	var out []models.Descriptor
	err := table.Scan(r, func(line int, fields []string) error {
		if len(fields) != d.Dimensions+1 {
			return &models.DetectorError{Image: name, Line: line,
				Err: fmt.Errorf("%w: got %d fields, expected %d", models.ErrDimensionMismatch, len(fields), d.Dimensions+1)}
		}
		tag, err := table.ParseInt(fields[0])
		if err != nil {
			return &models.DetectorError{Image: name, Line: line, Err: fmt.Errorf("tag: %w", err)}
		}
		vec, err := table.ParseFloats(fields[1:])
		if err != nil {
			return &models.DetectorError{Image: name, Line: line, Err: err}
		}
		out = append(out, models.Descriptor{Vector: vec, Tag: models.Tag(tag)})
		return nil
	})
	if err != nil {
		var de *models.DetectorError
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, &models.DetectorError{Image: name, Err: err}
	}
	return out, nil
}
