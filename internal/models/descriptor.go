// Package models defines the core data structures shared by the recognition and
// visual-word pipelines: descriptors, object ids, and the error taxonomy.
package models

// DefaultDimensions is the descriptor length produced by the SURF extended detector.
const DefaultDimensions = 128

// FeatureVector is a fixed-length local image descriptor.
type FeatureVector []float64

// Tag is a small discrete attribute attached to a descriptor by the detector
// (the sign of the Laplacian for SURF). Only descriptors with equal tags are compared.
type Tag int

// ObjectID identifies a reference object. Valid ids are non-negative.
type ObjectID int

// Descriptor is one detector output: a feature vector and its tag.
type Descriptor struct {
	Vector FeatureVector `json:"vector"`
	Tag    Tag           `json:"tag"`
}

// Vectors returns the feature vectors of descs in order, without copying them.
func Vectors(descs []Descriptor) []FeatureVector {
	out := make([]FeatureVector, len(descs))
	for i, d := range descs {
		out[i] = d.Vector
	}
	return out
}
