package config

import (
	"github.com/hyperjump/mitate/internal/models"
	"github.com/hyperjump/mitate/internal/vector"
	"github.com/hyperjump/mitate/internal/vocabulary"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Reference.ObjectsPath == "" {
		cfg.Reference.ObjectsPath = "/usr/local/var/mitate/data/reference/objects.txt"
	}
	if cfg.Reference.DescriptorsPath == "" {
		cfg.Reference.DescriptorsPath = "/usr/local/var/mitate/data/reference/descriptors.txt"
	}
	if cfg.Reference.Dimension == 0 {
		cfg.Reference.Dimension = models.DefaultDimensions
	}
	if cfg.Reference.MinVotes == 0 {
		cfg.Reference.MinVotes = 50
	}
	if cfg.Vocabulary.Path == "" {
		cfg.Vocabulary.Path = "/usr/local/var/mitate/data/vocabulary.txt"
	}
	if cfg.Vocabulary.Size == 0 {
		cfg.Vocabulary.Size = vocabulary.DefaultSize
	}
	if cfg.Vocabulary.MaxIterations == 0 {
		cfg.Vocabulary.MaxIterations = vocabulary.DefaultMaxIterations
	}
	if cfg.Vocabulary.Epsilon == 0 {
		cfg.Vocabulary.Epsilon = vocabulary.DefaultEpsilon
	}
	if cfg.Vocabulary.Seed == 0 {
		cfg.Vocabulary.Seed = 1
	}
	if cfg.Vocabulary.Init == "" {
		cfg.Vocabulary.Init = string(vocabulary.InitFarthest)
	}
	if cfg.Histogram.IndexType == "" {
		cfg.Histogram.IndexType = string(vector.IndexTypeKDTree)
	}
	if cfg.Descriptors.Extensions == nil {
		cfg.Descriptors.Extensions = []string{".desc", ".surf"}
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 10
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 100
	}
	if cfg.Watch.DebounceMS == 0 {
		cfg.Watch.DebounceMS = 400
	}
}
