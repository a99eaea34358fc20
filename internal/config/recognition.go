package config

import "gopkg.in/yaml.v3"

// RecognitionConfig holds the face matching policy.
type RecognitionConfig struct {
	// Threshold is the maximum Euclidean distance between two embeddings
	// for them to be considered the same identity.
	Threshold float64       `yaml:"threshold"`
	Dim       int           `yaml:"dim"`
	MinImages int           `yaml:"min_images"`
	MaxImages int           `yaml:"max_images"`
	Quality   QualityConfig `yaml:"quality"`
}

// QualityConfig holds image quality gates applied before embedding extraction.
type QualityConfig struct {
	MinBlurVariance float64 `yaml:"min_blur_variance"`
	MinContrast     float64 `yaml:"min_contrast"`
}

// loadRecognitionDefaults parses the embedded recognition.yaml.
func loadRecognitionDefaults() RecognitionConfig {
	var rec RecognitionConfig
	if err := yaml.Unmarshal(recognitionYAML, &rec); err != nil {
		// The file is embedded at compile time so this should never happen.
		panic("failed to unmarshal embedded recognition.yaml: " + err.Error())
	}
	return rec
}
