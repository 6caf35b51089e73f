// Package config loads the model configuration file. Decoding is strict:
// unknown keys are an error, not silently forwarded to the model service.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Embedding configures the embedder and the collection dimension it must
// match.
type Embedding struct {
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// Generation configures the completion service call.
type Generation struct {
	Model       string   `yaml:"model"`
	Temperature float32  `yaml:"temperature"`
	MaxTokens   int      `yaml:"max_tokens"`
	Stop        []string `yaml:"stop,omitempty"`
}

// Config is the root of the model configuration file.
type Config struct {
	Embedding  Embedding  `yaml:"embedding"`
	Generation Generation `yaml:"generation"`
}

// Default returns the reference configuration: MiniLM-class 384-dim
// embeddings and conservative generation settings.
func Default() *Config {
	return &Config{
		Embedding: Embedding{
			Model:      "all-minilm",
			Dimensions: 384,
		},
		Generation: Generation{
			Model:       "llama3.1:8b",
			Temperature: 0.3,
			MaxTokens:   256,
		},
	}
}

// Load reads the config at path. A missing file yields defaults; a file with
// unrecognized keys is rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if cfg.Embedding.Dimensions <= 0 {
		return nil, fmt.Errorf("config: embedding dimensions must be positive, got %d", cfg.Embedding.Dimensions)
	}
	return cfg, nil
}
