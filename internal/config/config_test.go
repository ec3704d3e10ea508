package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3, cfg.Pipeline.MaxRetries)
	assert.Equal(t, 90*time.Second, cfg.Pipeline.StepTimeout)
	assert.Equal(t, 6*time.Minute, cfg.Pipeline.TotalTimeout)
	assert.Equal(t, 0.7, cfg.Pipeline.MinFaceConfidence)
	assert.Equal(t, "gemini-3-pro-image-preview", cfg.Generation.Model)
	assert.Equal(t, 1536, cfg.Generation.MaxDimension)
}

func TestLoadYAMLFile(t *testing.T) {
	for _, key := range []string{EnvMaxRetries, EnvStepTimeout, EnvBucket, EnvGeminiModel} {
		t.Setenv(key, "")
	}
	path := filepath.Join(t.TempDir(), "studio.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
pipeline:
  max_retries: 2
  step_timeout: 45s
perception:
  base_url: http://perception:9000
storage:
  bucket: portrait-images
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Pipeline.MaxRetries)
	assert.Equal(t, 45*time.Second, cfg.Pipeline.StepTimeout)
	assert.Equal(t, 6*time.Minute, cfg.Pipeline.TotalTimeout)
	assert.Equal(t, "http://perception:9000", cfg.Perception.BaseURL)
	assert.Equal(t, "portrait-images", cfg.Storage.Bucket)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studio.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline:\n  retries: 2\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retries")
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studio.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Pipeline, cfg.Pipeline)
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(lookupFrom(map[string]string{
		EnvMaxRetries:        "1",
		EnvTotalTimeout:      "2m",
		EnvMinFaceConfidence: "0.8",
		EnvGeminiModel:       "gemini-custom",
		EnvBucket:            "bucket-a",
		EnvTable:             "runs",
		EnvEventBus:          "studio-bus",
		EnvOutputPrefix:      "  ",
	}))
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Pipeline.MaxRetries)
	assert.Equal(t, 2*time.Minute, cfg.Pipeline.TotalTimeout)
	assert.Equal(t, 0.8, cfg.Pipeline.MinFaceConfidence)
	assert.Equal(t, "gemini-custom", cfg.Generation.Model)
	assert.Equal(t, "bucket-a", cfg.Storage.Bucket)
	assert.Equal(t, "runs", cfg.Storage.Table)
	assert.Equal(t, "studio-bus", cfg.Events.BusName)
	assert.Equal(t, "outputs/", cfg.Generation.OutputPrefix, "blank values are ignored")
}

func TestApplyEnvReportsEveryBadValue(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(lookupFrom(map[string]string{
		EnvMaxRetries:  "three",
		EnvStepTimeout: "soon",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvMaxRetries)
	assert.Contains(t, err.Error(), EnvStepTimeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"negative retries", func(c *Config) { c.Pipeline.MaxRetries = -1 }, "max_retries"},
		{"total shorter than step", func(c *Config) { c.Pipeline.TotalTimeout = time.Second }, "total_timeout"},
		{"confidence above one", func(c *Config) { c.Pipeline.MinFaceConfidence = 1.5 }, "min_face_confidence"},
		{"confidence below floor", func(c *Config) { c.Pipeline.MinFaceConfidence = 0.5 }, "min_face_confidence"},
		{"missing perception url", func(c *Config) { c.Perception.BaseURL = "" }, "base_url"},
		{"tiny max dimension", func(c *Config) { c.Generation.MaxDimension = 64 }, "max_dimension"},
		{"missing model", func(c *Config) { c.Generation.Model = "" }, "generation.model"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.want), err.Error())
		})
	}
}

func TestMinFaceConfidenceIsRaiseOnly(t *testing.T) {
	cfg := Default()
	cfg.Pipeline.MinFaceConfidence = 0.7
	assert.NoError(t, cfg.Validate())
	cfg.Pipeline.MinFaceConfidence = 0.9
	assert.NoError(t, cfg.Validate())
	cfg.Pipeline.MinFaceConfidence = 0.69
	assert.Error(t, cfg.Validate())
}

func TestConversions(t *testing.T) {
	cfg := Default()
	cfg.Pipeline.MaxRetries = 1
	opts := cfg.PipelineOptions()
	assert.Equal(t, 1, opts.MaxRetries)
	assert.Equal(t, cfg.Pipeline.StepTimeout, opts.StepTimeout)

	g := cfg.GeminiConfig()
	assert.Equal(t, cfg.Generation.Model, g.Model)
	assert.Equal(t, "outputs/", g.OutputPrefix)
}
