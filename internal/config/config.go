// Package config loads studio settings from an optional YAML file and the
// environment. Environment variables win over the file; the file wins over
// the defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fpang/portrait-studio/internal/generation"
	"github.com/fpang/portrait-studio/internal/perception"
	"github.com/fpang/portrait-studio/internal/pipeline"
)

// Environment overrides.
const (
	EnvMaxRetries        = "STUDIO_MAX_RETRIES"
	EnvStepTimeout       = "STUDIO_STEP_TIMEOUT"
	EnvTotalTimeout      = "STUDIO_TOTAL_TIMEOUT"
	EnvMinFaceConfidence = "STUDIO_MIN_FACE_CONFIDENCE"
	EnvPerceptionURL     = "STUDIO_PERCEPTION_URL"
	EnvPerceptionTimeout = "STUDIO_PERCEPTION_TIMEOUT"
	EnvGeminiModel       = "GEMINI_MODEL"
	EnvMaxDimension      = "STUDIO_MAX_DIMENSION"
	EnvOutputPrefix      = "STUDIO_OUTPUT_PREFIX"
	EnvBucket            = "MEDIA_BUCKET_NAME"
	EnvTable             = "DYNAMO_TABLE_NAME"
	EnvRecordTTL         = "STUDIO_RECORD_TTL"
	EnvSQLitePath        = "STUDIO_SQLITE_PATH"
	EnvLocalRoot         = "STUDIO_LOCAL_ROOT"
	EnvEventBus          = "STUDIO_EVENT_BUS"
)

// DefaultPerceptionTimeout bounds a single HTTP call to the perception service.
const DefaultPerceptionTimeout = 30 * time.Second

// DefaultRecordTTL is how long run records are kept in DynamoDB.
const DefaultRecordTTL = 30 * 24 * time.Hour

type Pipeline struct {
	MaxRetries        int           `yaml:"max_retries"`
	StepTimeout       time.Duration `yaml:"step_timeout"`
	TotalTimeout      time.Duration `yaml:"total_timeout"`
	MinFaceConfidence float64       `yaml:"min_face_confidence"`
}

type Perception struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type Generation struct {
	Model        string `yaml:"model"`
	MaxDimension int    `yaml:"max_dimension"`
	OutputPrefix string `yaml:"output_prefix"`
}

type Storage struct {
	Bucket     string        `yaml:"bucket"`
	Table      string        `yaml:"table"`
	RecordTTL  time.Duration `yaml:"record_ttl"`
	SQLitePath string        `yaml:"sqlite_path"`
	LocalRoot  string        `yaml:"local_root"`
}

type Events struct {
	BusName string `yaml:"bus_name"`
}

// Config is the full studio configuration.
type Config struct {
	Pipeline   Pipeline   `yaml:"pipeline"`
	Perception Perception `yaml:"perception"`
	Generation Generation `yaml:"generation"`
	Storage    Storage    `yaml:"storage"`
	Events     Events     `yaml:"events"`
}

// Default returns the built-in configuration.
func Default() Config {
	opts := pipeline.DefaultOptions()
	return Config{
		Pipeline: Pipeline{
			MaxRetries:        opts.MaxRetries,
			StepTimeout:       opts.StepTimeout,
			TotalTimeout:      opts.TotalTimeout,
			MinFaceConfidence: perception.DefaultMinFaceConfidence,
		},
		Perception: Perception{
			BaseURL: "http://localhost:8090",
			Timeout: DefaultPerceptionTimeout,
		},
		Generation: Generation{
			Model:        generation.ModelGemini3ProImage,
			MaxDimension: generation.DefaultMaxDimension,
			OutputPrefix: "outputs/",
		},
		Storage: Storage{
			RecordTTL:  DefaultRecordTTL,
			SQLitePath: "studio.db",
			LocalRoot:  ".",
		},
	}
}

// Load builds a Config from the defaults, the YAML file at path (skipped when
// path is empty) and the process environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := cfg.decode(bytes.NewReader(data)); err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides fields from lookup, which has the signature of
// os.LookupEnv. Empty values are ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	var errs []error
	setInt := func(key string, dst *int) {
		if v, ok := get(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	setFloat := func(key string, dst *float64) {
		if v, ok := get(key); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v, ok := get(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	setString := func(key string, dst *string) {
		if v, ok := get(key); ok {
			*dst = v
		}
	}

	setInt(EnvMaxRetries, &c.Pipeline.MaxRetries)
	setDuration(EnvStepTimeout, &c.Pipeline.StepTimeout)
	setDuration(EnvTotalTimeout, &c.Pipeline.TotalTimeout)
	setFloat(EnvMinFaceConfidence, &c.Pipeline.MinFaceConfidence)
	setString(EnvPerceptionURL, &c.Perception.BaseURL)
	setDuration(EnvPerceptionTimeout, &c.Perception.Timeout)
	setString(EnvGeminiModel, &c.Generation.Model)
	setInt(EnvMaxDimension, &c.Generation.MaxDimension)
	setString(EnvOutputPrefix, &c.Generation.OutputPrefix)
	setString(EnvBucket, &c.Storage.Bucket)
	setString(EnvTable, &c.Storage.Table)
	setDuration(EnvRecordTTL, &c.Storage.RecordTTL)
	setString(EnvSQLitePath, &c.Storage.SQLitePath)
	setString(EnvLocalRoot, &c.Storage.LocalRoot)
	setString(EnvEventBus, &c.Events.BusName)

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment override: %w", errors.Join(errs...))
	}
	return nil
}

// Validate rejects settings the pipeline cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Pipeline.MaxRetries < 0 || c.Pipeline.MaxRetries > 10 {
		errs = append(errs, fmt.Errorf("pipeline.max_retries must be in [0,10], got %d", c.Pipeline.MaxRetries))
	}
	if c.Pipeline.StepTimeout <= 0 {
		errs = append(errs, errors.New("pipeline.step_timeout must be positive"))
	}
	if c.Pipeline.TotalTimeout < c.Pipeline.StepTimeout {
		errs = append(errs, fmt.Errorf("pipeline.total_timeout (%s) must be at least step_timeout (%s)", c.Pipeline.TotalTimeout, c.Pipeline.StepTimeout))
	}
	// The confidence floor may be raised but never lowered.
	if c.Pipeline.MinFaceConfidence < perception.DefaultMinFaceConfidence || c.Pipeline.MinFaceConfidence > 1 {
		errs = append(errs, fmt.Errorf("pipeline.min_face_confidence must be in [%g,1], got %g",
			perception.DefaultMinFaceConfidence, c.Pipeline.MinFaceConfidence))
	}
	if c.Perception.BaseURL == "" {
		errs = append(errs, errors.New("perception.base_url is required"))
	}
	if c.Perception.Timeout <= 0 {
		errs = append(errs, errors.New("perception.timeout must be positive"))
	}
	if c.Generation.Model == "" {
		errs = append(errs, errors.New("generation.model is required"))
	}
	if c.Generation.MaxDimension < 256 {
		errs = append(errs, fmt.Errorf("generation.max_dimension must be at least 256, got %d", c.Generation.MaxDimension))
	}
	if c.Storage.RecordTTL < 0 {
		errs = append(errs, errors.New("storage.record_ttl must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// PipelineOptions converts the pipeline section into orchestrator options.
func (c Config) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		MaxRetries:   c.Pipeline.MaxRetries,
		StepTimeout:  c.Pipeline.StepTimeout,
		TotalTimeout: c.Pipeline.TotalTimeout,
	}
}

// GeminiConfig converts the generation section into generator settings.
func (c Config) GeminiConfig() generation.GeminiConfig {
	return generation.GeminiConfig{
		Model:        c.Generation.Model,
		MaxDimension: c.Generation.MaxDimension,
		OutputPrefix: c.Generation.OutputPrefix,
	}
}

