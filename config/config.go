// seehuhn.de/go/pdfassemble - merge, split and recompress PDF files
// Copyright (C) 2026  Jochen Voss <voss@seehuhn.de>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package config reads the configuration and job files of pdf-assemble.
//
// Both file types use YAML.  Settings which are missing from a
// configuration file keep their default values.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	pdf "seehuhn.de/go/pdfassemble"
	"seehuhn.de/go/pdfassemble/optimize"
	"seehuhn.de/go/pdfassemble/pages"
	"seehuhn.de/go/pdfassemble/pipeline"
)

// ErrConfiguration is wrapped by all errors caused by invalid settings.
var ErrConfiguration = errors.New("configuration error")

// ConfigError represents a configuration error with context.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

func (e *ConfigError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrConfiguration
}

func newConfigError(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Config is the configuration of pdf-assemble.
type Config struct {
	// Producer overrides the application name recorded in output files.
	Producer string `yaml:"producer"`

	// Strict disables the reconstruction of damaged input files.
	Strict bool `yaml:"strict"`

	Logging *LoggingConfig `yaml:"logging"`
	Output  *OutputConfig  `yaml:"output"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `yaml:"level"`

	// Format is the log format (text, json).
	Format string `yaml:"format"`
}

// OutputConfig controls the file structure of merged and split documents.
type OutputConfig struct {
	ObjectStreams bool `yaml:"object-streams"`
	XRefStream    bool `yaml:"xref-stream"`
}

// Default returns the default configuration.
func Default() *Config {
	c := &Config{}
	c.setDefaults()
	return c
}

func (c *Config) setDefaults() {
	if c.Logging == nil {
		c.Logging = &LoggingConfig{}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "warn"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Output == nil {
		c.Output = &OutputConfig{}
	}
}

// Load reads a configuration file.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses a configuration from YAML data, fills in defaults and
// validates the result.
func Parse(data []byte) (*Config, error) {
	c := &Config{}
	err := decodeStrict(data, c)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	c.setDefaults()
	err = c.Validate()
	if err != nil {
		return nil, err
	}
	return c, nil
}

// decodeStrict unmarshals YAML data and rejects unknown fields.  Empty
// documents are allowed.
func decodeStrict(data []byte, v any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	err := dec.Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Logging != nil {
		if _, err := c.Logging.SlogLevel(); err != nil {
			return err
		}
		switch c.Logging.Format {
		case "", "text", "json":
		default:
			return newConfigError("logging.format", "unknown log format %q", c.Logging.Format)
		}
	}
	return nil
}

// SlogLevel converts the configured log level to a [slog.Level].
func (c *LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if c.Level == "" {
		return slog.LevelWarn, nil
	}
	err := level.UnmarshalText([]byte(c.Level))
	if err != nil {
		return 0, &ConfigError{
			Field:   "logging.level",
			Message: fmt.Sprintf("unknown log level %q", c.Level),
			Err:     fmt.Errorf("%w: %w", ErrConfiguration, err),
		}
	}
	return level, nil
}

// WriterOptions returns the serializer settings for merged and split
// documents.
func (c *OutputConfig) WriterOptions() *pdf.WriterOptions {
	if c == nil {
		return nil
	}
	return &pdf.WriterOptions{
		ObjectStreams: c.ObjectStreams,
		XRefStream:    c.XRefStream,
	}
}

// JobFile describes a job in a YAML file.
//
// Example:
//
//	operation: split
//	inputs: [report.pdf]
//	ranges: 1-3,5,8-
//	output: parts/
type JobFile struct {
	// Operation is one of "merge", "split" or "compress".
	Operation string `yaml:"operation"`

	// Inputs lists the input files.  Relative paths are interpreted
	// relative to the directory of the job file.
	Inputs []string `yaml:"inputs"`

	// Output is the output file for merge and compress jobs, and the
	// output directory for split jobs.
	Output string `yaml:"output"`

	// Ranges gives the page ranges for split jobs, e.g. "1-3,5,8-".  If
	// this is empty, every page becomes a separate file.
	Ranges string `yaml:"ranges"`

	// Level is the compression level for compress jobs.
	Level string `yaml:"level"`

	// Dir is the directory which contains the job file.
	Dir string `yaml:"-"`
}

// LoadJob reads a job file.
func LoadJob(filename string) (*JobFile, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read job file: %w", err)
	}
	j, err := ParseJob(data)
	if err != nil {
		return nil, err
	}
	j.Dir = filepath.Dir(filename)
	return j, nil
}

// ParseJob parses and validates a job description.
func ParseJob(data []byte) (*JobFile, error) {
	j := &JobFile{}
	err := decodeStrict(data, j)
	if err != nil {
		return nil, fmt.Errorf("failed to parse job: %w", err)
	}
	err = j.Validate()
	if err != nil {
		return nil, err
	}
	return j, nil
}

// Validate checks that the job description is complete.
func (j *JobFile) Validate() error {
	op, err := pipeline.ParseOperation(j.Operation)
	if err != nil {
		return &ConfigError{Field: "operation", Message: err.Error(), Err: err}
	}
	if len(j.Inputs) == 0 {
		return newConfigError("inputs", "required field is missing")
	}
	if j.Output == "" {
		return newConfigError("output", "required field is missing")
	}
	if j.Ranges != "" {
		if op != pipeline.Split {
			return newConfigError("ranges", "only allowed for split jobs")
		}
		if _, err := pages.ParseRanges(j.Ranges); err != nil {
			return &ConfigError{Field: "ranges", Message: err.Error(), Err: err}
		}
	}
	if j.Level != "" {
		if op != pipeline.Recompress {
			return newConfigError("level", "only allowed for compress jobs")
		}
		if _, err := optimize.ParseLevel(j.Level); err != nil {
			return &ConfigError{
				Field:   "level",
				Message: fmt.Sprintf("%q is not one of %s", j.Level, levelNames),
				Err:     err,
			}
		}
	}
	return nil
}

// InputPaths returns the paths of the input files.
func (j *JobFile) InputPaths() []string {
	res := make([]string, len(j.Inputs))
	for i, name := range j.Inputs {
		res[i] = j.resolve(name)
	}
	return res
}

// OutputPath returns the path of the output file or directory.
func (j *JobFile) OutputPath() string {
	return j.resolve(j.Output)
}

func (j *JobFile) resolve(name string) string {
	if j.Dir == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(j.Dir, name)
}

// Job reads the input files and converts the job description into a
// [pipeline.Job].
func (j *JobFile) Job() (*pipeline.Job, error) {
	op, err := pipeline.ParseOperation(j.Operation)
	if err != nil {
		return nil, err
	}
	job := &pipeline.Job{Operation: op}
	if j.Ranges != "" {
		job.Ranges, err = pages.ParseRanges(j.Ranges)
		if err != nil {
			return nil, err
		}
	}
	if j.Level != "" {
		job.Level, err = optimize.ParseLevel(j.Level)
		if err != nil {
			return nil, err
		}
	}
	for _, name := range j.InputPaths() {
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, err
		}
		job.Inputs = append(job.Inputs, data)
	}
	return job, nil
}

// levelNames lists the accepted values of the "level" field.
var levelNames = strings.Join([]string{
	optimize.Low.String(), optimize.Medium.String(), optimize.High.String(),
}, ", ")
