// Copyright 2025, the otu16s contributors.

// Package config defines the configuration for one otu16s run.  The
// configuration is constructed once at process start, from a TOML file
// and/or command-line flags, and passed into each pipeline stage; no
// stage reads ambient environment state.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

type Config struct {

	// The path to the SRA prefetch executable.
	PrefetchPath string

	// The path to the SRA fasterq-dump executable.
	FasterqDumpPath string

	// The path to the QIIME2 executable.
	QiimePath string

	// The path to the biom format-conversion executable.
	BiomPath string

	// The directory where per-accession downloads and all pipeline
	// artifacts are placed.  Created if absent.
	WorkDir string

	// The file containing the run accessions to process, one per
	// line.  Must exist before the run starts.
	AccessionFile string

	// The pre-trained classifier artifact used by the
	// classification step.
	ClassifierFile string

	// The number of fetch jobs run concurrently, also passed to the
	// denoise and classify steps as their thread/job budget.
	NumJobs int

	// The number of bases trimmed from the 5' end of the forward
	// and reverse reads during denoising.  Zero means no trimming.
	TrimLeftF int
	TrimLeftR int

	// The position at which the forward and reverse reads are
	// truncated during denoising.  Zero means no truncation.
	TruncLenF int
	TruncLenR int

	// If true, the split read files are gzip-compressed after the
	// fetch stage and the manifest refers to the compressed files.
	GzipReads bool

	// If true, the manifest generator skips accession directories
	// whose read files are missing or empty.  By default every
	// accession directory yields a manifest row, synthesized from
	// the naming convention without checking the files.
	StrictManifest bool

	// The directory under which a run-specific log directory is
	// created.
	LogDir string
}

// ReadConfig loads a configuration file in TOML format.
func ReadConfig(filename string) (*Config, error) {

	config := new(Config)
	if _, err := toml.DecodeFile(filename, config); err != nil {
		return nil, fmt.Errorf("read config %s: %w", filename, err)
	}

	return config, nil
}

// ApplyDefaults fills every unset field that has a usable default.
// Tool paths default to the bare tool names, resolved through PATH at
// invocation time.
func (c *Config) ApplyDefaults() {

	if c.PrefetchPath == "" {
		c.PrefetchPath = "prefetch"
	}
	if c.FasterqDumpPath == "" {
		c.FasterqDumpPath = "fasterq-dump"
	}
	if c.QiimePath == "" {
		c.QiimePath = "qiime"
	}
	if c.BiomPath == "" {
		c.BiomPath = "biom"
	}
	if c.WorkDir == "" {
		c.WorkDir = "16s_work"
	}
	if c.LogDir == "" {
		c.LogDir = "16s_logs"
	}
	if c.NumJobs == 0 {
		c.NumJobs = 4
	}
}

// Check validates the configuration.  Tool paths are deliberately not
// checked here; a bad path surfaces as an invocation failure.
func (c *Config) Check() error {

	if c.AccessionFile == "" {
		return fmt.Errorf("AccessionFile must be specified")
	}
	if c.ClassifierFile == "" {
		return fmt.Errorf("ClassifierFile must be specified")
	}
	if c.NumJobs < 1 {
		return fmt.Errorf("NumJobs must be positive, got %d", c.NumJobs)
	}
	if c.TrimLeftF < 0 || c.TrimLeftR < 0 || c.TruncLenF < 0 || c.TruncLenR < 0 {
		return fmt.Errorf("trim and truncation lengths must not be negative")
	}

	return nil
}

// Save writes the resolved configuration into the given directory, so
// that every run's log directory records the exact settings it ran
// with.
func (c *Config) Save(dir string) error {

	fname := filepath.Join(dir, "config.toml")
	fid, err := os.Create(fname)
	if err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	defer fid.Close()

	enc := toml.NewEncoder(fid)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	return nil
}
