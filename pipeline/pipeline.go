// Copyright 2025, the otu16s contributors.

// Package pipeline implements the otu16s processing stages.  The
// pipeline takes a list of SRA run accessions to a tab-separated OTU
// abundance table by chaining external tools: prefetch and
// fasterq-dump for the downloads, QIIME2 for import, denoising,
// classification and export, and biom for the final format conversion.
//
// All heavy computation happens inside the external tools.  The
// stages here contribute directory bookkeeping, bounded fan-out over
// accessions, and the assembly of each tool invocation.  Stages
// communicate only through files in the working directory; each
// artifact is written by exactly one stage before the next one starts.
package pipeline

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/XiaoHan21/16S/config"
)

// Pipeline runs the stages in their fixed order against one
// configuration.  The configuration is never modified after New.
type Pipeline struct {
	cfg     *config.Config
	run     Runner
	logger  *log.Logger
	console io.Writer

	// Absolute form of cfg.WorkDir, so manifest rows stay valid
	// from any working directory.
	absWorkDir string
}

// New returns a pipeline over the given configuration.  Output meant
// for the operator goes to console (os.Stderr if nil); the logger
// receives the detailed run log and may not be nil.
func New(cfg *config.Config, run Runner, logger *log.Logger, console io.Writer) (*Pipeline, error) {

	if console == nil {
		console = os.Stderr
	}

	abs, err := filepath.Abs(cfg.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("resolve workdir: %w", err)
	}

	return &Pipeline{
		cfg:        cfg,
		run:        run,
		logger:     logger,
		console:    console,
		absWorkDir: abs,
	}, nil
}

// Run executes the five stages in order, stopping at the first stage
// that fails.
func (p *Pipeline) Run() error {

	if err := p.FetchReads(); err != nil {
		return err
	}
	if _, err := p.WriteManifest(); err != nil {
		return err
	}
	if err := p.ImportReads(); err != nil {
		return err
	}
	if err := p.Denoise(); err != nil {
		return err
	}
	if err := p.Classify(); err != nil {
		return err
	}
	if err := p.ExportResults(); err != nil {
		return err
	}

	return nil
}

// step announces a stage boundary on the console and in the run log.
func (p *Pipeline) step(msg string) {
	io.WriteString(p.console, msg+"\n")
	p.logger.Print(msg)
}

// artifact returns the path of a named artifact in the working
// directory.
func (p *Pipeline) artifact(name string) string {
	return filepath.Join(p.cfg.WorkDir, name)
}
