// Copyright 2025, the otu16s contributors.

package pipeline

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/XiaoHan21/16S/config"
)

// call records one external tool invocation seen by the fake runner.
type call struct {
	step string
	argv []string
}

// fakeRunner stands in for the external tools.  It records every
// invocation and tracks how many run at the same time.
type fakeRunner struct {
	mu        sync.Mutex
	calls     []call
	active    int
	maxActive int

	// delay keeps each invocation open long enough for concurrent
	// invocations to overlap.
	delay time.Duration

	// onRun, when set, is consulted for each invocation and may
	// create the files the real tool would have written.
	onRun func(step string, argv []string) error
}

func (f *fakeRunner) Run(step string, name string, args ...string) error {

	argv := append([]string{name}, args...)

	f.mu.Lock()
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	f.calls = append(f.calls, call{step: step, argv: argv})
	onRun := f.onRun
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	var err error
	if onRun != nil {
		err = onRun(step, argv)
	}

	f.mu.Lock()
	f.active--
	f.mu.Unlock()

	return err
}

// steps returns the step labels in invocation order.
func (f *fakeRunner) steps() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		out = append(out, c.step)
	}
	return out
}

// callFor returns the first recorded invocation with the given step
// label.
func (f *fakeRunner) callFor(t *testing.T, step string) call {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c.step == step {
			return c
		}
	}
	t.Fatalf("no invocation recorded for step %s", step)
	return call{}
}

// flagValue returns the argument following the given flag in argv.
func flagValue(t *testing.T, argv []string, flag string) string {
	t.Helper()
	for i, a := range argv {
		if a == flag && i+1 < len(argv) {
			return argv[i+1]
		}
	}
	t.Fatalf("flag %s not found in %v", flag, argv)
	return ""
}

// testConfig returns a config rooted in a fresh temporary directory,
// with an accession list holding the given accessions.
func testConfig(t *testing.T, accs ...string) *config.Config {
	t.Helper()

	dir := t.TempDir()
	listFile := filepath.Join(dir, "accessions.txt")
	if err := os.WriteFile(listFile, []byte(strings.Join(accs, "\n")+"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		WorkDir:        filepath.Join(dir, "work"),
		AccessionFile:  listFile,
		ClassifierFile: filepath.Join(dir, "classifier.qza"),
		NumJobs:        2,
	}
	cfg.ApplyDefaults()
	if err := os.MkdirAll(cfg.WorkDir, 0755); err != nil {
		t.Fatal(err)
	}

	return cfg
}

func testPipeline(t *testing.T, cfg *config.Config, run Runner) *Pipeline {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	p, err := New(cfg, run, logger, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// mkAccessionDir simulates prefetch creating the accession directory.
func mkAccessionDir(t *testing.T, cfg *config.Config, acc string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(cfg.WorkDir, acc), 0755); err != nil {
		t.Fatal(err)
	}
}

// mkAccessionDirByName is the same, callable from fake runner
// callbacks running off the test goroutine.
func mkAccessionDirByName(workDir, acc string) {
	os.MkdirAll(filepath.Join(workDir, acc), 0755)
}
