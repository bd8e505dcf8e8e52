// Copyright 2025, the otu16s contributors.

package pipeline

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"

	"github.com/golang/snappy"
)

// Runner invokes one external tool and blocks until it exits.  step is
// a short label identifying the invocation, used to name its log file.
// A non-nil error means the tool could not be started or exited
// non-zero; in the latter case the error wraps the *exec.ExitError.
type Runner interface {
	Run(step string, name string, args ...string) error
}

// ExecRunner runs tools through os/exec.  Each tool's combined output
// is teed to Console and, when LogDir is set, to a snappy-compressed
// per-invocation log file LogDir/NN_<step>.log.sz.  ExecRunner is safe
// for concurrent use; concurrent tools interleave on the console by
// line, which matches how the wrapped tools report progress.
type ExecRunner struct {
	LogDir  string
	Console io.Writer

	seq uint32
}

func (r *ExecRunner) Run(step string, name string, args ...string) error {

	console := r.Console
	if console == nil {
		console = os.Stderr
	}

	sink := console
	var logClose func() error
	if r.LogDir != "" {
		n := atomic.AddUint32(&r.seq, 1)
		fname := filepath.Join(r.LogDir, fmt.Sprintf("%02d_%s.log.sz", n, step))
		fid, err := os.Create(fname)
		if err != nil {
			return fmt.Errorf("%s: create log: %w", step, err)
		}
		wtr := snappy.NewBufferedWriter(fid)
		sink = io.MultiWriter(console, wtr)
		logClose = func() error {
			if err := wtr.Close(); err != nil {
				fid.Close()
				return err
			}
			return fid.Close()
		}
	}

	cmd := exec.Command(name, args...)
	cmd.Env = os.Environ()
	cmd.Stdout = sink
	cmd.Stderr = sink

	runErr := cmd.Run()

	if logClose != nil {
		if err := logClose(); err != nil && runErr == nil {
			return fmt.Errorf("%s: close log: %w", step, err)
		}
	}
	if runErr != nil {
		return fmt.Errorf("%s: %s: %w", step, name, runErr)
	}

	return nil
}
