// Copyright 2025, the otu16s contributors.

package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/pgzip"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sys/unix"
)

// FetchReads downloads and splits the read files for every accession
// in the accession list.  Per accession: prefetch the .sra archive
// into an accession-named subdirectory of the working directory, split
// it into <acc>_1.fastq and <acc>_2.fastq with fasterq-dump, then
// remove the archive.  Jobs for different accessions run concurrently
// on a pool bounded by NumJobs.
//
// A missing accession list is a configuration error and fails the run
// before any tool is invoked.  Failures of individual accessions are
// collected and reported in aggregate; the stage fails only when no
// accession succeeded.
func (p *Pipeline) FetchReads() error {

	accs, err := p.readAccessionList()
	if err != nil {
		return err
	}

	p.step(fmt.Sprintf("Fetching reads for %d accessions...", len(accs)))
	p.logDiskSpace()

	bar := p.newFetchBar(len(accs))

	jobs := make([]func() error, len(accs))
	for i, acc := range accs {
		acc := acc
		jobs[i] = func() error {
			err := p.fetchOne(acc)
			bar.Add(1)
			return err
		}
	}

	errs := runPool(p.cfg.NumJobs, jobs)
	bar.Finish()

	var nfail int
	for i, err := range errs {
		if err != nil {
			nfail++
			p.logger.Printf("fetch %s failed: %v", accs[i], err)
			fmt.Fprintf(p.console, "fetch %s failed: %v\n", accs[i], err)
		}
	}
	if nfail > 0 {
		p.step(fmt.Sprintf("Fetch stage: %d of %d accessions failed, continuing with the rest",
			nfail, len(accs)))
	}
	if nfail == len(accs) {
		return fmt.Errorf("fetch: all %d accessions failed", len(accs))
	}

	p.step("Fetch done")

	return nil
}

// readAccessionList reads one accession per line, skipping blank
// lines.  The list must exist and be non-empty.
func (p *Pipeline) readAccessionList() ([]string, error) {

	fid, err := os.Open(p.cfg.AccessionFile)
	if err != nil {
		return nil, fmt.Errorf("accession list: %w", err)
	}
	defer fid.Close()

	var accs []string
	scanner := bufio.NewScanner(fid)
	for scanner.Scan() {
		acc := strings.TrimSpace(scanner.Text())
		if acc == "" {
			continue
		}
		accs = append(accs, acc)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("accession list: %w", err)
	}
	if len(accs) == 0 {
		return nil, fmt.Errorf("accession list %s is empty", p.cfg.AccessionFile)
	}

	return accs, nil
}

// fetchOne downloads and splits the reads for a single accession.
func (p *Pipeline) fetchOne(acc string) error {

	accDir := filepath.Join(p.cfg.WorkDir, acc)
	sra := filepath.Join(accDir, acc+".sra")

	err := p.run.Run("prefetch_"+acc, p.cfg.PrefetchPath, acc, "-O", p.cfg.WorkDir)
	if err != nil {
		return err
	}

	err = p.run.Run("fasterq_"+acc, p.cfg.FasterqDumpPath, "--split-files", sra, "-O", accDir)
	if err != nil {
		return err
	}

	// The archive is dead weight once the split succeeds.  Some
	// prefetch versions place it elsewhere; a missing archive is
	// not an error.
	if err := os.Remove(sra); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", sra, err)
	}

	if p.cfg.GzipReads {
		for _, mate := range []int{1, 2} {
			fq := filepath.Join(accDir, fmt.Sprintf("%s_%d.fastq", acc, mate))
			if err := gzipFile(fq); err != nil {
				return err
			}
		}
	}

	return nil
}

// gzipFile compresses src to src.gz and removes src.
func gzipFile(src string) error {

	fid, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("gzip: %w", err)
	}
	defer fid.Close()

	out, err := os.Create(src + ".gz")
	if err != nil {
		return fmt.Errorf("gzip: %w", err)
	}

	wtr := pgzip.NewWriter(out)
	if _, err := io.Copy(wtr, fid); err != nil {
		out.Close()
		return fmt.Errorf("gzip %s: %w", src, err)
	}
	if err := wtr.Close(); err != nil {
		out.Close()
		return fmt.Errorf("gzip %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("gzip %s: %w", src, err)
	}

	return os.Remove(src)
}

// logDiskSpace records the free space under the working directory.
// fasterq-dump needs scratch space several times the archive size, so
// low space is worth a warning before the downloads start.
func (p *Pipeline) logDiskSpace() {

	var st unix.Statfs_t
	if err := unix.Statfs(p.cfg.WorkDir, &st); err != nil {
		p.logger.Printf("statfs %s: %v", p.cfg.WorkDir, err)
		return
	}

	free := st.Bavail * uint64(st.Bsize)
	gib := float64(free) / (1 << 30)
	p.logger.Printf("%.1f GiB free under %s", gib, p.cfg.WorkDir)
	if gib < 10 {
		fmt.Fprintf(p.console, "warning: only %.1f GiB free under %s\n", gib, p.cfg.WorkDir)
	}
}

// newFetchBar builds the per-accession progress bar shown during the
// fetch stage.
func (p *Pipeline) newFetchBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.console),
		progressbar.OptionSetDescription("fetch"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(250*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}
