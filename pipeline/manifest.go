// Copyright 2025, the otu16s contributors.

package pipeline

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// ManifestName is the manifest file written into the working
// directory and consumed by the import step.
const ManifestName = "samples.manifest"

// Accession directories created by the fetch stage are named by the
// SRA run accession.
var accessionPat = regexp.MustCompile(`^[SED]RR[0-9]+$`)

// WriteManifest scans the working directory for accession-named
// subdirectories and writes the import manifest: a tab-separated
// table mapping each sample id to the absolute paths of its forward
// and reverse read files.  The paths follow the <acc>_1.fastq /
// <acc>_2.fastq convention and are synthesized, not verified, unless
// StrictManifest is set, in which case rows whose read files are
// missing or empty are skipped and logged.
//
// Row order is lexicographic by accession, so repeated runs over an
// unchanged working directory produce identical manifests.
func (p *Pipeline) WriteManifest() (string, error) {

	p.step("Writing manifest...")

	// Sorted by name.
	entries, err := os.ReadDir(p.cfg.WorkDir)
	if err != nil {
		return "", fmt.Errorf("manifest: scan workdir: %w", err)
	}

	mpath := p.artifact(ManifestName)
	fid, err := os.Create(mpath)
	if err != nil {
		return "", fmt.Errorf("manifest: %w", err)
	}
	defer fid.Close()

	wtr := bufio.NewWriter(fid)
	fmt.Fprintf(wtr, "sample-id\tforward-absolute-filepath\treverse-absolute-filepath\n")

	var nrows int
	for _, e := range entries {
		if !e.IsDir() || !accessionPat.MatchString(e.Name()) {
			continue
		}
		acc := e.Name()
		fwd := p.readPath(acc, 1)
		rev := p.readPath(acc, 2)

		if p.cfg.StrictManifest && (!nonEmptyFile(fwd) || !nonEmptyFile(rev)) {
			p.logger.Printf("manifest: skipping %s, read files missing or empty", acc)
			continue
		}

		fmt.Fprintf(wtr, "%s\t%s\t%s\n", acc, fwd, rev)
		nrows++
	}

	if err := wtr.Flush(); err != nil {
		return "", fmt.Errorf("manifest: %w", err)
	}

	p.logger.Printf("manifest: %d samples", nrows)
	if nrows == 0 {
		return "", fmt.Errorf("manifest: no accession directories under %s", p.cfg.WorkDir)
	}

	return mpath, nil
}

// readPath returns the absolute path of one read file for an
// accession, per the naming convention.
func (p *Pipeline) readPath(acc string, mate int) string {
	name := fmt.Sprintf("%s_%d.fastq", acc, mate)
	if p.cfg.GzipReads {
		name += ".gz"
	}
	return filepath.Join(p.absWorkDir, acc, name)
}

func nonEmptyFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}
