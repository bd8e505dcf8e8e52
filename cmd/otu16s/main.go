// Copyright 2025, the otu16s contributors.

// otu16s turns a list of public SRA run accessions into a
// tab-separated OTU abundance table.  It is the entry point for the
// pipeline and normally the only program run directly; every stage
// delegates its computation to an external tool (prefetch,
// fasterq-dump, qiime, biom) and otu16s chains them in a fixed order:
//
//  1. prefetch + fasterq-dump each accession into the working
//     directory, up to NumJobs accessions at a time;
//  2. write the samples.manifest mapping each sample to its paired
//     read files;
//  3. qiime import, denoise (DADA2) and classify;
//  4. export the feature table and taxonomy, convert the table to TSV.
//
// otu16s can be invoked using a configuration file in TOML format,
// command-line flags, or both; flags override the file.  A typical
// invocation is:
//
//	otu16s --AccessionFile=runs.txt --ClassifierFile=classifier.qza \
//	    --WorkDir=work --NumJobs=8
//
// Each run writes its logs, the resolved configuration, and the
// compressed output of every tool invocation into a run-specific
// directory under LogDir.  The final table is written to
// <WorkDir>/otu/otu_table.tsv.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/profile"

	"github.com/XiaoHan21/16S/config"
	"github.com/XiaoHan21/16S/pipeline"
)

var (
	cfg    *config.Config
	logger *log.Logger

	// Run-specific directory under cfg.LogDir.
	runLogDir string

	doProfile bool
)

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "otu16s: "+format+"\n", args...)
	os.Exit(1)
}

func handleArgs() {

	configFile := flag.String("Config", "", "TOML file containing configuration parameters")
	prefetchPath := flag.String("PrefetchPath", "", "Path to the prefetch executable")
	fasterqPath := flag.String("FasterqDumpPath", "", "Path to the fasterq-dump executable")
	qiimePath := flag.String("QiimePath", "", "Path to the qiime executable")
	biomPath := flag.String("BiomPath", "", "Path to the biom executable")
	workDir := flag.String("WorkDir", "", "Directory for downloads and pipeline artifacts")
	accessionFile := flag.String("AccessionFile", "", "File with one run accession per line")
	classifierFile := flag.String("ClassifierFile", "", "Pre-trained classifier artifact")
	numJobs := flag.Int("NumJobs", 0, "Concurrent fetch jobs and tool thread budget")
	trimLeftF := flag.Int("TrimLeftF", 0, "Bases trimmed from the 5' end of forward reads")
	trimLeftR := flag.Int("TrimLeftR", 0, "Bases trimmed from the 5' end of reverse reads")
	truncLenF := flag.Int("TruncLenF", 0, "Truncation position for forward reads")
	truncLenR := flag.Int("TruncLenR", 0, "Truncation position for reverse reads")
	gzipReads := flag.Bool("GzipReads", false, "Compress the split read files")
	strictManifest := flag.Bool("StrictManifest", false, "Skip manifest rows whose read files are missing or empty")
	logDir := flag.String("LogDir", "", "Directory where run logs are written")
	flag.BoolVar(&doProfile, "Profile", false, "Write a CPU profile into the run log directory")

	flag.Parse()

	if *configFile != "" {
		var err error
		cfg, err = config.ReadConfig(*configFile)
		if err != nil {
			fatal("%v", err)
		}
	} else {
		cfg = new(config.Config)
	}

	if *prefetchPath != "" {
		cfg.PrefetchPath = *prefetchPath
	}
	if *fasterqPath != "" {
		cfg.FasterqDumpPath = *fasterqPath
	}
	if *qiimePath != "" {
		cfg.QiimePath = *qiimePath
	}
	if *biomPath != "" {
		cfg.BiomPath = *biomPath
	}
	if *workDir != "" {
		cfg.WorkDir = *workDir
	}
	if *accessionFile != "" {
		cfg.AccessionFile = *accessionFile
	}
	if *classifierFile != "" {
		cfg.ClassifierFile = *classifierFile
	}
	if *numJobs != 0 {
		cfg.NumJobs = *numJobs
	}
	if *trimLeftF != 0 {
		cfg.TrimLeftF = *trimLeftF
	}
	if *trimLeftR != 0 {
		cfg.TrimLeftR = *trimLeftR
	}
	if *truncLenF != 0 {
		cfg.TruncLenF = *truncLenF
	}
	if *truncLenR != 0 {
		cfg.TruncLenR = *truncLenR
	}
	if *gzipReads {
		cfg.GzipReads = true
	}
	if *strictManifest {
		cfg.StrictManifest = true
	}
	if *logDir != "" {
		cfg.LogDir = *logDir
	}

	cfg.ApplyDefaults()
}

// setupDirs creates the working directory and a run-specific log
// directory named by a fresh run id.
func setupDirs() {

	if err := os.MkdirAll(cfg.WorkDir, 0755); err != nil {
		fatal("%v", err)
	}

	uid, err := uuid.NewUUID()
	if err != nil {
		fatal("%v", err)
	}
	runLogDir = filepath.Join(cfg.LogDir, uid.String())
	if err := os.MkdirAll(runLogDir, 0755); err != nil {
		fatal("%v", err)
	}
}

func setupLog() {
	fid, err := os.Create(filepath.Join(runLogDir, "otu16s.log"))
	if err != nil {
		fatal("%v", err)
	}
	logger = log.New(fid, "", log.Ltime)
}

// exitCode maps a pipeline error to the process exit status: the
// failed tool's own status when there is one, otherwise 1.
func exitCode(err error) int {
	var xerr *exec.ExitError
	if errors.As(err, &xerr) {
		if c := xerr.ExitCode(); c > 0 {
			return c
		}
	}
	return 1
}

func main() {

	handleArgs()

	if err := cfg.Check(); err != nil {
		fatal("%v", err)
	}

	setupDirs()
	setupLog()

	if err := cfg.Save(runLogDir); err != nil {
		fatal("%v", err)
	}

	if doProfile {
		p := profile.Start(profile.ProfilePath(runLogDir))
		defer p.Stop()
	}

	logger.Printf("Writing artifacts to %s", cfg.WorkDir)
	logger.Printf("Writing logs to %s", runLogDir)

	runner := &pipeline.ExecRunner{LogDir: runLogDir}
	pipe, err := pipeline.New(cfg, runner, logger, os.Stderr)
	if err != nil {
		fatal("%v", err)
	}

	if err := pipe.Run(); err != nil {
		logger.Print(err)
		fmt.Fprintf(os.Stderr, "otu16s: %v\n", err)
		os.Exit(exitCode(err))
	}

	logger.Print("All done")
	fmt.Fprintln(os.Stderr, "All done")
}
