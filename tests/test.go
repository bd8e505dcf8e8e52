// Copyright 2025, the otu16s contributors.

// test is a script that runs end-to-end checks on the otu16s binary
// against stub versions of the external tools (prefetch,
// fasterq-dump, qiime, biom).  The stubs write the files the real
// tools would write, with fixed contents, so the final outputs are
// predictable.
//
// Build and install otu16s first, then run:
//
// go run test.go
//
// Pass -bin to point at an uninstalled binary.  Cases are defined in
// tests.toml.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/golang/snappy"
)

var (
	logger *log.Logger

	binPath = flag.String("bin", "otu16s", "path to the otu16s binary")
)

type Test struct {
	Name string

	// Accessions to place in the accession list.  When empty the
	// list file is not created at all.
	Accessions []string

	// Extra command-line options.
	Opts []string

	// Expected process exit code.
	ExitCode int

	// Files that must exist under the sandbox after the run.
	Exist []string

	// Pairs of produced/expected files to compare.  The expected
	// member is resolved against the tests directory, the produced
	// member against the sandbox.
	Files [][2]string
}

func getTests() []Test {

	var v struct {
		Test []Test
	}
	if _, err := toml.DecodeFile("tests.toml", &v); err != nil {
		panic(err)
	}

	logger.Printf("Found %d tests\n", len(v.Test))

	return v.Test
}

// Stub tools.  Each one writes the outputs its real counterpart
// would, with fixed contents, and records its invocation.
var stubs = map[string]string{
	"prefetch": `#!/bin/sh
echo "prefetch $@" >> "$STUB_CALLS"
acc=$1
out=$3
mkdir -p "$out/$acc"
echo sra-archive > "$out/$acc/$acc.sra"
`,
	"fasterq-dump": `#!/bin/sh
echo "fasterq-dump $@" >> "$STUB_CALLS"
sra=$2
dir=$4
base=$(basename "$sra" .sra)
printf '@r1\nACGT\n+\nFFFF\n' > "$dir/${base}_1.fastq"
printf '@r1\nTGCA\n+\nFFFF\n' > "$dir/${base}_2.fastq"
`,
	"qiime": `#!/bin/sh
echo "qiime $@" >> "$STUB_CALLS"
prev=""
outpath=""
inpath=""
for a in "$@"; do
    case "$prev" in
    --output-path) outpath=$a ;;
    --input-path) inpath=$a ;;
    --o-table|--o-representative-sequences|--o-denoising-stats|--o-classification)
        echo qza-stub > "$a" ;;
    esac
    prev=$a
done
case "$1 $2" in
"tools import")
    echo qza-stub > "$outpath" ;;
"tools export")
    mkdir -p "$outpath"
    case "$inpath" in
    *table.qza) echo BIOM-STUB > "$outpath/feature-table.biom" ;;
    *taxonomy.qza) printf 'Feature ID\tTaxon\n' > "$outpath/taxonomy.tsv" ;;
    esac ;;
esac
`,
	"biom": `#!/bin/sh
echo "biom $@" >> "$STUB_CALLS"
prev=""
in=""
out=""
for a in "$@"; do
    case "$prev" in
    -i) in=$a ;;
    -o) out=$a ;;
    esac
    prev=$a
done
echo "# Constructed from biom file" > "$out"
cat "$in" >> "$out"
`,
}

// writeStubs installs the stub tools into dir.
func writeStubs(dir string) {
	for name, body := range stubs {
		fname := path.Join(dir, name)
		if err := os.WriteFile(fname, []byte(body), 0755); err != nil {
			panic(err)
		}
	}
}

// getReader returns a reader for the contents of a file.  Snappy
// compression is handled automatically.
func getReader(f string) (io.Reader, io.Closer) {

	h, err := os.Open(f)
	if err != nil {
		panic(err)
	}

	if strings.HasSuffix(f, ".sz") {
		return snappy.NewReader(h), h
	}
	return h, h
}

// compare panics unless the contents of the files named by f1 and f2
// are identical.  Snappy compression is handled automatically.
func compare(f1, f2 string) {

	r1, c1 := getReader(f1)
	r2, c2 := getReader(f2)
	defer c1.Close()
	defer c2.Close()

	b1, err := io.ReadAll(r1)
	if err != nil {
		panic(err)
	}
	b2, err := io.ReadAll(r2)
	if err != nil {
		panic(err)
	}

	if string(b1) != string(b2) {
		msg := fmt.Sprintf("%s\ndiffers from\n%s:\n%q\nvs\n%q\n", f1, f2, b1, b2)
		panic(msg)
	}
}

func run(tests []Test) {

	for _, t := range tests {

		base, err := os.MkdirTemp("", "otu16s-test-")
		if err != nil {
			panic(err)
		}

		bindir := path.Join(base, "bin")
		if err := os.MkdirAll(bindir, 0755); err != nil {
			panic(err)
		}
		writeStubs(bindir)

		listFile := path.Join(base, "accessions.txt")
		if len(t.Accessions) > 0 {
			body := strings.Join(t.Accessions, "\n") + "\n"
			if err := os.WriteFile(listFile, []byte(body), 0644); err != nil {
				panic(err)
			}
		}

		c := []string{
			"-AccessionFile=" + listFile,
			"-ClassifierFile=" + path.Join(base, "classifier.qza"),
			"-WorkDir=" + path.Join(base, "work"),
			"-LogDir=" + path.Join(base, "logs"),
			"-PrefetchPath=" + path.Join(bindir, "prefetch"),
			"-FasterqDumpPath=" + path.Join(bindir, "fasterq-dump"),
			"-QiimePath=" + path.Join(bindir, "qiime"),
			"-BiomPath=" + path.Join(bindir, "biom"),
		}
		c = append(c, t.Opts...)

		logger.Printf("%s\n", t.Name)
		logger.Printf("Running command %s\n", *binPath)
		logger.Printf("with arguments: %v\n", c)

		cmd := exec.Command(*binPath, c...)
		cmd.Env = append(os.Environ(), "STUB_CALLS="+path.Join(base, "calls.log"))
		cmd.Stderr = os.Stderr
		err = cmd.Run()

		code := 0
		if err != nil {
			xerr, ok := err.(*exec.ExitError)
			if !ok {
				panic(err)
			}
			code = xerr.ExitCode()
		}
		if code != t.ExitCode {
			panic(fmt.Sprintf("%s: exit code %d, want %d", t.Name, code, t.ExitCode))
		}

		for _, f := range t.Exist {
			if _, err := os.Stat(path.Join(base, f)); err != nil {
				panic(fmt.Sprintf("%s: missing %s", t.Name, f))
			}
		}
		for _, fp := range t.Files {
			compare(path.Join(base, fp[0]), fp[1])
		}

		if len(t.Accessions) == 0 {
			// Configuration error: no tool may have run.
			if _, err := os.Stat(path.Join(base, "calls.log")); err == nil {
				panic(fmt.Sprintf("%s: tools were invoked despite the missing list", t.Name))
			}
		}

		os.RemoveAll(base)
		logger.Printf("done\n\n")
	}
}

func setupLog() {
	fid, err := os.Create("test.log")
	if err != nil {
		panic(err)
	}
	logger = log.New(fid, "", log.Ltime)
}

func main() {
	flag.Parse()
	setupLog()
	tests := getTests()
	run(tests)
	fmt.Println("all tests passed")
}
