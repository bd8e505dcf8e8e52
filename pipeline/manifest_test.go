// Copyright 2025, the otu16s contributors.

package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteManifest(t *testing.T) {

	cfg := testConfig(t, "SRR1")
	for _, acc := range []string{"SRR2", "DRR1", "ERR31"} {
		mkAccessionDir(t, cfg, acc)
	}

	// Non-accession entries are ignored: a stray directory and a
	// plain file with an accession-like name.
	mkAccessionDir(t, cfg, "scratch")
	if err := os.WriteFile(filepath.Join(cfg.WorkDir, "SRR9"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	p := testPipeline(t, cfg, &fakeRunner{})
	mpath, err := p.WriteManifest()
	if err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(mpath)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")

	if lines[0] != "sample-id\tforward-absolute-filepath\treverse-absolute-filepath" {
		t.Fatalf("bad header: %q", lines[0])
	}

	// Lexicographic by accession directory name.
	wantOrder := []string{"DRR1", "ERR31", "SRR2"}
	if len(lines)-1 != len(wantOrder) {
		t.Fatalf("got %d rows, want %d:\n%s", len(lines)-1, len(wantOrder), raw)
	}

	for i, acc := range wantOrder {
		fields := strings.Split(lines[i+1], "\t")
		if len(fields) != 3 {
			t.Fatalf("row %d has %d fields: %q", i, len(fields), lines[i+1])
		}
		if fields[0] != acc {
			t.Errorf("row %d sample-id = %q, want %q", i, fields[0], acc)
		}
		for mate, f := range []string{fields[1], fields[2]} {
			if !filepath.IsAbs(f) {
				t.Errorf("row %d path not absolute: %q", i, f)
			}
			wantSuffix := filepath.Join(acc, acc+"_"+string(rune('1'+mate))+".fastq")
			if !strings.HasSuffix(f, wantSuffix) {
				t.Errorf("row %d path %q does not end in %q", i, f, wantSuffix)
			}
		}
	}
}

func TestWriteManifestStable(t *testing.T) {

	cfg := testConfig(t, "SRR1")
	for _, acc := range []string{"SRR12", "SRR7", "ERR3"} {
		mkAccessionDir(t, cfg, acc)
	}

	p := testPipeline(t, cfg, &fakeRunner{})

	mpath, err := p.WriteManifest()
	if err != nil {
		t.Fatal(err)
	}
	first, err := os.ReadFile(mpath)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := p.WriteManifest(); err != nil {
		t.Fatal(err)
	}
	second, err := os.ReadFile(mpath)
	if err != nil {
		t.Fatal(err)
	}

	if string(first) != string(second) {
		t.Errorf("manifest differs across reruns:\n%s\nvs\n%s", first, second)
	}
}

func TestWriteManifestGzipPaths(t *testing.T) {

	cfg := testConfig(t, "SRR1")
	cfg.GzipReads = true
	mkAccessionDir(t, cfg, "SRR21")

	p := testPipeline(t, cfg, &fakeRunner{})
	mpath, err := p.WriteManifest()
	if err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(mpath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "SRR21_1.fastq.gz") || !strings.Contains(string(raw), "SRR21_2.fastq.gz") {
		t.Errorf("manifest does not reference compressed reads:\n%s", raw)
	}
}

func TestWriteManifestDanglingPathsByDefault(t *testing.T) {

	// Read files are never created; the row is still emitted.
	cfg := testConfig(t, "SRR1")
	mkAccessionDir(t, cfg, "SRR40")

	p := testPipeline(t, cfg, &fakeRunner{})
	mpath, err := p.WriteManifest()
	if err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(mpath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "SRR40") {
		t.Errorf("row for SRR40 missing despite default loose mode:\n%s", raw)
	}
}

func TestWriteManifestStrict(t *testing.T) {

	cfg := testConfig(t, "SRR1")
	cfg.StrictManifest = true

	// SRR50 has both read files, SRR51 has an empty one, SRR52 has
	// none.
	for _, acc := range []string{"SRR50", "SRR51", "SRR52"} {
		mkAccessionDir(t, cfg, acc)
	}
	for _, m := range []string{"_1", "_2"} {
		err := os.WriteFile(filepath.Join(cfg.WorkDir, "SRR50", "SRR50"+m+".fastq"), []byte("@r\nA\n+\nF\n"), 0644)
		if err != nil {
			t.Fatal(err)
		}
	}
	err := os.WriteFile(filepath.Join(cfg.WorkDir, "SRR51", "SRR51_1.fastq"), nil, 0644)
	if err != nil {
		t.Fatal(err)
	}

	p := testPipeline(t, cfg, &fakeRunner{})
	mpath, err := p.WriteManifest()
	if err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(mpath)
	if err != nil {
		t.Fatal(err)
	}
	s := string(raw)
	if !strings.Contains(s, "SRR50") {
		t.Error("complete sample SRR50 missing from strict manifest")
	}
	if strings.Contains(s, "SRR51") || strings.Contains(s, "SRR52") {
		t.Errorf("incomplete samples present in strict manifest:\n%s", s)
	}
}

func TestWriteManifestNoSamples(t *testing.T) {

	cfg := testConfig(t, "SRR1")
	p := testPipeline(t, cfg, &fakeRunner{})

	if _, err := p.WriteManifest(); err == nil {
		t.Fatal("expected error for a working directory with no accession directories")
	}
}
