// Copyright 2025, the otu16s contributors.

package pipeline

import "strconv"

// Artifact names under the working directory.  These are opaque QIIME2
// containers; the pipeline never looks inside them, it only threads
// them from one invocation to the next.
const (
	DemuxArtifact    = "demux.qza"
	TableArtifact    = "table.qza"
	RepSeqsArtifact  = "rep-seqs.qza"
	StatsArtifact    = "denoising-stats.qza"
	TaxonomyArtifact = "taxonomy.qza"
)

// Fixed import declarations: the manifest names absolute paths to
// paired-end reads, and fasterq-dump emits Phred+33 quality scores.
const (
	importType   = "SampleData[PairedEndSequencesWithQuality]"
	importFormat = "PairedEndFastqManifestPhred33V2"
)

// ImportReads imports the manifest's read files into a paired-end
// QIIME2 artifact.
func (p *Pipeline) ImportReads() error {

	p.step("Importing reads...")

	return p.run.Run("import", p.cfg.QiimePath, "tools", "import",
		"--type", importType,
		"--input-path", p.artifact(ManifestName),
		"--input-format", importFormat,
		"--output-path", p.artifact(DemuxArtifact))
}

// Denoise runs paired-end denoising over the imported reads,
// producing the feature table, the representative sequences and the
// denoising statistics.  The trim and truncation lengths come from
// the configuration; zero means no trimming or truncation, which is
// the deliberate default.
func (p *Pipeline) Denoise() error {

	p.step("Denoising...")

	return p.run.Run("denoise", p.cfg.QiimePath, "dada2", "denoise-paired",
		"--i-demultiplexed-seqs", p.artifact(DemuxArtifact),
		"--p-trim-left-f", strconv.Itoa(p.cfg.TrimLeftF),
		"--p-trim-left-r", strconv.Itoa(p.cfg.TrimLeftR),
		"--p-trunc-len-f", strconv.Itoa(p.cfg.TruncLenF),
		"--p-trunc-len-r", strconv.Itoa(p.cfg.TruncLenR),
		"--p-n-threads", strconv.Itoa(p.cfg.NumJobs),
		"--o-table", p.artifact(TableArtifact),
		"--o-representative-sequences", p.artifact(RepSeqsArtifact),
		"--o-denoising-stats", p.artifact(StatsArtifact),
		"--verbose")
}

// Classify assigns a taxonomy to each representative sequence using
// the pre-trained classifier artifact.
func (p *Pipeline) Classify() error {

	p.step("Classifying...")

	return p.run.Run("classify", p.cfg.QiimePath, "feature-classifier", "classify-sklearn",
		"--i-classifier", p.cfg.ClassifierFile,
		"--i-reads", p.artifact(RepSeqsArtifact),
		"--p-n-jobs", strconv.Itoa(p.cfg.NumJobs),
		"--o-classification", p.artifact(TaxonomyArtifact))
}
