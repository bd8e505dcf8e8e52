// Copyright 2025, the otu16s contributors.

package pipeline

import (
	"fmt"
	"path/filepath"
)

// Export locations under the working directory.  The export step
// unpacks the opaque artifacts into the biom interchange layout, and
// the conversion step turns the feature table into plain TSV.
const (
	ExportRoot        = "otu"
	TableExportDir    = "otu/table"
	TaxonomyExportDir = "otu/taxonomy"
	OTUTable          = "otu/otu_table.tsv"

	// File name biom exports use for the feature table.
	biomTableFile = "feature-table.biom"
)

// ExportResults extracts the feature table and the taxonomy
// assignment into interchange form, then converts the feature table
// to a tab-separated abundance table.  Rerunning over the same
// artifacts overwrites the outputs deterministically.
func (p *Pipeline) ExportResults() error {

	p.step("Exporting results...")

	err := p.run.Run("export_table", p.cfg.QiimePath, "tools", "export",
		"--input-path", p.artifact(TableArtifact),
		"--output-path", p.artifact(TableExportDir))
	if err != nil {
		return err
	}

	err = p.run.Run("export_taxonomy", p.cfg.QiimePath, "tools", "export",
		"--input-path", p.artifact(TaxonomyArtifact),
		"--output-path", p.artifact(TaxonomyExportDir))
	if err != nil {
		return err
	}

	biomFile := filepath.Join(p.artifact(TableExportDir), biomTableFile)
	err = p.run.Run("convert", p.cfg.BiomPath, "convert",
		"-i", biomFile,
		"-o", p.artifact(OTUTable),
		"--to-tsv")
	if err != nil {
		return err
	}

	p.step(fmt.Sprintf("Wrote %s", p.artifact(OTUTable)))

	return nil
}
