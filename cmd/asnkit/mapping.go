package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkovacs/asnkit/internal/mapping"
	"github.com/mkovacs/asnkit/pkg/types"
)

var mappingCmd = &cobra.Command{
	Use:   "mapping",
	Short: "Record which section files each extracted .asn file uses",
	Long: `Mapping compares every .asn file in the extracted directory against
every per-section file and writes a JSON manifest associating them.

The default mode (defs) splits each section into individual "Name ::="
definition blocks and matches them after whitespace normalization, so a
section whose definitions appear scattered through the .asn file still
matches. Mode content requires the whole section to appear contiguously
(strict); mode name matches identifiers against section filenames
(loose).`,
	RunE: runMapping,
}

func runMapping(cmd *cobra.Command, args []string) error {
	asnDir, _ := cmd.Flags().GetString("asn-dir")
	sectionsDir, _ := cmd.Flags().GetString("sections-dir")
	mode, _ := cmd.Flags().GetString("mode")
	out, _ := cmd.Flags().GetString("out")

	manifest, err := mapping.Build(asnDir, sectionsDir, types.MappingMode(mode))
	if err != nil {
		return err
	}
	if err := mapping.Save(manifest, out); err != nil {
		return err
	}

	matched := 0
	for _, sources := range manifest {
		if len(sources) > 0 {
			matched++
		}
	}
	fmt.Printf("Wrote %s: %d .asn file(s), %d with matches\n", out, len(manifest), matched)
	return nil
}

func init() {
	mappingCmd.Flags().String("asn-dir", "extracted", "directory of extracted .asn files")
	mappingCmd.Flags().String("sections-dir", "asn1_sections", "directory of per-section files")
	mappingCmd.Flags().String("mode", "defs", "match mode: defs, content, or name")
	mappingCmd.Flags().String("out", "mapping.json", "manifest output path")

	rootCmd.AddCommand(mappingCmd)
}
