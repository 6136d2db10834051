package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/mkovacs/asnkit/internal/sections"
)

var sectionsCmd = &cobra.Command{
	Use:   "sections [file]",
	Short: "Split a specification into one file per ASN.1 section",
	Long: `Sections writes each marker-delimited ASN.1 block to its own file,
named after the heading line that precedes the block in the document
(e.g. "TDD-Config information element.txt"). These per-section files
feed the mapping and index stages.`,
	Args: cobra.ExactArgs(1),
	RunE: runSections,
}

func runSections(cmd *cobra.Command, args []string) error {
	outDir, _ := cmd.Flags().GetString("out-dir")
	_, err := sections.SplitFile(args[0], outDir, os.Stdout)
	return err
}

func init() {
	sectionsCmd.Flags().String("out-dir", "asn1_sections", "directory for the per-section files")

	rootCmd.AddCommand(sectionsCmd)
}
