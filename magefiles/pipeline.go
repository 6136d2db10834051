//go:build mage

package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/magefile/mage/mg"
)

// asnkit runs the built CLI binary with the given arguments.
func asnkit(args ...string) error {
	cmd := exec.Command(filepath.Join(binDir, binName), args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// Extract pulls ASN.1 blocks from every document under docs/ into extracted/.
func Extract() error {
	mg.Deps(Build)
	docs, err := filepath.Glob("docs/*.txt")
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("no input documents under docs/")
	}
	args := append([]string{"extract"}, docs...)
	if err := asnkit(args...); err != nil {
		return fmt.Errorf("extract stage: %w", err)
	}
	for _, doc := range docs {
		src := doc[:len(doc)-len(filepath.Ext(doc))] + ".asn"
		dst := filepath.Join("extracted", filepath.Base(src))
		if err := os.Rename(src, dst); err != nil {
			return fmt.Errorf("moving %s: %w", src, err)
		}
	}
	return nil
}

// Sections splits every document under docs/ into per-section files.
func Sections() error {
	mg.Deps(Build)
	docs, err := filepath.Glob("docs/*.txt")
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if err := asnkit("sections", doc, "--out-dir", "asn1_sections"); err != nil {
			return fmt.Errorf("sections stage: %w", err)
		}
	}
	return nil
}

// Mapping builds the .asn to section manifest from the extract and sections output.
func Mapping() error {
	mg.Deps(Build)
	if err := asnkit("mapping", "--asn-dir", "extracted", "--sections-dir", "asn1_sections"); err != nil {
		return fmt.Errorf("mapping stage: %w", err)
	}
	return nil
}

// Index ingests the mapped sections into the retrieval index.
func Index() error {
	mg.Deps(Build)
	if err := asnkit("index", "store", "--index-dir", "index", "--sections-dir", "asn1_sections"); err != nil {
		return fmt.Errorf("index stage: %w", err)
	}
	return nil
}
