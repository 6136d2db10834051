// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sections splits a specification document into one file per
// ASN.1 block. Each block is named after the last non-empty prose line
// before its start marker, which in 3GPP documents is the message or
// information-element heading (e.g. "TDD-Config information element").
package sections

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mkovacs/asnkit/internal/extract"
)

// Block is one extracted ASN.1 section.
type Block struct {
	// Title is the heading line preceding the block, whitespace-trimmed.
	Title string

	// Filename is the sanitized, collision-numbered output name.
	Filename string

	// Content is the block body, right-trimmed and newline-terminated.
	Content string
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// reservedChars are characters rejected by common filesystems.
const reservedChars = `\/:*?"<>|`

// Split scans lines for blocks whose start and stop markers stand alone
// on their lines (ignoring surrounding whitespace) and returns them in
// document order. Unlike the extractor's containment matching, the
// splitter needs whole-line markers so heading back-scans stay
// reliable. A block with no stop marker before end of input is dropped
// with a warning on w.
func Split(lines []string, w io.Writer) []Block {
	var blocks []Block
	collisions := make(map[string]int)

	for i := 0; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) != extract.StartMarker {
			continue
		}

		title := findHeading(lines, i)

		j := i + 1
		var body []string
		for j < len(lines) && strings.TrimSpace(lines[j]) != extract.StopMarker {
			body = append(body, lines[j])
			j++
		}
		if j == len(lines) {
			fmt.Fprintf(w, "warning: %s missing for %q, skipping\n", extract.StopMarker, title)
			break
		}

		blocks = append(blocks, Block{
			Title:    title,
			Filename: sanitizeTitle(title, collisions),
			Content:  strings.TrimRight(strings.Join(body, "\n"), " \t\r\n") + "\n",
		})
		i = j
	}

	return blocks
}

// findHeading back-scans for the last non-empty line before the marker
// at startIndex. A document that opens with a marker gets a positional
// fallback name.
func findHeading(lines []string, startIndex int) string {
	for i := startIndex - 1; i >= 0; i-- {
		if candidate := strings.TrimSpace(lines[i]); candidate != "" {
			return candidate
		}
	}
	return fmt.Sprintf("section_%d", startIndex)
}

// sanitizeTitle turns a heading into a safe filename: whitespace runs
// collapse to single spaces, non-printable-ASCII and filesystem
// reserved characters become underscores, and repeated titles get a
// numeric suffix. The result carries a .txt extension.
func sanitizeTitle(title string, collisions map[string]int) string {
	cleaned := strings.TrimSpace(whitespaceRun.ReplaceAllString(title, " "))

	var b strings.Builder
	for _, r := range cleaned {
		switch {
		case r < 32 || r >= 127:
			b.WriteByte('_')
		case strings.ContainsRune(reservedChars, r):
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	cleaned = b.String()
	if cleaned == "" {
		cleaned = "section"
	}

	count := collisions[cleaned]
	collisions[cleaned] = count + 1
	if count > 0 {
		cleaned = fmt.Sprintf("%s_%d", cleaned, count)
	}
	return cleaned + ".txt"
}

// SplitFile splits inputPath into per-section files under outDir,
// creating the directory if needed. It reports each written file to w
// and returns the number of blocks written. A document with no blocks
// is an error.
func SplitFile(inputPath, outDir string, w io.Writer) (int, error) {
	in, err := os.Open(inputPath)
	if err != nil {
		return 0, fmt.Errorf("opening input %s: %w", inputPath, err)
	}
	defer in.Close()

	lines, err := extract.ReadLines(in)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", inputPath, err)
	}

	blocks := Split(lines, w)
	if len(blocks) == 0 {
		return 0, fmt.Errorf("no ASN.1 blocks found in %s", inputPath)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return 0, fmt.Errorf("creating output directory: %w", err)
	}

	for _, block := range blocks {
		path := filepath.Join(outDir, block.Filename)
		if err := os.WriteFile(path, []byte(block.Content), 0o644); err != nil {
			return 0, fmt.Errorf("writing %s: %w", path, err)
		}
		fmt.Fprintf(w, "wrote: %s\n", block.Filename)
	}

	fmt.Fprintf(w, "\nExtracted %d blocks into %s\n", len(blocks), outDir)
	return len(blocks), nil
}
