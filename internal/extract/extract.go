// Package extract pulls ASN.1 module text out of protocol specification
// documents. 3GPP specifications interleave prose with ASN.1 fragments
// bracketed by "-- ASN1START" / "-- ASN1STOP" marker lines; a single
// forward scan collects every line strictly between matching markers
// and writes the concatenation as a standalone .asn source file.
package extract

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	// StartMarker arms capture. Matched by substring containment, so a
	// marker with surrounding text on the same line still triggers.
	StartMarker = "-- ASN1START"

	// StopMarker disarms capture. Same containment rule.
	StopMarker = "-- ASN1STOP"
)

// maxLineSize caps scanner lines well above anything a specification
// document produces.
const maxLineSize = 1 << 20

// mode is the two-state capture mode of the scan.
type mode int

const (
	idle mode = iota
	capturing
)

// Extract returns every line strictly between START/STOP marker pairs,
// in document order, marker lines excluded. Lines are kept verbatim.
// A STOP with no preceding START is ignored; a START while already
// capturing is ordinary content; a block left open at end of input is
// kept in full. Extract never fails.
func Extract(lines []string) []string {
	var captured []string
	state := idle

	for _, line := range lines {
		switch state {
		case idle:
			if strings.Contains(line, StartMarker) {
				state = capturing
			}
		case capturing:
			if strings.Contains(line, StopMarker) {
				state = idle
			} else {
				captured = append(captured, line)
			}
		}
	}

	return captured
}

// ReadLines reads r to completion and returns its lines without
// terminators. A missing newline on the last line is tolerated.
func ReadLines(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

// ExtractReader scans r line by line and returns the captured block
// lines.
func ExtractReader(r io.Reader) ([]string, error) {
	lines, err := ReadLines(r)
	if err != nil {
		return nil, err
	}
	return Extract(lines), nil
}

// OutputPath derives the .asn output path from an input path: the
// extension after the final dot of the base name is replaced with
// ".asn", or ".asn" is appended when the base name has no dot. Dots in
// parent directory names are not extension separators.
func OutputPath(input string) string {
	base := filepath.Base(input)
	i := strings.LastIndexByte(base, '.')
	if i < 0 {
		return input + ".asn"
	}
	return filepath.Join(filepath.Dir(input), base[:i]+".asn")
}

// ExtractFile runs the scan over inputPath and writes the captured
// lines, each newline-terminated, to outputPath (created or truncated).
// The input is read completely before the output is touched, so a
// missing input never creates or clobbers an output file. Progress is
// reported to w.
func ExtractFile(inputPath, outputPath string, w io.Writer) error {
	in, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("opening input %s: %w", inputPath, err)
	}
	defer in.Close()

	lines, err := ExtractReader(in)
	if err != nil {
		return fmt.Errorf("reading %s: %w", inputPath, err)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("creating output %s: %w", outputPath, err)
	}

	bw := bufio.NewWriter(out)
	for _, line := range lines {
		bw.WriteString(line)
		bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		out.Close()
		return fmt.Errorf("writing %s: %w", outputPath, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", outputPath, err)
	}

	fmt.Fprintf(w, "extracted: %s -> %s (%d lines)\n", inputPath, outputPath, len(lines))
	return nil
}

// BatchSummary holds counts from a batch extraction run.
type BatchSummary struct {
	Extracted int
	Failed    int
}

// Total returns the number of inputs processed.
func (s BatchSummary) Total() int {
	return s.Extracted + s.Failed
}

// HasFailures reports whether any inputs failed extraction.
func (s BatchSummary) HasFailures() bool {
	return s.Failed > 0
}

// ExtractBatch runs ExtractFile over each input with its derived
// output path, printing per-file status to w and returning a summary.
func ExtractBatch(inputs []string, w io.Writer) BatchSummary {
	var summary BatchSummary
	for _, input := range inputs {
		if err := ExtractFile(input, OutputPath(input), w); err != nil {
			fmt.Fprintf(w, "failed:  %s (%v)\n", input, err)
			summary.Failed++
			continue
		}
		summary.Extracted++
	}
	fmt.Fprintf(w, "\nBatch summary: %d extracted, %d failed (total: %d)\n",
		summary.Extracted, summary.Failed, summary.Total())
	return summary
}
