// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package mapping associates extracted ASN.1 files with the section
// files whose definitions they contain, producing the manifest the
// index stage consumes.
//
// Filenames alone cannot answer "which sections does this .asn use":
// an extracted file aggregates definitions from many sections, and a
// section's definitions may appear interleaved with others rather than
// as one contiguous run. The default mode therefore splits each
// section into individual `Name ::=` definition blocks and checks each
// block for containment after whitespace normalization.
package mapping

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/mkovacs/asnkit/pkg/types"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	defHead       = regexp.MustCompile(`(?m)^[ \t]*[A-Za-z][A-Za-z0-9-]*[ \t]*::=`)
	identifier    = regexp.MustCompile(`[A-Za-z][A-Za-z0-9-]*`)
)

// sectionSuffixes are the heading suffixes stripped when a section
// filename is treated as a type or message name (name mode). Longest
// first so "information elements" wins over "information element".
var sectionSuffixes = []string{
	" information elements",
	" information element",
	" message",
}

// Canonicalize normalizes ASN.1 text for containment checks: the BOM
// is dropped and every whitespace run collapses to a single space.
// Extracted .asn files and section .txt files routinely differ in
// tabs, indentation, and line breaks; canonical form makes substring
// matching insensitive to layout.
func Canonicalize(text string) string {
	text = strings.ReplaceAll(text, "\uFEFF", "")
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}

// DefinitionBlocks splits ASN.1 text into definition blocks. A block
// starts at a `Name ::=` line and runs to the next such line or end of
// text, so section files holding several definitions yield several
// independently matchable blocks.
func DefinitionBlocks(text string) []string {
	heads := defHead.FindAllStringIndex(text, -1)
	if len(heads) == 0 {
		return nil
	}

	var blocks []string
	for i, head := range heads {
		end := len(text)
		if i+1 < len(heads) {
			end = heads[i+1][0]
		}
		if chunk := strings.TrimSpace(text[head[0]:end]); chunk != "" {
			blocks = append(blocks, chunk)
		}
	}
	return blocks
}

// NormalizeSectionName strips the heading suffix from a section
// filename stem, leaving the type or message name:
// "DRB-Identity information elements" -> "DRB-Identity".
func NormalizeSectionName(name string) string {
	for _, suffix := range sectionSuffixes {
		if strings.HasSuffix(name, suffix) {
			return strings.TrimSuffix(name, suffix)
		}
	}
	return name
}

// sectionFile is one section .txt prepared for matching.
type sectionFile struct {
	name      string
	canonical string
	defBlocks []string
}

// Build generates the manifest for every .asn file in asnDir against
// every .txt file in sectionsDir using the given match mode. Manifest
// values list section filenames in sorted order; an .asn file with no
// matches maps to an empty list.
func Build(asnDir, sectionsDir string, mode types.MappingMode) (types.Manifest, error) {
	asnFiles, err := listFiles(asnDir, ".asn")
	if err != nil {
		return nil, err
	}
	sectionFiles, err := loadSections(sectionsDir)
	if err != nil {
		return nil, err
	}

	manifest := make(types.Manifest, len(asnFiles))

	for _, asnName := range asnFiles {
		data, err := os.ReadFile(filepath.Join(asnDir, asnName))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", asnName, err)
		}
		text := string(data)

		var matches []string
		switch mode {
		case types.MappingContent:
			canon := Canonicalize(text)
			for _, sec := range sectionFiles {
				if sec.canonical != "" && strings.Contains(canon, sec.canonical) {
					matches = append(matches, sec.name)
				}
			}
		case types.MappingName:
			matches = matchByName(text, sectionFiles)
		case types.MappingDefs, "":
			canon := Canonicalize(text)
			for _, sec := range sectionFiles {
				if containsAnyBlock(canon, sec.defBlocks) {
					matches = append(matches, sec.name)
				}
			}
		default:
			return nil, fmt.Errorf("unknown mapping mode %q: use defs, content, or name", mode)
		}

		if matches == nil {
			matches = []string{}
		}
		manifest[asnName] = matches
	}

	return manifest, nil
}

func containsAnyBlock(canonicalASN string, blocks []string) bool {
	for _, block := range blocks {
		if strings.Contains(canonicalASN, block) {
			return true
		}
	}
	return false
}

// matchByName matches identifier tokens in the ASN.1 text against
// normalized section names. Loose: a bare type reference counts as a
// match even when the definition lives elsewhere.
func matchByName(text string, sections []sectionFile) []string {
	index := make(map[string]string, len(sections))
	for _, sec := range sections {
		stem := strings.TrimSuffix(sec.name, filepath.Ext(sec.name))
		base := NormalizeSectionName(stem)
		if _, ok := index[base]; !ok {
			index[base] = sec.name
		}
	}

	tokens := make(map[string]bool)
	for _, tok := range identifier.FindAllString(text, -1) {
		tokens[tok] = true
	}

	sorted := make([]string, 0, len(tokens))
	for tok := range tokens {
		sorted = append(sorted, tok)
	}
	sort.Strings(sorted)

	var matches []string
	for _, tok := range sorted {
		if name, ok := index[tok]; ok {
			matches = append(matches, name)
		}
	}
	return matches
}

func listFiles(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ext) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func loadSections(dir string) ([]sectionFile, error) {
	names, err := listFiles(dir, ".txt")
	if err != nil {
		return nil, err
	}

	sections := make([]sectionFile, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		text := string(data)

		var defBlocks []string
		for _, block := range DefinitionBlocks(text) {
			if canon := Canonicalize(block); canon != "" {
				defBlocks = append(defBlocks, canon)
			}
		}

		sections = append(sections, sectionFile{
			name:      name,
			canonical: Canonicalize(text),
			defBlocks: defBlocks,
		})
	}
	return sections, nil
}

// Save writes the manifest as indented JSON with sorted keys.
func Save(manifest types.Manifest, path string) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing manifest %s: %w", path, err)
	}
	return nil
}

// Load reads a manifest written by Save.
func Load(path string) (types.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	var manifest types.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	return manifest, nil
}
