package types

import "time"

// ExtractConfig holds settings for the marker-driven extraction stage.
type ExtractConfig struct {
	// Output overrides the derived output path. Only valid when a
	// single input file is given.
	Output string `json:"output,omitempty" yaml:"output,omitempty"`

	// Watch re-runs extraction whenever an input file changes.
	Watch bool `json:"watch" yaml:"watch"`

	// WatchDebounce is the quiet period after a file event before the
	// extraction re-runs (default 200ms). Editors often emit bursts of
	// write events for a single save.
	WatchDebounce time.Duration `json:"watch_debounce" yaml:"watch_debounce"`
}

// SectionsConfig holds settings for the per-section splitting stage.
type SectionsConfig struct {
	// OutDir is the directory that receives one file per ASN.1 section
	// (default "asn1_sections").
	OutDir string `json:"out_dir" yaml:"out_dir"`
}

// MappingMode selects how section files are matched against extracted
// ASN.1 files when building the manifest.
type MappingMode string

const (
	// MappingDefs matches individual `Name ::=` definition blocks
	// from each section file against the ASN.1 text. Default.
	MappingDefs MappingMode = "defs"

	// MappingContent requires the whole section text to appear as a
	// contiguous substring. Strict; misses sections whose definitions
	// are interleaved with others in the extracted output.
	MappingContent MappingMode = "content"

	// MappingName matches the section title against identifiers in the
	// ASN.1 text. Loose; kept for debugging comparisons.
	MappingName MappingMode = "name"
)

// MappingConfig holds settings for manifest generation.
type MappingConfig struct {
	// ASNDir is the directory of extracted .asn files.
	ASNDir string `json:"asn_dir" yaml:"asn_dir"`

	// SectionsDir is the directory of per-section .txt files.
	SectionsDir string `json:"sections_dir" yaml:"sections_dir"`

	// Mode selects the matching strategy: defs, content, or name.
	Mode MappingMode `json:"mode" yaml:"mode"`

	// Out is the manifest output path (default "mapping.json").
	Out string `json:"out" yaml:"out"`
}

// IndexConfig holds settings for the retrieval index stage.
type IndexConfig struct {
	// IndexDir is the directory holding the SQLite database and export
	// files (default "index").
	IndexDir string `json:"index_dir" yaml:"index_dir"`

	// SectionsDir is the directory of per-section files referenced by
	// the manifest.
	SectionsDir string `json:"sections_dir" yaml:"sections_dir"`

	// Mapping is the path to the manifest produced by the mapping
	// stage (default "mapping.json").
	Mapping string `json:"mapping" yaml:"mapping"`

	// Spec is the specification number recorded in chunk metadata
	// (e.g. "36331").
	Spec string `json:"spec" yaml:"spec"`

	// Version is the specification version recorded in chunk metadata
	// (e.g. "j00").
	Version string `json:"version" yaml:"version"`

	// MaxResults is the default maximum number of query results
	// (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// EmbedConfig holds settings for semantic search over indexed chunks.
type EmbedConfig struct {
	// Model is the embeddings model identifier
	// (e.g. "text-embedding-3-small").
	Model string `json:"model" yaml:"model"`

	// APIKey authenticates against the embeddings API. Usually loaded
	// from .secrets/openai-api-key rather than the config file.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL overrides the API endpoint for OpenAI-compatible local
	// backends. Empty uses the default endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// BatchSize is the number of chunk texts sent per embeddings
	// request (default 64).
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// MaxRetries is the number of retry attempts for rate-limited API
	// calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// PipelineConfig groups all stage configurations.
type PipelineConfig struct {
	Extract  ExtractConfig  `json:"extract" yaml:"extract"`
	Sections SectionsConfig `json:"sections" yaml:"sections"`
	Mapping  MappingConfig  `json:"mapping" yaml:"mapping"`
	Index    IndexConfig    `json:"index" yaml:"index"`
	Embed    EmbedConfig    `json:"embed" yaml:"embed"`
}
