package types

// Manifest maps each extracted ASN.1 filename to the section files
// whose definitions it contains. Keys and values are filenames relative
// to their respective directories; value slices are sorted.
type Manifest map[string][]string

// Chunk is one retrievable unit of the index: the content of a single
// section file attached to the ASN.1 message it contributes to.
type Chunk struct {
	// ID uniquely identifies the chunk, built from spec, message, and
	// source file (e.g. "rrc_36331_CounterCheck_CounterCheck_message").
	ID string `json:"id" yaml:"id"`

	// Message is the ASN.1 message or information-element name, the
	// manifest key with its .asn suffix removed.
	Message string `json:"message" yaml:"message"`

	// SourceFile is the section file the content came from.
	SourceFile string `json:"source_file" yaml:"source_file"`

	// Content is the section text, leading and trailing whitespace
	// trimmed.
	Content string `json:"content" yaml:"content"`

	// Spec is the specification number (e.g. "36331").
	Spec string `json:"spec" yaml:"spec"`

	// Version is the specification version (e.g. "j00").
	Version string `json:"version" yaml:"version"`
}
