package index

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mkovacs/asnkit/pkg/types"
)

// --- test helpers ---

func testSetup(t *testing.T) (*Store, string) {
	t.Helper()
	tmpDir := t.TempDir()

	sectionsDir := filepath.Join(tmpDir, "asn1_sections")
	if err := os.MkdirAll(sectionsDir, 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := types.IndexConfig{
		IndexDir:    filepath.Join(tmpDir, "index"),
		SectionsDir: sectionsDir,
		Spec:        "36331",
		Version:     "j00",
		MaxResults:  20,
	}
	store, err := NewStore(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	return store, sectionsDir
}

func writeSection(t *testing.T, sectionsDir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(sectionsDir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func sampleManifest(t *testing.T, sectionsDir string) types.Manifest {
	t.Helper()
	writeSection(t, sectionsDir, "CounterCheck message.txt",
		"CounterCheck ::= SEQUENCE {\n    drb-CountMSB-InfoList DRB-CountMSB-InfoList\n}\n")
	writeSection(t, sectionsDir, "DRB-Identity information elements.txt",
		"DRB-Identity ::= INTEGER (1..32)\n")
	writeSection(t, sectionsDir, "TDD-Config information element.txt",
		"TDD-Config ::= SEQUENCE {\n    subframeAssignment ENUMERATED {sa0, sa6}\n}\n")

	return types.Manifest{
		"CounterCheck.asn": {
			"CounterCheck message.txt",
			"DRB-Identity information elements.txt",
		},
		"TDD-Config.asn": {
			"TDD-Config information element.txt",
		},
	}
}

func ingestSample(t *testing.T, store *Store, sectionsDir string) types.Manifest {
	t.Helper()
	manifest := sampleManifest(t, sectionsDir)
	summary, err := store.Ingest(context.Background(), manifest, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Indexed != 2 {
		t.Fatalf("indexed = %d, want 2", summary.Indexed)
	}
	return manifest
}

// --- ingestion ---

func TestIngest(t *testing.T) {
	store, sectionsDir := testSetup(t)
	var buf bytes.Buffer
	manifest := sampleManifest(t, sectionsDir)

	summary, err := store.Ingest(context.Background(), manifest, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Indexed != 2 || summary.Failed != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if !strings.Contains(buf.String(), "indexing CounterCheck (2 chunks)") {
		t.Errorf("progress output: %q", buf.String())
	}
}

func TestIngestSkipsUnchanged(t *testing.T) {
	store, sectionsDir := testSetup(t)
	manifest := ingestSample(t, store, sectionsDir)

	summary, err := store.Ingest(context.Background(), manifest, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Skipped != 2 || summary.Indexed != 0 {
		t.Errorf("summary = %+v, want 2 skipped", summary)
	}
}

func TestIngestUpdatesChangedSections(t *testing.T) {
	store, sectionsDir := testSetup(t)
	manifest := ingestSample(t, store, sectionsDir)

	// Touch one section with new content and a future mod time so the
	// stored timestamp no longer matches.
	writeSection(t, sectionsDir, "TDD-Config information element.txt",
		"TDD-Config ::= SEQUENCE {\n    specialSubframePatterns ENUMERATED {ssp0}\n}\n")
	future := time.Now().Add(2 * time.Second)
	path := filepath.Join(sectionsDir, "TDD-Config information element.txt")
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	summary, err := store.Ingest(context.Background(), manifest, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Updated != 1 || summary.Skipped != 1 {
		t.Errorf("summary = %+v, want 1 updated and 1 skipped", summary)
	}

	results, err := store.Retrieve(context.Background(), QueryOptions{Query: "specialSubframePatterns"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
}

func TestIngestMissingSectionFileFails(t *testing.T) {
	store, sectionsDir := testSetup(t)
	_ = sectionsDir

	manifest := types.Manifest{"Ghost.asn": {"missing.txt"}}
	summary, err := store.Ingest(context.Background(), manifest, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Failed != 1 {
		t.Errorf("summary = %+v, want 1 failed", summary)
	}
}

func TestIngestWritesExport(t *testing.T) {
	store, sectionsDir := testSetup(t)
	ingestSample(t, store, sectionsDir)

	data, err := os.ReadFile(filepath.Join(store.indexDir, "export.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "CounterCheck") {
		t.Errorf("export.yaml missing chunk data: %q", data)
	}
}

// --- retrieval ---

func TestRetrieveFullText(t *testing.T) {
	store, sectionsDir := testSetup(t)
	ingestSample(t, store, sectionsDir)

	results, err := store.Retrieve(context.Background(), QueryOptions{Query: "subframeAssignment"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Message != "TDD-Config" {
		t.Errorf("message = %q", results[0].Message)
	}
	if results[0].Spec != "36331" || results[0].Version != "j00" {
		t.Errorf("metadata = %q/%q", results[0].Spec, results[0].Version)
	}
}

func TestRetrieveMessageFilter(t *testing.T) {
	store, sectionsDir := testSetup(t)
	ingestSample(t, store, sectionsDir)

	results, err := store.Retrieve(context.Background(), QueryOptions{Message: "CounterCheck"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for _, r := range results {
		if r.Message != "CounterCheck" {
			t.Errorf("message = %q", r.Message)
		}
	}
}

func TestRetrieveCombinedQueryAndFilter(t *testing.T) {
	store, sectionsDir := testSetup(t)
	ingestSample(t, store, sectionsDir)

	results, err := store.Retrieve(context.Background(), QueryOptions{
		Query:   "SEQUENCE",
		Message: "TDD-Config",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Message != "TDD-Config" {
		t.Errorf("results = %+v", results)
	}
}

func TestRetrieveMaxResults(t *testing.T) {
	store, sectionsDir := testSetup(t)
	ingestSample(t, store, sectionsDir)

	results, err := store.Retrieve(context.Background(), QueryOptions{MaxResults: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Errorf("got %d results, want 1", len(results))
	}
}

func TestQueryOptionsIsEmpty(t *testing.T) {
	tests := []struct {
		name string
		opts QueryOptions
		want bool
	}{
		{"empty", QueryOptions{}, true},
		{"query", QueryOptions{Query: "x"}, false},
		{"message", QueryOptions{Message: "CounterCheck"}, false},
		{"source", QueryOptions{SourceFile: "a.txt"}, false},
		{"max only is empty", QueryOptions{MaxResults: 5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.opts.IsEmpty(); got != tt.want {
				t.Errorf("IsEmpty() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTrace(t *testing.T) {
	store, sectionsDir := testSetup(t)
	ingestSample(t, store, sectionsDir)

	content, err := store.Trace(context.Background(), "36331_TDD-Config_TDD-Config_information_element")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(content, "subframeAssignment") {
		t.Errorf("trace content = %q", content)
	}

	if _, err := store.Trace(context.Background(), "nope"); err == nil {
		t.Error("expected error for unknown chunk")
	}
}

// --- semantic search ---

// mockEmbedClient returns fixed vectors keyed by input text, and a
// fallback for unknown inputs (the query).
type mockEmbedClient struct {
	byText   map[string][]float32
	fallback []float32
	calls    int
}

func (m *mockEmbedClient) CreateEmbeddings(_ context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	m.calls++
	req := conv.Convert()
	inputs, _ := req.Input.([]string)

	resp := openai.EmbeddingResponse{}
	for i, text := range inputs {
		vec, ok := m.byText[text]
		if !ok {
			vec = m.fallback
		}
		resp.Data = append(resp.Data, openai.Embedding{Index: i, Embedding: vec})
	}
	return resp, nil
}

func TestEmbedChunksAndSemanticRetrieve(t *testing.T) {
	store, sectionsDir := testSetup(t)
	ingestSample(t, store, sectionsDir)

	results, err := store.Retrieve(context.Background(), QueryOptions{MaxResults: 100})
	if err != nil {
		t.Fatal(err)
	}

	client := &mockEmbedClient{byText: map[string][]float32{}, fallback: []float32{1, 0}}
	for _, r := range results {
		// The TDD-Config chunk points the same way as the query.
		if r.Message == "TDD-Config" {
			client.byText[r.Content] = []float32{1, 0.1}
		} else {
			client.byText[r.Content] = []float32{0, 1}
		}
	}

	n, err := store.EmbedChunks(context.Background(), client, "test-model", 2)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(results) {
		t.Errorf("embedded %d chunks, want %d", n, len(results))
	}

	// A second pass embeds nothing new.
	n, err = store.EmbedChunks(context.Background(), client, "test-model", 2)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("second pass embedded %d, want 0", n)
	}

	ranked, err := store.SemanticRetrieve(context.Background(), client, "test-model", "tdd configuration", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(ranked) != 2 {
		t.Fatalf("got %d results, want 2", len(ranked))
	}
	if ranked[0].Message != "TDD-Config" {
		t.Errorf("top result = %q, want TDD-Config", ranked[0].Message)
	}
	if ranked[0].Score <= ranked[1].Score {
		t.Errorf("scores not descending: %v vs %v", ranked[0].Score, ranked[1].Score)
	}
}

func TestSemanticRetrieveWithoutEmbeddings(t *testing.T) {
	store, sectionsDir := testSetup(t)
	ingestSample(t, store, sectionsDir)

	client := &mockEmbedClient{fallback: []float32{1, 0}}
	if _, err := store.SemanticRetrieve(context.Background(), client, "test-model", "query", 5); err == nil {
		t.Fatal("expected error when no chunks are embedded")
	}
}

// --- export ---

func TestExportJSON(t *testing.T) {
	store, sectionsDir := testSetup(t)
	ingestSample(t, store, sectionsDir)

	if err := store.ExportJSON(context.Background(), QueryOptions{Message: "TDD-Config"}); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(store.indexDir, "export.json"))
	if err != nil {
		t.Fatal(err)
	}
	var entries []QueryResult
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Message != "TDD-Config" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestChunkID(t *testing.T) {
	tests := []struct {
		spec, message, source string
		want                  string
	}{
		{"36331", "CounterCheck", "CounterCheck message.txt", "36331_CounterCheck_CounterCheck_message"},
		{"", "CounterCheck", "CounterCheck message.txt", "CounterCheck_CounterCheck_message"},
	}
	for _, tt := range tests {
		if got := chunkID(tt.spec, tt.message, tt.source); got != tt.want {
			t.Errorf("chunkID(%q, %q, %q) = %q, want %q", tt.spec, tt.message, tt.source, got, tt.want)
		}
	}
}
