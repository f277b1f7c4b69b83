// Package docindex maintains the local document index the retrieval tool
// reads from. Documents are chunked at ingest time and scored by term
// overlap at query time; the embedding pipeline proper is an external
// concern, this index only has to satisfy the retrieval adapter contract.
package docindex

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

const (
	chunkSize    = 1000
	chunkOverlap = 200
	// SnippetLimit bounds each returned chunk, matching the preview
	// length used elsewhere in the session log.
	SnippetLimit = 500
)

// Chunk is one indexed slice of a source document.
type Chunk struct {
	Document string `json:"document"`
	Seq      int    `json:"seq"`
	Text     string `json:"text"`
}

// Result is one retrieval hit.
type Result struct {
	Document string
	Snippet  string
	Score    float64
}

// Index is the persisted chunk index.
type Index struct {
	path   string
	mu     sync.RWMutex
	chunks []Chunk
}

// Open loads the index at path, or returns an empty index when the file
// does not exist yet.
func Open(path string) (*Index, error) {
	idx := &Index{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return nil, fmt.Errorf("failed to read document index: %w", err)
	}
	if err := json.Unmarshal(data, &idx.chunks); err != nil {
		return nil, fmt.Errorf("failed to parse document index: %w", err)
	}
	return idx, nil
}

// DefaultPath returns the per-user index location.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".scout", "docindex.json"), nil
}

// Ingest reads .txt and .md files from dir, chunks them, and replaces the
// index contents. Returns the number of documents ingested.
func (idx *Index) Ingest(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read documents directory: %w", err)
	}

	var chunks []Chunk
	docs := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".txt" && ext != ".md" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return 0, fmt.Errorf("failed to read %s: %w", name, err)
		}

		for seq, text := range splitChunks(string(data)) {
			chunks = append(chunks, Chunk{Document: name, Seq: seq, Text: text})
		}
		docs++
	}

	idx.mu.Lock()
	idx.chunks = chunks
	idx.mu.Unlock()

	if err := idx.save(); err != nil {
		return 0, err
	}
	return docs, nil
}

// Documents returns the distinct document names present in the index.
func (idx *Index) Documents() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	seen := make(map[string]struct{})
	var names []string
	for _, chunk := range idx.chunks {
		if _, ok := seen[chunk.Document]; ok {
			continue
		}
		seen[chunk.Document] = struct{}{}
		names = append(names, chunk.Document)
	}
	sort.Strings(names)
	return names
}

// Search returns the k best-scoring chunks for the query, restricted to
// the allowed documents. A nil allow function admits every document.
func (idx *Index) Search(query string, k int, allowed func(document string) bool) []Result {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var results []Result
	for _, chunk := range idx.chunks {
		if allowed != nil && !allowed(chunk.Document) {
			continue
		}
		score := overlapScore(terms, chunk.Text)
		if score <= 0 {
			continue
		}
		results = append(results, Result{
			Document: chunk.Document,
			Snippet:  snippetOf(chunk.Text),
			Score:    score,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}
	return results
}

func (idx *Index) save() error {
	idx.mu.RLock()
	data, err := json.MarshalIndent(idx.chunks, "", "  ")
	idx.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal document index: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(idx.path), 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}
	if err := os.WriteFile(idx.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write document index: %w", err)
	}
	return nil
}

// splitChunks slices text into overlapping windows, preferring to break
// at whitespace near the window boundary.
func splitChunks(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= chunkSize {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + chunkSize
		if end >= len(text) {
			chunks = append(chunks, text[start:])
			break
		}

		// Walk back to the nearest whitespace so words stay intact.
		cut := end
		for cut > start+chunkSize/2 && !unicode.IsSpace(rune(text[cut])) {
			cut--
		}
		if cut == start+chunkSize/2 {
			cut = end
		}

		chunks = append(chunks, strings.TrimSpace(text[start:cut]))
		start = cut - chunkOverlap
		if start < 0 {
			start = 0
		}
	}
	return chunks
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	var terms []string
	for _, f := range fields {
		if len(f) > 2 {
			terms = append(terms, f)
		}
	}
	return terms
}

func overlapScore(terms []string, text string) float64 {
	lower := strings.ToLower(text)
	score := 0.0
	for _, term := range terms {
		if n := strings.Count(lower, term); n > 0 {
			score += 1 + float64(n)/10
		}
	}
	return score
}

func snippetOf(text string) string {
	if len(text) <= SnippetLimit {
		return text
	}
	// back off to a rune boundary so the cut never leaves invalid UTF-8
	cut := SnippetLimit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}
