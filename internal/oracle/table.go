package oracle

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TableEntry maps one sentence to the candidates the oracle answers with.
type TableEntry struct {
	Sentence   string          `yaml:"sentence"`
	Candidates []WireCandidate `yaml:"candidates"`
}

type tableFile struct {
	Entries []TableEntry `yaml:"entries"`
}

// Table is a fixture oracle answering from a fixed sentence table. Sentences
// match after case folding, whitespace collapsing and trimming of the final
// punctuation.
type Table struct {
	entries map[string][]WireCandidate
}

// NewTable builds a Table from entries. Every fragment must decode.
func NewTable(entries []TableEntry) (*Table, error) {
	t := &Table{entries: make(map[string][]WireCandidate, len(entries))}
	for i, e := range entries {
		if _, err := DecodeCandidates(e.Candidates); err != nil {
			return nil, fmt.Errorf("entry %d (%q): %w", i, e.Sentence, err)
		}
		key := normalizeSentence(e.Sentence)
		if _, dup := t.entries[key]; dup {
			return nil, fmt.Errorf("entry %d: duplicate sentence %q", i, e.Sentence)
		}
		t.entries[key] = e.Candidates
	}
	return t, nil
}

// ParseTable decodes a YAML table document.
func ParseTable(data []byte) (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing table: %w", err)
	}
	return NewTable(f.Entries)
}

// LoadTable reads a YAML table file.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading table file: %w", err)
	}
	t, err := ParseTable(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Len returns the number of sentences in the table.
func (t *Table) Len() int { return len(t.entries) }

// Open implements Oracle.
func (t *Table) Open(context.Context) (Session, error) { return t, nil }

// Close implements Session.
func (t *Table) Close() error { return nil }

// Interpret implements Session. Each call decodes fresh fragments, so
// callers may keep what they receive.
func (t *Table) Interpret(ctx context.Context, chunk string, _ Snapshot) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ws, ok := t.entries[normalizeSentence(chunk)]
	if !ok {
		return nil, fmt.Errorf("%w: %q is not in the table", ErrUnsupported, chunk)
	}
	return DecodeCandidates(ws)
}
