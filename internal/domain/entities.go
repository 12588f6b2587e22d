package domain

import "time"

// Candidate is a content unit produced by a base retriever, considered
// for inclusion in the final result set. Immutable once retrieved.
type Candidate struct {
	ID       string
	Text     string
	Score    float64
	Metadata map[string]string
}

// EmbeddedCandidate pairs a candidate with its embedding vector. The
// pairing is positional: vector i belongs to candidate i, and every
// batching or reordering step must preserve that correspondence.
type EmbeddedCandidate struct {
	Candidate Candidate
	Vector    []float32
}

// Filter is an opaque predicate passed through to the base retriever
// unmodified. Stores interpret Metadata as equality constraints.
type Filter struct {
	Metadata map[string]string
}

// Matches reports whether the given metadata satisfies the filter.
func (f *Filter) Matches(metadata map[string]string) bool {
	if f == nil {
		return true
	}
	for k, want := range f.Metadata {
		if metadata[k] != want {
			return false
		}
	}
	return true
}

// Document is a source file registered during ingest.
type Document struct {
	ID      string
	Path    string
	ModTime time.Time
}

// Passage is a contiguous slice of a document produced by the chunker.
type Passage struct {
	ID        string
	DocID     string
	StartLine int
	EndLine   int
	Text      string
}
