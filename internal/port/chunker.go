package port

import "divrag/internal/domain"

// Chunker splits document text into passages.
type Chunker interface {
	Chunk(doc domain.Document, text string) []domain.Passage
}
