package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"divrag/internal/domain"
)

// LineChunker splits document text into fixed-size passages of
// maxLines lines with overlap lines shared between neighbors.
type LineChunker struct {
	maxLines int
	overlap  int
}

func NewLineChunker(maxLines, overlap int) *LineChunker {
	if maxLines <= 0 {
		maxLines = 40
	}
	if overlap < 0 || overlap >= maxLines {
		overlap = 0
	}
	return &LineChunker{
		maxLines: maxLines,
		overlap:  overlap,
	}
}

func (c *LineChunker) Chunk(doc domain.Document, content string) []domain.Passage {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	lines := strings.Split(content, "\n")

	var passages []domain.Passage
	start := 0
	for start < len(lines) {
		end := start + c.maxLines
		if end > len(lines) {
			end = len(lines)
		}

		text := strings.Join(lines[start:end], "\n")
		if strings.TrimSpace(text) != "" {
			passages = append(passages, domain.Passage{
				ID:        passageID(doc.ID, start, end),
				DocID:     doc.ID,
				StartLine: start + 1,
				EndLine:   end,
				Text:      text,
			})
		}

		if end == len(lines) {
			break
		}
		start = end - c.overlap
	}
	return passages
}

func passageID(docID string, startLine, endLine int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%d", docID, startLine, endLine)))
	return hex.EncodeToString(sum[:16])
}
