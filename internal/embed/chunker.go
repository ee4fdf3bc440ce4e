package embed

import "strings"

const (
	// DefaultChunkSize is the character budget per chunk.
	DefaultChunkSize = 1200

	// DefaultChunkOverlap is carried between hard cuts of an oversized
	// paragraph so no sentence is lost at a boundary.
	DefaultChunkOverlap = 120
)

// Chunker splits cleaned text into chunks bounded by a character budget.
// Paragraph boundaries are preferred; a paragraph is hard-cut with overlap
// only when it alone exceeds the budget. Splitting is deterministic.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker; non-positive arguments fall back to
// defaults.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
		if overlap >= size {
			// Small budgets clamp the fallback so the cut step stays
			// positive.
			overlap = size / 10
		}
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split breaks text into chunks. Empty or whitespace-only text yields no
// chunks.
func (c *Chunker) Split(text string) []string {
	var chunks []string
	var current []string
	currentLen := 0

	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, strings.Join(current, "\n"))
			current = current[:0]
			currentLen = 0
		}
	}

	for _, para := range strings.Split(text, "\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if len(para) > c.size {
			// Oversized paragraph: flush what we have, then hard-cut the
			// paragraph with overlap between pieces.
			flush()
			for _, piece := range c.hardCut(para) {
				chunks = append(chunks, piece)
			}
			continue
		}

		// +1 for the joining newline.
		if currentLen > 0 && currentLen+1+len(para) > c.size {
			flush()
		}
		current = append(current, para)
		currentLen += len(para)
		if len(current) > 1 {
			currentLen++
		}
	}
	flush()

	return chunks
}

// hardCut slices an oversized paragraph into budget-sized pieces, each
// piece starting `overlap` characters before the previous piece ended.
func (c *Chunker) hardCut(para string) []string {
	var pieces []string
	step := c.size - c.overlap

	for start := 0; start < len(para); start += step {
		end := start + c.size
		if end >= len(para) {
			pieces = append(pieces, para[start:])
			break
		}
		pieces = append(pieces, para[start:end])
	}

	return pieces
}
