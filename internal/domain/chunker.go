package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ChunkerVersion tracks the chunking algorithm used to build an index so a
// rebuild can be forced when the algorithm changes.
type ChunkerVersion string

const (
	// ChunkerVersionV1 is the windowed chunker with rune-based size and overlap.
	ChunkerVersionV1 ChunkerVersion = "v1"
)

const (
	// DefaultChunkSize is the target chunk length in runes.
	DefaultChunkSize = 600
	// DefaultChunkOverlap is the number of runes carried over from the tail
	// of one chunk into the head of the next.
	DefaultChunkOverlap = 150
)

// Chunk is a single piece of a document, ordered by Ordinal.
type Chunk struct {
	Ordinal int
	Content string
}

// Chunker splits document text into embeddable chunks.
type Chunker interface {
	Chunk(body string) ([]Chunk, error)
	Version() ChunkerVersion
}

type windowChunker struct {
	size    int
	overlap int
}

// NewChunker creates a windowed chunker with the given size and overlap in
// runes. Non-positive size or an overlap that is negative or not smaller
// than size falls back to the defaults.
func NewChunker(size, overlap int) Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
		if overlap >= size {
			overlap = size / 4
		}
	}
	return &windowChunker{size: size, overlap: overlap}
}

func (c *windowChunker) Version() ChunkerVersion {
	return ChunkerVersionV1
}

// Chunk slides a rune window of c.size over the body with c.overlap carry.
// Window boundaries snap back to the nearest whitespace so words are not
// split; a window with no whitespace at all falls back to a hard cut.
func (c *windowChunker) Chunk(body string) ([]Chunk, error) {
	normalized := strings.ReplaceAll(body, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	normalized = strings.TrimSpace(normalized)
	if normalized == "" {
		return nil, nil
	}

	runes := []rune(normalized)
	if len(runes) <= c.size {
		return []Chunk{{Ordinal: 0, Content: normalized}}, nil
	}

	var chunks []Chunk
	start := 0
	for start < len(runes) {
		end := start + c.size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = snapToWhitespace(runes, start, end)
		}

		content := strings.TrimSpace(string(runes[start:end]))
		if content != "" {
			chunks = append(chunks, Chunk{Ordinal: len(chunks), Content: content})
		}

		if end == len(runes) {
			break
		}
		next := end - c.overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks, nil
}

// snapToWhitespace moves end back to the last whitespace rune in (start, end]
// so the cut lands between words.
func snapToWhitespace(runes []rune, start, end int) int {
	for i := end; i > start; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}

// RuneLen reports the chunk content length in runes.
func (ch Chunk) RuneLen() int {
	return utf8.RuneCountInString(ch.Content)
}
