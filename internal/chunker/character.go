package chunker

import "strings"

// CharacterSplitter splits a file's text at line boundaries with a fixed
// target line budget and a trailing overlap between consecutive chunks.
type CharacterSplitter struct {
	LinesPerChunk int
	OverlapLines  int
}

// NewCharacterSplitter returns a CharacterSplitter, substituting
// DefaultLinesPerChunk for a non-positive linesPerChunk and
// DefaultOverlapLines for a negative overlapLines or one not smaller than
// the line budget. A zero overlap is kept.
func NewCharacterSplitter(linesPerChunk, overlapLines int) *CharacterSplitter {
	if linesPerChunk <= 0 {
		linesPerChunk = DefaultLinesPerChunk
	}
	if overlapLines < 0 || overlapLines >= linesPerChunk {
		overlapLines = DefaultOverlapLines
	}
	return &CharacterSplitter{LinesPerChunk: linesPerChunk, OverlapLines: overlapLines}
}

// Split implements Splitter.
func (c *CharacterSplitter) Split(relativePath, content, extension string) ([]Chunk, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	lines := strings.Split(content, "\n")
	var chunks []Chunk

	for i := 0; i < len(lines); {
		end := i + c.LinesPerChunk
		if end > len(lines) {
			end = len(lines)
		}

		text := strings.Join(lines[i:end], "\n")
		startLine := i + 1
		endLine := end

		chunks = append(chunks, Chunk{
			ID:            ID(relativePath, text, startLine, endLine),
			Content:       text,
			RelativePath:  relativePath,
			StartLine:     startLine,
			EndLine:       endLine,
			FileExtension: extension,
			Metadata:      map[string]any{},
		})

		if end >= len(lines) {
			break
		}
		i = end - c.OverlapLines
		if i <= 0 {
			i = end
		}
	}

	return chunks, nil
}
