// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ingest turns documents into indexed chunks. Content passes the
// PHI scanner on the way in so the audit trail records what each document
// carried before it became searchable.
package ingest

import (
	"fmt"
	"path/filepath"

	"github.com/tmc/langchaingo/textsplitter"
)

var (
	ChunkSize         = 1000
	ChunkOverlap      = int(float64(ChunkSize) * 0.10) // overlap is 10% of ChunkSize
	defaultSeparators = []string{"\n\n", "\n", " ", ""}

	markdownSeparators = []string{
		"\n# ", "\n## ", "\n### ", "\n#### ", "\n##### ", "\n###### ",
		"\n\n", "\n", " ", "",
	}

	// Clinical notes follow a SOAP-style section layout; splitting on the
	// section headings keeps each chunk within one note section.
	clinicalSeparators = []string{
		"\nSUBJECTIVE", "\nOBJECTIVE", "\nASSESSMENT", "\nPLAN",
		"\nHISTORY", "\nMEDICATIONS", "\nALLERGIES",
		"\n\n", "\n", " ", "",
	}
)

// Chunk is one indexable piece of a split document.
type Chunk struct {
	// ID is derived from the source name and the chunk ordinal,
	// "<source>_part_N", so re-ingesting a document overwrites its old
	// chunks instead of duplicating them.
	ID      string
	Content string
}

// SplitterFor picks a splitter tuned to the document's file type.
func SplitterFor(source string) textsplitter.TextSplitter {
	switch filepath.Ext(source) {
	case ".md":
		return textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(ChunkSize),
			textsplitter.WithChunkOverlap(ChunkOverlap),
			textsplitter.WithSeparators(markdownSeparators),
		)

	case ".note", ".soap":
		return textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(ChunkSize),
			textsplitter.WithChunkOverlap(ChunkOverlap),
			textsplitter.WithSeparators(clinicalSeparators),
		)

	default:
		return textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(ChunkSize),
			textsplitter.WithChunkOverlap(ChunkOverlap),
			textsplitter.WithSeparators(defaultSeparators),
		)
	}
}

// SplitDocument splits content into chunks with derived IDs. A document
// short enough to fit in one chunk still gets the _part_1 suffix so chunk
// IDs are uniform.
func SplitDocument(source, content string) ([]Chunk, error) {
	pieces, err := SplitterFor(source).SplitText(content)
	if err != nil {
		return nil, fmt.Errorf("failed to split content for %q: %w", source, err)
	}

	chunks := make([]Chunk, 0, len(pieces))
	for i, piece := range pieces {
		chunks = append(chunks, Chunk{
			ID:      fmt.Sprintf("%s_part_%d", source, i+1),
			Content: piece,
		})
	}
	return chunks, nil
}
