// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.
package docindex

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// IndexedFile reports a successful file indexing.
type IndexedFile struct {
	DocID    string            `json:"doc_id"`
	Hash     string            `json:"doc_hash"`
	Metadata map[string]string `json:"metadata"`
}

// IndexFile reads a file from disk and adds it to the store under its base
// name, stamping file provenance into the metadata. Caller-supplied metadata
// keys are kept unless the provenance stamp overwrites them.
func IndexFile(s *Store, path, docType string, metadata map[string]string) (IndexedFile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return IndexedFile{}, fmt.Errorf("failed to read the document %s: %w", filepath.Base(path), err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return IndexedFile{}, fmt.Errorf("failed to stat the document %s: %w", filepath.Base(path), err)
	}

	merged := copyMetadata(metadata)
	merged["file_path"] = path
	merged["doc_type"] = docType
	merged["file_size"] = strconv.FormatInt(info.Size(), 10)
	merged["indexed_date"] = time.Now().UTC().Format(time.RFC3339)

	docID := filepath.Base(path)
	hash, err := s.Add(docID, string(content), merged)
	if err != nil {
		return IndexedFile{}, fmt.Errorf("failed to index the document %s: %w", docID, err)
	}
	return IndexedFile{DocID: docID, Hash: hash, Metadata: merged}, nil
}
