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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// Store holds documents and a term-presence inverted index. One mutex guards
// both structures; Search takes the write lock because it bumps access
// counts. Posting lists keep document insertion order, which is what makes
// equal-score ranking deterministic.
type Store struct {
	mu       sync.RWMutex
	docs     map[string]*Document
	postings map[string][]string
	nextSeq  uint64
	db       *badger.DB
}

// New builds an empty in-memory store.
func New() *Store {
	return &Store{
		docs:     make(map[string]*Document),
		postings: make(map[string][]string),
	}
}

// NewWithDB builds a store backed by a Badger database. Existing documents
// are loaded and re-indexed in their original insertion order, and every
// later mutation is written through.
func NewWithDB(db *badger.DB) (*Store, error) {
	s := New()
	s.db = db
	if err := s.loadAll(); err != nil {
		return nil, fmt.Errorf("failed to load the document index: %w", err)
	}
	return s, nil
}

// Add stores a document and indexes its terms, returning the sha256 content
// hash. Re-adding an existing ID replaces the document: stale postings from
// the old content are purged first so the index never points a term at a
// document that no longer contains it. The access count resets on replace.
func (s *Store) Add(id, content string, metadata map[string]string) (string, error) {
	sum := sha256.Sum256([]byte(content))
	hash := hex.EncodeToString(sum[:])

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, exists := s.docs[id]; exists {
		s.removePostings(id, old.Content)
	}
	doc := &Document{
		ID:        id,
		Content:   content,
		Metadata:  copyMetadata(metadata),
		Hash:      hash,
		IndexedAt: time.Now().UTC(),
		Seq:       s.nextSeq,
	}
	s.nextSeq++
	s.docs[id] = doc
	s.indexWords(id, content)

	if err := s.persistLocked(id); err != nil {
		return hash, err
	}
	return hash, nil
}

// Search scores documents by how many query terms they contain and returns
// the top hits, highest score first with insertion order breaking ties. A
// repeated query term counts again, matching the scoring of the tool this
// index serves. Each returned document's access count is incremented.
func (s *Store) Search(query string, limit int) []SearchResult {
	queryWords := strings.Fields(strings.ToLower(query))
	if len(queryWords) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	scores := make(map[string]int)
	var order []string
	for _, word := range queryWords {
		for _, id := range s.postings[word] {
			if _, seen := scores[id]; !seen {
				order = append(order, id)
			}
			scores[id]++
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})
	if limit > 0 && len(order) > limit {
		order = order[:limit]
	}

	now := time.Now().UTC()
	results := make([]SearchResult, 0, len(order))
	for _, id := range order {
		doc := s.docs[id]
		doc.AccessCount++
		results = append(results, SearchResult{
			DocID:      id,
			Score:      scores[id],
			Snippet:    extractSnippet(doc.Content, queryWords),
			Metadata:   copyMetadata(doc.Metadata),
			AccessedAt: now,
		})
	}

	// Access counts are advisory; a failed write-through must not fail
	// the search itself.
	if err := s.persistLocked(order...); err != nil {
		slog.Warn("failed to persist access counts", "error", err)
	}
	return results
}

// Get returns a copy of the stored document. Reads do not bump the access
// count; only search hits do.
func (s *Store) Get(id string) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return Document{}, false
	}
	out := *doc
	out.Metadata = copyMetadata(doc.Metadata)
	return out, true
}

// Len reports how many documents are stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// IDs returns all document IDs in insertion order.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return s.docs[ids[i]].Seq < s.docs[ids[j]].Seq
	})
	return ids
}

// indexWords appends the document to the posting list of each distinct term,
// in first-occurrence order. Callers must hold the write lock.
func (s *Store) indexWords(id, content string) {
	seen := make(map[string]struct{})
	for _, word := range strings.Fields(strings.ToLower(content)) {
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		s.postings[word] = append(s.postings[word], id)
	}
}

// removePostings drops the document from every posting list its old content
// put it on. Callers must hold the write lock.
func (s *Store) removePostings(id, oldContent string) {
	seen := make(map[string]struct{})
	for _, word := range strings.Fields(strings.ToLower(oldContent)) {
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		list := s.postings[word]
		filtered := list[:0]
		for _, docID := range list {
			if docID != id {
				filtered = append(filtered, docID)
			}
		}
		if len(filtered) == 0 {
			delete(s.postings, word)
		} else {
			s.postings[word] = filtered
		}
	}
}
