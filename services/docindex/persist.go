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
	"encoding/json"
	"fmt"
	"sort"

	badger "github.com/dgraph-io/badger/v4"
)

// docKeyPrefix namespaces document records inside the shared database.
const docKeyPrefix = "docindex:doc:"

// persistLocked writes the named documents through to the backing database.
// It is a no-op for memory-only stores. Callers must hold the write lock.
func (s *Store) persistLocked(ids ...string) error {
	if s.db == nil || len(ids) == 0 {
		return nil
	}
	return s.db.Update(func(txn *badger.Txn) error {
		for _, id := range ids {
			doc, ok := s.docs[id]
			if !ok {
				continue
			}
			raw, err := json.Marshal(doc)
			if err != nil {
				return fmt.Errorf("failed to encode document %s: %w", id, err)
			}
			if err := txn.Set([]byte(docKeyPrefix+id), raw); err != nil {
				return fmt.Errorf("failed to write document %s: %w", id, err)
			}
		}
		return nil
	})
}

// loadAll restores every persisted document and rebuilds the inverted index
// in original insertion order so tie-breaking survives a restart.
func (s *Store) loadAll() error {
	var docs []*Document
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(docKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var doc Document
				if err := json.Unmarshal(val, &doc); err != nil {
					return fmt.Errorf("failed to decode a stored document: %w", err)
				}
				docs = append(docs, &doc)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Seq < docs[j].Seq })

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range docs {
		s.docs[doc.ID] = doc
		s.indexWords(doc.ID, doc.Content)
		if doc.Seq >= s.nextSeq {
			s.nextSeq = doc.Seq + 1
		}
	}
	return nil
}
