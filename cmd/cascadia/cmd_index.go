// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CascadiaHealth/CascadiaGate/pkg/ux"
	"github.com/CascadiaHealth/CascadiaGate/services/gateway/datatypes"
)

var indexableExtensions = map[string]bool{
	".txt": true, ".md": true, ".csv": true, ".json": true,
	".note": true, ".soap": true,
}

type indexResponse struct {
	ChunksIndexed int `json:"chunks_indexed"`
	FindingsCount int `json:"findings_count"`
}

// runIndex posts local files (or directories of files) to the gateway's
// document endpoint. The gateway redacts and scans server-side; files are
// sent as-is.
func runIndex(cmd *cobra.Command, args []string) error {
	files, err := collectIndexable(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no indexable files found (supported: %s)",
			strings.Join(sortedExtensions(), ", "))
	}

	client := newGatewayClient(config)
	ctx := cmd.Context()

	spin := ux.NewSpinner(fmt.Sprintf("Indexing %d files", len(files)))
	spin.Start()

	indexed, totalChunks, totalFindings := 0, 0, 0
	var failures []string
	for i, path := range files {
		spin.UpdateMessage(fmt.Sprintf("Indexing %s %s",
			filepath.Base(path), ux.ProgressBar(i+1, len(files), 20)))

		resp, err := indexFile(ctx, client, path)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		indexed++
		totalChunks += resp.ChunksIndexed
		totalFindings += resp.FindingsCount
	}

	if len(failures) > 0 {
		spin.StopWithError(fmt.Sprintf("Indexed %d of %d files", indexed, len(files)))
		for _, failure := range failures {
			ux.Error(failure)
		}
	} else {
		spin.StopWithSuccess(fmt.Sprintf("Indexed %d files (%d chunks)", indexed, totalChunks))
	}
	if totalFindings > 0 {
		ux.Warning(fmt.Sprintf("%d PHI findings were redacted during indexing", totalFindings))
	}
	ux.Summary(indexed, len(files)-indexed, len(files))
	return nil
}

func indexFile(ctx context.Context, client *gatewayClient, path string) (indexResponse, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return indexResponse{}, err
	}

	req := datatypes.AddDocumentRequest{
		Source:  filepath.Base(path),
		Content: string(raw),
	}
	var resp indexResponse
	if err := client.do(ctx, http.MethodPost, "/v1/documents", req, &resp); err != nil {
		return indexResponse{}, err
	}
	return resp, nil
}

// collectIndexable expands the path arguments into the list of supported
// files, walking directories recursively.
func collectIndexable(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", path, err)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		err = filepath.WalkDir(path, func(entry string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && indexableExtensions[strings.ToLower(filepath.Ext(entry))] {
				files = append(files, entry)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", path, err)
		}
	}
	return files, nil
}

func sortedExtensions() []string {
	exts := make([]string, 0, len(indexableExtensions))
	for ext := range indexableExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
