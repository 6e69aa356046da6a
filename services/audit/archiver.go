// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package audit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// Archiver uploads audit trail files to Google Cloud Storage for offsite
// retention. Invoked from the CLI, not from the request path.
type Archiver struct {
	storageClient *storage.Client
	BucketName    string
}

// NewArchiver creates an archiver using the service account key at
// saKeyPath.
func NewArchiver(ctx context.Context, bucketName, saKeyPath string) (*Archiver, error) {
	if _, err := os.Stat(saKeyPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("service account key not found at path: %s", saKeyPath)
	}

	storageClient, err := storage.NewClient(ctx, option.WithCredentialsFile(saKeyPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create the storage client: %w", err)
	}

	return &Archiver{
		storageClient: storageClient,
		BucketName:    bucketName,
	}, nil
}

// UploadFile copies one local file to the given object path.
func (a *Archiver) UploadFile(ctx context.Context, localPath, objectPath string) error {
	localFile, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open the local file %s: %w", localPath, err)
	}
	defer localFile.Close()

	obj := a.storageClient.Bucket(a.BucketName).Object(objectPath)
	writer := obj.NewWriter(ctx)
	writer.ContentType = "application/x-ndjson"
	writer.CacheControl = "no-cache, no-store, must-revalidate"

	if _, err := io.Copy(writer, localFile); err != nil {
		return fmt.Errorf("failed to copy %s to object %s: %w", localPath, objectPath, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close the object writer for %s: %w", objectPath, err)
	}

	slog.Info("audit file archived",
		"local_path", localPath,
		"object", fmt.Sprintf("gs://%s/%s", a.BucketName, objectPath))
	return nil
}

// UploadTrail verifies the trail's hash chain and uploads it under a
// timestamped object name. A broken chain refuses the upload.
func (a *Archiver) UploadTrail(ctx context.Context, trail *Trail) (string, error) {
	valid, breakSequence, err := trail.Verify()
	if err != nil {
		return "", fmt.Errorf("failed to verify the trail before archiving: %w", err)
	}
	if !valid {
		return "", fmt.Errorf("audit chain broken at sequence %d, refusing to archive", breakSequence)
	}

	if err := trail.Flush(ctx); err != nil {
		return "", err
	}

	base := filepath.Base(trail.Path())
	objectPath := path.Join("audit",
		fmt.Sprintf("%s-%s", time.Now().UTC().Format("20060102T150405Z"), base))
	if err := a.UploadFile(ctx, trail.Path(), objectPath); err != nil {
		return "", err
	}
	return objectPath, nil
}

// Close releases the storage client.
func (a *Archiver) Close() error {
	return a.storageClient.Close()
}
