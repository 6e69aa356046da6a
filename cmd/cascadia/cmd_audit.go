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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CascadiaHealth/CascadiaGate/pkg/ux"
	"github.com/CascadiaHealth/CascadiaGate/services/audit"
)

// runAuditVerify checks the local trail's hash chain.
func runAuditVerify(cmd *cobra.Command, args []string) error {
	trail, err := audit.NewTrail(config.AuditTrail, nil)
	if err != nil {
		return err
	}
	defer trail.Close()

	count, err := trail.EntryCount()
	if err != nil {
		return err
	}

	valid, breakSequence, err := trail.Verify()
	if err != nil {
		return err
	}
	if !valid {
		ux.Error(fmt.Sprintf("Audit chain broken at sequence %d of %d records.", breakSequence, count))
		return fmt.Errorf("audit trail failed verification")
	}
	ux.Success(fmt.Sprintf("Audit chain intact: %d records verified.", count))
	return nil
}

// runAuditArchive verifies and uploads the trail to GCS.
func runAuditArchive(cmd *cobra.Command, args []string) error {
	if config.GCSBucket == "" || config.GCSKeyPath == "" {
		return fmt.Errorf("gcs_bucket and gcs_key_path must be configured to archive")
	}

	trail, err := audit.NewTrail(config.AuditTrail, nil)
	if err != nil {
		return err
	}
	defer trail.Close()

	archiver, err := audit.NewArchiver(cmd.Context(), config.GCSBucket, config.GCSKeyPath)
	if err != nil {
		return err
	}
	defer archiver.Close()

	var objectPath string
	err = ux.WithSpinner("Archiving audit trail", func() error {
		var uploadErr error
		objectPath, uploadErr = archiver.UploadTrail(cmd.Context(), trail)
		return uploadErr
	})
	if err != nil {
		return err
	}
	ux.Info(fmt.Sprintf("Archived to gs://%s/%s", config.GCSBucket, objectPath))
	return nil
}
