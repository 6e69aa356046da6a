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
	"github.com/spf13/cobra"

	"github.com/CascadiaHealth/CascadiaGate/pkg/ux"
)

// --- Global Command Variables ---
var (
	configPath  string
	plainOutput bool

	redactDiff  bool
	redactWrite bool

	confirmYes bool

	chatSessionID string

	rootCmd = &cobra.Command{
		Use:   "cascadia",
		Short: "A cli to manage the CascadiaGate PHI-safe chat gateway",
		Long: `Cascadia is the operator tool for CascadiaGate: run the gateway,
redact files locally, index clinic documents, review browser action
plans, and archive the audit trail.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if plainOutput {
				ux.SetPlain(true)
			}
			return loadConfig(configPath)
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway server",
		RunE:  runServe, // Defined in cmd_serve.go
	}

	redactCmd = &cobra.Command{
		Use:   "redact [files...]",
		Short: "Redact PHI from local files (or stdin) without touching the gateway",
		RunE:  runRedact, // Defined in cmd_redact.go
	}

	indexCmd = &cobra.Command{
		Use:   "index [paths...]",
		Short: "Index documents into the gateway's knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runIndex, // Defined in cmd_index.go
	}

	// --- Action Plans ---
	plansCmd = &cobra.Command{
		Use:   "plans",
		Short: "Review pending browser action plans",
	}
	plansListCmd = &cobra.Command{
		Use:   "list",
		Short: "List pending and executed action plans",
		RunE:  runPlansList, // Defined in cmd_plans.go
	}
	plansConfirmCmd = &cobra.Command{
		Use:   "confirm [plan_id]",
		Short: "Confirm or cancel a pending action plan",
		Args:  cobra.ExactArgs(1),
		RunE:  runPlansConfirm, // Defined in cmd_plans.go
	}

	chatCmd = &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session against the gateway",
		RunE:  runChat, // Defined in cmd_chat.go
	}

	healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Show gateway health",
		RunE:  runHealth, // Defined in cmd_health.go
	}

	// --- Audit ---
	auditCmd = &cobra.Command{
		Use:   "audit",
		Short: "Inspect and archive the local audit trail",
	}
	auditVerifyCmd = &cobra.Command{
		Use:   "verify",
		Short: "Verify the audit trail hash chain",
		RunE:  runAuditVerify, // Defined in cmd_audit.go
	}
	auditArchiveCmd = &cobra.Command{
		Use:   "archive",
		Short: "Upload the audit trail to Google Cloud Storage",
		RunE:  runAuditArchive, // Defined in cmd_audit.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml",
		"Path to the CLI configuration file")
	rootCmd.PersistentFlags().BoolVar(&plainOutput, "plain", false,
		"Plain, script-friendly output (no colors or spinners)")

	rootCmd.AddCommand(serveCmd)

	rootCmd.AddCommand(redactCmd)
	redactCmd.Flags().BoolVar(&redactDiff, "diff", false,
		"Show a diff of the redactions instead of the redacted text")
	redactCmd.Flags().BoolVar(&redactWrite, "write", false,
		"Rewrite the files in place with PHI redacted")

	rootCmd.AddCommand(indexCmd)

	rootCmd.AddCommand(plansCmd)
	plansCmd.AddCommand(plansListCmd)
	plansCmd.AddCommand(plansConfirmCmd)
	plansConfirmCmd.Flags().BoolVar(&confirmYes, "yes", false,
		"Confirm without the interactive prompt")

	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&chatSessionID, "resume", "",
		"Resume a conversation using a specific session ID")

	rootCmd.AddCommand(healthCmd)

	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditArchiveCmd)
}
