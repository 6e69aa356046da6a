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
	"net/http"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/CascadiaHealth/CascadiaGate/pkg/ux"
	"github.com/CascadiaHealth/CascadiaGate/services/browser"
)

type plansResponse struct {
	Pending  []browser.Plan           `json:"pending"`
	Executed []browser.ExecutedRecord `json:"executed"`
}

// runPlansList shows the gateway's pending and executed action plans.
func runPlansList(cmd *cobra.Command, args []string) error {
	client := newGatewayClient(config)

	var resp plansResponse
	err := client.do(cmd.Context(), http.MethodGet, "/v1/tools/browser-action/plans", nil, &resp)
	if err != nil {
		return err
	}

	if len(resp.Pending) == 0 {
		ux.Info("No plans awaiting confirmation.")
	} else {
		ux.Title(fmt.Sprintf("Pending plans (%d)", len(resp.Pending)))
		for _, plan := range resp.Pending {
			expires := plan.CreatedAt.Add(browser.ConfirmationTimeout)
			ux.Info(fmt.Sprintf("%s  %s  expires %s",
				plan.PlanID, plan.Description, expires.Local().Format("15:04:05")))
		}
	}

	if len(resp.Executed) > 0 {
		ux.Title(fmt.Sprintf("Executed plans (%d)", len(resp.Executed)))
		for _, record := range resp.Executed {
			ux.FileStatus(record.PlanID, ux.IconSuccess,
				fmt.Sprintf("%d actions at %s",
					record.ActionCount, record.ExecutedAt.Local().Format("15:04:05")))
		}
	}
	return nil
}

// runPlansConfirm confirms or cancels one pending plan. Without --yes the
// operator reviews the plan's description in an interactive form first.
func runPlansConfirm(cmd *cobra.Command, args []string) error {
	planID := args[0]
	client := newGatewayClient(config)

	var plans plansResponse
	err := client.do(cmd.Context(), http.MethodGet, "/v1/tools/browser-action/plans", nil, &plans)
	if err != nil {
		return err
	}
	var plan *browser.Plan
	for i := range plans.Pending {
		if plans.Pending[i].PlanID == planID {
			plan = &plans.Pending[i]
			break
		}
	}
	if plan == nil {
		return fmt.Errorf("no pending plan with id %s", planID)
	}

	approve := confirmYes
	if !confirmYes {
		form := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Execute plan %s?", plan.PlanID)).
				Description(plan.Description).
				Affirmative("Confirm").
				Negative("Cancel").
				Value(&approve),
		))
		if err := form.Run(); err != nil {
			return fmt.Errorf("confirmation prompt failed: %w", err)
		}
	}

	response := "CONFIRM"
	if !approve {
		response = "no"
	}

	var result browser.Response
	err = client.do(cmd.Context(), http.MethodPost, "/v1/tools/browser-action/confirm",
		map[string]string{"plan_id": planID, "response": response}, &result)
	if err != nil {
		return err
	}

	switch result.Status {
	case browser.StatusExecuted:
		ux.Success(fmt.Sprintf("Plan %s executed.", planID))
	case browser.StatusCancelled:
		ux.Warning(fmt.Sprintf("Plan %s cancelled.", planID))
	case browser.StatusExpired:
		ux.Warning(fmt.Sprintf("Plan %s had already expired.", planID))
	default:
		ux.Info(fmt.Sprintf("Plan %s: %s", planID, result.Status))
	}
	return nil
}
