package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/affinityhq/affinity/internal/api"
	"github.com/affinityhq/affinity/internal/domain"
)

// cmdPlans lists plans or shows one plan with its application form.
func cmdPlans(args []string) error {
	subCmd := "list"
	if len(args) > 0 {
		subCmd = args[0]
	}

	switch subCmd {
	case "list", "":
		return cmdPlansList()
	case "show":
		if len(args) < 2 {
			return fmt.Errorf("usage: affinity plans show <plan-id>")
		}
		return cmdPlansShow(args[1])
	default:
		return fmt.Errorf("unknown plans command: %s (valid: list, show)", subCmd)
	}
}

func cmdPlansList() error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	plans, err := a.client.ListPlans(context.Background())
	if err != nil {
		return fmt.Errorf("list plans: %w", err)
	}
	if len(plans) == 0 {
		fmt.Println("No membership plans available")
		return nil
	}

	fmt.Printf("%-6s %-28s %-10s %s\n", "ID", "NAME", "FEE", "RENEWAL")
	for _, plan := range plans {
		fee := "free"
		if !plan.IsFree() {
			fee = fmt.Sprintf("$%.2f", plan.Fee)
		}
		fmt.Printf("%-6d %-28s %-10s %s\n", plan.ID, plan.Name, fee, plan.RenewalInterval)
	}
	return nil
}

func cmdPlansShow(rawID string) error {
	planID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid plan id %q", rawID)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	wf := a.workflow()
	loadErr := wf.Load(ctx, planID, nil)
	if loadErr != nil && !errors.Is(loadErr, domain.ErrFormNotAvailable) {
		return loadErr
	}

	plan := wf.Plan()
	fmt.Printf("Plan:     %s (#%d)\n", plan.Name, plan.ID)
	if plan.Description != "" {
		fmt.Printf("About:    %s\n", plan.Description)
	}
	if name := organizationName(ctx, a, plan.OrganizationID); name != "" {
		fmt.Printf("Offered:  %s\n", name)
	}
	if plan.IsFree() {
		fmt.Println("Fee:      free")
	} else {
		fmt.Printf("Fee:      $%.2f / %s\n", plan.Fee, plan.RenewalInterval)
	}

	if loadErr != nil {
		if api.IsNotFound(loadErr) {
			fmt.Println("\nNo application form is configured for this plan yet.")
			return nil
		}
		return loadErr
	}

	form := wf.Form()
	fmt.Println("\nApplication form:")
	for _, field := range form.Fields {
		printFormField(field)
	}
	if form.HasTerms() {
		fmt.Println("\nThis form requires agreeing to terms before submitting.")
	}
	return nil
}

// organizationName resolves the owning organization's display name.
// Best-effort: lookup failures only cost the plan header line.
func organizationName(ctx context.Context, a *app, orgID int64) string {
	if orgID == 0 {
		return ""
	}
	orgs, err := a.client.ListOrganizations(ctx)
	if err != nil {
		a.logger.Debug("list organizations", "error", err)
		return ""
	}
	for _, org := range orgs {
		if org.ID == orgID {
			return org.Name
		}
	}
	return ""
}

func printFormField(field domain.FormField) {
	required := ""
	if field.Required {
		required = " (required)"
	}
	label := field.Label
	if label == "" {
		label = field.Name
	}
	fmt.Printf("  %-20s %s%s\n", field.Name, label, required)
	if field.Kind == domain.FieldSelect && len(field.Options) > 0 {
		fmt.Printf("  %-20s options: %v\n", "", field.Options)
	}
}
