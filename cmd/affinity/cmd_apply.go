package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/affinityhq/affinity/internal/apply"
	"github.com/affinityhq/affinity/internal/domain"
)

// fieldFlags collects repeated --set name=value arguments.
type fieldFlags map[string]string

func (f fieldFlags) String() string { return "" }

func (f fieldFlags) Set(raw string) error {
	name, value, ok := strings.Cut(raw, "=")
	if !ok {
		return fmt.Errorf("expected name=value, got %q", raw)
	}
	f[name] = value
	return nil
}

// cmdApply runs the application workflow for one plan.
func cmdApply(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: affinity apply <plan-id> [flags]")
	}
	planID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid plan id %q", args[0])
	}

	fields := fieldFlags{}
	fs := flag.NewFlagSet("apply", flag.ExitOnError)
	fs.Var(fields, "set", "form field as name=value (repeatable)")
	coupon := fs.String("coupon", "", "discount coupon code")
	agree := fs.Bool("agree", false, "agree to the form's terms")
	resume := fs.Bool("resume", false, "resume a prior incomplete application")
	fresh := fs.Bool("fresh", false, "discard any prior incomplete application")
	draftOnly := fs.Bool("save-draft", false, "save field values locally without submitting")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	if a.manager.Bootstrap() {
		a.manager.Verify(ctx)
	}
	snap := a.manager.Snapshot()
	if !snap.IsAuthenticated() {
		return fmt.Errorf("you must be logged in to apply (run 'affinity login')")
	}

	wf := a.workflow()
	if err := wf.Load(ctx, planID, snap.User); err != nil {
		if errors.Is(err, domain.ErrOwnPlan) {
			fmt.Println("You created this plan, so you cannot apply to it.")
			time.Sleep(apply.RedirectDelay)
			fmt.Println("Returning to the plan list:")
			return cmdPlansList()
		}
		if errors.Is(err, domain.ErrPlanNotFound) {
			return fmt.Errorf("plan %d was not found; run 'affinity plans list' to browse", planID)
		}
		return err
	}

	for name, value := range fields {
		wf.SetField(name, value)
	}
	if *agree {
		wf.Agree()
	}

	// A prior incomplete application can be resumed or discarded; without
	// an explicit choice the user is asked to decide and rerun.
	if candidate := wf.ProbeIncomplete(ctx, wf.Email()); candidate != nil {
		switch {
		case *resume:
			wf.Resume()
			fmt.Printf("Resumed application #%d from %s\n",
				candidate.ID, candidate.UpdatedAt.Format("2006-01-02"))
		case *fresh:
			wf.Discard()
		default:
			return fmt.Errorf("an incomplete application for this plan exists (last saved %s); rerun with --resume or --fresh",
				candidate.UpdatedAt.Format("2006-01-02"))
		}
	} else if !*fresh {
		if wf.RestoreDraft(wf.Email()) {
			// Local draft values restored; flags passed now still win.
			for name, value := range fields {
				wf.SetField(name, value)
			}
			fmt.Println("Restored locally saved draft values")
		}
	}

	if *draftOnly {
		if err := wf.SaveDraft(); err != nil {
			return err
		}
		fmt.Println("Draft saved; rerun 'affinity apply' to continue")
		return nil
	}

	if *coupon != "" {
		if err := wf.ApplyCoupon(ctx, *coupon); err != nil {
			return err
		}
	}

	quote := wf.Quote()
	if quote.Original > 0 {
		fmt.Printf("Plan fee:  $%.2f\n", quote.Original)
		if quote.Discount > 0 {
			fmt.Printf("Discount:  -$%.2f (%s)\n", quote.Discount, wf.Coupon().Code)
		}
		fmt.Printf("Total due: $%.2f\n", quote.Final)
	}

	outcome, err := wf.Submit(ctx)
	if err != nil {
		var verrs domain.ValidationErrors
		if errors.As(err, &verrs) {
			fmt.Println("The application is incomplete:")
			for _, fe := range verrs {
				fmt.Printf("  - %s\n", fe.Message)
			}
			return fmt.Errorf("fix the fields above and rerun")
		}
		return err
	}

	if outcome.IsIncomplete {
		fmt.Printf("Application #%d completed (continued from an earlier submission)\n", outcome.ApplicationID)
	} else {
		fmt.Printf("Application #%d submitted\n", outcome.ApplicationID)
	}

	switch outcome.Step {
	case apply.StepComplete:
		fmt.Println("No payment required, your application is complete.")
	case apply.StepPayment:
		p := outcome.Payment
		fmt.Printf("Payment of $%.2f is due for %s.\n", p.Amount, p.PlanName)
		fmt.Printf("Run: affinity pay --application %d --plan %d --amount %.2f --method card\n",
			p.ApplicationID, p.PlanID, p.Amount)
	}
	return nil
}

// cmdPay submits payment for an application using the amounts printed by
// the apply step.
func cmdPay(args []string) error {
	fs := flag.NewFlagSet("pay", flag.ExitOnError)
	applicationID := fs.Int64("application", 0, "application id")
	planID := fs.Int64("plan", 0, "plan id")
	amount := fs.Float64("amount", 0, "amount due")
	method := fs.String("method", "card", "payment method")
	reference := fs.String("reference", "", "external payment reference")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *applicationID == 0 || *amount <= 0 {
		return fmt.Errorf("usage: affinity pay --application <id> --amount <due> [--plan <id>] [--method card]")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	if a.manager.Bootstrap() {
		a.manager.Verify(ctx)
	}
	if !a.manager.Snapshot().IsAuthenticated() {
		return fmt.Errorf("you must be logged in to pay (run 'affinity login')")
	}

	wf := a.workflow()
	conf, err := wf.Pay(ctx, &apply.PaymentState{
		ApplicationID: *applicationID,
		PlanID:        *planID,
		Amount:        *amount,
	}, *method, *reference)
	if err != nil {
		return err
	}

	fmt.Printf("Payment #%d recorded for application #%d (%s)\n",
		conf.PaymentID, conf.ApplicationID, conf.Status)
	return nil
}

// cmdDrafts manages locally saved application drafts.
func cmdDrafts(args []string) error {
	subCmd := "list"
	if len(args) > 0 {
		subCmd = args[0]
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	switch subCmd {
	case "list", "":
		drafts, err := a.drafts.List()
		if err != nil {
			return err
		}
		if len(drafts) == 0 {
			fmt.Println("No saved drafts")
			return nil
		}
		fmt.Printf("%-38s %-8s %-28s %s\n", "ID", "PLAN", "EMAIL", "UPDATED")
		for _, d := range drafts {
			fmt.Printf("%-38s %-8d %-28s %s\n", d.ID, d.PlanID, d.Email,
				d.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return nil
	case "discard":
		if len(args) < 2 {
			return fmt.Errorf("usage: affinity drafts discard <draft-id>")
		}
		if err := a.drafts.Delete(args[1]); err != nil {
			return err
		}
		fmt.Println("Draft discarded")
		return nil
	default:
		return fmt.Errorf("unknown drafts command: %s (valid: list, discard)", subCmd)
	}
}
