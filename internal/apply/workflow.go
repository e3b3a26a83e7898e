// Package apply drives the membership application workflow: load a plan and
// its form, offer resumption of prior incomplete work, validate coupons
// against the plan price, submit, and branch to payment or completion.
package apply

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/affinityhq/affinity/internal/api"
	"github.com/affinityhq/affinity/internal/domain"
)

// RedirectDelay is how long an eligibility error stays readable before the
// caller is expected to navigate away. Advisory, not enforced here.
const RedirectDelay = 3 * time.Second

// PlanAPI is the slice of the platform API the workflow needs.
type PlanAPI interface {
	ListPlans(ctx context.Context) ([]domain.MembershipPlan, error)
	GetForm(ctx context.Context, formID int64) (*domain.ApplicationForm, error)
	GetOrganizationForm(ctx context.Context, orgID int64) (*domain.ApplicationForm, error)
	GetDefaultForm(ctx context.Context) (*domain.ApplicationForm, error)
	CheckIncomplete(ctx context.Context, email string) ([]domain.IncompleteApplication, error)
	ValidateCoupon(ctx context.Context, code string, planID int64) (*domain.Coupon, error)
	SubmitApplication(ctx context.Context, req api.SubmitApplicationRequest) (*api.SubmitApplicationResponse, error)
	SubmitPayment(ctx context.Context, req api.PaymentRequest) (*api.PaymentConfirmation, error)
}

// Step is where the workflow goes after a successful submit.
type Step string

const (
	// StepPayment means the application is submitted but priced; payment
	// details must follow.
	StepPayment Step = "payment"

	// StepComplete means the application finished with nothing to pay.
	StepComplete Step = "complete"
)

// PaymentState is everything the payment step needs, carried forward from
// submission so no re-fetch is required.
type PaymentState struct {
	ApplicationID  int64
	PlanID         int64
	PlanName       string
	Amount         float64
	OriginalAmount float64
	Coupon         *domain.Coupon
}

// Outcome is the result of a successful submission.
type Outcome struct {
	Step          Step
	ApplicationID int64
	IsIncomplete  bool
	Payment       *PaymentState
}

// Workflow holds the state of one application attempt. It is not safe for
// concurrent use; one workflow serves one applicant interaction.
type Workflow struct {
	api    PlanAPI
	drafts DraftStore
	logger *slog.Logger

	plan   *domain.MembershipPlan
	form   *domain.ApplicationForm
	user   *domain.User
	values map[string]string
	agreed bool

	coupon    *domain.Coupon
	couponErr string

	resumeCandidate *domain.IncompleteApplication
}

// NewWorkflow creates an application workflow. The draft store is optional;
// without it local draft caching is skipped.
func NewWorkflow(planAPI PlanAPI, drafts DraftStore, logger *slog.Logger) *Workflow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflow{
		api:    planAPI,
		drafts: drafts,
		logger: logger,
		values: make(map[string]string),
	}
}

// Load fetches the plan, refuses plan creators, and resolves the applicable
// form. Form precedence: the plan-specific form when one is configured and
// the plan opts out of defaults, else the organization's default form, else
// the global default. Exactly one source is used, never a merge.
func (w *Workflow) Load(ctx context.Context, planID int64, user *domain.User) error {
	plans, err := w.api.ListPlans(ctx)
	if err != nil {
		return fmt.Errorf("list plans: %w", err)
	}

	var plan *domain.MembershipPlan
	for i := range plans {
		if plans[i].ID == planID {
			plan = &plans[i]
			break
		}
	}
	if plan == nil {
		return domain.ErrPlanNotFound
	}
	w.plan = plan
	w.user = user

	if user != nil && user.ID == plan.CreatedBy {
		return domain.ErrOwnPlan
	}

	form, err := w.resolveForm(ctx, plan)
	if err != nil {
		w.logger.Warn("resolve application form", "plan", plan.ID, "error", err)
		return fmt.Errorf("%w: %w", domain.ErrFormNotAvailable, err)
	}
	w.form = form

	if user != nil && user.Email != "" {
		w.SetField("email", user.Email)
	}
	return nil
}

func (w *Workflow) resolveForm(ctx context.Context, plan *domain.MembershipPlan) (*domain.ApplicationForm, error) {
	switch {
	case plan.ApplicationFormID != 0 && !plan.UseDefaultForm:
		return w.api.GetForm(ctx, plan.ApplicationFormID)
	case plan.OrganizationID != 0:
		return w.api.GetOrganizationForm(ctx, plan.OrganizationID)
	default:
		return w.api.GetDefaultForm(ctx)
	}
}

// Plan returns the loaded plan.
func (w *Workflow) Plan() *domain.MembershipPlan {
	return w.plan
}

// Form returns the resolved application form.
func (w *Workflow) Form() *domain.ApplicationForm {
	return w.form
}

// Values returns the current field values.
func (w *Workflow) Values() map[string]string {
	return w.values
}

// SetField records a field value.
func (w *Workflow) SetField(name, value string) {
	w.values[name] = value
}

// Agree records that the applicant accepted the form's terms.
func (w *Workflow) Agree() {
	w.agreed = true
}

// Email returns the applicant email field as currently filled.
func (w *Workflow) Email() string {
	return w.values["email"]
}

// ProbeIncomplete looks up a prior incomplete application for the given
// email and this plan. It is a non-critical probe: any failure is logged at
// debug and swallowed, never surfaced. It fires only once the email looks
// like an address (contains '@').
func (w *Workflow) ProbeIncomplete(ctx context.Context, email string) *domain.IncompleteApplication {
	if w.plan == nil || !strings.Contains(email, "@") {
		return nil
	}

	apps, err := w.api.CheckIncomplete(ctx, email)
	if err != nil {
		w.logger.Debug("incomplete application probe failed", "email", email, "error", err)
		return nil
	}
	for i := range apps {
		if apps[i].PlanID == w.plan.ID {
			w.resumeCandidate = &apps[i]
			return w.resumeCandidate
		}
	}
	return nil
}

// ResumeCandidate returns the pending resumption offer, if any.
func (w *Workflow) ResumeCandidate() *domain.IncompleteApplication {
	return w.resumeCandidate
}

// Resume merges the candidate's saved values into the current form state,
// preferring saved values, and consumes the candidate.
func (w *Workflow) Resume() {
	if w.resumeCandidate == nil {
		return
	}
	for name, value := range w.resumeCandidate.Values {
		w.values[name] = value
	}
	w.resumeCandidate = nil
}

// Discard drops the resumption candidate and starts fresh.
func (w *Workflow) Discard() {
	w.resumeCandidate = nil
}

// ApplyCoupon validates a coupon code against the plan. On success the
// coupon is stored for pricing; on failure any previously applied coupon is
// cleared and a field-scoped error is returned.
func (w *Workflow) ApplyCoupon(ctx context.Context, code string) error {
	if w.plan == nil {
		return domain.ErrPlanNotFound
	}
	if w.plan.IsFree() {
		return domain.ErrCouponNotApplicable
	}

	coupon, err := w.api.ValidateCoupon(ctx, code, w.plan.ID)
	if err != nil {
		w.coupon = nil
		w.couponErr = api.Message(err)
		return fmt.Errorf("%w: %s", domain.ErrCouponInvalid, w.couponErr)
	}

	w.coupon = coupon
	w.couponErr = ""
	return nil
}

// RemoveCoupon clears the applied coupon and any coupon error.
func (w *Workflow) RemoveCoupon() {
	w.coupon = nil
	w.couponErr = ""
}

// Coupon returns the currently applied coupon.
func (w *Workflow) Coupon() *domain.Coupon {
	return w.coupon
}

// CouponError returns the last coupon validation message.
func (w *Workflow) CouponError() string {
	return w.couponErr
}

// Quote computes the price for the loaded plan with the applied coupon.
func (w *Workflow) Quote() domain.PriceQuote {
	if w.plan == nil {
		return domain.PriceQuote{}
	}
	return domain.ComputePrice(w.plan.Fee, w.coupon)
}

// SaveDraft caches the current field values locally so the applicant can
// come back later. Best-effort: no draft store, no draft.
func (w *Workflow) SaveDraft() error {
	if w.drafts == nil || w.plan == nil {
		return nil
	}
	email := w.Email()
	if email == "" {
		return nil
	}

	draft, err := w.drafts.Find(w.plan.ID, email)
	if err != nil {
		if !errors.Is(err, ErrDraftNotFound) {
			return fmt.Errorf("find draft: %w", err)
		}
		draft = NewDraft(w.plan.ID, email, w.values)
	} else {
		draft.Touch(w.values)
	}
	if err := w.drafts.Save(draft); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// RestoreDraft merges a locally cached draft for the given email into the
// current values, preferring saved values. Best-effort like the server
// probe.
func (w *Workflow) RestoreDraft(email string) bool {
	if w.drafts == nil || w.plan == nil {
		return false
	}
	draft, err := w.drafts.Find(w.plan.ID, email)
	if err != nil {
		if !errors.Is(err, ErrDraftNotFound) {
			w.logger.Debug("restore draft failed", "error", err)
		}
		return false
	}
	for name, value := range draft.Values {
		w.values[name] = value
	}
	return true
}

// Submit validates the filled form and sends it. On success the workflow
// branches: a positive final price leads to the payment step with all
// amounts carried along, a zero price completes immediately. Validation and
// transport failures preserve the form state for correction and resubmit.
func (w *Workflow) Submit(ctx context.Context) (*Outcome, error) {
	if w.plan == nil || w.form == nil {
		return nil, domain.ErrFormNotAvailable
	}

	if err := w.form.Validate(w.values, w.agreed); err != nil {
		return nil, err
	}

	snapshot, err := json.Marshal(w.form)
	if err != nil {
		return nil, fmt.Errorf("serialize form: %w", err)
	}

	req := api.SubmitApplicationRequest{
		PlanID:       w.plan.ID,
		Values:       w.values,
		FormSnapshot: snapshot,
	}
	if w.coupon != nil {
		req.CouponID = w.coupon.ID
	}

	resp, err := w.api.SubmitApplication(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("submit application: %w", err)
	}

	w.dropDraft()

	quote := w.Quote()
	outcome := &Outcome{
		ApplicationID: resp.ApplicationID,
		IsIncomplete:  resp.IsIncomplete,
	}
	if quote.Final > 0 {
		outcome.Step = StepPayment
		outcome.Payment = &PaymentState{
			ApplicationID:  resp.ApplicationID,
			PlanID:         w.plan.ID,
			PlanName:       w.plan.Name,
			Amount:         quote.Final,
			OriginalAmount: quote.Original,
			Coupon:         w.coupon,
		}
	} else {
		outcome.Step = StepComplete
	}
	return outcome, nil
}

// Pay sends the payment for a submitted application using the state carried
// from the submit branch.
func (w *Workflow) Pay(ctx context.Context, state *PaymentState, method, reference string) (*api.PaymentConfirmation, error) {
	conf, err := w.api.SubmitPayment(ctx, api.PaymentRequest{
		ApplicationID: state.ApplicationID,
		PlanID:        state.PlanID,
		Amount:        state.Amount,
		Method:        method,
		Reference:     reference,
	})
	if err != nil {
		return nil, fmt.Errorf("submit payment: %w", err)
	}
	return conf, nil
}

// dropDraft removes the local draft after a successful submission.
func (w *Workflow) dropDraft() {
	if w.drafts == nil || w.plan == nil {
		return
	}
	email := w.Email()
	if email == "" {
		return
	}
	draft, err := w.drafts.Find(w.plan.ID, email)
	if err != nil {
		return
	}
	if err := w.drafts.Delete(draft.ID); err != nil {
		w.logger.Debug("delete draft", "error", err)
	}
}
