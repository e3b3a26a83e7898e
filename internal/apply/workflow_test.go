package apply

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/affinityhq/affinity/internal/api"
	"github.com/affinityhq/affinity/internal/domain"
)

// mockPlanAPI records which form endpoint was hit and counts submissions.
type mockPlanAPI struct {
	plans      []domain.MembershipPlan
	form       *domain.ApplicationForm
	formErr    error
	formSource string

	incomplete    []domain.IncompleteApplication
	incompleteErr error

	coupon    *domain.Coupon
	couponErr error

	submitResp  *api.SubmitApplicationResponse
	submitErr   error
	submitCalls int
	lastSubmit  api.SubmitApplicationRequest

	paymentConf *api.PaymentConfirmation
	lastPayment api.PaymentRequest
}

func (m *mockPlanAPI) ListPlans(ctx context.Context) ([]domain.MembershipPlan, error) {
	return m.plans, nil
}

func (m *mockPlanAPI) GetForm(ctx context.Context, formID int64) (*domain.ApplicationForm, error) {
	m.formSource = "plan"
	return m.form, m.formErr
}

func (m *mockPlanAPI) GetOrganizationForm(ctx context.Context, orgID int64) (*domain.ApplicationForm, error) {
	m.formSource = "organization"
	return m.form, m.formErr
}

func (m *mockPlanAPI) GetDefaultForm(ctx context.Context) (*domain.ApplicationForm, error) {
	m.formSource = "default"
	return m.form, m.formErr
}

func (m *mockPlanAPI) CheckIncomplete(ctx context.Context, email string) ([]domain.IncompleteApplication, error) {
	if m.incompleteErr != nil {
		return nil, m.incompleteErr
	}
	return m.incomplete, nil
}

func (m *mockPlanAPI) ValidateCoupon(ctx context.Context, code string, planID int64) (*domain.Coupon, error) {
	if m.couponErr != nil {
		return nil, m.couponErr
	}
	c := *m.coupon
	c.Code = code
	return &c, nil
}

func (m *mockPlanAPI) SubmitApplication(ctx context.Context, req api.SubmitApplicationRequest) (*api.SubmitApplicationResponse, error) {
	m.submitCalls++
	m.lastSubmit = req
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	return m.submitResp, nil
}

func (m *mockPlanAPI) SubmitPayment(ctx context.Context, req api.PaymentRequest) (*api.PaymentConfirmation, error) {
	m.lastPayment = req
	return m.paymentConf, nil
}

func testForm() *domain.ApplicationForm {
	return &domain.ApplicationForm{
		ID: 1,
		Fields: []domain.FormField{
			{Name: "full_name", Label: "Full name", Kind: domain.FieldText, Required: true},
			{Name: "email", Label: "Email", Kind: domain.FieldEmail, Required: true},
		},
	}
}

func paidPlan() domain.MembershipPlan {
	return domain.MembershipPlan{ID: 3, Name: "Gold", Fee: 100, CreatedBy: 99}
}

func TestWorkflow_Load_PlanNotFound(t *testing.T) {
	mock := &mockPlanAPI{plans: []domain.MembershipPlan{paidPlan()}}
	w := NewWorkflow(mock, nil, nil)

	err := w.Load(context.Background(), 404, nil)
	if !errors.Is(err, domain.ErrPlanNotFound) {
		t.Errorf("Load() error = %v, want ErrPlanNotFound", err)
	}
}

func TestWorkflow_Load_CreatorCannotApply(t *testing.T) {
	mock := &mockPlanAPI{plans: []domain.MembershipPlan{paidPlan()}, form: testForm()}
	w := NewWorkflow(mock, nil, nil)

	creator := &domain.User{ID: 99, Email: "owner@example.com"}
	err := w.Load(context.Background(), 3, creator)
	if !errors.Is(err, domain.ErrOwnPlan) {
		t.Fatalf("Load() error = %v, want ErrOwnPlan", err)
	}
	if mock.formSource != "" {
		t.Error("form fetched despite eligibility failure")
	}

	// The guard must hold even if a submit is forced afterwards.
	if _, serr := w.Submit(context.Background()); serr == nil {
		t.Error("Submit() succeeded for the plan's creator")
	}
	if mock.submitCalls != 0 {
		t.Errorf("submit calls = %d, want 0", mock.submitCalls)
	}
}

func TestWorkflow_Load_FormPrecedence(t *testing.T) {
	tests := []struct {
		name       string
		plan       domain.MembershipPlan
		wantSource string
	}{
		{
			name:       "plan-specific form wins",
			plan:       domain.MembershipPlan{ID: 3, ApplicationFormID: 7, OrganizationID: 5},
			wantSource: "plan",
		},
		{
			name:       "use-default overrides plan form",
			plan:       domain.MembershipPlan{ID: 3, ApplicationFormID: 7, UseDefaultForm: true, OrganizationID: 5},
			wantSource: "organization",
		},
		{
			name:       "organization form without plan form",
			plan:       domain.MembershipPlan{ID: 3, OrganizationID: 5},
			wantSource: "organization",
		},
		{
			name:       "global default as last resort",
			plan:       domain.MembershipPlan{ID: 3},
			wantSource: "default",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockPlanAPI{plans: []domain.MembershipPlan{tt.plan}, form: testForm()}
			w := NewWorkflow(mock, nil, nil)

			if err := w.Load(context.Background(), 3, nil); err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if mock.formSource != tt.wantSource {
				t.Errorf("form source = %q, want %q", mock.formSource, tt.wantSource)
			}
		})
	}
}

func TestWorkflow_Load_FormFetchFailure(t *testing.T) {
	mock := &mockPlanAPI{
		plans:   []domain.MembershipPlan{paidPlan()},
		formErr: &api.Error{Status: 404, Message: "no form configured"},
	}
	w := NewWorkflow(mock, nil, nil)

	err := w.Load(context.Background(), 3, nil)
	if !errors.Is(err, domain.ErrFormNotAvailable) {
		t.Errorf("Load() error = %v, want ErrFormNotAvailable", err)
	}
}

func TestWorkflow_Load_PrefillsEmail(t *testing.T) {
	mock := &mockPlanAPI{plans: []domain.MembershipPlan{paidPlan()}, form: testForm()}
	w := NewWorkflow(mock, nil, nil)

	user := &domain.User{ID: 12, Email: "carol@example.com"}
	if err := w.Load(context.Background(), 3, user); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if w.Email() != "carol@example.com" {
		t.Errorf("Email() = %q, want prefilled address", w.Email())
	}
}

func TestWorkflow_ProbeIncomplete(t *testing.T) {
	mock := &mockPlanAPI{
		plans: []domain.MembershipPlan{paidPlan()},
		form:  testForm(),
		incomplete: []domain.IncompleteApplication{
			{ID: 20, PlanID: 8, Values: map[string]string{"full_name": "Other"}},
			{ID: 21, PlanID: 3, Values: map[string]string{"full_name": "Carol D"}},
		},
	}
	w := NewWorkflow(mock, nil, nil)
	if err := w.Load(context.Background(), 3, nil); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got := w.ProbeIncomplete(context.Background(), "carol"); got != nil {
		t.Error("probe fired before the email looked like an address")
	}

	got := w.ProbeIncomplete(context.Background(), "carol@example.com")
	if got == nil || got.ID != 21 {
		t.Fatalf("ProbeIncomplete() = %+v, want the matching plan's record", got)
	}

	w.SetField("full_name", "Carol")
	w.Resume()
	if w.Values()["full_name"] != "Carol D" {
		t.Errorf("full_name = %q, saved values must win on resume", w.Values()["full_name"])
	}
	if w.ResumeCandidate() != nil {
		t.Error("candidate not consumed by Resume()")
	}
}

func TestWorkflow_ProbeIncomplete_ErrorsAreSwallowed(t *testing.T) {
	mock := &mockPlanAPI{
		plans:         []domain.MembershipPlan{paidPlan()},
		form:          testForm(),
		incompleteErr: errors.New("network down"),
	}
	w := NewWorkflow(mock, nil, nil)
	if err := w.Load(context.Background(), 3, nil); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got := w.ProbeIncomplete(context.Background(), "carol@example.com"); got != nil {
		t.Errorf("ProbeIncomplete() = %+v, want nil on probe failure", got)
	}
}

func TestWorkflow_ApplyCoupon(t *testing.T) {
	mock := &mockPlanAPI{
		plans:  []domain.MembershipPlan{paidPlan()},
		form:   testForm(),
		coupon: &domain.Coupon{ID: 8, DiscountType: domain.DiscountPercentage, Discount: 20},
	}
	w := NewWorkflow(mock, nil, nil)
	if err := w.Load(context.Background(), 3, nil); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if err := w.ApplyCoupon(context.Background(), "SAVE20"); err != nil {
		t.Fatalf("ApplyCoupon() error = %v", err)
	}

	quote := w.Quote()
	if quote.Original != 100 || quote.Discount != 20 || quote.Final != 80 {
		t.Errorf("quote = %+v, want 100 - 20 = 80", quote)
	}
}

func TestWorkflow_ApplyCoupon_FailureClearsPrevious(t *testing.T) {
	mock := &mockPlanAPI{
		plans:  []domain.MembershipPlan{paidPlan()},
		form:   testForm(),
		coupon: &domain.Coupon{ID: 8, DiscountType: domain.DiscountPercentage, Discount: 20},
	}
	w := NewWorkflow(mock, nil, nil)
	if err := w.Load(context.Background(), 3, nil); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := w.ApplyCoupon(context.Background(), "SAVE20"); err != nil {
		t.Fatalf("ApplyCoupon() error = %v", err)
	}

	mock.couponErr = &api.Error{Status: 400, Message: "coupon expired"}
	err := w.ApplyCoupon(context.Background(), "OLD")
	if !errors.Is(err, domain.ErrCouponInvalid) {
		t.Fatalf("ApplyCoupon() error = %v, want ErrCouponInvalid", err)
	}
	if w.Coupon() != nil {
		t.Error("previous coupon survived a failed validation")
	}
	if w.CouponError() != "coupon expired" {
		t.Errorf("CouponError() = %q", w.CouponError())
	}
	if quote := w.Quote(); quote.Final != 100 {
		t.Errorf("final = %v, want full price after failed coupon", quote.Final)
	}
}

func TestWorkflow_RemoveCoupon(t *testing.T) {
	mock := &mockPlanAPI{
		plans:  []domain.MembershipPlan{paidPlan()},
		form:   testForm(),
		coupon: &domain.Coupon{ID: 8, DiscountType: domain.DiscountPercentage, Discount: 20},
	}
	w := NewWorkflow(mock, nil, nil)
	if err := w.Load(context.Background(), 3, nil); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := w.ApplyCoupon(context.Background(), "SAVE20"); err != nil {
		t.Fatalf("ApplyCoupon() error = %v", err)
	}

	w.RemoveCoupon()

	if w.Coupon() != nil {
		t.Error("Coupon() != nil after removal")
	}
	if w.CouponError() != "" {
		t.Errorf("CouponError() = %q, want empty", w.CouponError())
	}
	if quote := w.Quote(); quote.Final != 100 || quote.Discount != 0 {
		t.Errorf("quote = %+v, want undiscounted fee", quote)
	}

	// Removal also clears a lingering validation error.
	mock.couponErr = &api.Error{Status: 400, Message: "coupon expired"}
	if err := w.ApplyCoupon(context.Background(), "OLD"); err == nil {
		t.Fatal("ApplyCoupon() error = nil for rejected coupon")
	}
	w.RemoveCoupon()
	if w.CouponError() != "" {
		t.Errorf("CouponError() = %q after removal, want empty", w.CouponError())
	}
}

func TestWorkflow_ApplyCoupon_FreePlan(t *testing.T) {
	mock := &mockPlanAPI{
		plans: []domain.MembershipPlan{{ID: 4, Name: "Community", Fee: 0}},
		form:  testForm(),
	}
	w := NewWorkflow(mock, nil, nil)
	if err := w.Load(context.Background(), 4, nil); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if err := w.ApplyCoupon(context.Background(), "SAVE20"); !errors.Is(err, domain.ErrCouponNotApplicable) {
		t.Errorf("ApplyCoupon() error = %v, want ErrCouponNotApplicable", err)
	}
}

func TestWorkflow_Submit_ValidationBlocks(t *testing.T) {
	mock := &mockPlanAPI{
		plans:      []domain.MembershipPlan{paidPlan()},
		form:       testForm(),
		submitResp: &api.SubmitApplicationResponse{ApplicationID: 501},
	}
	w := NewWorkflow(mock, nil, nil)
	if err := w.Load(context.Background(), 3, nil); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	w.SetField("email", "carol@example.com")
	// full_name left empty.

	_, err := w.Submit(context.Background())
	var verrs domain.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("Submit() error = %v, want ValidationErrors", err)
	}
	if len(verrs) != 1 || verrs[0].Field != "full_name" {
		t.Errorf("errors = %+v", verrs)
	}
	if mock.submitCalls != 0 {
		t.Errorf("submit calls = %d, validation must block the request", mock.submitCalls)
	}

	// Fix and resubmit with the same workflow state.
	w.SetField("full_name", "Carol D")
	outcome, err := w.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit() after fix error = %v", err)
	}
	if outcome.ApplicationID != 501 {
		t.Errorf("ApplicationID = %d", outcome.ApplicationID)
	}
}

func TestWorkflow_Submit_TermsRequireAgreement(t *testing.T) {
	form := testForm()
	form.Terms = "be nice"
	mock := &mockPlanAPI{plans: []domain.MembershipPlan{paidPlan()}, form: form}
	w := NewWorkflow(mock, nil, nil)
	if err := w.Load(context.Background(), 3, nil); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	w.SetField("full_name", "Carol D")
	w.SetField("email", "carol@example.com")

	_, err := w.Submit(context.Background())
	var verrs domain.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("Submit() error = %v, want ValidationErrors", err)
	}
	if verrs[0].Field != "terms" {
		t.Errorf("field = %q, want terms", verrs[0].Field)
	}

	w.Agree()
	mock.submitResp = &api.SubmitApplicationResponse{ApplicationID: 502}
	if _, err := w.Submit(context.Background()); err != nil {
		t.Fatalf("Submit() after agreement error = %v", err)
	}
}

func TestWorkflow_Submit_PaidPlanBranchesToPayment(t *testing.T) {
	mock := &mockPlanAPI{
		plans:      []domain.MembershipPlan{paidPlan()},
		form:       testForm(),
		coupon:     &domain.Coupon{ID: 8, DiscountType: domain.DiscountPercentage, Discount: 20},
		submitResp: &api.SubmitApplicationResponse{ApplicationID: 501},
	}
	w := NewWorkflow(mock, nil, nil)
	if err := w.Load(context.Background(), 3, nil); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	w.SetField("full_name", "Carol D")
	w.SetField("email", "carol@example.com")
	if err := w.ApplyCoupon(context.Background(), "SAVE20"); err != nil {
		t.Fatalf("ApplyCoupon() error = %v", err)
	}

	outcome, err := w.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if outcome.Step != StepPayment || outcome.Payment == nil {
		t.Fatalf("outcome = %+v, want payment step", outcome)
	}
	if outcome.Payment.Amount != 80 || outcome.Payment.OriginalAmount != 100 {
		t.Errorf("payment = %+v, want discounted 80 of 100", outcome.Payment)
	}
	if outcome.Payment.ApplicationID != 501 || outcome.Payment.PlanName != "Gold" {
		t.Errorf("payment = %+v", outcome.Payment)
	}

	if mock.lastSubmit.CouponID != 8 {
		t.Errorf("CouponID = %d, want applied coupon sent", mock.lastSubmit.CouponID)
	}
	var snapshot domain.ApplicationForm
	if err := json.Unmarshal(mock.lastSubmit.FormSnapshot, &snapshot); err != nil {
		t.Fatalf("form snapshot not valid JSON: %v", err)
	}
	if len(snapshot.Fields) != 2 {
		t.Errorf("snapshot fields = %d, want full form definition", len(snapshot.Fields))
	}
}

func TestWorkflow_Submit_ZeroFinalCompletes(t *testing.T) {
	tests := []struct {
		name   string
		plan   domain.MembershipPlan
		coupon *domain.Coupon
	}{
		{"free plan", domain.MembershipPlan{ID: 4, Name: "Community", Fee: 0}, nil},
		{"full discount", paidPlan(), &domain.Coupon{ID: 9, DiscountType: domain.DiscountPercentage, Discount: 100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockPlanAPI{
				plans:      []domain.MembershipPlan{tt.plan},
				form:       testForm(),
				coupon:     tt.coupon,
				submitResp: &api.SubmitApplicationResponse{ApplicationID: 503},
			}
			w := NewWorkflow(mock, nil, nil)
			if err := w.Load(context.Background(), tt.plan.ID, nil); err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			w.SetField("full_name", "Carol D")
			w.SetField("email", "carol@example.com")
			if tt.coupon != nil {
				if err := w.ApplyCoupon(context.Background(), "FREEBIE"); err != nil {
					t.Fatalf("ApplyCoupon() error = %v", err)
				}
			}

			outcome, err := w.Submit(context.Background())
			if err != nil {
				t.Fatalf("Submit() error = %v", err)
			}
			if outcome.Step != StepComplete || outcome.Payment != nil {
				t.Errorf("outcome = %+v, want immediate completion", outcome)
			}
		})
	}
}

func TestWorkflow_Pay(t *testing.T) {
	mock := &mockPlanAPI{
		paymentConf: &api.PaymentConfirmation{PaymentID: 61, ApplicationID: 501, Status: "paid"},
	}
	w := NewWorkflow(mock, nil, nil)

	state := &PaymentState{ApplicationID: 501, PlanID: 3, Amount: 80}
	conf, err := w.Pay(context.Background(), state, "card", "ref-9")
	if err != nil {
		t.Fatalf("Pay() error = %v", err)
	}
	if conf.PaymentID != 61 || conf.Status != "paid" {
		t.Errorf("confirmation = %+v", conf)
	}
	if mock.lastPayment.Amount != 80 || mock.lastPayment.Method != "card" {
		t.Errorf("payment request = %+v", mock.lastPayment)
	}
}

// memDraftStore is an in-memory DraftStore.
type memDraftStore struct {
	drafts map[string]*Draft
}

func newMemDraftStore() *memDraftStore {
	return &memDraftStore{drafts: make(map[string]*Draft)}
}

func (s *memDraftStore) Save(draft *Draft) error {
	copied := *draft
	s.drafts[draft.ID] = &copied
	return nil
}

func (s *memDraftStore) Find(planID int64, email string) (*Draft, error) {
	for _, d := range s.drafts {
		if d.PlanID == planID && d.Email == email {
			return d, nil
		}
	}
	return nil, ErrDraftNotFound
}

func (s *memDraftStore) Delete(id string) error {
	delete(s.drafts, id)
	return nil
}

func (s *memDraftStore) List() ([]*Draft, error) {
	out := make([]*Draft, 0, len(s.drafts))
	for _, d := range s.drafts {
		out = append(out, d)
	}
	return out, nil
}

func TestWorkflow_Drafts(t *testing.T) {
	mock := &mockPlanAPI{
		plans:      []domain.MembershipPlan{paidPlan()},
		form:       testForm(),
		submitResp: &api.SubmitApplicationResponse{ApplicationID: 504},
	}
	store := newMemDraftStore()

	w := NewWorkflow(mock, store, nil)
	if err := w.Load(context.Background(), 3, nil); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	w.SetField("email", "carol@example.com")
	w.SetField("full_name", "Carol")
	if err := w.SaveDraft(); err != nil {
		t.Fatalf("SaveDraft() error = %v", err)
	}

	// A fresh workflow restores the draft.
	w2 := NewWorkflow(mock, store, nil)
	if err := w2.Load(context.Background(), 3, nil); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !w2.RestoreDraft("carol@example.com") {
		t.Fatal("RestoreDraft() = false, want saved draft found")
	}
	if w2.Values()["full_name"] != "Carol" {
		t.Errorf("full_name = %q after restore", w2.Values()["full_name"])
	}

	w2.SetField("full_name", "Carol D")
	if _, err := w2.Submit(context.Background()); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	// Successful submission consumes the local draft.
	if _, err := store.Find(3, "carol@example.com"); !errors.Is(err, ErrDraftNotFound) {
		t.Errorf("Find() after submit error = %v, want ErrDraftNotFound", err)
	}
}
