package domain

// RenewalInterval is the billing cadence of a membership plan.
type RenewalInterval string

const (
	IntervalMonthly   RenewalInterval = "monthly"
	IntervalQuarterly RenewalInterval = "quarterly"
	IntervalYearly    RenewalInterval = "yearly"
	IntervalOneTime   RenewalInterval = "one-time"
)

// IsValid reports whether the interval is one of the known cadences.
func (r RenewalInterval) IsValid() bool {
	switch r {
	case IntervalMonthly, IntervalQuarterly, IntervalYearly, IntervalOneTime:
		return true
	}
	return false
}

// MembershipPlan is a membership tier offered by an organization.
// A zero OrganizationID means the plan is not attached to an organization,
// and a zero ApplicationFormID means no plan-specific form is configured.
type MembershipPlan struct {
	ID                int64           `json:"id"`
	Name              string          `json:"name"`
	Description       string          `json:"description,omitempty"`
	Fee               float64         `json:"fee"`
	RenewalInterval   RenewalInterval `json:"renewalInterval"`
	OrganizationID    int64           `json:"organizationId,omitempty"`
	ApplicationFormID int64           `json:"applicationFormId,omitempty"`
	UseDefaultForm    bool            `json:"useDefaultForm"`
	CreatedBy         int64           `json:"createdBy"`
}

// IsFree reports whether applying to the plan requires no payment.
func (p *MembershipPlan) IsFree() bool {
	return p.Fee <= 0
}

// Organization is a group that publishes membership plans.
type Organization struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
