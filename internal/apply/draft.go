package apply

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrDraftNotFound is returned when no local draft matches.
var ErrDraftNotFound = errors.New("draft not found")

// Draft is a locally cached, partially filled application keyed by
// (plan, email). It complements the server-side incomplete application
// record and is never authoritative.
type Draft struct {
	ID        string            `json:"id"`
	PlanID    int64             `json:"planId"`
	Email     string            `json:"email"`
	Values    map[string]string `json:"values"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// NewDraft creates a draft for a plan and applicant email.
func NewDraft(planID int64, email string, values map[string]string) *Draft {
	now := time.Now()
	return &Draft{
		ID:        uuid.New().String(),
		PlanID:    planID,
		Email:     email,
		Values:    values,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch updates the draft's field values and timestamp.
func (d *Draft) Touch(values map[string]string) {
	d.Values = values
	d.UpdatedAt = time.Now()
}

// DraftStore persists local drafts.
type DraftStore interface {
	Save(draft *Draft) error
	Find(planID int64, email string) (*Draft, error)
	Delete(id string) error
	List() ([]*Draft, error)
}
