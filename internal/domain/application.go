package domain

import "time"

// IncompleteApplication is a previously started but unsubmitted application
// held by the server, keyed by (email, plan). The client only ever offers it
// for resumption; the server record stays authoritative.
type IncompleteApplication struct {
	ID        int64             `json:"id"`
	PlanID    int64             `json:"planId"`
	Email     string            `json:"email"`
	Values    map[string]string `json:"values"`
	UpdatedAt time.Time         `json:"updatedAt"`
}
