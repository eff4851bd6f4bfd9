package models

import "time"

// SubmissionType records how a change entered the system.
type SubmissionType int

const (
	SubmissionSystem SubmissionType = 1 // background sync / file discovery
	SubmissionUpload SubmissionType = 2 // explicit user upload
	SubmissionNormal SubmissionType = 3 // web edit
)

// Submission field names.
const (
	FieldTarget = "target"
	FieldState  = "state"
)

// Submission is one append-only record of a field-level unit change.
type Submission struct {
	ID        string         `json:"id"` // uuid
	UnitID    int64          `json:"unit_id"`
	Field     string         `json:"field"`
	OldValue  string         `json:"old_value"`
	NewValue  string         `json:"new_value"`
	Submitter string         `json:"submitter"`
	Type      SubmissionType `json:"type"`
	CreatedOn time.Time      `json:"created_on"`
}

// Suggestion is a proposed translation stored alongside a unit without
// overwriting its current target.
type Suggestion struct {
	ID        string      `json:"id"` // uuid
	UnitID    int64       `json:"unit_id"`
	Target    MultiString `json:"target"`
	User      string      `json:"user"`
	CreatedOn time.Time   `json:"created_on"`
}
