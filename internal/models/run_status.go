package models

import "time"

// Run states recorded in RunStatus.State.
const (
	RunStateStarting   = "starting"
	RunStateStandby    = "standby"
	RunStateProbing    = "probing"
	RunStateStable     = "stable"
	RunStatePurged     = "purged"
	RunStateTerminated = "terminated"
	RunStateFailed     = "failed"
)

// RunStatus tracks the progress of one monitor run.
type RunStatus struct {
	RunID     string          `json:"run_id"`
	State     string          `json:"state"`
	Cycle     int             `json:"cycle"`
	Counts    map[Outcome]int `json:"counts,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	StartedAt time.Time       `json:"started_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
