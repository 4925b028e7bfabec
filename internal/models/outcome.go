package models

// Outcome is the classification of a single probe.
type Outcome string

const (
	OutcomeOK       Outcome = "OK"
	OutcomeArchived Outcome = "ARCHIVED"
	OutcomeCorrupt  Outcome = "CORRUPT"
	OutcomeAuthFail Outcome = "AUTH_FAIL"
	OutcomeNetErr   Outcome = "NET_ERR"
)

// Outcomes lists every outcome in a stable order (metrics, reports).
var Outcomes = []Outcome{OutcomeOK, OutcomeArchived, OutcomeCorrupt, OutcomeAuthFail, OutcomeNetErr}

// Retained reports whether a token with this outcome stays in the worklist.
// AUTH_FAIL is never retained because the cycle is abandoned before any write.
func (o Outcome) Retained() bool {
	switch o {
	case OutcomeOK, OutcomeArchived, OutcomeNetErr:
		return true
	default:
		return false
	}
}
