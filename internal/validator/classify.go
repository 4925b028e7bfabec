package validator

import (
	"strings"

	"worklist-sentinel/internal/models"
)

type rule struct {
	outcome models.Outcome
	match   func(msg string) bool
}

// rules are evaluated in order against each lower-cased message; the first hit wins.
var rules = []rule{
	{models.OutcomeAuthFail, func(msg string) bool {
		return strings.Contains(msg, "cart") && (strings.Contains(msg, "found") || strings.Contains(msg, "empty"))
	}},
	{models.OutcomeArchived, containsAny("redeem", "limit", "used")},
	{models.OutcomeCorrupt, containsAny("not applicable", "not exist", "invalid")},
}

func containsAny(needles ...string) func(string) bool {
	return func(msg string) bool {
		for _, needle := range needles {
			if strings.Contains(msg, needle) {
				return true
			}
		}
		return false
	}
}

// Classify maps a probe response to an outcome. A nil response is NET_ERR, a response
// without an error envelope is OK, and an envelope whose messages match no rule is CORRUPT.
func Classify(resp *models.ProbeResponse) models.Outcome {
	if resp == nil {
		return models.OutcomeNetErr
	}
	if resp.Envelope == nil {
		return models.OutcomeOK
	}
	for _, record := range resp.Envelope.Errors {
		msg := strings.ToLower(record.Message)
		for _, r := range rules {
			if r.match(msg) {
				return r.outcome
			}
		}
	}
	return models.OutcomeCorrupt
}
