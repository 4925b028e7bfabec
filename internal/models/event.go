package models

import (
	"fmt"
	"hash/fnv"
	"time"
)

// EventType distinguishes payloads on the events topic.
type EventType string

const (
	EventTypeProbe EventType = "probe"
	EventTypePurge EventType = "purge"
	EventTypeCycle EventType = "cycle"
)

// Event is the payload written to the events topic. Tokens never leave the process
// unmasked; Fingerprint lets consumers correlate the same token across runs.
type Event struct {
	Type        EventType     `json:"type"`
	RunID       string        `json:"run_id"`
	Cycle       int           `json:"cycle"`
	Token       string        `json:"token,omitempty"`
	Fingerprint string        `json:"fingerprint,omitempty"`
	Outcome     Outcome       `json:"outcome,omitempty"`
	Summary     *CycleSummary `json:"summary,omitempty"`
	At          time.Time     `json:"at"`
}

// CycleSummary describes the result of one cycle.
type CycleSummary struct {
	Probed   int             `json:"probed"`
	Retained int             `json:"retained"`
	Purged   int             `json:"purged"`
	Counts   map[Outcome]int `json:"counts"`
	Aborted  bool            `json:"aborted,omitempty"`
}

// Fingerprint returns a stable, non-reversible identifier for a token.
func Fingerprint(token Token) string {
	h := fnv.New64a()
	h.Write([]byte(token))
	return fmt.Sprintf("%016x", h.Sum64())
}
