// Package monitor drives the fetch, probe, classify, filter and persist cycle over the
// remote worklist until the run budget is spent, a purge happens, or credentials expire.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"worklist-sentinel/common"
	"worklist-sentinel/internal/kafka"
	"worklist-sentinel/internal/models"
	"worklist-sentinel/internal/session"
	"worklist-sentinel/internal/store"
	"worklist-sentinel/internal/validator"
	"worklist-sentinel/internal/worklist"
)

// ErrAuthExpired is returned by Run when the endpoint reports that the session is no longer valid.
var ErrAuthExpired = errors.New("authentication expired")

// Termination says why Run returned.
type Termination int

const (
	TerminatedNoContext Termination = iota
	TerminatedScheduled
	TerminatedPurge
	TerminatedAuthFailure
	TerminatedCanceled
)

func (t Termination) String() string {
	switch t {
	case TerminatedNoContext:
		return "no-context"
	case TerminatedScheduled:
		return "scheduled"
	case TerminatedPurge:
		return "purge"
	case TerminatedAuthFailure:
		return "auth-failure"
	case TerminatedCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("termination(%d)", int(t))
	}
}

// Default pacing and run budget.
const (
	DefaultMaxDuration     = 21000 * time.Second
	DefaultProbeInterval   = 1500 * time.Millisecond
	DefaultStandbyInterval = 60 * time.Second
	DefaultPurgeGrace      = 6 * time.Second
	reportTimeout          = 5 * time.Second
)

// Config bounds a run.
type Config struct {
	MaxDuration     time.Duration
	ProbeInterval   time.Duration
	StandbyInterval time.Duration
	PurgeGrace      time.Duration
	Identity        session.Identity
	SessionBlob     string
}

// Deps are the collaborators of a run. Events and Status are optional.
type Deps struct {
	Store     worklist.Store
	Validator validator.Validator
	Events    kafka.EventPublisher
	Status    store.StatusStore
}

// Monitor owns the state of one run.
type Monitor struct {
	cfg       Config
	deps      Deps
	runID     string
	startedAt time.Time
	cycle     int
	sc        *session.Context

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a monitor. The run clock starts here.
func New(cfg Config, deps Deps) *Monitor {
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = DefaultMaxDuration
	}
	if cfg.ProbeInterval < 0 {
		cfg.ProbeInterval = 0
	}
	if cfg.StandbyInterval <= 0 {
		cfg.StandbyInterval = DefaultStandbyInterval
	}
	if cfg.PurgeGrace < 0 {
		cfg.PurgeGrace = 0
	}
	m := &Monitor{
		cfg:   cfg,
		deps:  deps,
		runID: uuid.NewString(),
		now:   time.Now,
		sleep: sleepContext,
	}
	m.startedAt = m.now()
	return m
}

// RunID identifies this run in status records and events.
func (m *Monitor) RunID() string {
	return m.runID
}

// Run executes cycles until a terminating condition. Only an authentication failure
// returns a non-nil error.
func (m *Monitor) Run(ctx context.Context) (Termination, error) {
	log.Printf("monitor starting run=%s max_duration=%s", m.runID, m.cfg.MaxDuration)
	m.sc = session.Build(m.cfg.SessionBlob, m.cfg.Identity)
	if m.sc == nil {
		log.Printf("connection failed: session attributes missing or invalid, check configuration")
		m.report(ctx, models.RunStateTerminated, nil, "session context unusable")
		return TerminatedNoContext, nil
	}
	m.report(ctx, models.RunStateStarting, nil, "")

	for {
		if elapsed := m.now().Sub(m.startedAt); elapsed > m.cfg.MaxDuration {
			log.Printf("[MAINTENANCE] scheduled restart required elapsed=%s", elapsed.Round(time.Second))
			m.report(ctx, models.RunStateTerminated, nil, "scheduled maintenance")
			return TerminatedScheduled, nil
		}

		list, err := m.deps.Store.Fetch(ctx)
		if err != nil {
			recordFetchFailure()
			log.Printf("[ERR] worklist fetch failed: %v", err)
			list = models.Worklist{}
		}
		if list.Empty() {
			recordStandby()
			log.Printf("no active tokens found, standby %s", m.cfg.StandbyInterval)
			m.report(ctx, models.RunStateStandby, nil, "")
			if err := m.sleep(ctx, m.cfg.StandbyInterval); err != nil {
				return m.canceled(ctx)
			}
			continue
		}

		m.cycle++
		result, err := m.runCycle(ctx, list)
		if errors.Is(err, ErrAuthExpired) {
			log.Printf("[CRITICAL] authentication expired run=%s cycle=%d", m.runID, m.cycle)
			m.report(ctx, models.RunStateFailed, result.counts, ErrAuthExpired.Error())
			return TerminatedAuthFailure, err
		}
		if err != nil {
			return m.canceled(ctx)
		}

		if result.purged > 0 {
			log.Printf("[CLEANUP] purging %d corrupted tokens, keeping %d", result.purged, len(result.retained))
			remaining := models.Worklist{ID: list.ID, Tokens: result.retained}
			if err := m.deps.Store.Persist(ctx, remaining); err != nil {
				recordPersistFailure()
				log.Printf("[ERR] worklist persist failed: %v", err)
			} else {
				log.Printf("[SYNC] worklist updated id=%s tokens=%d", list.ID, len(result.retained))
			}
			m.report(ctx, models.RunStatePurged, result.counts, "cleanup restart")
			log.Printf("waiting %s before maintenance restart", m.cfg.PurgeGrace)
			_ = m.sleep(ctx, m.cfg.PurgeGrace)
			return TerminatedPurge, nil
		}

		log.Printf("system stable cycle=%d tokens=%d, restarting", m.cycle, len(list.Tokens))
		m.report(ctx, models.RunStateStable, result.counts, "")
	}
}

type cycleResult struct {
	retained []models.Token
	purged   int
	counts   map[models.Outcome]int
}

// runCycle probes every token in order. It stops at the first AUTH_FAIL and returns
// ErrAuthExpired, or returns the context error when a pacing wait is interrupted.
func (m *Monitor) runCycle(ctx context.Context, list models.Worklist) (cycleResult, error) {
	recordCycle()
	log.Printf("[SCAN] processing %d tokens cycle=%d", len(list.Tokens), m.cycle)
	m.report(ctx, models.RunStateProbing, nil, "")

	result := cycleResult{
		retained: make([]models.Token, 0, len(list.Tokens)),
		counts:   make(map[models.Outcome]int),
	}
	for _, token := range list.Tokens {
		masked := common.MaskToken(string(token))
		outcome := m.probe(ctx, token)
		result.counts[outcome]++
		recordOutcome(outcome)
		m.publish(ctx, models.Event{Type: models.EventTypeProbe, Token: masked, Outcome: outcome})

		if outcome.Retained() {
			result.retained = append(result.retained, token)
		}

		switch outcome {
		case models.OutcomeOK:
			log.Printf("   [OK] token verified: %s", masked)
			m.deps.Validator.Acknowledge(ctx, token, m.sc)
		case models.OutcomeArchived:
			log.Printf("   [WARN] token archived: %s", masked)
			m.deps.Validator.Acknowledge(ctx, token, m.sc)
		case models.OutcomeCorrupt:
			log.Printf("   [ERR] token corrupted: %s -> purging", masked)
			result.purged++
			m.publish(ctx, models.Event{
				Type:        models.EventTypePurge,
				Token:       masked,
				Fingerprint: models.Fingerprint(token),
				Outcome:     outcome,
			})
		case models.OutcomeAuthFail:
			m.publishSummary(ctx, list, result, true)
			return result, ErrAuthExpired
		default:
			log.Printf("   [NET] inconclusive: %s, keeping", masked)
		}

		if err := m.sleep(ctx, m.cfg.ProbeInterval); err != nil {
			return result, err
		}
	}
	m.publishSummary(ctx, list, result, false)
	return result, nil
}

func (m *Monitor) probe(ctx context.Context, token models.Token) models.Outcome {
	start := time.Now()
	resp, err := m.deps.Validator.Probe(ctx, token, m.sc)
	observeProbeLatency(time.Since(start))
	if err != nil {
		log.Printf("probe token=%s: %v", common.MaskToken(string(token)), err)
		return models.OutcomeNetErr
	}
	return validator.Classify(resp)
}

func (m *Monitor) canceled(ctx context.Context) (Termination, error) {
	log.Printf("monitor canceled run=%s cycle=%d", m.runID, m.cycle)
	m.report(context.WithoutCancel(ctx), models.RunStateTerminated, nil, "canceled")
	return TerminatedCanceled, nil
}

func (m *Monitor) publishSummary(ctx context.Context, list models.Worklist, result cycleResult, aborted bool) {
	m.publish(ctx, models.Event{
		Type: models.EventTypeCycle,
		Summary: &models.CycleSummary{
			Probed:   countAll(result.counts),
			Retained: len(result.retained),
			Purged:   result.purged,
			Counts:   result.counts,
			Aborted:  aborted,
		},
	})
}

// publish sends an event best-effort; failures are logged and never affect the cycle.
func (m *Monitor) publish(ctx context.Context, event models.Event) {
	if m.deps.Events == nil {
		return
	}
	event.RunID = m.runID
	event.Cycle = m.cycle
	event.At = m.now().UTC()
	pctx, cancel := context.WithTimeout(ctx, reportTimeout)
	defer cancel()
	if err := m.deps.Events.Publish(pctx, event); err != nil {
		log.Printf("event publish error type=%s: %v", event.Type, err)
	}
}

// report records run status best-effort.
func (m *Monitor) report(ctx context.Context, state string, counts map[models.Outcome]int, reason string) {
	if m.deps.Status == nil {
		return
	}
	status := models.RunStatus{
		RunID:     m.runID,
		State:     state,
		Cycle:     m.cycle,
		Counts:    counts,
		Reason:    reason,
		StartedAt: m.startedAt.UTC(),
		UpdatedAt: m.now().UTC(),
	}
	sctx, cancel := context.WithTimeout(ctx, reportTimeout)
	defer cancel()
	if err := m.deps.Status.SetStatus(sctx, status); err != nil {
		log.Printf("status write error state=%s: %v", state, err)
	}
}

func countAll(counts map[models.Outcome]int) int {
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
