package monitor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/mock/gomock"

	"worklist-sentinel/internal/models"
	"worklist-sentinel/internal/session"
	"worklist-sentinel/mocks"
)

const testSessionBlob = `{"sid":"abc","uid":"42"}`

var (
	accepted = &models.ProbeResponse{}
	archived = rejection("Voucher already redeemed")
	corrupt  = rejection("Voucher does not exist")
	authFail = rejection("Cart not found")
)

func rejection(msg string) *models.ProbeResponse {
	return &models.ProbeResponse{Envelope: &models.ErrorEnvelope{Errors: []models.ErrorRecord{{Message: msg}}}}
}

// fakeClock advances only when the monitor sleeps.
type fakeClock struct {
	now      time.Time
	sleeps   []time.Duration
	cancel   context.CancelFunc // when set, called on the sleep at index cancelAt
	cancelAt int
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if c.cancel != nil && len(c.sleeps) == c.cancelAt {
		c.cancel()
	}
	c.sleeps = append(c.sleeps, d)
	if err := ctx.Err(); err != nil {
		return err
	}
	c.now = c.now.Add(d)
	return nil
}

type harness struct {
	monitor   *Monitor
	store     *mocks.MockWorklistStore
	validator *mocks.MockValidator
	clock     *fakeClock
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	if cfg.SessionBlob == "" {
		cfg.SessionBlob = testSessionBlob
	}
	if cfg.ProbeInterval == 0 {
		cfg.ProbeInterval = 1500 * time.Millisecond
	}
	if cfg.StandbyInterval == 0 {
		cfg.StandbyInterval = time.Minute
	}
	if cfg.PurgeGrace == 0 {
		cfg.PurgeGrace = 6 * time.Second
	}
	if cfg.MaxDuration == 0 {
		cfg.MaxDuration = time.Hour
	}

	h := &harness{
		store:     mocks.NewMockWorklistStore(ctrl),
		validator: mocks.NewMockValidator(ctrl),
		clock:     &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	h.monitor = New(cfg, Deps{Store: h.store, Validator: h.validator})
	h.monitor.now = h.clock.Now
	h.monitor.sleep = h.clock.Sleep
	h.monitor.startedAt = h.clock.Now()
	return h
}

// expectProbes registers probes in order; a nil response means a transport failure.
func (h *harness) expectProbes(tokens []models.Token, responses []*models.ProbeResponse) {
	calls := make([]*gomock.Call, 0, len(tokens))
	for i, token := range tokens {
		resp := responses[i]
		var err error
		if resp == nil {
			err = errors.New("dial tcp: i/o timeout")
		}
		calls = append(calls, h.validator.EXPECT().Probe(gomock.Any(), token, gomock.Any()).Return(resp, err))
	}
	gomock.InOrder(calls...)
}

func TestRunWithoutSessionContextDoesNotProbe(t *testing.T) {
	for _, blob := range []string{"{}", "{broken", `[]`} {
		h := newHarness(t, Config{SessionBlob: blob})
		term, err := h.monitor.Run(context.Background())
		if err != nil {
			t.Fatalf("%q: expected clean return, got %v", blob, err)
		}
		if term != TerminatedNoContext {
			t.Fatalf("%q: expected no-context termination, got %s", blob, term)
		}
	}
}

func TestRunTerminatesWhenBudgetSpentBeforeFetch(t *testing.T) {
	h := newHarness(t, Config{MaxDuration: time.Minute})
	h.clock.now = h.clock.now.Add(time.Minute + time.Second)

	term, err := h.monitor.Run(context.Background())
	if err != nil || term != TerminatedScheduled {
		t.Fatalf("expected scheduled termination, got %s %v", term, err)
	}
}

func TestRunBudgetExactlySpentStillRuns(t *testing.T) {
	h := newHarness(t, Config{MaxDuration: time.Minute, StandbyInterval: time.Second})
	h.clock.now = h.clock.now.Add(time.Minute)

	h.store.EXPECT().Fetch(gomock.Any()).Return(models.Worklist{}, nil).Times(1)
	term, _ := h.monitor.Run(context.Background())
	if term != TerminatedScheduled {
		t.Fatalf("expected scheduled termination, got %s", term)
	}
}

func TestRunEmptyWorklistWaitsWithoutProbing(t *testing.T) {
	h := newHarness(t, Config{MaxDuration: 90 * time.Second})

	// Two standby waits of a minute each push elapsed past the budget.
	h.store.EXPECT().Fetch(gomock.Any()).Return(models.Worklist{ID: "tokens.txt"}, nil).Times(2)

	term, err := h.monitor.Run(context.Background())
	if err != nil || term != TerminatedScheduled {
		t.Fatalf("expected scheduled termination, got %s %v", term, err)
	}
	if len(h.clock.sleeps) != 2 || h.clock.sleeps[0] != time.Minute || h.clock.sleeps[1] != time.Minute {
		t.Fatalf("expected two standby waits, got %v", h.clock.sleeps)
	}
}

func TestRunFetchFailureIsTreatedAsEmpty(t *testing.T) {
	h := newHarness(t, Config{MaxDuration: 30 * time.Second})

	h.store.EXPECT().Fetch(gomock.Any()).Return(models.Worklist{}, errors.New("401 Bad credentials"))

	term, err := h.monitor.Run(context.Background())
	if err != nil || term != TerminatedScheduled {
		t.Fatalf("expected scheduled termination, got %s %v", term, err)
	}
	if len(h.clock.sleeps) != 1 || h.clock.sleeps[0] != time.Minute {
		t.Fatalf("expected one standby wait, got %v", h.clock.sleeps)
	}
}

func TestRunPurgesCorruptTokensAndTerminates(t *testing.T) {
	h := newHarness(t, Config{})

	tokens := []models.Token{"AAA111", "BBB222", "CCC333", "DDD444", "BBB222", "EEE555"}
	h.store.EXPECT().Fetch(gomock.Any()).Return(models.Worklist{ID: "tokens.txt", Tokens: tokens}, nil)
	h.expectProbes(tokens, []*models.ProbeResponse{accepted, corrupt, archived, nil, corrupt, rejection("weird")})
	h.validator.EXPECT().Acknowledge(gomock.Any(), models.Token("AAA111"), gomock.Any())
	h.validator.EXPECT().Acknowledge(gomock.Any(), models.Token("CCC333"), gomock.Any())
	h.store.EXPECT().Persist(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, list models.Worklist) error {
		if list.ID != "tokens.txt" {
			t.Fatalf("expected write back to tokens.txt, got %q", list.ID)
		}
		want := []models.Token{"AAA111", "CCC333", "DDD444"}
		if len(list.Tokens) != len(want) {
			t.Fatalf("unexpected persisted tokens: %v", list.Tokens)
		}
		for i := range want {
			if list.Tokens[i] != want[i] {
				t.Fatalf("token %d: expected %s, got %s", i, want[i], list.Tokens[i])
			}
		}
		return nil
	})

	term, err := h.monitor.Run(context.Background())
	if err != nil || term != TerminatedPurge {
		t.Fatalf("expected purge termination, got %s %v", term, err)
	}

	// Six per-token waits then the grace wait.
	if len(h.clock.sleeps) != 7 {
		t.Fatalf("expected 7 waits, got %v", h.clock.sleeps)
	}
	for _, d := range h.clock.sleeps[:6] {
		if d != 1500*time.Millisecond {
			t.Fatalf("unexpected pacing wait %s", d)
		}
	}
	if h.clock.sleeps[6] != 6*time.Second {
		t.Fatalf("expected grace wait of 6s, got %s", h.clock.sleeps[6])
	}
}

func TestRunRetentionFollowsOutcome(t *testing.T) {
	cases := []struct {
		outcome  models.Outcome
		response *models.ProbeResponse
	}{
		{models.OutcomeOK, accepted},
		{models.OutcomeArchived, archived},
		{models.OutcomeNetErr, nil},
		{models.OutcomeCorrupt, corrupt},
	}
	for _, tc := range cases {
		t.Run(string(tc.outcome), func(t *testing.T) {
			h := newHarness(t, Config{})

			tokens := []models.Token{"AAA111", "ZZZ999"}
			h.store.EXPECT().Fetch(gomock.Any()).Return(models.Worklist{ID: "tokens.txt", Tokens: tokens}, nil)
			h.expectProbes(tokens, []*models.ProbeResponse{tc.response, corrupt})
			h.validator.EXPECT().Acknowledge(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()

			var persisted []models.Token
			h.store.EXPECT().Persist(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, list models.Worklist) error {
				persisted = list.Tokens
				return nil
			})

			if term, err := h.monitor.Run(context.Background()); err != nil || term != TerminatedPurge {
				t.Fatalf("expected purge termination, got %s %v", term, err)
			}
			kept := len(persisted) == 1 && persisted[0] == "AAA111"
			if kept != tc.outcome.Retained() {
				t.Fatalf("%s: persisted %v, Retained() = %v", tc.outcome, persisted, tc.outcome.Retained())
			}
		})
	}
}

func TestRunPersistFailureIsSwallowed(t *testing.T) {
	h := newHarness(t, Config{})

	tokens := []models.Token{"AAA111", "BBB222"}
	h.store.EXPECT().Fetch(gomock.Any()).Return(models.Worklist{ID: "tokens.txt", Tokens: tokens}, nil)
	h.expectProbes(tokens, []*models.ProbeResponse{accepted, corrupt})
	h.validator.EXPECT().Acknowledge(gomock.Any(), models.Token("AAA111"), gomock.Any())
	h.store.EXPECT().Persist(gomock.Any(), gomock.Any()).Return(errors.New("502 bad gateway")).Times(1)

	term, err := h.monitor.Run(context.Background())
	if err != nil || term != TerminatedPurge {
		t.Fatalf("expected purge termination, got %s %v", term, err)
	}
}

func TestRunStableCycleLoopsWithoutWriting(t *testing.T) {
	// Each cycle spends 3s of pacing, so the third budget check is past 5s.
	h := newHarness(t, Config{MaxDuration: 5 * time.Second})

	tokens := []models.Token{"AAA111", "BBB222"}
	list := models.Worklist{ID: "tokens.txt", Tokens: tokens}
	h.store.EXPECT().Fetch(gomock.Any()).Return(list, nil).Times(2)
	h.validator.EXPECT().Probe(gomock.Any(), models.Token("AAA111"), gomock.Any()).Return(accepted, nil).Times(2)
	h.validator.EXPECT().Probe(gomock.Any(), models.Token("BBB222"), gomock.Any()).Return(nil, errors.New("timeout")).Times(2)
	h.validator.EXPECT().Acknowledge(gomock.Any(), models.Token("AAA111"), gomock.Any()).Times(2)

	term, err := h.monitor.Run(context.Background())
	if err != nil || term != TerminatedScheduled {
		t.Fatalf("expected scheduled termination, got %s %v", term, err)
	}
	for _, d := range h.clock.sleeps {
		if d != 1500*time.Millisecond {
			t.Fatalf("expected only pacing waits, got %v", h.clock.sleeps)
		}
	}
	if len(h.clock.sleeps) != 4 {
		t.Fatalf("expected 4 pacing waits, got %v", h.clock.sleeps)
	}
}

func TestRunAuthFailureAbortsImmediately(t *testing.T) {
	h := newHarness(t, Config{})

	tokens := []models.Token{"AAA111", "BBB222", "CCC333", "DDD444"}
	h.store.EXPECT().Fetch(gomock.Any()).Return(models.Worklist{ID: "tokens.txt", Tokens: tokens}, nil)
	h.expectProbes(tokens[:3], []*models.ProbeResponse{corrupt, accepted, authFail})
	h.validator.EXPECT().Acknowledge(gomock.Any(), models.Token("BBB222"), gomock.Any())

	term, err := h.monitor.Run(context.Background())
	if !errors.Is(err, ErrAuthExpired) {
		t.Fatalf("expected ErrAuthExpired, got %v", err)
	}
	if term != TerminatedAuthFailure {
		t.Fatalf("expected auth-failure termination, got %s", term)
	}
	if len(h.clock.sleeps) != 2 {
		t.Fatalf("expected pacing only after the first two probes, got %v", h.clock.sleeps)
	}
}

func TestRunCanceledDuringStandby(t *testing.T) {
	h := newHarness(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.clock.cancel = cancel
	h.clock.cancelAt = 0

	h.store.EXPECT().Fetch(gomock.Any()).Return(models.Worklist{}, nil)

	term, err := h.monitor.Run(ctx)
	if err != nil || term != TerminatedCanceled {
		t.Fatalf("expected canceled termination, got %s %v", term, err)
	}
}

func TestRunCanceledDuringPacingSkipsPersist(t *testing.T) {
	h := newHarness(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.clock.cancel = cancel
	h.clock.cancelAt = 0

	tokens := []models.Token{"AAA111", "BBB222"}
	h.store.EXPECT().Fetch(gomock.Any()).Return(models.Worklist{ID: "tokens.txt", Tokens: tokens}, nil)
	h.expectProbes(tokens[:1], []*models.ProbeResponse{corrupt})

	term, err := h.monitor.Run(ctx)
	if err != nil || term != TerminatedCanceled {
		t.Fatalf("expected canceled termination, got %s %v", term, err)
	}
}

func TestRunPublishesEventsAndStatus(t *testing.T) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	h := newHarness(t, Config{})
	publisher := mocks.NewMockEventPublisher(ctrl)
	statusStore := mocks.NewMockStatusStore(ctrl)
	h.monitor.deps.Events = publisher
	h.monitor.deps.Status = statusStore

	tokens := []models.Token{"AAA111", "BBB222"}
	h.store.EXPECT().Fetch(gomock.Any()).Return(models.Worklist{ID: "tokens.txt", Tokens: tokens}, nil)
	h.expectProbes(tokens, []*models.ProbeResponse{accepted, corrupt})
	h.validator.EXPECT().Acknowledge(gomock.Any(), models.Token("AAA111"), gomock.Any())
	h.store.EXPECT().Persist(gomock.Any(), gomock.Any()).Return(nil)

	var published []models.Event
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, event models.Event) error {
		published = append(published, event)
		return errors.New("broker down")
	}).AnyTimes()

	var states []string
	statusStore.EXPECT().SetStatus(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, status models.RunStatus) error {
		if status.RunID != h.monitor.RunID() {
			t.Fatalf("unexpected run id %q", status.RunID)
		}
		states = append(states, status.State)
		return nil
	}).AnyTimes()

	term, err := h.monitor.Run(context.Background())
	if err != nil || term != TerminatedPurge {
		t.Fatalf("expected purge termination despite publish errors, got %s %v", term, err)
	}

	var purge, summary *models.Event
	for i := range published {
		e := published[i]
		if e.RunID != h.monitor.RunID() || e.Cycle != 1 {
			t.Fatalf("unexpected event envelope: %+v", e)
		}
		if strings.Contains(e.Token, "AAA111") || strings.Contains(e.Token, "BBB222") {
			t.Fatalf("token leaked unmasked: %+v", e)
		}
		switch e.Type {
		case models.EventTypePurge:
			purge = &published[i]
		case models.EventTypeCycle:
			summary = &published[i]
		}
	}
	if purge == nil || purge.Fingerprint != models.Fingerprint("BBB222") || purge.Token != "BBB*****" {
		t.Fatalf("unexpected purge event: %+v", purge)
	}
	if summary == nil || summary.Summary.Probed != 2 || summary.Summary.Retained != 1 || summary.Summary.Purged != 1 {
		t.Fatalf("unexpected cycle summary: %+v", summary)
	}

	wantStates := []string{models.RunStateStarting, models.RunStateProbing, models.RunStatePurged}
	if strings.Join(states, ",") != strings.Join(wantStates, ",") {
		t.Fatalf("expected states %v, got %v", wantStates, states)
	}
}

func TestRunUsesBuiltSessionContext(t *testing.T) {
	h := newHarness(t, Config{Identity: session.Identity{TenantID: "T1"}})

	h.store.EXPECT().Fetch(gomock.Any()).Return(models.Worklist{ID: "f", Tokens: []models.Token{"AAA111"}}, nil)
	h.validator.EXPECT().Probe(gomock.Any(), models.Token("AAA111"), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ models.Token, sc *session.Context) (*models.ProbeResponse, error) {
			if sc == nil || sc.Cookie() != "sid=abc; uid=42" || sc.Header().Get("X-Tenant-Id") != "T1" {
				t.Fatalf("unexpected session context: %+v", sc)
			}
			return corrupt, nil
		})
	h.store.EXPECT().Persist(gomock.Any(), gomock.Any()).Return(nil)

	if term, _ := h.monitor.Run(context.Background()); term != TerminatedPurge {
		t.Fatalf("expected purge termination, got %s", term)
	}
}

func TestTerminationString(t *testing.T) {
	if TerminatedPurge.String() != "purge" || Termination(42).String() != "termination(42)" {
		t.Fatalf("unexpected termination names")
	}
}

func TestSleepContext(t *testing.T) {
	if err := sleepContext(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestHandleMetrics(t *testing.T) {
	before := atomic.LoadUint64(&monitorOutcomeCounts[2])
	recordOutcome(models.OutcomeCorrupt)
	observeProbeLatency(300 * time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	HandleMetrics(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"sentinel_monitor_up 1",
		`sentinel_monitor_probes_total{outcome="CORRUPT"}`,
		`sentinel_monitor_probe_latency_seconds_bucket{le="+Inf"}`,
		"sentinel_monitor_probe_latency_seconds_count",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q:\n%s", want, body)
		}
	}
	if atomic.LoadUint64(&monitorOutcomeCounts[2]) != before+1 {
		t.Fatal("expected CORRUPT counter to advance")
	}

	post := httptest.NewRecorder()
	HandleMetrics(post, httptest.NewRequest(http.MethodPost, "/metrics", nil))
	if post.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", post.Code)
	}
}
