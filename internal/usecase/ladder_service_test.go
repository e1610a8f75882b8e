package usecase

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/riskibarqy/challenge-ladder/internal/domain/ladder"
	"github.com/stretchr/testify/mock"
)

type memoryCache struct {
	mu       sync.Mutex
	snapshot ladder.Snapshot
	ok       bool
	loadErr  error
	saveErr  error
	saves    int
}

func (c *memoryCache) Load(context.Context) (ladder.Snapshot, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loadErr != nil {
		return ladder.Snapshot{}, false, c.loadErr
	}
	return c.snapshot.Clone(), c.ok, nil
}

func (c *memoryCache) Save(_ context.Context, snapshot ladder.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saves++
	if c.saveErr != nil {
		return c.saveErr
	}
	c.snapshot = snapshot.Clone()
	c.ok = true
	return nil
}

type memoryQueue struct {
	mu         sync.Mutex
	items      []ladder.PendingMatch
	enqueueErr error
	removeErr  error
}

func (q *memoryQueue) List(context.Context) ([]ladder.PendingMatch, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]ladder.PendingMatch(nil), q.items...), nil
}

func (q *memoryQueue) Enqueue(_ context.Context, item ladder.PendingMatch) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.items = append(q.items, item)
	return nil
}

func (q *memoryQueue) Remove(_ context.Context, item ladder.PendingMatch) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.removeErr != nil {
		return false, q.removeErr
	}
	out, ok := ladder.RemovePending(q.items, item)
	q.items = out
	return ok, nil
}

type fixedBaseline struct {
	mu         sync.Mutex
	ranks      map[string]int
	superseded [][]ladder.Player
	err        error
}

func (b *fixedBaseline) Strategy() ladder.BaselineStrategy {
	return ladder.BaselineCalendarDay
}

func (b *fixedBaseline) EnsureBaseline(_ context.Context, players []ladder.Player) (ladder.Baseline, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return ladder.Baseline{}, b.err
	}
	if b.ranks == nil {
		b.ranks = ladder.NewBaseline("2026-03-01", players).Ranks
	}
	return ladder.Baseline{AsOf: "2026-03-01", Ranks: b.ranks}, nil
}

func (b *fixedBaseline) Supersede(_ context.Context, previous []ladder.Player) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.superseded = append(b.superseded, previous)
	return b.err
}

func (b *fixedBaseline) MovementFor(_ context.Context, players []ladder.Player) (map[string]int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return ladder.Movement(ladder.Baseline{Ranks: b.ranks}, players), b.err
}

type staticCredentials struct {
	pin string
	err error
}

func (c *staticCredentials) PIN(context.Context) (string, error) { return c.pin, c.err }

func (c *staticCredentials) SetPIN(_ context.Context, pin string) error {
	c.pin = pin
	return nil
}

func (c *staticCredentials) ClearPIN(context.Context) error {
	c.pin = ""
	return nil
}

type serviceFixture struct {
	service  *LadderService
	gateway  *mockLadderGateway
	cache    *memoryCache
	queue    *memoryQueue
	baseline *fixedBaseline
	creds    *staticCredentials
}

func newServiceFixture(t *testing.T, policy RejectedPolicy) serviceFixture {
	t.Helper()

	f := serviceFixture{
		gateway:  newMockLadderGateway(t),
		cache:    &memoryCache{},
		queue:    &memoryQueue{},
		baseline: &fixedBaseline{},
		creds:    &staticCredentials{},
	}
	f.service = NewLadderService(LadderServiceDeps{
		Gateway:     f.gateway,
		Cache:       f.cache,
		Queue:       f.queue,
		Baseline:    f.baseline,
		Credentials: f.creds,
	}, LadderServiceConfig{RejectedPolicy: policy}, nil)
	f.service.now = func() time.Time { return time.Date(2026, 3, 2, 19, 0, 0, 0, time.UTC) }
	return f
}

func abcSnapshot() ladder.Snapshot {
	return ladder.Snapshot{
		Players: []ladder.Player{
			{Name: "A", Rank: 1, Wins: 3},
			{Name: "B", Rank: 2, Wins: 2},
			{Name: "C", Rank: 3, Wins: 1},
		},
		Matches: []ladder.Match{},
	}
}

func pendingFixture(challenger, defender string, minute int) ladder.PendingMatch {
	return ladder.PendingMatch{
		Date:       time.Date(2026, 3, 2, 18, minute, 0, 0, time.UTC),
		Challenger: challenger,
		Defender:   defender,
		Winner:     challenger,
		Score:      "3-1",
	}
}

func playerNames(items []ladder.Player) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Name)
	}
	return out
}

func TestLadderService_RefreshReplacesSnapshotAndCaches(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, RejectedQueue)
	f.gateway.On("FetchState", mock.Anything).Return(abcSnapshot(), nil).Once()

	got, err := f.service.Refresh(testContext(t))
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if names := playerNames(got.Players); !reflect.DeepEqual(names, []string{"A", "B", "C"}) {
		t.Fatalf("unexpected players: %v", names)
	}
	if f.cache.saves != 1 || !f.cache.ok {
		t.Fatalf("expected snapshot cached once, saves=%d", f.cache.saves)
	}
	if allowed := f.service.AllowedDefenders("C"); !reflect.DeepEqual(allowed, []string{"A", "B"}) {
		t.Fatalf("unexpected allowed defenders: %v", allowed)
	}
	if len(f.baseline.superseded) != 1 || len(f.baseline.superseded[0]) != 0 {
		t.Fatalf("expected supersede with the empty previous snapshot, got %v", f.baseline.superseded)
	}
}

func TestLadderService_RefreshFailureKeepsSnapshot(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, RejectedQueue)
	f.gateway.On("FetchState", mock.Anything).Return(abcSnapshot(), nil).Once()
	f.gateway.On("FetchState", mock.Anything).Return(ladder.Snapshot{}, fmt.Errorf("%w: timeout", ErrNetwork)).Once()

	if _, err := f.service.Refresh(testContext(t)); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	_, err := f.service.Refresh(testContext(t))
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
	if got := len(f.service.Snapshot().Players); got != 3 {
		t.Fatalf("snapshot must survive a failed refresh, got %d players", got)
	}
}

func TestLadderService_RefreshToleratesStorageFailures(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, RejectedQueue)
	f.cache.saveErr = fmt.Errorf("%w: disk full", ErrStorage)
	f.baseline.err = fmt.Errorf("%w: disk full", ErrStorage)
	f.gateway.On("FetchState", mock.Anything).Return(abcSnapshot(), nil).Once()

	got, err := f.service.Refresh(testContext(t))
	if err != nil {
		t.Fatalf("storage failures must not fail refresh: %v", err)
	}
	if len(got.Players) != 3 {
		t.Fatalf("expected in-memory snapshot to be replaced, got %+v", got)
	}

	movement := f.service.Movement(testContext(t))
	for name, delta := range movement {
		if delta != 0 {
			t.Fatalf("expected zero movement without a baseline, %s=%d", name, delta)
		}
	}
}

func TestLadderService_LoadCached(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, RejectedQueue)
	if _, ok := f.service.LoadCached(testContext(t)); ok {
		t.Fatalf("expected nothing cached")
	}

	f.cache.snapshot, f.cache.ok = abcSnapshot(), true
	got, ok := f.service.LoadCached(testContext(t))
	if !ok || len(got.Players) != 3 {
		t.Fatalf("expected cached snapshot, ok=%v got=%+v", ok, got)
	}

	f.cache.loadErr = fmt.Errorf("%w: corrupt entry", ErrStorage)
	if _, ok := f.service.LoadCached(testContext(t)); ok {
		t.Fatalf("corrupt cache must read as missing")
	}
}

func TestLadderService_SubmitSuccessAppliesReturnedState(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, RejectedQueue)
	f.creds.pin = "4321"
	candidate := pendingFixture("C", "B", 5)

	updated := abcSnapshot()
	updated.Players[1].Name, updated.Players[2].Name = "C", "B"
	f.gateway.
		On("SubmitMatch", mock.Anything, candidate, "4321").
		Return(SubmitReceipt{Snapshot: updated, HasSnapshot: true}, nil).
		Once()

	outcome, err := f.service.Submit(testContext(t), candidate)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if outcome.Status != SubmitStatusSubmitted || outcome.Cause != nil {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if names := playerNames(f.service.Snapshot().Players); !reflect.DeepEqual(names, []string{"A", "C", "B"}) {
		t.Fatalf("returned state not applied: %v", names)
	}
	if f.service.PendingCount(testContext(t)) != 0 {
		t.Fatalf("confirmed match must not be queued")
	}
}

func TestLadderService_SubmitWithoutStateKeepsSnapshot(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, RejectedQueue)
	f.gateway.On("FetchState", mock.Anything).Return(abcSnapshot(), nil).Once()
	f.gateway.On("SubmitMatch", mock.Anything, mock.Anything, "").Return(SubmitReceipt{}, nil).Once()

	if _, err := f.service.Refresh(testContext(t)); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	outcome, err := f.service.Submit(testContext(t), pendingFixture("C", "B", 5))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if outcome.Status != SubmitStatusSubmitted {
		t.Fatalf("unexpected status: %s", outcome.Status)
	}
	if names := playerNames(f.service.Snapshot().Players); !reflect.DeepEqual(names, []string{"A", "B", "C"}) {
		t.Fatalf("snapshot changed without returned state: %v", names)
	}
}

func TestLadderService_SubmitFailureQueues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		cause error
	}{
		{name: "network", cause: fmt.Errorf("%w: connection refused", ErrNetwork)},
		{name: "malformed", cause: fmt.Errorf("%w: not json", ErrMalformedResponse)},
		{name: "rejected", cause: &RejectedError{Reason: "defender out of range"}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newServiceFixture(t, RejectedQueue)
			candidate := pendingFixture("C", "A", 1)
			f.gateway.On("SubmitMatch", mock.Anything, candidate, "").Return(SubmitReceipt{}, tc.cause).Once()

			outcome, err := f.service.Submit(testContext(t), candidate)
			if err != nil {
				t.Fatalf("queued submit must not error: %v", err)
			}
			if outcome.Status != SubmitStatusQueued || !errors.Is(outcome.Cause, tc.cause) {
				t.Fatalf("unexpected outcome: %+v", outcome)
			}
			items, _ := f.queue.List(testContext(t))
			if len(items) != 1 || !items[0].Equal(candidate) {
				t.Fatalf("expected candidate queued, got %+v", items)
			}
		})
	}
}

func TestLadderService_SubmitRejectedFailPolicy(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, RejectedFail)
	candidate := pendingFixture("C", "A", 1)
	f.gateway.On("SubmitMatch", mock.Anything, candidate, "").Return(SubmitReceipt{}, &RejectedError{Reason: "bad pin"}).Once()

	_, err := f.service.Submit(testContext(t), candidate)
	var rejected *RejectedError
	if !errors.As(err, &rejected) || rejected.Reason != "bad pin" {
		t.Fatalf("expected RejectedError, got %v", err)
	}
	if f.service.PendingCount(testContext(t)) != 0 {
		t.Fatalf("rejected match must not be queued under fail policy")
	}
}

func TestLadderService_SubmitFailPolicyStillQueuesNetworkErrors(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, RejectedFail)
	f.gateway.On("SubmitMatch", mock.Anything, mock.Anything, "").Return(SubmitReceipt{}, ErrNetwork).Once()

	outcome, err := f.service.Submit(testContext(t), pendingFixture("C", "A", 1))
	if err != nil || outcome.Status != SubmitStatusQueued {
		t.Fatalf("expected queued outcome, got outcome=%+v err=%v", outcome, err)
	}
}

func TestLadderService_SubmitQueueUnavailable(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, RejectedQueue)
	f.queue.enqueueErr = fmt.Errorf("%w: read only", ErrStorage)
	f.gateway.On("SubmitMatch", mock.Anything, mock.Anything, "").Return(SubmitReceipt{}, ErrNetwork).Once()

	_, err := f.service.Submit(testContext(t), pendingFixture("C", "A", 1))
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected the submit cause to surface, got %v", err)
	}
}

func TestLadderService_SubmitInvalidCandidate(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, RejectedQueue)
	candidates := []ladder.PendingMatch{
		{Challenger: "A", Defender: "A", Winner: "A"},
		{Challenger: "", Defender: "A", Winner: "A"},
		{Challenger: "C", Defender: "A", Winner: "B"},
	}
	for _, candidate := range candidates {
		if _, err := f.service.Submit(testContext(t), candidate); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %+v, got %v", candidate, err)
		}
	}
	if f.service.PendingCount(testContext(t)) != 0 {
		t.Fatalf("invalid candidates must not be queued")
	}
}

func TestLadderService_SubmitStampsMissingDate(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, RejectedQueue)
	stamped := f.service.now()
	f.gateway.
		On("SubmitMatch", mock.Anything, mock.MatchedBy(func(v ladder.PendingMatch) bool { return v.Date.Equal(stamped) }), "").
		Return(SubmitReceipt{}, nil).
		Once()

	outcome, err := f.service.Submit(testContext(t), ladder.PendingMatch{Challenger: " C ", Defender: "B", Winner: "C"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if outcome.Match.Challenger != "C" {
		t.Fatalf("expected trimmed challenger, got %q", outcome.Match.Challenger)
	}
}

func TestLadderService_SyncPendingStopsAtFirstFailure(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, RejectedQueue)
	first, second, third := pendingFixture("B", "A", 1), pendingFixture("C", "B", 2), pendingFixture("D", "C", 3)
	f.queue.items = []ladder.PendingMatch{first, second, third}

	f.gateway.On("SubmitMatch", mock.Anything, first, "").Return(SubmitReceipt{}, nil).Once()
	f.gateway.On("SubmitMatch", mock.Anything, second, "").Return(SubmitReceipt{}, ErrNetwork).Once()

	result, err := f.service.SyncPending(testContext(t), 10)
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
	if result != (SyncResult{Synced: 1, Remaining: 2}) {
		t.Fatalf("unexpected result: %+v", result)
	}
	items, _ := f.queue.List(testContext(t))
	if len(items) != 2 || !items[0].Equal(second) || !items[1].Equal(third) {
		t.Fatalf("queue order not preserved: %+v", items)
	}
}

func TestLadderService_SyncPendingDrainsAndAppliesState(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, RejectedQueue)
	f.creds.pin = "9999"
	first, second := pendingFixture("B", "A", 1), pendingFixture("C", "B", 2)
	f.queue.items = []ladder.PendingMatch{first, second}

	f.gateway.On("SubmitMatch", mock.Anything, first, "9999").Return(SubmitReceipt{}, nil).Once()
	f.gateway.On("SubmitMatch", mock.Anything, second, "9999").Return(SubmitReceipt{Snapshot: abcSnapshot(), HasSnapshot: true}, nil).Once()

	result, err := f.service.SyncPending(testContext(t), 0)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if result != (SyncResult{Synced: 2, Remaining: 0}) {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(f.service.Snapshot().Players) != 3 {
		t.Fatalf("expected returned state applied")
	}
}

func TestLadderService_SyncPendingHonorsMaxAttempts(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, RejectedQueue)
	f.queue.items = []ladder.PendingMatch{pendingFixture("B", "A", 1), pendingFixture("C", "B", 2), pendingFixture("D", "C", 3)}
	f.gateway.On("SubmitMatch", mock.Anything, mock.Anything, "").Return(SubmitReceipt{}, nil).Twice()

	result, err := f.service.SyncPending(testContext(t), 2)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if result != (SyncResult{Synced: 2, Remaining: 1}) {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestLadderService_SyncPendingEmptyQueue(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, RejectedQueue)
	result, err := f.service.SyncPending(testContext(t), 5)
	if err != nil || result != (SyncResult{}) {
		t.Fatalf("expected empty result, got %+v err=%v", result, err)
	}
}

func TestLadderService_SyncPendingDequeueFailure(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, RejectedQueue)
	f.queue.items = []ladder.PendingMatch{pendingFixture("B", "A", 1), pendingFixture("C", "B", 2)}
	f.queue.removeErr = fmt.Errorf("%w: locked", ErrStorage)
	f.gateway.On("SubmitMatch", mock.Anything, mock.Anything, "").Return(SubmitReceipt{}, nil).Once()

	result, err := f.service.SyncPending(testContext(t), 5)
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	if result != (SyncResult{Synced: 1, Remaining: 1}) {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestLadderService_SyncPendingRejectsConcurrentDrain(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, RejectedQueue)
	f.queue.items = []ladder.PendingMatch{pendingFixture("B", "A", 1)}

	started := make(chan struct{})
	release := make(chan struct{})
	f.gateway.
		On("SubmitMatch", mock.Anything, mock.Anything, "").
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(SubmitReceipt{}, nil).
		Once()

	type syncReturn struct {
		result SyncResult
		err    error
	}
	done := make(chan syncReturn, 1)
	go func() {
		result, err := f.service.SyncPending(context.Background(), 5)
		done <- syncReturn{result: result, err: err}
	}()

	<-started
	if _, err := f.service.SyncPending(testContext(t), 5); !errors.Is(err, ErrSyncInProgress) {
		t.Fatalf("expected ErrSyncInProgress, got %v", err)
	}
	close(release)

	got := <-done
	if got.err != nil || got.result.Synced != 1 {
		t.Fatalf("first drain: result=%+v err=%v", got.result, got.err)
	}
}

func TestLadderService_Movement(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, RejectedQueue)
	f.baseline.ranks = map[string]int{"A": 2, "B": 1, "C": 3}
	f.gateway.On("FetchState", mock.Anything).Return(abcSnapshot(), nil).Once()

	if _, err := f.service.Refresh(testContext(t)); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	got := f.service.Movement(testContext(t))
	want := map[string]int{"A": 1, "B": -1, "C": 0}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected movement: got=%v want=%v", got, want)
	}
}

func TestLadderService_PINRoundTrip(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, RejectedQueue)
	if err := f.service.SetPIN(testContext(t), "1234"); err != nil {
		t.Fatalf("set pin: %v", err)
	}
	if got := f.service.pin(testContext(t)); got != "1234" {
		t.Fatalf("unexpected pin %q", got)
	}
	if err := f.service.ClearPIN(testContext(t)); err != nil {
		t.Fatalf("clear pin: %v", err)
	}

	f.creds.err = fmt.Errorf("%w: unreadable", ErrStorage)
	if got := f.service.pin(testContext(t)); got != "" {
		t.Fatalf("unreadable pin must degrade to empty, got %q", got)
	}
}
