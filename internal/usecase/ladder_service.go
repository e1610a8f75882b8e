package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/riskibarqy/challenge-ladder/internal/domain/ladder"
	"github.com/riskibarqy/challenge-ladder/internal/platform/logging"
	"go.opentelemetry.io/otel/attribute"
)

// RejectedPolicy decides what Submit does with an explicit server refusal.
type RejectedPolicy string

const (
	// RejectedQueue treats a refusal like a network failure and queues the
	// match for a later sync.
	RejectedQueue RejectedPolicy = "queue"
	// RejectedFail returns the *RejectedError and queues nothing.
	RejectedFail RejectedPolicy = "fail"
)

const defaultSyncAttempts = 10

func ParseRejectedPolicy(raw string) (RejectedPolicy, error) {
	switch RejectedPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", RejectedQueue:
		return RejectedQueue, nil
	case RejectedFail:
		return RejectedFail, nil
	default:
		return "", fmt.Errorf("invalid rejected policy %q: valid values are %s, %s", raw, RejectedQueue, RejectedFail)
	}
}

type SubmitStatus string

const (
	SubmitStatusSubmitted SubmitStatus = "submitted"
	SubmitStatusQueued    SubmitStatus = "queued"
)

// SubmitOutcome describes what happened to one submission. Cause is set
// when the match was queued instead of confirmed.
type SubmitOutcome struct {
	Status   SubmitStatus
	Match    ladder.PendingMatch
	Cause    error
	Snapshot ladder.Snapshot
}

type SyncResult struct {
	Synced    int `json:"synced"`
	Remaining int `json:"remaining"`
}

type LadderServiceConfig struct {
	Rules               ladder.Rules
	RejectedPolicy      RejectedPolicy
	DefaultSyncAttempts int
}

type LadderServiceDeps struct {
	Gateway     LadderGateway
	Cache       ladder.SnapshotCache
	Queue       ladder.PendingQueue
	Baseline    ladder.BaselineTracker
	Credentials ladder.CredentialStore
}

// LadderService is the session controller: it owns the in-memory snapshot
// and coordinates the cache, the pending queue, the baseline and the
// remote gateway. Storage failures are logged and absorbed.
type LadderService struct {
	gateway  LadderGateway
	cache    ladder.SnapshotCache
	queue    ladder.PendingQueue
	baseline ladder.BaselineTracker
	creds    ladder.CredentialStore
	cfg      LadderServiceConfig
	logger   *logging.Logger
	now      func() time.Time

	mu       sync.RWMutex
	snapshot ladder.Snapshot
	fresh    bool

	draining atomic.Bool
}

func NewLadderService(deps LadderServiceDeps, cfg LadderServiceConfig, logger *logging.Logger) *LadderService {
	if logger == nil {
		logger = logging.Default()
	}
	if len(cfg.Rules.UpReach) == 0 && len(cfg.Rules.DownReach) == 0 {
		cfg.Rules = ladder.DefaultRules()
	}
	if cfg.RejectedPolicy == "" {
		cfg.RejectedPolicy = RejectedQueue
	}
	if cfg.DefaultSyncAttempts <= 0 {
		cfg.DefaultSyncAttempts = defaultSyncAttempts
	}

	return &LadderService{
		gateway:  deps.Gateway,
		cache:    deps.Cache,
		queue:    deps.Queue,
		baseline: deps.Baseline,
		creds:    deps.Credentials,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// LoadCached paints from the local cache. It never fails; ok is false when
// nothing usable was cached. A snapshot already fetched from the server is
// not overwritten.
func (s *LadderService) LoadCached(ctx context.Context) (ladder.Snapshot, bool) {
	snapshot, ok, err := s.cache.Load(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "cached snapshot unusable, starting empty", "error", err)
	}
	if !ok {
		return s.Snapshot(), false
	}

	s.mu.Lock()
	if !s.fresh {
		s.snapshot = snapshot
	}
	out := s.snapshot.Clone()
	s.mu.Unlock()

	return out, true
}

// Refresh fetches the full ladder state and replaces the session snapshot.
func (s *LadderService) Refresh(ctx context.Context) (ladder.Snapshot, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.LadderService.Refresh")
	defer span.End()

	snapshot, err := s.gateway.FetchState(ctx)
	if err != nil {
		span.RecordError(err)
		return ladder.Snapshot{}, fmt.Errorf("refresh ladder state: %w", err)
	}

	snapshot = s.replaceSnapshot(ctx, snapshot)
	span.SetAttributes(
		attribute.Int("ladder.players", len(snapshot.Players)),
		attribute.Int("ladder.matches", len(snapshot.Matches)),
	)
	return snapshot, nil
}

// Submit sends one match. On failure the match is queued for SyncPending,
// except for refusals under RejectedFail. Only validation errors, refusals
// under RejectedFail and a failure to queue are returned as errors.
func (s *LadderService) Submit(ctx context.Context, candidate ladder.PendingMatch) (SubmitOutcome, error) {
	candidate = candidate.Normalize(s.now())
	ctx, span := startUsecaseSpan(ctx, "usecase.LadderService.Submit",
		attribute.String("ladder.challenger", candidate.Challenger),
		attribute.String("ladder.defender", candidate.Defender),
	)
	defer span.End()

	if err := candidate.Validate(); err != nil {
		return SubmitOutcome{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	receipt, err := s.gateway.SubmitMatch(ctx, candidate, s.pin(ctx))
	if err == nil {
		snapshot := s.applyReceipt(ctx, receipt)
		return SubmitOutcome{Status: SubmitStatusSubmitted, Match: candidate, Snapshot: snapshot}, nil
	}
	span.RecordError(err)

	if errors.Is(err, ErrRejected) && s.cfg.RejectedPolicy == RejectedFail {
		return SubmitOutcome{}, fmt.Errorf("submit match: %w", err)
	}

	if qErr := s.queue.Enqueue(ctx, candidate); qErr != nil {
		s.logger.ErrorContext(ctx, "submit failed and match could not be queued", "match", candidate.String(), "error", err, "queue_error", qErr)
		return SubmitOutcome{}, fmt.Errorf("submit match: %w (queue unavailable: %v)", err, qErr)
	}
	s.logger.InfoContext(ctx, "match queued for later sync", "match", candidate.String(), "cause", err)

	return SubmitOutcome{Status: SubmitStatusQueued, Match: candidate, Cause: err, Snapshot: s.Snapshot()}, nil
}

// SyncPending submits queued matches head first, at most maxAttempts of
// them, and stops at the first failure. Matches confirmed before a failure
// stay removed; the failure is returned with the partial result.
func (s *LadderService) SyncPending(ctx context.Context, maxAttempts int) (SyncResult, error) {
	if !s.draining.CompareAndSwap(false, true) {
		return SyncResult{}, ErrSyncInProgress
	}
	defer s.draining.Store(false)

	ctx, span := startUsecaseSpan(ctx, "usecase.LadderService.SyncPending")
	defer span.End()

	if maxAttempts <= 0 {
		maxAttempts = s.cfg.DefaultSyncAttempts
	}
	pin := s.pin(ctx)

	var result SyncResult
	for attempt := 0; attempt < maxAttempts; attempt++ {
		items, err := s.queue.List(ctx)
		if err != nil {
			return result, fmt.Errorf("read pending queue: %w", err)
		}
		if len(items) == 0 {
			break
		}
		head := items[0]

		receipt, err := s.gateway.SubmitMatch(ctx, head, pin)
		if err != nil {
			result.Remaining = len(items)
			span.RecordError(err)
			s.logger.WarnContext(ctx, "pending sync stopped", "match", head.String(), "synced", result.Synced, "remaining", result.Remaining, "error", err)
			return result, fmt.Errorf("sync pending match: %w", err)
		}
		result.Synced++
		s.applyReceipt(ctx, receipt)

		if _, err := s.queue.Remove(ctx, head); err != nil {
			result.Remaining = len(items) - 1
			s.logger.ErrorContext(ctx, "confirmed match could not be dequeued", "match", head.String(), "error", err)
			return result, fmt.Errorf("dequeue confirmed match: %w", err)
		}
	}

	result.Remaining = s.PendingCount(ctx)
	span.SetAttributes(
		attribute.Int("ladder.synced", result.Synced),
		attribute.Int("ladder.remaining", result.Remaining),
	)
	if result.Synced > 0 {
		s.logger.InfoContext(ctx, "pending matches synced", "synced", result.Synced, "remaining", result.Remaining)
	}
	return result, nil
}

// AllowedDefenders is advisory; the server re-validates every submission.
func (s *LadderService) AllowedDefenders(challenger string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return ladder.AllowedDefenders(s.snapshot, challenger, s.cfg.Rules)
}

// MovementFor rolls the baseline over if due, then returns per-player rank
// deltas against it.
func (s *LadderService) MovementFor(ctx context.Context, players []ladder.Player) map[string]int {
	if _, err := s.baseline.EnsureBaseline(ctx, players); err != nil {
		s.logger.WarnContext(ctx, "baseline not persisted", "strategy", s.baseline.Strategy(), "error", err)
	}
	movement, err := s.baseline.MovementFor(ctx, players)
	if err != nil {
		s.logger.WarnContext(ctx, "baseline unreadable, reporting no movement", "error", err)
	}
	return movement
}

// Movement is MovementFor over the current session snapshot.
func (s *LadderService) Movement(ctx context.Context) map[string]int {
	return s.MovementFor(ctx, s.Snapshot().Players)
}

func (s *LadderService) PendingCount(ctx context.Context) int {
	items, err := s.queue.List(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "pending queue unreadable", "error", err)
		return 0
	}
	return len(items)
}

func (s *LadderService) Pending(ctx context.Context) ([]ladder.PendingMatch, error) {
	return s.queue.List(ctx)
}

func (s *LadderService) SetPIN(ctx context.Context, pin string) error {
	return s.creds.SetPIN(ctx, pin)
}

func (s *LadderService) ClearPIN(ctx context.Context) error {
	return s.creds.ClearPIN(ctx)
}

// Snapshot returns a copy of the session snapshot.
func (s *LadderService) Snapshot() ladder.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshot.Clone()
}

func (s *LadderService) applyReceipt(ctx context.Context, receipt SubmitReceipt) ladder.Snapshot {
	if !receipt.HasSnapshot {
		s.logger.DebugContext(ctx, "submit response carried no state, keeping current snapshot")
		return s.Snapshot()
	}
	return s.replaceSnapshot(ctx, receipt.Snapshot)
}

func (s *LadderService) replaceSnapshot(ctx context.Context, next ladder.Snapshot) ladder.Snapshot {
	next = ladder.NormalizeSnapshot(next)

	s.mu.RLock()
	previous := s.snapshot.Clone().Players
	s.mu.RUnlock()

	if err := s.baseline.Supersede(ctx, previous); err != nil {
		s.logger.WarnContext(ctx, "session baseline not persisted", "error", err)
	}

	s.mu.Lock()
	s.snapshot = next
	s.fresh = true
	s.mu.Unlock()

	if err := s.cache.Save(ctx, next); err != nil {
		s.logger.WarnContext(ctx, "snapshot cache write failed", "error", err)
	}
	return next.Clone()
}

func (s *LadderService) pin(ctx context.Context) string {
	if s.creds == nil {
		return ""
	}
	pin, err := s.creds.PIN(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "league pin unreadable, submitting without it", "error", err)
		return ""
	}
	return pin
}
