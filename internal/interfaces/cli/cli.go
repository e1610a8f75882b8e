package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/riskibarqy/challenge-ladder/internal/domain/ladder"
	"github.com/riskibarqy/challenge-ladder/internal/platform/logging"
	"github.com/riskibarqy/challenge-ladder/internal/usecase"
)

var ErrUsage = errors.New("usage error")

// Options carries the settings the commands need beyond the service.
type Options struct {
	SyncMaxAttempts int
	WatchInterval   time.Duration
	Logger          *logging.Logger
}

// Runner dispatches one CLI invocation against the ladder service.
type Runner struct {
	svc    *usecase.LadderService
	opts   Options
	out    io.Writer
	logger *logging.Logger
}

func NewRunner(svc *usecase.LadderService, opts Options, out io.Writer) *Runner {
	if out == nil {
		out = io.Discard
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	if opts.WatchInterval <= 0 {
		opts.WatchInterval = 5 * time.Minute
	}
	return &Runner{svc: svc, opts: opts, out: out, logger: logger}
}

func (r *Runner) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing command", ErrUsage)
	}

	cmd, rest := strings.ToLower(strings.TrimSpace(args[0])), args[1:]
	switch cmd {
	case "refresh":
		return r.refresh(ctx)
	case "standings":
		return r.standings(ctx)
	case "submit":
		return r.submit(ctx, rest)
	case "sync":
		return r.sync(ctx, rest)
	case "pending":
		return r.pending(ctx)
	case "allowed":
		return r.allowed(ctx, rest)
	case "pin":
		return r.pin(ctx, rest)
	case "watch":
		return r.watch(ctx)
	default:
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
	}
}

func (r *Runner) refresh(ctx context.Context) error {
	r.svc.LoadCached(ctx)
	snapshot, err := r.svc.Refresh(ctx)
	if err != nil {
		return err
	}
	return r.printStandings(snapshot, r.svc.Movement(ctx))
}

func (r *Runner) standings(ctx context.Context) error {
	snapshot, ok := r.svc.LoadCached(ctx)
	if !ok {
		_, err := fmt.Fprintln(r.out, "no cached standings, run refresh first")
		return err
	}
	return r.printStandings(snapshot, r.svc.MovementFor(ctx, snapshot.Players))
}

func (r *Runner) submit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var candidate ladder.PendingMatch
	var date string
	fs.StringVar(&candidate.Challenger, "challenger", "", "challenger name")
	fs.StringVar(&candidate.Defender, "defender", "", "defender name")
	fs.StringVar(&candidate.Winner, "winner", "", "winner name")
	fs.StringVar(&candidate.Score, "score", "", "free-form score, e.g. 3-1")
	fs.StringVar(&date, "date", "", "match time (default now)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if strings.TrimSpace(date) != "" {
		candidate.Date = ladder.ParseTimestamp(date)
		if candidate.Date.IsZero() {
			return fmt.Errorf("%w: unrecognized date %q", ErrUsage, date)
		}
	}

	outcome, err := r.svc.Submit(ctx, candidate)
	if err != nil {
		return err
	}
	if outcome.Status == usecase.SubmitStatusQueued {
		_, err = fmt.Fprintf(r.out, "queued (%v), %d pending\n", outcome.Cause, r.svc.PendingCount(ctx))
		return err
	}
	_, err = fmt.Fprintf(r.out, "submitted %s\n", outcome.Match.String())
	return err
}

func (r *Runner) sync(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	maxAttempts := fs.Int("max", r.opts.SyncMaxAttempts, "maximum submissions in this drain")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	result, err := r.svc.SyncPending(ctx, *maxAttempts)
	if _, printErr := fmt.Fprintf(r.out, "synced %d, remaining %d\n", result.Synced, result.Remaining); printErr != nil && err == nil {
		err = printErr
	}
	return err
}

func (r *Runner) pending(ctx context.Context) error {
	items, err := r.svc.Pending(ctx)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(r.out, "%d pending\n", len(items)); err != nil {
		return err
	}
	for i, item := range items {
		if _, err := fmt.Fprintf(r.out, "%d. %s\n", i+1, item.String()); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) allowed(ctx context.Context, args []string) error {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return fmt.Errorf("%w: allowed requires a player name", ErrUsage)
	}
	r.svc.LoadCached(ctx)

	names := r.svc.AllowedDefenders(strings.TrimSpace(args[0]))
	if len(names) == 0 {
		_, err := fmt.Fprintln(r.out, "(none)")
		return err
	}
	_, err := fmt.Fprintln(r.out, strings.Join(names, "\n"))
	return err
}

func (r *Runner) pin(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: pin requires set <value> or clear", ErrUsage)
	}
	switch strings.ToLower(args[0]) {
	case "set":
		if len(args) < 2 || strings.TrimSpace(args[1]) == "" {
			return fmt.Errorf("%w: pin set requires a value", ErrUsage)
		}
		if err := r.svc.SetPIN(ctx, args[1]); err != nil {
			return err
		}
		_, err := fmt.Fprintln(r.out, "pin saved")
		return err
	case "clear":
		if err := r.svc.ClearPIN(ctx); err != nil {
			return err
		}
		_, err := fmt.Fprintln(r.out, "pin cleared")
		return err
	default:
		return fmt.Errorf("%w: unknown pin action %q", ErrUsage, args[0])
	}
}

// watch refreshes and drains on a fixed interval until ctx is done. Runs
// never overlap.
func (r *Runner) watch(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(r.opts.WatchInterval),
		gocron.NewTask(func() { r.tick(ctx) }),
		gocron.WithName("ladder-refresh-sync"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return fmt.Errorf("schedule watch job: %w", err)
	}

	r.logger.InfoContext(ctx, "watch started", "interval", r.opts.WatchInterval.String())
	scheduler.Start()
	<-ctx.Done()

	if err := scheduler.Shutdown(); err != nil {
		return fmt.Errorf("stop scheduler: %w", err)
	}
	r.logger.InfoContext(ctx, "watch stopped")
	return nil
}

func (r *Runner) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := r.svc.Refresh(ctx); err != nil {
		r.logger.WarnContext(ctx, "scheduled refresh failed", "error", err)
	}
	if r.svc.PendingCount(ctx) == 0 {
		return
	}
	result, err := r.svc.SyncPending(ctx, r.opts.SyncMaxAttempts)
	if err != nil {
		r.logger.WarnContext(ctx, "scheduled sync incomplete", "synced", result.Synced, "remaining", result.Remaining, "error", err)
		return
	}
	r.logger.InfoContext(ctx, "scheduled sync finished", "synced", result.Synced, "remaining", result.Remaining)
}

func (r *Runner) printStandings(snapshot ladder.Snapshot, movement map[string]int) error {
	w := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tPLAYER\tW-L\tSTREAK\tMOVE\tLAST PLAYED")
	for _, p := range snapshot.Players {
		rank := "-"
		if p.Rank > 0 {
			rank = fmt.Sprintf("%d", p.Rank)
		}
		lastPlayed := ""
		if !p.LastPlayed.IsZero() {
			lastPlayed = p.LastPlayed.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%d-%d\t%s\t%s\t%s\n", rank, p.Name, p.Wins, p.Losses, formatSigned(p.Streak), formatMove(movement[p.Name]), lastPlayed)
	}
	return w.Flush()
}

func formatSigned(v int) string {
	if v > 0 {
		return fmt.Sprintf("+%d", v)
	}
	return fmt.Sprintf("%d", v)
}

func formatMove(v int) string {
	if v == 0 {
		return "="
	}
	return formatSigned(v)
}
