package slotmonitor

import (
	"context"
	"log/slog"
	"time"

	"slotwatch/lib/notify"
	"slotwatch/lib/scrapers/examportal"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/slotmonitor")

const (
	// registration activity clusters in business hours, poll faster then
	busyHoursStart    = 9
	busyHoursEnd      = 18
	busyHoursInterval = 3 * time.Minute
	offHoursInterval  = 5 * time.Minute

	// cooldown after an unexpected cycle error before the loop resumes
	errorCooldown = 2 * time.Minute

	// consecutive fetch failures before a single alert goes out
	failureAlertThreshold = 3
)

// Fetcher is the session-owning portal client.
type Fetcher interface {
	Fetch(ctx context.Context) (string, error)
}

// FailureState tracks consecutive fetch failures across cycles. The
// counter resets both on success and after an alert fires, so a
// sustained outage produces one alert per threshold-run instead of one
// per cycle.
type FailureState struct {
	Consecutive   uint
	LastSuccessAt time.Time
}

type Options struct {
	Categories []string
	EntryUrl   string
	Notifier   notify.Notifier
	// Clock defaults to the system clock in the portal's timezone.
	Clock Clock
}

// Service is the polling loop: fetch, extract, diff, notify, sleep. It
// is strictly sequential, a slow portal directly stalls the schedule.
type Service struct {
	fetcher    Fetcher
	notifier   notify.Notifier
	clock      Clock
	categories []string
	entryUrl   string

	previous examportal.Snapshot
	failures FailureState
}

func NewService(fetcher Fetcher, opts Options) *Service {
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock()
	}
	return &Service{
		fetcher:    fetcher,
		notifier:   opts.Notifier,
		clock:      clock,
		categories: opts.Categories,
		entryUrl:   opts.EntryUrl,
		failures:   FailureState{LastSuccessAt: clock.Now()},
	}
}

// Run polls until ctx is canceled. Cancellation is only observed between
// cycles, during the sleep; an in-flight fetch is never cut short.
func (s *Service) Run(ctx context.Context) {
	slog.InfoContext(ctx, "starting slot monitor",
		"categories", s.categories,
		"entry_url", s.entryUrl,
	)
	s.send(ctx, startupMessage(s.categories, s.entryUrl))

	for {
		wait := s.cycle(ctx)
		if err := s.clock.Sleep(ctx, wait); err != nil {
			slog.InfoContext(ctx, "slot monitor interrupted")
			s.send(context.WithoutCancel(ctx), shutdownMessage())
			return
		}
	}
}

// cycle runs one fetch→extract→diff→notify pass and returns how long to
// sleep before the next one. Anything unexpected is contained here: the
// loop itself never dies on a cycle error.
func (s *Service) cycle(ctx context.Context) (wait time.Duration) {
	ctx, span := tracer.Start(ctx, "cycle")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "unexpected error in monitor cycle", "panic", r)
			span.SetStatus(codes.Error, "cycle panicked")
			s.send(ctx, cycleErrorMessage(r))
			wait = errorCooldown
		}
	}()

	markup, err := s.fetcher.Fetch(ctx)
	if err != nil {
		s.failures.Consecutive++
		slog.WarnContext(ctx, "fetch failed",
			"err", err,
			"consecutive", s.failures.Consecutive,
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")

		if s.failures.Consecutive >= failureAlertThreshold {
			s.send(ctx, fetchFailureMessage(s.failures))
			// reset so a sustained outage doesn't repeat the alert
			// every cycle
			s.failures.Consecutive = 0
		}
		return s.interval()
	}

	current := examportal.Analyze(markup, s.categories)
	span.SetAttributes(attribute.String("snapshot", snapshotString(current)))
	slog.InfoContext(ctx, "current status", "snapshot", snapshotString(current))

	transitions := Diff(s.previous, current)
	if len(transitions) > 0 {
		slog.InfoContext(ctx, "slots opened up", "transitions", len(transitions))
		s.send(ctx, transitionMessage(s.entryUrl, transitions, s.clock.Now()))
	}

	s.failures.Consecutive = 0
	s.failures.LastSuccessAt = s.clock.Now()
	// the new snapshot becomes the baseline whether or not anything fired
	s.previous = current

	return s.interval()
}

// interval picks the sleep before the next cycle from the portal-local
// hour of day. Purely a scheduling heuristic.
func (s *Service) interval() time.Duration {
	hour := s.clock.Now().Hour()
	if hour >= busyHoursStart && hour <= busyHoursEnd {
		return busyHoursInterval
	}
	return offHoursInterval
}

func (s *Service) send(ctx context.Context, msg notify.Message) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		slog.WarnContext(ctx, "notification send failed", "err", err)
	}
}
