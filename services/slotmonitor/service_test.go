package slotmonitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"slotwatch/lib/notify"
	"slotwatch/lib/telemetry"

	"github.com/stretchr/testify/require"
)

type fetchResult struct {
	markup string
	err    error
	panics bool
}

// scriptedFetcher replays a fixed sequence of results, repeating the
// last one once the script runs out.
type scriptedFetcher struct {
	results []fetchResult
	calls   int
}

func (f *scriptedFetcher) Fetch(ctx context.Context) (string, error) {
	idx := f.calls
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	f.calls++
	r := f.results[idx]
	if r.panics {
		panic("scripted panic")
	}
	return r.markup, r.err
}

type fakeClock struct {
	now       time.Time
	sleeps    []time.Duration
	maxSleeps int
	cancel    context.CancelFunc
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	if c.cancel != nil && len(c.sleeps) >= c.maxSleeps {
		c.cancel()
	}
	return ctx.Err()
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []notify.Message
}

func (n *recordingNotifier) Send(ctx context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
	return nil
}

func (n *recordingNotifier) byPriority(p notify.Priority) []notify.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notify.Message
	for _, msg := range n.messages {
		if msg.Priority == p {
			out = append(out, msg)
		}
	}
	return out
}

func at(hour int) time.Time {
	return time.Date(2024, time.March, 5, hour, 30, 0, 0, time.UTC)
}

func newTestService(t *testing.T, fetcher Fetcher, clock *fakeClock, notifier notify.Notifier) *Service {
	t.Cleanup(telemetry.SetupForTesting(t, "test:services/slotmonitor"))

	return NewService(fetcher, Options{
		Categories: []string{"chennai", "mumbai"},
		EntryUrl:   "https://portal.example.com",
		Notifier:   notifier,
		Clock:      clock,
	})
}

const redMarkup = `<html><body>
	<div class="chennai-red"></div>
	<div class="mumbai-red"></div>
</body></html>`

const chennaiOpenMarkup = `<html><body>
	<div class="chennai-green"></div>
	<div class="mumbai-red"></div>
</body></html>`

func TestCycleAlertsOnRedToOpen(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{
		{markup: redMarkup},
		{markup: chennaiOpenMarkup},
	}}
	clock := &fakeClock{now: at(10)}
	notifier := &recordingNotifier{}
	service := newTestService(t, fetcher, clock, notifier)

	service.cycle(context.Background())
	require.Empty(t, notifier.messages, "baseline cycle must not alert")

	service.cycle(context.Background())
	alerts := notifier.byPriority(notify.Alert)
	require.Len(t, alerts, 1)
	require.Contains(t, alerts[0].Text, "Chennai")
	require.NotContains(t, alerts[0].Text, "Mumbai")
	require.Contains(t, alerts[0].Text, "https://portal.example.com")
	require.NotEmpty(t, alerts[0].HTML)
}

func TestCycleNoAlertOnFirstOpenObservation(t *testing.T) {
	// open on the very first fetch was never seen as red, so nothing fires
	fetcher := &scriptedFetcher{results: []fetchResult{
		{markup: chennaiOpenMarkup},
	}}
	notifier := &recordingNotifier{}
	service := newTestService(t, fetcher, &fakeClock{now: at(10)}, notifier)

	service.cycle(context.Background())
	require.Empty(t, notifier.messages)
}

func TestCycleBaselineAdvancesWithoutAlert(t *testing.T) {
	// red is observed again after the open window closes, so the next
	// opening fires a second alert
	fetcher := &scriptedFetcher{results: []fetchResult{
		{markup: redMarkup},
		{markup: chennaiOpenMarkup},
		{markup: redMarkup},
		{markup: chennaiOpenMarkup},
	}}
	notifier := &recordingNotifier{}
	service := newTestService(t, fetcher, &fakeClock{now: at(10)}, notifier)

	for n := 0; n < 4; n++ {
		service.cycle(context.Background())
	}
	require.Len(t, notifier.byPriority(notify.Alert), 2)
}

func TestCycleFailureAlertAfterThreshold(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{
		{err: errors.New("connection refused")},
	}}
	notifier := &recordingNotifier{}
	service := newTestService(t, fetcher, &fakeClock{now: at(10)}, notifier)

	for i := 0; i < 5; i++ {
		service.cycle(context.Background())
		warnings := notifier.byPriority(notify.Warning)
		if i < 2 {
			require.Empty(t, warnings, "no alert before the third failure")
		} else {
			// the counter resets after the alert, so failures four and
			// five stay silent
			require.Len(t, warnings, 1, "after failure %d", i+1)
		}
	}
	// the reset leaves failures four and five counted toward the next run
	require.Equal(t, uint(2), service.failures.Consecutive)
}

func TestCycleSuccessResetsFailureCount(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{
		{err: errors.New("timeout")},
		{err: errors.New("timeout")},
		{markup: redMarkup},
		{err: errors.New("timeout")},
		{err: errors.New("timeout")},
	}}
	notifier := &recordingNotifier{}
	service := newTestService(t, fetcher, &fakeClock{now: at(10)}, notifier)

	for n := 0; n < 5; n++ {
		service.cycle(context.Background())
	}
	// two failures, a success, two more failures: threshold never reached
	require.Empty(t, notifier.byPriority(notify.Warning))
	require.Equal(t, uint(2), service.failures.Consecutive)
}

func TestCycleRecordsLastSuccess(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{{markup: redMarkup}}}
	clock := &fakeClock{now: at(10)}
	service := newTestService(t, fetcher, clock, &recordingNotifier{})

	service.cycle(context.Background())
	require.Equal(t, at(10), service.failures.LastSuccessAt)
}

func TestCyclePanicBacksOff(t *testing.T) {
	fetcher := &scriptedFetcher{results: []fetchResult{{panics: true}}}
	notifier := &recordingNotifier{}
	service := newTestService(t, fetcher, &fakeClock{now: at(10)}, notifier)

	wait := service.cycle(context.Background())
	require.Equal(t, errorCooldown, wait)

	warnings := notifier.byPriority(notify.Warning)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0].Text, "scripted panic")
}

func TestIntervalByHour(t *testing.T) {
	for _, test := range []struct {
		hour int
		want time.Duration
	}{
		{8, offHoursInterval},
		{9, busyHoursInterval},
		{10, busyHoursInterval},
		{18, busyHoursInterval},
		{19, offHoursInterval},
		{22, offHoursInterval},
	} {
		t.Run(fmt.Sprintf("hour %d", test.hour), func(t *testing.T) {
			clock := &fakeClock{now: at(test.hour)}
			service := newTestService(t, &scriptedFetcher{
				results: []fetchResult{{markup: redMarkup}},
			}, clock, &recordingNotifier{})

			require.Equal(t, test.want, service.cycle(context.Background()))
		})
	}
}

func TestRunStartupAndShutdownMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := &fakeClock{now: at(10), maxSleeps: 2, cancel: cancel}
	fetcher := &scriptedFetcher{results: []fetchResult{{markup: redMarkup}}}
	notifier := &recordingNotifier{}
	service := newTestService(t, fetcher, clock, notifier)

	service.Run(ctx)

	require.Equal(t, 2, fetcher.calls)
	require.Len(t, notifier.messages, 2)
	require.Contains(t, notifier.messages[0].Text, "started")
	require.Contains(t, notifier.messages[1].Text, "stopped")
}
