package slotmonitor

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"slotwatch/lib/notify"
	"slotwatch/lib/scrapers/examportal"
	"slotwatch/lib/textutil"
)

func statusEmoji(s examportal.StatusValue) string {
	switch s {
	case examportal.StatusGreen:
		return "🟢"
	case examportal.StatusYellow:
		return "🟡"
	case examportal.StatusRed:
		return "🔴"
	default:
		return "⚪"
	}
}

func snapshotString(snapshot examportal.Snapshot) string {
	categories := make([]string, 0, len(snapshot))
	for category := range snapshot {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	parts := make([]string, 0, len(categories))
	for _, category := range categories {
		parts = append(parts, fmt.Sprintf("%s=%s", category, snapshot[category]))
	}
	return strings.Join(parts, " ")
}

func startupMessage(categories []string, entryUrl string) notify.Message {
	titled := make([]string, 0, len(categories))
	for _, category := range categories {
		titled = append(titled, textutil.Title(category))
	}
	return notify.Message{
		Priority: notify.Info,
		Subject:  "Slot monitor started",
		Text: fmt.Sprintf(
			"Slot monitor started.\nWatching: %s\nPortal: %s",
			strings.Join(titled, ", "), entryUrl,
		),
	}
}

func transitionMessage(entryUrl string, transitions []Transition, at time.Time) notify.Message {
	var text strings.Builder
	var html strings.Builder

	text.WriteString("Slots opened up!\n\n")
	html.WriteString("<b>Slots opened up!</b>\n\n")
	for _, t := range transitions {
		line := fmt.Sprintf("%s %s: %s (was %s)",
			statusEmoji(t.Current), textutil.Title(t.Category), t.Current, t.Previous)
		text.WriteString(line)
		text.WriteString("\n")
		html.WriteString(line)
		html.WriteString("\n")
	}
	text.WriteString(fmt.Sprintf("\nDetected at %s\n%s", at.Format("2 Jan 2006 15:04 MST"), entryUrl))
	html.WriteString(fmt.Sprintf("\nDetected at %s\n<a href=%q>Open the portal</a>",
		at.Format("2 Jan 2006 15:04 MST"), entryUrl))

	return notify.Message{
		Priority: notify.Alert,
		Subject:  "Slots opened up",
		Text:     text.String(),
		HTML:     html.String(),
	}
}

func fetchFailureMessage(failures FailureState) notify.Message {
	return notify.Message{
		Priority: notify.Warning,
		Subject:  "Slot monitor cannot reach the portal",
		Text: fmt.Sprintf(
			"Failed to fetch the portal %d times in a row.\nLast successful fetch: %s",
			failures.Consecutive,
			failures.LastSuccessAt.Format("2 Jan 2006 15:04 MST"),
		),
	}
}

func cycleErrorMessage(r any) notify.Message {
	return notify.Message{
		Priority: notify.Warning,
		Subject:  "Slot monitor hit an unexpected error",
		Text:     fmt.Sprintf("Unexpected error in the monitor loop, backing off:\n%v", r),
	}
}

func shutdownMessage() notify.Message {
	return notify.Message{
		Priority: notify.Info,
		Subject:  "Slot monitor stopped",
		Text:     "Slot monitor stopped.",
	}
}
