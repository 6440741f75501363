package slotmonitor

import (
	"sort"

	"slotwatch/lib/scrapers/examportal"
)

// Transition is one category moving between statuses across two
// consecutive snapshots.
type Transition struct {
	Category string
	Previous examportal.StatusValue
	Current  examportal.StatusValue
}

// Diff returns the transitions worth alerting on: a category that was
// confirmed blocked (red) and is now open (yellow or green). Everything
// else is ignored, including first-ever observations and categories
// closing back up; this is a one-directional blocked→open trigger, not a
// change log.
func Diff(previous, current examportal.Snapshot) []Transition {
	categories := make([]string, 0, len(current))
	for category := range current {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	var transitions []Transition
	for _, category := range categories {
		prev, ok := previous[category]
		if !ok {
			prev = examportal.StatusUnknown
		}
		cur := current[category]
		if prev == examportal.StatusRed && cur.Open() {
			transitions = append(transitions, Transition{
				Category: category,
				Previous: prev,
				Current:  cur,
			})
		}
	}
	return transitions
}
