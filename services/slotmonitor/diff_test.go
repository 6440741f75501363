package slotmonitor

import (
	"testing"

	"slotwatch/lib/scrapers/examportal"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestDiffRedToOpen(t *testing.T) {
	previous := examportal.Snapshot{
		"chennai": examportal.StatusRed,
		"mumbai":  examportal.StatusRed,
		"delhi":   examportal.StatusRed,
	}
	current := examportal.Snapshot{
		"chennai": examportal.StatusGreen,
		"mumbai":  examportal.StatusYellow,
		"delhi":   examportal.StatusRed,
	}

	transitions := Diff(previous, current)
	diff := cmp.Diff(
		[]Transition{
			{Category: "chennai", Previous: examportal.StatusRed, Current: examportal.StatusGreen},
			{Category: "mumbai", Previous: examportal.StatusRed, Current: examportal.StatusYellow},
		},
		transitions,
	)
	if diff != "" {
		t.Fatal(diff)
	}
}

func TestDiffOnlyRedToOpenQualifies(t *testing.T) {
	statuses := []examportal.StatusValue{
		examportal.StatusUnknown,
		examportal.StatusRed,
		examportal.StatusYellow,
		examportal.StatusGreen,
	}
	for _, prev := range statuses {
		for _, cur := range statuses {
			transitions := Diff(
				examportal.Snapshot{"x": prev},
				examportal.Snapshot{"x": cur},
			)
			shouldFire := prev == examportal.StatusRed && cur.Open()
			if shouldFire {
				require.Len(t, transitions, 1, "%s -> %s", prev, cur)
			} else {
				require.Empty(t, transitions, "%s -> %s", prev, cur)
			}
		}
	}
}

func TestDiffMissingPreviousEntryIsUnknown(t *testing.T) {
	// a category the previous snapshot never saw cannot have been red
	transitions := Diff(
		examportal.Snapshot{},
		examportal.Snapshot{"chennai": examportal.StatusGreen},
	)
	require.Empty(t, transitions)
}

func TestDiffIdenticalSnapshots(t *testing.T) {
	snapshot := examportal.Snapshot{
		"chennai": examportal.StatusRed,
		"mumbai":  examportal.StatusGreen,
	}
	require.Empty(t, Diff(snapshot, snapshot))
}

func TestDiffOrderIsDeterministic(t *testing.T) {
	previous := examportal.Snapshot{
		"c": examportal.StatusRed,
		"a": examportal.StatusRed,
		"b": examportal.StatusRed,
	}
	current := examportal.Snapshot{
		"c": examportal.StatusGreen,
		"a": examportal.StatusGreen,
		"b": examportal.StatusGreen,
	}

	transitions := Diff(previous, current)
	require.Len(t, transitions, 3)
	require.Equal(t, "a", transitions[0].Category)
	require.Equal(t, "b", transitions[1].Category)
	require.Equal(t, "c", transitions[2].Category)
}
