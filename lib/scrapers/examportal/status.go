package examportal

import (
	"fmt"
	"strings"

	"slotwatch/lib/textutil"

	"github.com/PuerkitoBio/goquery"
)

// StatusValue is the booking status of a single category as advertised by
// the portal's markup.
type StatusValue int

const (
	StatusUnknown StatusValue = iota
	// StatusRed means booking is blocked.
	StatusRed
	// StatusYellow means limited availability.
	StatusYellow
	// StatusGreen means open.
	StatusGreen
)

func (v StatusValue) String() string {
	switch v {
	case StatusRed:
		return "red"
	case StatusYellow:
		return "yellow"
	case StatusGreen:
		return "green"
	}
	return "unknown"
}

// Open reports whether the status allows booking.
func (v StatusValue) Open() bool {
	return v == StatusYellow || v == StatusGreen
}

// Snapshot maps category names to the status observed in one fetch. It
// always carries one entry per requested category.
type Snapshot map[string]StatusValue

// Analyze derives a status per category from raw markup. It is a pure
// function: the portal gives no contract for how statuses are encoded, so
// detection is a cascade of heuristics and categories that match none of
// them come back as StatusUnknown. Malformed markup degrades to an
// all-unknown snapshot, it never fails.
func Analyze(markup string, categories []string) Snapshot {
	snapshot := make(Snapshot, len(categories))
	for _, category := range categories {
		snapshot[category] = StatusUnknown
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return snapshot
	}
	flattened := strings.ToLower(doc.Text())

	for _, category := range categories {
		if value, ok := detectStructural(doc, category); ok {
			snapshot[category] = value
			continue
		}
		if value, ok := detectKeyword(flattened, category); ok {
			snapshot[category] = value
		}
	}
	return snapshot
}

// elementRule inspects a single candidate element for a status indicator.
// Rules are applied in fixed priority order, the first one to yield a
// value wins.
type elementRule func(sel *goquery.Selection) (StatusValue, bool)

var elementRules = []elementRule{
	classTokenStatus,
	inlineStyleStatus,
	statusAttrStatus,
}

func detectStructural(doc *goquery.Document, category string) (StatusValue, bool) {
	lower := strings.ToLower(category)

	// elements referencing the category through class/id attributes
	attrCandidates := doc.Find(fmt.Sprintf(
		"[class*=%q], [id*=%q]", lower, lower,
	))
	if value, ok := applyRules(attrCandidates); ok {
		return value, ok
	}

	// elements referencing the category through their visible text,
	// both title-case and upper-case forms
	title := textutil.Title(lower)
	upper := strings.ToUpper(lower)
	textCandidates := doc.Find("*").FilterFunction(func(_ int, sel *goquery.Selection) bool {
		text := sel.Text()
		return strings.Contains(text, title) || strings.Contains(text, upper)
	})
	return applyRules(textCandidates)
}

func applyRules(candidates *goquery.Selection) (StatusValue, bool) {
	found := StatusUnknown
	candidates.EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		for _, rule := range elementRules {
			if value, ok := rule(sel); ok {
				found = value
				return false
			}
		}
		return true
	})
	return found, found != StatusUnknown
}

func classTokenStatus(sel *goquery.Selection) (StatusValue, bool) {
	for _, token := range strings.Fields(sel.AttrOr("class", "")) {
		token = strings.ToLower(token)
		switch {
		case strings.Contains(token, "red"):
			return StatusRed, true
		case strings.Contains(token, "green"):
			return StatusGreen, true
		case strings.Contains(token, "yellow"):
			return StatusYellow, true
		}
	}
	return StatusUnknown, false
}

func inlineStyleStatus(sel *goquery.Selection) (StatusValue, bool) {
	style := strings.ToLower(sel.AttrOr("style", ""))
	if style == "" {
		return StatusUnknown, false
	}
	switch {
	case strings.Contains(style, "red"),
		strings.Contains(style, "#ff0000"),
		strings.Contains(style, "rgb(255,0,0)"):
		return StatusRed, true
	case strings.Contains(style, "green"),
		strings.Contains(style, "#00ff00"),
		strings.Contains(style, "rgb(0,255,0)"):
		return StatusGreen, true
	case strings.Contains(style, "yellow"),
		strings.Contains(style, "#ffff00"),
		strings.Contains(style, "rgb(255,255,0)"):
		return StatusYellow, true
	}
	return StatusUnknown, false
}

func statusAttrStatus(sel *goquery.Selection) (StatusValue, bool) {
	if len(sel.Nodes) == 0 {
		return StatusUnknown, false
	}
	for _, attr := range sel.Nodes[0].Attr {
		name := strings.ToLower(attr.Key)
		if !strings.Contains(name, "status") && !strings.Contains(name, "color") {
			continue
		}
		value := strings.ToLower(attr.Val)
		switch {
		case strings.Contains(value, "red"):
			return StatusRed, true
		case strings.Contains(value, "green"):
			return StatusGreen, true
		case strings.Contains(value, "yellow"):
			return StatusYellow, true
		}
	}
	return StatusUnknown, false
}

// statusKeywords maps plain-text availability wording to a status. "full"
// and "closed" intentionally alias to the same blocked status.
var statusKeywords = []struct {
	word  string
	value StatusValue
}{
	{"available", StatusGreen},
	{"limited", StatusYellow},
	{"full", StatusRed},
	{"closed", StatusRed},
}

// detectKeyword is the fallback when no structural marker exists: if the
// category name appears anywhere in the flattened page text, the keyword
// occurring earliest in the page decides the status.
func detectKeyword(flattened, category string) (StatusValue, bool) {
	if !strings.Contains(flattened, strings.ToLower(category)) {
		return StatusUnknown, false
	}

	earliest := -1
	value := StatusUnknown
	for _, kw := range statusKeywords {
		idx := strings.Index(flattened, kw.word)
		if idx < 0 {
			continue
		}
		if earliest < 0 || idx < earliest {
			earliest = idx
			value = kw.value
		}
	}
	if earliest < 0 {
		return StatusUnknown, false
	}
	return value, true
}
