package examportal

import (
	"context"
	"log/slog"
	"strings"

	"slotwatch/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
)

// fuzzyThreshold is the minimum Jaro-Winkler similarity for a dropdown
// option or link text to count as the configured region. Portals love
// decorating names ("India (भारत)"), exact matching alone misses those.
const fuzzyThreshold = 0.85

// selectRegion performs the country/region handshake: a dropdown-style
// form first, a plain hyperlink second. Neither being discoverable is a
// normal skip, only transport failures abort.
func (c *Client) selectRegion(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:selectRegion")
	defer span.End()

	c.categorySelected = false
	if c.opts.Region == "" {
		return nil
	}

	res, err := c.getOK(ctx, c.entry.String())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch entry page")
		return err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.String()))
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse entry page")
		return err
	}

	selected, err := c.selectRegionDropdown(ctx, doc)
	if err != nil || selected {
		return err
	}
	selected, err = c.selectRegionLink(ctx, doc)
	if err != nil || selected {
		return err
	}

	slog.InfoContext(ctx, "no region selection control found, skipping",
		"region", c.opts.Region)
	return nil
}

func (c *Client) selectRegionDropdown(ctx context.Context, doc *goquery.Document) (bool, error) {
	var dropdown *goquery.Selection
	doc.Find("select").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.Contains(strings.ToLower(s.AttrOr("name", "")), "country") {
			dropdown = s
			return false
		}
		return true
	})
	if dropdown == nil {
		return false, nil
	}
	form := dropdown.Closest("form")
	if form.Length() == 0 {
		return false, nil
	}
	optionValue, ok := matchOption(dropdown, c.opts.Region)
	if !ok {
		return false, nil
	}

	data := map[string]string{dropdown.AttrOr("name", ""): optionValue}
	collectHiddenFields(form, data)
	action, method := c.formTarget(form)

	req := c.http.R().
		SetContext(ctx).
		SetHeaders(c.formHeaders())

	var res *resty.Response
	var err error
	if method == "GET" {
		res, err = req.SetQueryParams(data).Get(action)
	} else {
		res, err = req.SetFormData(data).Post(action)
	}
	if err != nil {
		return false, err
	}
	if res.IsError() {
		// fall through to the link method
		return false, nil
	}

	c.categorySelected = true
	slog.InfoContext(ctx, "region selected via dropdown", "region", c.opts.Region)
	return true, nil
}

func (c *Client) selectRegionLink(ctx context.Context, doc *goquery.Document) (bool, error) {
	for _, anchor := range htmlutil.GetAnchors(ctx, doc.Find("a[href]")) {
		if !nameMatches(anchor.Name, c.opts.Region) {
			continue
		}
		res, err := c.get(ctx, c.resolve(anchor.Href))
		if err != nil {
			return false, err
		}
		if res.IsError() {
			continue
		}

		c.categorySelected = true
		slog.InfoContext(ctx, "region selected via link",
			"region", c.opts.Region, "href", anchor.Href)
		return true, nil
	}
	return false, nil
}

// matchOption picks the dropdown option whose visible text matches the
// wanted value, exact case-insensitive matches beating fuzzy ones.
func matchOption(dropdown *goquery.Selection, want string) (string, bool) {
	wantLower := strings.ToLower(strings.TrimSpace(want))

	bestScore := 0.0
	bestValue := ""
	dropdown.Find("option").Each(func(_ int, opt *goquery.Selection) {
		text := strings.TrimSpace(opt.Text())
		score := matchr.JaroWinkler(strings.ToLower(text), wantLower, false)
		if strings.ToLower(text) == wantLower {
			score = 1.1
		}
		if score <= bestScore {
			return
		}
		bestScore = score
		// options without an explicit value submit their text
		if value, ok := opt.Attr("value"); ok {
			bestValue = value
		} else {
			bestValue = text
		}
	})

	return bestValue, bestScore >= fuzzyThreshold
}

func nameMatches(name, want string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	want = strings.ToLower(strings.TrimSpace(want))
	if name == "" {
		return false
	}
	if name == want || strings.Contains(name, want) {
		return true
	}
	return matchr.JaroWinkler(name, want, false) >= fuzzyThreshold
}
