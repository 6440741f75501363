package examportal

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"slotwatch/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"
)

// slotKeywords are scanned in order, earlier entries are more likely to
// name the actual booking page.
var slotKeywords = []string{
	"slot",
	"booking",
	"appointment",
	"schedule",
	"exam center",
}

// discoverSlotPage scans the entry page's links for booking-related
// keywords and adopts the first one that responds successfully as the
// fetch target. Without a match the entry URL itself stays the target.
func (c *Client) discoverSlotPage(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:discoverSlotPage")
	defer span.End()

	c.target = nil

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

	anchors := htmlutil.GetAnchors(ctx, doc.Find("a[href]"))
	for _, keyword := range slotKeywords {
		for _, anchor := range anchors {
			if !strings.Contains(strings.ToLower(anchor.Name), keyword) &&
				!strings.Contains(strings.ToLower(anchor.Href), keyword) {
				continue
			}

			resolved := c.resolve(anchor.Href)
			linkRes, err := c.get(ctx, resolved)
			if err != nil {
				return err
			}
			if linkRes.IsError() {
				// dead link, keep scanning
				continue
			}

			target, err := url.Parse(resolved)
			if err != nil {
				continue
			}
			c.target = target
			slog.InfoContext(ctx, "found slot page", "url", resolved)
			return nil
		}
	}

	slog.InfoContext(ctx, "no slot page link found, polling the entry page")
	return nil
}
