package examportal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
)

// login fetches the entry page, locates a login form and submits the
// configured credentials through it. A missing form means the portal does
// not require login, that is not an error.
func (c *Client) login(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:login")
	defer span.End()

	c.loginDone = false
	if c.opts.Username == "" || c.opts.Password == "" {
		slog.InfoContext(ctx, "no credentials configured, proceeding without login")
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

	form := findLoginForm(doc)
	if form == nil {
		slog.InfoContext(ctx, "no login form found, assuming login is not required")
		return nil
	}

	data := map[string]string{
		"username": c.opts.Username,
		"password": c.opts.Password,
	}
	collectHiddenFields(form, data)
	action, method := c.formTarget(form)

	req := c.http.R().
		SetContext(ctx).
		SetHeaders(c.formHeaders())

	var submitted *resty.Response
	if method == "GET" {
		submitted, err = req.SetQueryParams(data).Get(action)
	} else {
		submitted, err = req.SetFormData(data).Post(action)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to submit login form")
		return err
	}
	if submitted.IsError() {
		span.SetStatus(codes.Error, "login submission rejected")
		return fmt.Errorf("login submit: unexpected status %d", submitted.StatusCode())
	}

	// success markers: a dashboard URL or a welcome blurb in the body
	landed := ""
	if u := finalURL(submitted); u != nil {
		landed = strings.ToLower(u.String())
	}
	if strings.Contains(landed, "dashboard") ||
		strings.Contains(strings.ToLower(submitted.String()), "welcome") {
		c.loginDone = true
		slog.InfoContext(ctx, "login successful")
		return nil
	}

	span.SetStatus(codes.Error, ErrLoginFailed.Error())
	return ErrLoginFailed
}

// findLoginForm looks for the conventional #loginForm id first, then for
// any form whose action mentions login.
func findLoginForm(doc *goquery.Document) *goquery.Selection {
	form := doc.Find("form#loginForm").First()
	if form.Length() > 0 {
		return form
	}

	var found *goquery.Selection
	doc.Find("form").EachWithBreak(func(_ int, f *goquery.Selection) bool {
		if strings.Contains(strings.ToLower(f.AttrOr("action", "")), "login") {
			found = f
			return false
		}
		return true
	})
	return found
}

// collectHiddenFields carries a form's hidden inputs (CSRF tokens,
// viewstate and the like) into the submission data.
func collectHiddenFields(form *goquery.Selection, data map[string]string) {
	form.Find("input[type=hidden]").Each(func(_ int, in *goquery.Selection) {
		name := in.AttrOr("name", "")
		if name == "" {
			return
		}
		data[name] = in.AttrOr("value", "")
	})
}

func (c *Client) formTarget(form *goquery.Selection) (action string, method string) {
	action = c.resolve(form.AttrOr("action", ""))
	method = strings.ToUpper(form.AttrOr("method", "POST"))
	if method == "" {
		method = "POST"
	}
	return action, method
}
