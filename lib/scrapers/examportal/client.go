package examportal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"slotwatch/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/examportal")

// ErrSession is returned by Fetch when the session could not be recovered
// after a transport failure or an expiry redirect.
var ErrSession = errors.New("portal session error")

// ErrLoginFailed means the portal presented a login form, the submission
// went through, but no success marker came back.
var ErrLoginFailed = errors.New("login failed, check credentials")

type ClientOptions struct {
	EntryUrl string
	// Username/Password are optional, the portal is browsed
	// unauthenticated without them.
	Username string
	Password string
	// Region is the country/region value to select if the entry page
	// offers a selection control, e.g. "India".
	Region string

	// FetchTimeout bounds every normal HTTP call, RecoveryTimeout bounds
	// the single retry issued after session recovery.
	FetchTimeout    time.Duration
	RecoveryTimeout time.Duration
	// RecoveryDelay is slept between re-initialization and the retry.
	RecoveryDelay time.Duration
}

// Client owns the authenticated browsing session against the portal:
// cookies, login state, the selected region and the discovered slot page.
// It is not safe for concurrent use, the monitor loop is its only caller.
type Client struct {
	entry *url.URL
	http  *resty.Client
	opts  ClientOptions

	loginDone        bool
	categorySelected bool
	initialized      bool
	target           *url.URL
	requestCounter   uint
}

func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = time.Second * 20
	}
	if opts.RecoveryTimeout <= 0 {
		opts.RecoveryTimeout = time.Second * 25
	}
	if opts.RecoveryDelay <= 0 {
		opts.RecoveryDelay = time.Second * 3
	}

	entry, err := url.Parse(opts.EntryUrl)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", browserUserAgent)
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(entry.Hostname()))

	telemetry.InstrumentResty(client, "scrapers/examportal/http")

	c := &Client{
		entry: entry,
		http:  client,
		opts:  opts,
	}
	return c, nil
}

// Initialized reports whether a full login/selection/navigation handshake
// completed. It does not guarantee the portal accepted any of it.
func (c *Client) Initialized() bool {
	return c.initialized
}

// TargetPage is the URL Fetch currently polls, the discovered slot page
// if navigation found one, otherwise the entry URL.
func (c *Client) TargetPage() string {
	return c.targetURL()
}

// RequestCount is the number of Fetch calls made so far.
func (c *Client) RequestCount() uint {
	return c.requestCounter
}

// Initialize runs the session handshake: login when credentials are
// configured, region selection when a control is discoverable, then
// discovery of the slot sub-page. Missing forms/controls are skipped,
// only transport-level failures (and rejected credentials) abort.
func (c *Client) Initialize(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:Initialize")
	defer span.End()

	slog.InfoContext(ctx, "initializing portal session", "entry", c.entry.String())

	c.initialized = false
	if err := c.login(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login step failed")
		return err
	}
	if err := c.selectRegion(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "region selection step failed")
		return err
	}
	if err := c.discoverSlotPage(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "slot page discovery step failed")
		return err
	}

	c.initialized = true
	slog.InfoContext(ctx, "portal session initialized",
		"login_done", c.loginDone,
		"region_selected", c.categorySelected,
		"target", c.targetURL(),
	)
	return nil
}

// Fetch returns the markup of the slot page, transparently recovering the
// session when the portal redirects back to a login/selection page or a
// transport failure occurs. Recovery is attempted exactly once per call.
func (c *Client) Fetch(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "client:Fetch")
	defer span.End()

	c.requestCounter++

	if !c.initialized {
		if err := c.Initialize(ctx); err != nil {
			span.SetStatus(codes.Error, "lazy initialization failed")
			return "", fmt.Errorf("%w: %v", ErrSession, err)
		}
	}

	// proactive liveness probe on every 5th fetch
	if c.requestCounter%5 == 0 {
		if err := c.checkLiveness(ctx); err != nil {
			span.SetStatus(codes.Error, "liveness check failed")
			return "", fmt.Errorf("%w: %v", ErrSession, err)
		}
	}

	body, finalUrl, err := c.fetchTarget(ctx, c.opts.FetchTimeout)
	if err != nil {
		return c.recoverAndRetry(ctx, err)
	}

	if sessionExpired(finalUrl) {
		slog.WarnContext(ctx, "redirected to a login/selection page, reinitializing",
			"url", finalUrl.String())
		if err := c.Initialize(ctx); err != nil {
			return "", fmt.Errorf("%w: %v", ErrSession, err)
		}
		body, _, err = c.fetchTarget(ctx, c.opts.FetchTimeout)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrSession, err)
		}
	}

	return body, nil
}

// recoverAndRetry runs one full recovery cycle after a transport failure:
// reinitialize, wait a moment, then retry the fetch with the more
// generous recovery timeout.
func (c *Client) recoverAndRetry(ctx context.Context, cause error) (string, error) {
	ctx, span := tracer.Start(ctx, "client:recoverAndRetry")
	defer span.End()

	slog.WarnContext(ctx, "fetch failed, attempting session recovery", "err", cause)

	if err := c.Initialize(ctx); err != nil {
		span.SetStatus(codes.Error, "recovery initialization failed")
		return "", fmt.Errorf("%w: recovery failed: %v", ErrSession, err)
	}

	select {
	case <-time.After(c.opts.RecoveryDelay):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	body, _, err := c.fetchTarget(ctx, c.opts.RecoveryTimeout)
	if err != nil {
		span.SetStatus(codes.Error, "retry after recovery failed")
		return "", fmt.Errorf("%w: retry after recovery: %v", ErrSession, err)
	}
	return body, nil
}

// checkLiveness fetches the target page and reinitializes the session if
// the portal redirected to a login or selection page in the meantime.
func (c *Client) checkLiveness(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:checkLiveness")
	defer span.End()

	res, err := c.get(ctx, c.targetURL())
	if err != nil {
		span.RecordError(err)
		return err
	}

	if finalUrl := finalURL(res); finalUrl != nil && sessionExpired(finalUrl) {
		slog.WarnContext(ctx, "session expired, reinitializing", "url", finalUrl.String())
		return c.Initialize(ctx)
	}
	return nil
}

func (c *Client) fetchTarget(ctx context.Context, timeout time.Duration) (string, *url.URL, error) {
	target := c.targetURL()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := c.http.R().
		SetContext(ctx).
		SetHeaders(c.navHeaders()).
		SetQueryParam("_", cacheBuster()).
		Get(target)
	if err != nil {
		return "", nil, err
	}
	if res.IsError() {
		return "", nil, fmt.Errorf("unexpected status %d fetching %s", res.StatusCode(), target)
	}
	return res.String(), finalURL(res), nil
}

// get issues a plain navigation GET with the browser header set. Callers
// are responsible for status-code policy.
func (c *Client) get(ctx context.Context, target string) (*resty.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.FetchTimeout)
	defer cancel()

	return c.http.R().
		SetContext(ctx).
		SetHeaders(c.navHeaders()).
		Get(target)
}

// getOK is get but treating any non-2xx response as an error.
func (c *Client) getOK(ctx context.Context, target string) (*resty.Response, error) {
	res, err := c.get(ctx, target)
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, fmt.Errorf("unexpected status %d fetching %s", res.StatusCode(), target)
	}
	return res, nil
}

func (c *Client) targetURL() string {
	if c.target != nil {
		return c.target.String()
	}
	return c.entry.String()
}

// resolve turns a possibly-relative href from the portal's markup into an
// absolute URL against the entry page.
func (c *Client) resolve(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return c.entry.String()
	}
	return c.entry.ResolveReference(u).String()
}

func finalURL(res *resty.Response) *url.URL {
	raw := res.RawResponse
	if raw == nil || raw.Request == nil {
		return nil
	}
	return raw.Request.URL
}

// sessionExpired recognizes the portal bouncing us back to a login or
// country-selection page after following redirects. Only host and path
// are inspected so cache-busting query values can't false-positive.
func sessionExpired(u *url.URL) bool {
	if u == nil {
		return false
	}
	location := strings.ToLower(u.Host + u.Path)
	return strings.Contains(location, "login") ||
		strings.Contains(location, "signin") ||
		strings.Contains(location, "country")
}

func cacheBuster() string {
	token, err := random.String(12)
	if err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	return token
}
