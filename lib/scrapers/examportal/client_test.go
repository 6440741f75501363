package examportal

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"slotwatch/lib/telemetry"

	"github.com/stretchr/testify/require"
)

const fakeEntryPage = `<html><body>
	<form id="loginForm" action="/login" method="post">
		<input type="hidden" name="csrf" value="token123">
		<input name="username"><input name="password">
	</form>
	<form action="/country" method="post">
		<select name="countrySelect">
			<option value="">Choose a country</option>
			<option value="DE">Germany</option>
			<option value="IN">India</option>
		</select>
	</form>
	<a href="/about">About us</a>
	<a href="/slots">Slot Booking</a>
</body></html>`

const fakeSlotPage = `<html><body>
	<h1>Exam slots</h1>
	<div class="chennai-red"></div>
</body></html>`

// fakePortal emulates the portal's handshake: a login form posting to
// /login, a country dropdown posting to /country and a slot page link.
type fakePortal struct {
	server *httptest.Server

	mu           sync.Mutex
	logins       int
	lastLogin    url.Values
	region       string
	slotRequests int
	expireOnce   bool
}

func newFakePortal(t *testing.T) *fakePortal {
	p := &fakePortal{}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, fakeEntryPage)
	})
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, fakeEntryPage)
			return
		}
		require.NoError(t, r.ParseForm())

		p.mu.Lock()
		p.logins++
		p.lastLogin = r.PostForm
		p.mu.Unlock()

		if r.PostFormValue("username") == "tester" && r.PostFormValue("password") == "hunter2" {
			http.Redirect(w, r, "/dashboard", http.StatusFound)
			return
		}
		fmt.Fprint(w, "Invalid credentials")
	})
	mux.HandleFunc("/dashboard", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "Welcome back")
	})
	mux.HandleFunc("/country", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		p.mu.Lock()
		p.region = r.PostFormValue("countrySelect")
		p.mu.Unlock()
		fmt.Fprint(w, "Country selected")
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "About page")
	})
	mux.HandleFunc("/slots", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		p.slotRequests++
		expired := p.expireOnce
		p.expireOnce = false
		p.mu.Unlock()

		if expired {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		fmt.Fprint(w, fakeSlotPage)
	})

	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakePortal) countSlotRequests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.slotRequests
}

func (p *fakePortal) countLogins() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.logins
}

func (p *fakePortal) loginField(name string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastLogin.Get(name)
}

func (p *fakePortal) selectedRegion() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.region
}

func newFakeClient(t *testing.T, portal *fakePortal, opts ClientOptions) *Client {
	t.Cleanup(telemetry.SetupForTesting(t, "test:scrapers/examportal"))

	opts.EntryUrl = portal.server.URL + "/"
	opts.RecoveryDelay = time.Millisecond
	client, err := NewClient(context.Background(), opts)
	require.NoError(t, err)
	return client
}

func TestInitializeFullHandshake(t *testing.T) {
	portal := newFakePortal(t)
	client := newFakeClient(t, portal, ClientOptions{
		Username: "tester",
		Password: "hunter2",
		Region:   "India",
	})

	require.NoError(t, client.Initialize(context.Background()))
	require.True(t, client.Initialized())

	// credentials plus the form's hidden csrf token
	require.Equal(t, "tester", portal.loginField("username"))
	require.Equal(t, "hunter2", portal.loginField("password"))
	require.Equal(t, "token123", portal.loginField("csrf"))

	require.Equal(t, "IN", portal.selectedRegion())
	require.Equal(t, portal.server.URL+"/slots", client.TargetPage())
}

func TestInitializeWithoutCredentials(t *testing.T) {
	portal := newFakePortal(t)
	client := newFakeClient(t, portal, ClientOptions{})

	require.NoError(t, client.Initialize(context.Background()))
	require.True(t, client.Initialized())
	require.Equal(t, 0, portal.countLogins())
	require.Equal(t, portal.server.URL+"/slots", client.TargetPage())
}

func TestInitializeRejectedCredentials(t *testing.T) {
	portal := newFakePortal(t)
	client := newFakeClient(t, portal, ClientOptions{
		Username: "tester",
		Password: "wrong",
	})

	err := client.Initialize(context.Background())
	require.ErrorIs(t, err, ErrLoginFailed)
	require.False(t, client.Initialized())
}

func TestFetchReturnsSlotPage(t *testing.T) {
	portal := newFakePortal(t)
	client := newFakeClient(t, portal, ClientOptions{})

	body, err := client.Fetch(context.Background())
	require.NoError(t, err)
	require.Contains(t, body, "chennai-red")
	require.Equal(t, uint(1), client.RequestCount())
}

func TestFetchRecoversFromExpiryRedirect(t *testing.T) {
	portal := newFakePortal(t)
	client := newFakeClient(t, portal, ClientOptions{
		Username: "tester",
		Password: "hunter2",
	})

	body, err := client.Fetch(context.Background())
	require.NoError(t, err)
	require.Contains(t, body, "Exam slots")
	require.Equal(t, 1, portal.countLogins())

	portal.mu.Lock()
	portal.expireOnce = true
	portal.mu.Unlock()

	// the redirect to /login triggers exactly one re-login before the
	// retried fetch succeeds
	body, err = client.Fetch(context.Background())
	require.NoError(t, err)
	require.Contains(t, body, "Exam slots")
	require.Equal(t, 2, portal.countLogins())
}

func TestFetchLivenessProbeEveryFifthRequest(t *testing.T) {
	portal := newFakePortal(t)
	client := newFakeClient(t, portal, ClientOptions{})

	for n := 0; n < 4; n++ {
		_, err := client.Fetch(context.Background())
		require.NoError(t, err)
	}
	// one discovery probe during lazy initialization plus four fetches
	require.Equal(t, 5, portal.countSlotRequests())

	_, err := client.Fetch(context.Background())
	require.NoError(t, err)
	// the fifth fetch costs two requests, the probe and the fetch itself
	require.Equal(t, 7, portal.countSlotRequests())
}

func TestFetchSessionErrorWhenPortalUnreachable(t *testing.T) {
	portal := newFakePortal(t)
	client := newFakeClient(t, portal, ClientOptions{})

	_, err := client.Fetch(context.Background())
	require.NoError(t, err)

	portal.server.Close()

	_, err = client.Fetch(context.Background())
	require.ErrorIs(t, err, ErrSession)
}

func TestSessionExpired(t *testing.T) {
	for _, test := range []struct {
		raw  string
		want bool
	}{
		{"https://portal.example.com/slots", false},
		{"https://portal.example.com/login", true},
		{"https://portal.example.com/account/signin", true},
		{"https://portal.example.com/select-country", true},
		{"https://login.example.com/", true},
		// query values never count, the cache buster lives there
		{"https://portal.example.com/slots?_=loginx", false},
	} {
		u, err := url.Parse(test.raw)
		require.NoError(t, err)
		require.Equal(t, test.want, sessionExpired(u), test.raw)
	}
	require.False(t, sessionExpired(nil))
}
