package devserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/contentai-pro/dashboard-core/auth"
	"github.com/contentai-pro/dashboard-core/internal"
	"github.com/contentai-pro/dashboard-core/stream"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server, *auth.FakeBackend) {
	t.Helper()
	fake := auth.NewFakeBackend("test-secret", 0, zerolog.Nop())
	s := New(fake)
	srv := httptest.NewServer(s)
	t.Cleanup(func() {
		s.Close()
		srv.Close()
	})
	return s, srv, fake
}

func TestAuthRoutesWithHTTPBackend(t *testing.T) {
	_, srv, fake := newTestServer(t)
	ctx := context.Background()
	client := auth.NewHTTPBackend(srv.URL+"/api", 5*time.Second)

	res, err := client.Login(ctx, "demo@contentai.com", "demo123")
	if err != nil {
		t.Fatalf("Login: %s", err)
	}
	if res.User.ID != "2" || res.Token == "" {
		t.Fatalf("Login got %+v", res)
	}
	user, err := client.CurrentUser(ctx, res.Token)
	if err != nil || user.Email != "demo@contentai.com" {
		t.Fatalf("CurrentUser got %+v, %v", user, err)
	}

	t.Log("Failure kinds survive the round trip.")
	testCases := []struct {
		name string
		call func() error
		want error
	}{
		{"bad password", func() error {
			_, err := client.Login(ctx, "demo@contentai.com", "nope")
			return err
		}, auth.ErrInvalidCredentials},
		{"duplicate email", func() error {
			_, err := client.Register(ctx, auth.Profile{Name: "X", Email: "DEMO@contentai.com", Password: "pw"})
			return err
		}, auth.ErrEmailAlreadyExists},
		{"garbage token", func() error {
			_, err := client.CurrentUser(ctx, "garbage")
			return err
		}, auth.ErrInvalidToken},
		{"wrong old password", func() error {
			return client.ChangePassword(ctx, res.Token, "wrong", "new-pass")
		}, auth.ErrInvalidCredentials},
		{"unknown reset token", func() error {
			return client.ResetPassword(ctx, "nope", "new-pass")
		}, auth.ErrInvalidToken},
	}
	for i, tc := range testCases {
		if err := tc.call(); !errors.Is(err, tc.want) {
			t.Errorf("Case %d/%d %s: got %v want %v", i+1, len(testCases), tc.name, err, tc.want)
		}
	}

	updated, err := client.UpdateProfile(ctx, res.Token, auth.UserUpdate{Company: "Acme"})
	if err != nil || updated.Company != "Acme" || updated.Name != "Jane Smith" {
		t.Fatalf("UpdateProfile got %+v, %v", updated, err)
	}

	if err := client.ForgotPassword(ctx, "demo@contentai.com"); err != nil {
		t.Fatalf("ForgotPassword: %s", err)
	}
	resetToken, ok := fake.ResetTokenFor("demo@contentai.com")
	if !ok {
		t.Fatalf("no reset token issued")
	}
	if err := client.ResetPassword(ctx, resetToken, "brand-new"); err != nil {
		t.Fatalf("ResetPassword: %s", err)
	}
	if _, err := client.Login(ctx, "demo@contentai.com", "brand-new"); err != nil {
		t.Fatalf("Login with reset password: %s", err)
	}

	if err := client.Logout(ctx, res.Token); err != nil {
		t.Fatalf("Logout: %s", err)
	}
	if _, err := client.CurrentUser(ctx, res.Token); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("CurrentUser after logout got %v", err)
	}

	reg, err := client.Register(ctx, auth.Profile{Name: "New", Email: "new@example.com", Password: "pw"})
	if err != nil || reg.User.ID == "" {
		t.Fatalf("Register got %+v, %v", reg, err)
	}
}

func TestBadRequests(t *testing.T) {
	_, srv, _ := newTestServer(t)
	testCases := []struct {
		method string
		path   string
		body   string
		status int
	}{
		{"POST", "/api/auth/login", "{not json", 400},
		{"POST", "/api/auth/register", `{"name":"x"}`, 400},
		{"GET", "/api/auth/login", "", 405},
		{"OPTIONS", "/api/auth/login", "", 200},
		{"POST", "/api/dev/broadcast", `{"userId":"1"}`, 400},
	}
	for i, tc := range testCases {
		req, _ := http.NewRequest(tc.method, srv.URL+tc.path, strings.NewReader(tc.body))
		res, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("Case %d/%d: %s", i+1, len(testCases), err)
		}
		body, _ := io.ReadAll(res.Body)
		res.Body.Close()
		if res.StatusCode != tc.status {
			t.Errorf("Case %d/%d: %s %s got %d want %d (%s)", i+1, len(testCases), tc.method, tc.path, res.StatusCode, tc.status, body)
		}
		if tc.status == 400 && gjson.GetBytes(body, "message").Str == "" {
			t.Errorf("Case %d/%d: error body has no message: %s", i+1, len(testCases), body)
		}
	}
}

func TestErrorStatus(t *testing.T) {
	testCases := []struct {
		err  error
		want int
	}{
		{&auth.Error{Kind: auth.ErrInvalidCredentials}, 401},
		{&auth.Error{Kind: auth.ErrInvalidToken}, 401},
		{&auth.Error{Kind: auth.ErrEmailAlreadyExists}, 409},
		{&auth.Error{Kind: auth.ErrUserNotFound}, 404},
		{&auth.Error{Kind: auth.ErrNetworkFailure}, 503},
		{errors.New("boom"), 500},
	}
	for i, tc := range testCases {
		if got := errorStatus(tc.err); got != tc.want {
			t.Errorf("Case %d/%d: got %d want %d", i+1, len(testCases), got, tc.want)
		}
	}
}

type eventRecorder struct {
	got chan stream.Event
}

func (r *eventRecorder) OnCampaignUpdate(p *stream.CampaignUpdate)     { r.got <- p }
func (r *eventRecorder) OnContentGenerated(p *stream.ContentGenerated) { r.got <- p }
func (r *eventRecorder) OnUnknown(p *stream.Unknown)                   { r.got <- p }

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestPushHub(t *testing.T) {
	s, srv, fake := newTestServer(t)
	ctx := context.Background()
	res, err := fake.Login(ctx, "admin@contentai.com", "password123")
	if err != nil {
		t.Fatalf("Login: %s", err)
	}

	transport := stream.NewWebsocketTransport(srv.URL, "/ws")
	transport.MinBackoff = 10 * time.Millisecond
	transport.MaxBackoff = 20 * time.Millisecond
	c := stream.NewClient(transport, nil, stream.Options{})
	defer c.Close()
	if err := c.Connect(res.User.ID, res.Token); err != nil {
		t.Fatalf("Connect: %s", err)
	}
	waitFor(t, "connected", func() bool { return c.State() == stream.Connected })
	waitFor(t, "hub registration", func() bool { return s.Hub.Connections("1") == 1 })
	if users := s.Hub.Users(); len(users) != 1 || users[0] != "1" {
		t.Fatalf("Users got %v", users)
	}

	t.Log("A broadcast through the REST route reaches the client log.")
	req, _ := http.NewRequest("POST", srv.URL+"/api/dev/broadcast", strings.NewReader(
		`{"userId":"1","event":"notification","data":{"id":"n1","type":"success","message":"Campaign launched"}}`,
	))
	httpRes, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("broadcast: %s", err)
	}
	body, _ := io.ReadAll(httpRes.Body)
	httpRes.Body.Close()
	if gjson.GetBytes(body, "delivered").Int() != 1 {
		t.Fatalf("broadcast response %s", body)
	}
	waitFor(t, "notification", func() bool { return len(c.Notifications()) == 1 })
	if n := c.Notifications()[0]; n.ID != "n1" || n.Message != "Campaign launched" {
		t.Fatalf("notification got %+v", n)
	}

	t.Log("Broadcasts to another user are not delivered.")
	if n := s.Hub.Broadcast("2", "notification", []byte(`"not for you"`)); n != 0 {
		t.Fatalf("delivered %d frames to the wrong user", n)
	}

	t.Log("Client frames reach OnFrame.")
	frames := make(chan string, 1)
	s.Hub.OnFrame(func(userID, event string, data []byte) {
		frames <- userID + " " + event + " " + string(data)
	})
	c.Emit("mark_read", map[string]string{"id": "n1"})
	select {
	case got := <-frames:
		if got != `1 mark_read {"id":"n1"}` {
			t.Fatalf("OnFrame got %q", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("OnFrame was not called")
	}

	c.Disconnect()
	waitFor(t, "hub deregistration", func() bool { return s.Hub.Connections("1") == 0 })
}

func TestPushHubRejectsBadCredentials(t *testing.T) {
	_, srv, fake := newTestServer(t)
	res, err := fake.Login(context.Background(), "test@test.com", "test123")
	if err != nil {
		t.Fatalf("Login: %s", err)
	}
	testCases := []struct {
		userID string
		token  string
	}{
		{"3", "garbage"},
		{"1", res.Token}, // token belongs to user 3
		{"3", ""},
	}
	for i, tc := range testCases {
		url, err := internal.BackendURL{Raw: srv.URL}.StreamURL("/ws", tc.userID, tc.token)
		if err != nil {
			t.Fatalf("StreamURL: %s", err)
		}
		res, err := http.Get(strings.Replace(url, "ws://", "http://", 1))
		if err != nil {
			t.Fatalf("Case %d/%d: %s", i+1, len(testCases), err)
		}
		res.Body.Close()
		if res.StatusCode != 401 {
			t.Errorf("Case %d/%d: got HTTP %d want 401", i+1, len(testCases), res.StatusCode)
		}
	}
}
