package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/contentai-pro/dashboard-core/auth"
	"github.com/contentai-pro/dashboard-core/devserver"
	"github.com/rs/zerolog"
)

func setupEnv(t *testing.T) *devserver.Server {
	t.Helper()
	dev := devserver.New(auth.NewFakeBackend("test-secret", 0, zerolog.Nop()))
	srv := httptest.NewServer(dev)
	t.Cleanup(func() {
		dev.Close()
		srv.Close()
	})
	t.Setenv("API_URL", srv.URL+"/api")
	t.Setenv("WEBSOCKET_URL", srv.URL)
	t.Setenv("CONTENTAI_BACKEND", "http")
	t.Setenv("CONTENTAI_TOKEN_STORE", "file")
	t.Setenv("CONTENTAI_TOKEN_FILE", filepath.Join(t.TempDir(), "session"))
	t.Setenv("CONTENTAI_SECRET", "test-secret")
	return dev
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := run(context.Background(), args, &out, &errOut)
	return out.String(), err
}

func TestCLISession(t *testing.T) {
	setupEnv(t)
	testCases := []struct {
		args    []string
		want    string
		wantErr bool
	}{
		{args: []string{"whoami"}, want: "Not logged in"},
		{args: []string{"login", "-email", "demo@contentai.com", "-password", "wrong"}, wantErr: true},
		{args: []string{"login", "-email", "demo@contentai.com"}, wantErr: true},
		{args: []string{"login", "-email", "demo@contentai.com", "-password", "demo123"}, want: "Logged in as Jane Smith <demo@contentai.com>"},
		{args: []string{"whoami"}, want: "Jane Smith <demo@contentai.com>"},
		{args: []string{"logout"}, want: "Logged out"},
		{args: []string{"whoami"}, want: "Not logged in"},
		{args: []string{"register", "-name", "New", "-email", "new@example.com", "-password", "pw"}, want: "Registered New <new@example.com>"},
		{args: []string{"whoami"}, want: "New <new@example.com>"},
		{args: []string{"frobnicate"}, wantErr: true},
	}
	for i, tc := range testCases {
		out, err := runCmd(t, tc.args...)
		if tc.wantErr {
			if err == nil {
				t.Errorf("Case %d/%d %v: expected an error, got output %q", i+1, len(testCases), tc.args, out)
			}
			continue
		}
		if err != nil {
			t.Errorf("Case %d/%d %v: %s", i+1, len(testCases), tc.args, err)
			continue
		}
		if !strings.Contains(out, tc.want) {
			t.Errorf("Case %d/%d %v: output %q does not contain %q", i+1, len(testCases), tc.args, out, tc.want)
		}
	}
}

func TestCLIListen(t *testing.T) {
	dev := setupEnv(t)
	if _, err := runCmd(t, "login", "-email", "admin@contentai.com", "-password", "password123"); err != nil {
		t.Fatalf("login: %s", err)
	}
	go func() {
		deadline := time.Now().Add(2 * time.Second)
		for dev.Hub.Connections("1") == 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		dev.Hub.Broadcast("1", "notification", []byte(`{"id":"n1","type":"success","title":"Published","message":"Spring sale is live"}`))
		dev.Hub.Broadcast("1", "campaign_update", []byte(`{"campaignId":"c7","status":"paused"}`))
	}()
	out, err := runCmd(t, "listen", "-for", "1s")
	if err != nil {
		t.Fatalf("listen: %s", err)
	}
	for _, want := range []string{"[success] Published Spring sale is live", "campaign c7: paused"} {
		if !strings.Contains(out, want) {
			t.Errorf("listen output %q does not contain %q", out, want)
		}
	}
}

func TestCLIListenNotLoggedIn(t *testing.T) {
	setupEnv(t)
	if _, err := runCmd(t, "listen", "-for", "100ms"); err == nil {
		t.Fatalf("listen without a session should fail")
	}
}
