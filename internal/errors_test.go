package internal

import (
	"errors"
	"net/http"
	"os"
	"testing"
)

func TestAssertion(t *testing.T) {
	os.Setenv("CONTENTAI_DEBUG", "1")
	shouldPanic := true
	shouldNotPanic := false

	try(t, shouldNotPanic, func() {
		Assert("true does nothing", true)
	})
	try(t, shouldPanic, func() {
		Assert("false panics", false)
	})

	os.Setenv("CONTENTAI_DEBUG", "0")
	try(t, shouldNotPanic, func() {
		Assert("true does nothing", true)
	})
	try(t, shouldNotPanic, func() {
		Assert("false does not panic if CONTENTAI_DEBUG is not 1", false)
	})
}

func TestHandlerErrorJSON(t *testing.T) {
	herr := &HandlerError{
		StatusCode: http.StatusConflict,
		Err:        errors.New("Email already exists"),
	}
	got := string(herr.JSON())
	want := `{"message":"Email already exists"}`
	if got != want {
		t.Fatalf("JSON() got %s want %s", got, want)
	}
	if herr.Error() != "HTTP 409 : Email already exists" {
		t.Errorf("Error() got %q", herr.Error())
	}
	if ErrorMessage(herr.JSON(), "fallback") != "Email already exists" {
		t.Errorf("ErrorMessage did not read back the JSON body")
	}
}

func TestErrorMessage(t *testing.T) {
	testCases := []struct {
		body string
		want string
	}{
		{body: `{"message":"Campaign not found"}`, want: "Campaign not found"},
		{body: `{"error":"rate_limit_exceeded"}`, want: "rate_limit_exceeded"},
		{body: `{"message":""}`, want: "Failed to fetch campaigns"},
		{body: `{"message":42}`, want: "Failed to fetch campaigns"},
		{body: `<html>bad gateway</html>`, want: "Failed to fetch campaigns"},
		{body: ``, want: "Failed to fetch campaigns"},
	}
	for _, tc := range testCases {
		got := ErrorMessage([]byte(tc.body), "Failed to fetch campaigns")
		if got != tc.want {
			t.Errorf("ErrorMessage(%q) got %q want %q", tc.body, got, tc.want)
		}
	}
}

func try(t *testing.T, shouldPanic bool, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		err := recover()
		if err != nil {
			if shouldPanic {
				return
			}
			t.Fatalf("panic: %s", err)
		} else {
			if shouldPanic {
				t.Fatalf("function did not panic")
			}
		}
	}()
	fn()
}
