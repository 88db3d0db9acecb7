package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/contentai-pro/dashboard-core/internal"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var ClientVersion = ""

// Backend is the authentication collaborator. One implementation is picked at startup
// and used for the lifetime of the process.
type Backend interface {
	// Login validates credentials. Fails with ErrInvalidCredentials.
	Login(ctx context.Context, email, password string) (*Response, error)
	// Register creates an account. Fails with ErrEmailAlreadyExists.
	Register(ctx context.Context, profile Profile) (*Response, error)
	// CurrentUser resolves a bearer token. Fails with ErrInvalidToken or ErrUserNotFound.
	CurrentUser(ctx context.Context, token string) (*User, error)
	UpdateProfile(ctx context.Context, token string, update UserUpdate) (*User, error)
	ChangePassword(ctx context.Context, token, oldPassword, newPassword string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, resetToken, newPassword string) error
	// Logout tells the backend the token is no longer in use.
	Logout(ctx context.Context, token string) error
}

// HTTPBackend talks to the dashboard REST API.
type HTTPBackend struct {
	Client  *http.Client
	BaseURL internal.BackendURL
}

// NewHTTPBackend returns a backend for the API at apiURL, e.g http://localhost:3001/api.
// Requests are traced with otelhttp.
func NewHTTPBackend(apiURL string, timeout time.Duration) *HTTPBackend {
	return &HTTPBackend{
		Client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		BaseURL: internal.BackendURL{Raw: apiURL},
	}
}

func (v *HTTPBackend) Login(ctx context.Context, email, password string) (*Response, error) {
	status, body, err := v.do(ctx, "POST", "/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	switch status {
	case 200, 201:
		return parseResponse(body)
	case 400, 401, 403:
		return nil, newError(ErrInvalidCredentials, internal.ErrorMessage(body, ""), nil)
	default:
		return nil, unexpectedStatus("login", status, body)
	}
}

func (v *HTTPBackend) Register(ctx context.Context, profile Profile) (*Response, error) {
	status, body, err := v.do(ctx, "POST", "/auth/register", "", profile)
	if err != nil {
		return nil, err
	}
	switch status {
	case 200, 201:
		return parseResponse(body)
	case 409:
		return nil, newError(ErrEmailAlreadyExists, internal.ErrorMessage(body, ""), nil)
	default:
		return nil, unexpectedStatus("register", status, body)
	}
}

// Return ErrInvalidToken if this request returns 401
func (v *HTTPBackend) CurrentUser(ctx context.Context, token string) (*User, error) {
	status, body, err := v.do(ctx, "GET", "/auth/me", token, nil)
	if err != nil {
		return nil, err
	}
	switch status {
	case 200:
		res := gjson.ParseBytes(body)
		// some deployments wrap the identity as {"user": {...}}
		if u := res.Get("user"); u.IsObject() {
			res = u
		}
		user := parseUser(res)
		if user.ID == "" {
			return nil, newError(ErrUserNotFound, "", nil)
		}
		return &user, nil
	case 401, 403:
		return nil, newError(ErrInvalidToken, internal.ErrorMessage(body, ""), nil)
	case 404:
		return nil, newError(ErrUserNotFound, internal.ErrorMessage(body, ""), nil)
	default:
		return nil, unexpectedStatus("/auth/me", status, body)
	}
}

func (v *HTTPBackend) UpdateProfile(ctx context.Context, token string, update UserUpdate) (*User, error) {
	status, body, err := v.do(ctx, "PUT", "/auth/profile", token, update)
	if err != nil {
		return nil, err
	}
	switch status {
	case 200:
		user := parseUser(gjson.ParseBytes(body))
		return &user, nil
	case 401, 403:
		return nil, newError(ErrInvalidToken, internal.ErrorMessage(body, ""), nil)
	default:
		return nil, unexpectedStatus("update profile", status, body)
	}
}

func (v *HTTPBackend) ChangePassword(ctx context.Context, token, oldPassword, newPassword string) error {
	status, body, err := v.do(ctx, "POST", "/auth/change-password", token, map[string]string{
		"oldPassword": oldPassword,
		"newPassword": newPassword,
	})
	if err != nil {
		return err
	}
	switch status {
	case 200, 204:
		return nil
	case 400:
		return newError(ErrInvalidCredentials, internal.ErrorMessage(body, ""), nil)
	case 401, 403:
		return newError(ErrInvalidToken, internal.ErrorMessage(body, ""), nil)
	default:
		return unexpectedStatus("change password", status, body)
	}
}

func (v *HTTPBackend) ForgotPassword(ctx context.Context, email string) error {
	status, body, err := v.do(ctx, "POST", "/auth/forgot-password", "", map[string]string{
		"email": email,
	})
	if err != nil {
		return err
	}
	if status != 200 && status != 204 {
		return unexpectedStatus("forgot password", status, body)
	}
	return nil
}

func (v *HTTPBackend) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	status, body, err := v.do(ctx, "POST", "/auth/reset-password", "", map[string]string{
		"token":       resetToken,
		"newPassword": newPassword,
	})
	if err != nil {
		return err
	}
	switch status {
	case 200, 204:
		return nil
	case 400, 401:
		return newError(ErrInvalidToken, internal.ErrorMessage(body, ""), nil)
	default:
		return unexpectedStatus("reset password", status, body)
	}
}

func (v *HTTPBackend) Logout(ctx context.Context, token string) error {
	status, body, err := v.do(ctx, "POST", "/auth/logout", token, nil)
	if err != nil {
		return err
	}
	if status >= 300 {
		return unexpectedStatus("logout", status, body)
	}
	return nil
}

// do performs a JSON request. Transport failures are returned as ErrNetworkFailure; any
// HTTP status is returned to the caller to interpret.
func (v *HTTPBackend) do(ctx context.Context, method, path, token string, reqBody interface{}) (int, []byte, error) {
	var r io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return 0, nil, fmt.Errorf("%s %s: marshal request: %w", method, path, err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, v.BaseURL.Join(path), r)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: NewRequest failed: %w", method, path, err)
	}
	req.Header.Set("User-Agent", "contentai-dashboard-"+ClientVersion)
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := v.Client.Do(req)
	if err != nil {
		msg := "Unable to reach the server"
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "The server took too long to respond"
		}
		return 0, nil, newError(ErrNetworkFailure, msg, err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return 0, nil, newError(ErrNetworkFailure, "Unable to read the server response", err)
	}
	return res.StatusCode, body, nil
}

func parseResponse(body []byte) (*Response, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("auth response is not valid JSON")
	}
	res := gjson.ParseBytes(body)
	token := res.Get("token").Str
	if token == "" {
		return nil, fmt.Errorf("auth response is missing a token")
	}
	user := parseUser(res.Get("user"))
	if user.ID == "" {
		return nil, fmt.Errorf("auth response is missing user.id")
	}
	return &Response{
		User:  user,
		Token: token,
	}, nil
}

func unexpectedStatus(what string, status int, body []byte) error {
	return &internal.HandlerError{
		StatusCode: status,
		Err:        fmt.Errorf("%s: %s", what, internal.ErrorMessage(body, http.StatusText(status))),
	}
}
