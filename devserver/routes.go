package devserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/contentai-pro/dashboard-core/auth"
	"github.com/contentai-pro/dashboard-core/internal"
)

type message struct {
	Message string `json:"message"`
}

func (s *Server) login(req *http.Request) (int, interface{}, error) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decode(req, &body); err != nil {
		return 0, nil, err
	}
	res, err := s.backend.Login(req.Context(), body.Email, body.Password)
	if err != nil {
		return 0, nil, err
	}
	return 200, res, nil
}

func (s *Server) register(req *http.Request) (int, interface{}, error) {
	var profile auth.Profile
	if err := decode(req, &profile); err != nil {
		return 0, nil, err
	}
	if profile.Email == "" || profile.Password == "" {
		return 0, nil, badRequest("email and password are required")
	}
	res, err := s.backend.Register(req.Context(), profile)
	if err != nil {
		return 0, nil, err
	}
	return 201, res, nil
}

func (s *Server) me(req *http.Request) (int, interface{}, error) {
	user, err := s.backend.CurrentUser(req.Context(), bearerToken(req))
	if err != nil {
		return 0, nil, err
	}
	return 200, user, nil
}

func (s *Server) updateProfile(req *http.Request) (int, interface{}, error) {
	var update auth.UserUpdate
	if err := decode(req, &update); err != nil {
		return 0, nil, err
	}
	user, err := s.backend.UpdateProfile(req.Context(), bearerToken(req), update)
	if err != nil {
		return 0, nil, err
	}
	return 200, user, nil
}

func (s *Server) changePassword(req *http.Request) (int, interface{}, error) {
	var body struct {
		OldPassword string `json:"oldPassword"`
		NewPassword string `json:"newPassword"`
	}
	if err := decode(req, &body); err != nil {
		return 0, nil, err
	}
	err := s.backend.ChangePassword(req.Context(), bearerToken(req), body.OldPassword, body.NewPassword)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		// 401 here would mean the session itself is bad
		return 0, nil, &internal.HandlerError{StatusCode: 400, Err: err}
	}
	if err != nil {
		return 0, nil, err
	}
	return 200, message{"Password changed"}, nil
}

func (s *Server) forgotPassword(req *http.Request) (int, interface{}, error) {
	var body struct {
		Email string `json:"email"`
	}
	if err := decode(req, &body); err != nil {
		return 0, nil, err
	}
	if err := s.backend.ForgotPassword(req.Context(), body.Email); err != nil {
		return 0, nil, err
	}
	return 200, message{"If the account exists a reset link has been sent"}, nil
}

func (s *Server) resetPassword(req *http.Request) (int, interface{}, error) {
	var body struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if err := decode(req, &body); err != nil {
		return 0, nil, err
	}
	if err := s.backend.ResetPassword(req.Context(), body.Token, body.NewPassword); err != nil {
		return 0, nil, err
	}
	return 200, message{"Password has been reset"}, nil
}

func (s *Server) logout(req *http.Request) (int, interface{}, error) {
	if err := s.backend.Logout(req.Context(), bearerToken(req)); err != nil {
		return 0, nil, err
	}
	return 200, message{"Logged out"}, nil
}

// broadcast pushes {"event","data"} to one user, or to everyone if userId is empty.
func (s *Server) broadcast(req *http.Request) (int, interface{}, error) {
	var body struct {
		UserID string          `json:"userId"`
		Event  string          `json:"event"`
		Data   json.RawMessage `json:"data"`
	}
	if err := decode(req, &body); err != nil {
		return 0, nil, err
	}
	if body.Event == "" {
		return 0, nil, badRequest("event is required")
	}
	n := s.Hub.Broadcast(body.UserID, body.Event, body.Data)
	return 200, struct {
		Delivered int `json:"delivered"`
	}{n}, nil
}
