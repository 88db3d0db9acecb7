// Package devserver serves the dashboard backend surface the core talks to, backed by an
// in-process auth.Backend: the /api/auth REST routes and the /ws push endpoint. It is for
// local development and end-to-end tests.
package devserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/contentai-pro/dashboard-core/auth"
	"github.com/contentai-pro/dashboard-core/internal"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger().Output(zerolog.ConsoleWriter{
	Out:        os.Stderr,
	TimeFormat: "15:04:05",
})

type server struct {
	chain []func(next http.Handler) http.Handler
	final http.Handler
}

func (s *server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	h := s.final
	for i := range s.chain {
		h = s.chain[len(s.chain)-1-i](h)
	}
	h.ServeHTTP(w, req)
}

func allowCORS(next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Origin, X-Requested-With, Content-Type, Accept, Authorization")
		if req.Method == "OPTIONS" {
			w.WriteHeader(200)
			return
		}
		next.ServeHTTP(w, req)
	}
}

// Server routes REST calls to the backend and owns the push hub.
type Server struct {
	backend auth.Backend
	Hub     *Hub
	handler http.Handler
}

func New(backend auth.Backend) *Server {
	s := &Server{
		backend: backend,
		Hub:     NewHub(backend),
	}
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.Handle("/auth/login", s.route(s.login)).Methods("POST", "OPTIONS")
	api.Handle("/auth/register", s.route(s.register)).Methods("POST", "OPTIONS")
	api.Handle("/auth/me", s.route(s.me)).Methods("GET", "OPTIONS")
	api.Handle("/auth/profile", s.route(s.updateProfile)).Methods("PUT", "OPTIONS")
	api.Handle("/auth/change-password", s.route(s.changePassword)).Methods("POST", "OPTIONS")
	api.Handle("/auth/forgot-password", s.route(s.forgotPassword)).Methods("POST", "OPTIONS")
	api.Handle("/auth/reset-password", s.route(s.resetPassword)).Methods("POST", "OPTIONS")
	api.Handle("/auth/logout", s.route(s.logout)).Methods("POST", "OPTIONS")
	api.Handle("/dev/broadcast", s.route(s.broadcast)).Methods("POST", "OPTIONS")
	r.Handle("/ws", s.Hub)

	s.handler = &server{
		chain: []func(next http.Handler) http.Handler{
			hlog.NewHandler(logger),
			hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
				hlog.FromRequest(r).Info().
					Str("method", r.Method).
					Int("status", status).
					Int("size", size).
					Dur("duration", duration).
					Str("path", r.URL.Path).
					Msg("")
			}),
			hlog.RemoteAddrHandler("ip"),
		},
		final: r,
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.handler.ServeHTTP(w, req)
}

// Run blocks serving on bindAddr.
func (s *Server) Run(bindAddr string) error {
	logger.Info().Msgf("listening on %s", bindAddr)
	return http.ListenAndServe(bindAddr, s)
}

// Close drops every push connection.
func (s *Server) Close() {
	s.Hub.Close()
}

type handlerFunc func(req *http.Request) (status int, resBody interface{}, err error)

func (s *Server) route(fn handlerFunc) http.Handler {
	return allowCORS(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status, resBody, err := fn(req)
		if err != nil {
			herr, ok := err.(*internal.HandlerError)
			if !ok {
				herr = &internal.HandlerError{
					StatusCode: errorStatus(err),
					Err:        err,
				}
			}
			if herr.StatusCode >= 500 {
				hlog.FromRequest(req).Err(err).Msg("request failed")
				internal.ReportError(req.Context(), req.URL.Path, err)
			}
			w.WriteHeader(herr.StatusCode)
			w.Write(herr.JSON())
			return
		}
		b, err := json.Marshal(resBody)
		if err != nil {
			w.WriteHeader(500)
			return
		}
		w.WriteHeader(status)
		w.Write(b)
	}))
}

// errorStatus maps backend failure kinds onto the statuses HTTPBackend understands.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		return 401
	case errors.Is(err, auth.ErrEmailAlreadyExists):
		return 409
	case errors.Is(err, auth.ErrUserNotFound):
		return 404
	case errors.Is(err, auth.ErrNetworkFailure):
		return 503
	default:
		return 500
	}
}

func bearerToken(req *http.Request) string {
	token, ok := strings.CutPrefix(req.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

func decode(req *http.Request, v interface{}) error {
	if req.Body == nil {
		return badRequest("missing request body")
	}
	defer req.Body.Close()
	if err := json.NewDecoder(req.Body).Decode(v); err != nil {
		return badRequest("request body is not valid JSON")
	}
	return nil
}

func badRequest(msg string) *internal.HandlerError {
	return &internal.HandlerError{
		StatusCode: 400,
		Err:        errors.New(msg),
	}
}
