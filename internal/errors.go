package internal

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger().Output(zerolog.ConsoleWriter{
	Out:        os.Stderr,
	TimeFormat: "15:04:05",
})

// HandlerError is a non-2xx HTTP response, either received from the REST backend or
// produced by the dev server.
type HandlerError struct {
	StatusCode int
	Err        error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("HTTP %d : %s", e.StatusCode, e.Err.Error())
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

type jsonError struct {
	Message string `json:"message"`
}

// JSON returns the {"message": "..."} body the dashboard backend uses for errors.
func (e HandlerError) JSON() []byte {
	je := jsonError{e.Err.Error()}
	b, _ := json.Marshal(je)
	return b
}

// ErrorMessage extracts the human readable message from a backend error body. Returns
// fallback if the body does not carry one.
func ErrorMessage(body []byte, fallback string) string {
	if !gjson.ValidBytes(body) {
		return fallback
	}
	parsed := gjson.ParseBytes(body)
	for _, key := range []string{"message", "error"} {
		if msg := parsed.Get(key); msg.Type == gjson.String && msg.Str != "" {
			return msg.Str
		}
	}
	return fallback
}

// Assert reports a broken invariant. With CONTENTAI_DEBUG=1 it panics; otherwise it logs
// msg along with the file and line of the assertion and of its caller. Use it for things
// which cannot happen, not for ordinary failures such as network errors:
//
//	Assert("log is within capacity", len(entries) <= capacity)
func Assert(msg string, expr bool) {
	if expr {
		return
	}
	if os.Getenv("CONTENTAI_DEBUG") == "1" {
		panic(fmt.Sprintf("assert: %s", msg))
	}
	l := logger.Error()
	_, file, line, ok := runtime.Caller(1)
	if ok {
		l = l.Str("assertion", fmt.Sprintf("%s:%d", file, line))
	}
	_, file, line, ok = runtime.Caller(2)
	if ok {
		l = l.Str("caller", fmt.Sprintf("%s:%d", file, line))
	}
	l.Msg("assertion failed: " + msg)
}
