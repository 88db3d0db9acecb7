// Package tokenstore persists the session's bearer token between runs.
package tokenstore

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger().Output(zerolog.ConsoleWriter{
	Out:        os.Stderr,
	TimeFormat: "15:04:05",
}).With().Str("component", "tokenstore").Logger()

// Key is the name of the single persisted entry.
const Key = "auth_token"

// Retention is how long a written token is kept for.
const Retention = 7 * 24 * time.Hour

// ErrNoToken is returned by Get when there is no entry or the entry has expired.
var ErrNoToken = errors.New("tokenstore: no token")

// Store holds at most one token. An expired token is indistinguishable from no token.
type Store interface {
	// Get returns the token or ErrNoToken.
	Get(ctx context.Context) (string, error)
	// Set replaces the token. It expires after ttl.
	Set(ctx context.Context, token string, ttl time.Duration) error
	// Clear removes the token. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
	Close() error
}

// record is the persisted form of the entry.
type record struct {
	Token     string `cbor:"1,keyasint"`
	ExpiresAt int64  `cbor:"2,keyasint"` // unix millis
}

func newRecord(token string, now time.Time, ttl time.Duration) record {
	return record{
		Token:     token,
		ExpiresAt: now.Add(ttl).UnixMilli(),
	}
}

func (r record) expired(now time.Time) bool {
	return now.UnixMilli() >= r.ExpiresAt
}
