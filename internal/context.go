package internal

import (
	"context"

	"github.com/rs/zerolog"
)

type ctx string

var (
	ctxData ctx = "contentai_data"
)

// logging metadata for a single session or stream operation
type data struct {
	op      string
	userID  string
	attempt int
}

// OperationContext prepares a context so it can carry logging metadata for op.
func OperationContext(ctx context.Context, op string) context.Context {
	d := &data{
		op:      op,
		attempt: -1,
	}
	return context.WithValue(ctx, ctxData, d)
}

// SetContextUserID adds the user ID to this operation context. Need to have called
// OperationContext first.
func SetContextUserID(ctx context.Context, userID string) {
	d := ctx.Value(ctxData)
	if d == nil {
		return
	}
	da := d.(*data)
	da.userID = userID
}

// SetContextAttempt records which dial attempt a stream operation is on.
func SetContextAttempt(ctx context.Context, attempt int) {
	d := ctx.Value(ctxData)
	if d == nil {
		return
	}
	da := d.(*data)
	da.attempt = attempt
}

func DecorateLogger(ctx context.Context, l *zerolog.Event) *zerolog.Event {
	d := ctx.Value(ctxData)
	if d == nil {
		return l
	}
	da := d.(*data)
	if da.op != "" {
		l = l.Str("op", da.op)
	}
	if da.userID != "" {
		l = l.Str("u", da.userID)
	}
	if da.attempt >= 0 {
		l = l.Int("n", da.attempt)
	}
	return l
}
