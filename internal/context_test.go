package internal

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDecorateLogger(t *testing.T) {
	var buf bytes.Buffer
	l := zerolog.New(&buf)

	ctx := OperationContext(context.Background(), "login")
	SetContextUserID(ctx, "1")
	DecorateLogger(ctx, l.Info()).Msg("hello")
	got := buf.String()
	if !strings.Contains(got, `"op":"login"`) || !strings.Contains(got, `"u":"1"`) {
		t.Fatalf("decorated log line missing fields: %s", got)
	}
	if strings.Contains(got, `"n":`) {
		t.Fatalf("unset attempt should not be logged: %s", got)
	}

	buf.Reset()
	SetContextAttempt(ctx, 3)
	DecorateLogger(ctx, l.Info()).Msg("again")
	if !strings.Contains(buf.String(), `"n":3`) {
		t.Fatalf("attempt not logged: %s", buf.String())
	}
}

func TestDecorateLoggerWithoutOperation(t *testing.T) {
	var buf bytes.Buffer
	l := zerolog.New(&buf)
	// must not panic on a bare context
	SetContextUserID(context.Background(), "1")
	DecorateLogger(context.Background(), l.Info()).Msg("bare")
	if strings.Contains(buf.String(), `"u"`) {
		t.Fatalf("bare context gained fields: %s", buf.String())
	}
}
