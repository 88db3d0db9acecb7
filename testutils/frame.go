package testutils

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"
)

var (
	notificationIDCounter = 0
	notificationIDMu      sync.Mutex
)

func generateNotificationID() string {
	notificationIDMu.Lock()
	defer notificationIDMu.Unlock()
	notificationIDCounter++
	return fmt.Sprintf("n_%d", notificationIDCounter)
}

type frameMutator func(map[string]interface{})

// WithID overrides the generated notification ID.
func WithID(id string) frameMutator {
	return func(data map[string]interface{}) {
		data["id"] = id
	}
}

// WithField sets an extra field on the payload.
func WithField(key string, val interface{}) frameMutator {
	return func(data map[string]interface{}) {
		data[key] = val
	}
}

// NewNotificationData returns a notification payload with a unique ID.
func NewNotificationData(t *testing.T, kind, message string, modifiers ...frameMutator) map[string]interface{} {
	t.Helper()
	data := map[string]interface{}{
		"id":        generateNotificationID(),
		"type":      kind,
		"message":   message,
		"timestamp": time.Now().UnixMilli(),
	}
	for _, m := range modifiers {
		m(data)
	}
	return data
}

// NewFrame returns a push frame {"event": ..., "data": ...}.
func NewFrame(t *testing.T, event string, data interface{}) []byte {
	t.Helper()
	j, err := json.Marshal(map[string]interface{}{
		"event": event,
		"data":  data,
	})
	if err != nil {
		t.Fatalf("NewFrame: %s", err)
	}
	return j
}

// NewNotificationFrame is NewFrame for a "notification" event.
func NewNotificationFrame(t *testing.T, kind, message string, modifiers ...frameMutator) []byte {
	t.Helper()
	return NewFrame(t, "notification", NewNotificationData(t, kind, message, modifiers...))
}
