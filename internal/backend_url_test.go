package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBackendURL_Base_TrimsSlash(t *testing.T) {
	assert.Equal(t, "http://localhost:3001/api", BackendURL{"http://localhost:3001/api/"}.Base())
}

func TestBackendURL_Join(t *testing.T) {
	assert.Equal(t, "http://localhost:3001/api/auth/me", BackendURL{"http://localhost:3001/api"}.Join("/auth/me"))
	assert.Equal(t, "http://localhost:3001/api/auth/me", BackendURL{"http://localhost:3001/api/"}.Join("auth/me"))
	assert.Equal(t, "http://localhost:3001/api", BackendURL{"http://localhost:3001/api"}.Join(""))
}

func TestBackendURL_Origin(t *testing.T) {
	origin, err := BackendURL{"ws://localhost:3001"}.Origin()
	assert.NoError(t, err)
	assert.Equal(t, "http://localhost:3001", origin)

	origin, err = BackendURL{"wss://push.contentai.com/"}.Origin()
	assert.NoError(t, err)
	assert.Equal(t, "https://push.contentai.com", origin)

	_, err = BackendURL{"ftp://localhost"}.Origin()
	assert.Error(t, err)
}

func TestBackendURL_StreamURL(t *testing.T) {
	got, err := BackendURL{"ws://localhost:3001"}.StreamURL("/ws", "1", "tok en")
	assert.NoError(t, err)
	assert.Equal(t, "ws://localhost:3001/ws?token=tok+en&userId=1", got)
}

func TestBackendURL_StreamURL_FromHTTP(t *testing.T) {
	got, err := BackendURL{"https://push.contentai.com"}.StreamURL("", "2", "abc")
	assert.NoError(t, err)
	assert.Equal(t, "wss://push.contentai.com?token=abc&userId=2", got)
}
