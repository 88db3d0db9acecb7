package devserver

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/contentai-pro/dashboard-core/auth"
	"github.com/contentai-pro/dashboard-core/internal"
	"github.com/rs/zerolog/hlog"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"golang.org/x/net/websocket"
)

const handshakeTimeout = 10 * time.Second

// Hub accepts authenticated push connections on /ws and fans frames out to them. A
// connection authenticates with the userId and token query parameters; the token must
// resolve to that user.
type Hub struct {
	backend auth.Backend
	ws      websocket.Server

	mu      sync.Mutex
	conns   map[string]map[*websocket.Conn]struct{} // user ID -> conns
	onFrame func(userID, event string, data []byte)
}

func NewHub(backend auth.Backend) *Hub {
	h := &Hub{
		backend: backend,
		conns:   make(map[string]map[*websocket.Conn]struct{}),
	}
	h.ws = websocket.Server{
		// clients are not browsers, accept any origin
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
		Handler:   h.serveConn,
	}
	return h
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	userID := req.URL.Query().Get("userId")
	token := req.URL.Query().Get("token")
	if token == "" {
		token = bearerToken(req)
	}
	ctx, cancel := context.WithTimeout(req.Context(), handshakeTimeout)
	defer cancel()
	user, err := h.backend.CurrentUser(ctx, token)
	if err != nil || user.ID != userID {
		hlog.FromRequest(req).Warn().Err(err).Str("u", userID).Msg("rejecting push connection")
		herr := &internal.HandlerError{StatusCode: 401, Err: auth.ErrInvalidToken}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(herr.StatusCode)
		w.Write(herr.JSON())
		return
	}
	h.ws.ServeHTTP(w, req)
}

func (h *Hub) serveConn(conn *websocket.Conn) {
	userID := conn.Request().URL.Query().Get("userId")
	h.add(userID, conn)
	defer h.remove(userID, conn)
	logger.Info().Str("u", userID).Msg("push connection opened")
	for {
		var msg []byte
		if err := websocket.Message.Receive(conn, &msg); err != nil {
			logger.Info().Str("u", userID).Msg("push connection closed")
			return
		}
		event := gjson.GetBytes(msg, "event")
		if !gjson.ValidBytes(msg) || event.Type != gjson.String {
			logger.Warn().Str("u", userID).Msg("ignoring malformed client frame")
			continue
		}
		logger.Debug().Str("u", userID).Str("event", event.Str).Msg("client frame")
		h.mu.Lock()
		onFrame := h.onFrame
		h.mu.Unlock()
		if onFrame != nil {
			onFrame(userID, event.Str, []byte(gjson.GetBytes(msg, "data").Raw))
		}
	}
}

// OnFrame registers fn to see every frame a client sends.
func (h *Hub) OnFrame(fn func(userID, event string, data []byte)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onFrame = fn
}

func (h *Hub) add(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.conns[userID]
	if !ok {
		set = make(map[*websocket.Conn]struct{})
		h.conns[userID] = set
	}
	set[conn] = struct{}{}
}

func (h *Hub) remove(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns[userID], conn)
	if len(h.conns[userID]) == 0 {
		delete(h.conns, userID)
	}
}

// Broadcast sends an event to every connection of userID, or to all connections when
// userID is empty. Returns how many connections it was written to.
func (h *Hub) Broadcast(userID, event string, data json.RawMessage) int {
	frame, _ := sjson.SetBytes([]byte(`{}`), "event", event)
	if len(data) > 0 {
		var err error
		frame, err = sjson.SetRawBytes(frame, "data", data)
		if err != nil {
			logger.Warn().Err(err).Str("event", event).Msg("cannot broadcast invalid data")
			return 0
		}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	delivered := 0
	for uid, set := range h.conns {
		if userID != "" && uid != userID {
			continue
		}
		for conn := range set {
			if err := websocket.Message.Send(conn, string(frame)); err != nil {
				logger.Warn().Err(err).Str("u", uid).Msg("broadcast write failed")
				continue
			}
			delivered++
		}
	}
	return delivered
}

// Users returns the sorted IDs of users with at least one open connection.
func (h *Hub) Users() []string {
	h.mu.Lock()
	users := maps.Keys(h.conns)
	h.mu.Unlock()
	slices.Sort(users)
	return users
}

// Connections returns how many connections userID has open.
func (h *Hub) Connections(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns[userID])
}

// Close drops every connection. Clients will redial.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.conns {
		for conn := range set {
			conn.Close()
		}
	}
}
