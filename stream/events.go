package stream

import (
	"encoding/json"
	"time"

	"github.com/tidwall/gjson"
)

// Inbound event names.
const (
	EventNotification     = "notification"
	EventCampaignUpdate   = "campaign_update"
	EventContentGenerated = "content_generated"
)

// ChanStream is the pubsub channel forwarded events are published on.
const ChanStream = "streamch"

// Notification is a server notification kept in the client's log.
type Notification struct {
	ID      string
	Kind    string
	Title   string
	Message string
	// Data is the payload as sent by the server.
	Data json.RawMessage
	// ReceivedAt is when the client got it.
	ReceivedAt time.Time
}

func (n Notification) Type() string { return EventNotification }

// CampaignUpdate is forwarded unprocessed to downstream subscribers.
type CampaignUpdate struct {
	CampaignID string
	Status     string
	Data       json.RawMessage
}

func (c CampaignUpdate) Type() string { return EventCampaignUpdate }

// ContentGenerated is forwarded unprocessed to downstream subscribers.
type ContentGenerated struct {
	ContentID  string
	CampaignID string
	Data       json.RawMessage
}

func (c ContentGenerated) Type() string { return EventContentGenerated }

// Unknown is any event this client does not know about yet.
type Unknown struct {
	Event string
	Data  json.RawMessage
}

func (u Unknown) Type() string { return "unknown" }

// Event is one of *Notification, *CampaignUpdate, *ContentGenerated or *Unknown.
type Event interface {
	Type() string
}

// decodeEvent turns an inbound frame into its variant. data is the raw JSON value of the
// frame's "data" field and may be empty.
func decodeEvent(event string, data []byte, receivedAt time.Time) Event {
	raw := json.RawMessage(nil)
	if len(data) > 0 {
		raw = append(json.RawMessage(nil), data...)
	}
	payload := gjson.ParseBytes(data)
	switch event {
	case EventNotification:
		n := &Notification{
			Data:       raw,
			ReceivedAt: receivedAt,
		}
		if payload.Type == gjson.String {
			// bare string notifications are just a message
			n.Message = payload.Str
			return n
		}
		n.ID = payload.Get("id").String()
		n.Kind = payload.Get("type").Str
		n.Title = payload.Get("title").Str
		n.Message = payload.Get("message").Str
		return n
	case EventCampaignUpdate:
		return &CampaignUpdate{
			CampaignID: firstString(payload, "campaignId", "campaign_id", "id"),
			Status:     payload.Get("status").Str,
			Data:       raw,
		}
	case EventContentGenerated:
		return &ContentGenerated{
			ContentID:  firstString(payload, "contentId", "content_id", "id"),
			CampaignID: firstString(payload, "campaignId", "campaign_id"),
			Data:       raw,
		}
	default:
		return &Unknown{
			Event: event,
			Data:  raw,
		}
	}
}

func firstString(res gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := res.Get(p); v.Exists() {
			return v.String()
		}
	}
	return ""
}
