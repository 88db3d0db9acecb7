package stream

import "github.com/contentai-pro/dashboard-core/pubsub"

// EventListener handles the events a Client forwards.
type EventListener interface {
	OnCampaignUpdate(p *CampaignUpdate)
	OnContentGenerated(p *ContentGenerated)
	OnUnknown(p *Unknown)
}

// EventSub dispatches forwarded events from a pubsub.Listener to an EventListener.
type EventSub struct {
	listener pubsub.Listener
	receiver EventListener
}

func NewEventSub(l pubsub.Listener, recv EventListener) *EventSub {
	return &EventSub{
		listener: l,
		receiver: recv,
	}
}

func (v *EventSub) Teardown() {
	v.listener.Close()
}

func (v *EventSub) onMessage(p pubsub.Payload) {
	switch p.Type() {
	case CampaignUpdate{}.Type():
		v.receiver.OnCampaignUpdate(p.(*CampaignUpdate))
	case ContentGenerated{}.Type():
		v.receiver.OnContentGenerated(p.(*ContentGenerated))
	case Unknown{}.Type():
		v.receiver.OnUnknown(p.(*Unknown))
	default:
		logger.Warn().Str("type", p.Type()).Msg("EventSub: unexpected payload")
	}
}

// Listen blocks until the listener is closed.
func (v *EventSub) Listen() error {
	return v.listener.Listen(ChanStream, v.onMessage)
}
