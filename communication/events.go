package communication

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/NethermindEth/masp/logger"
	"github.com/NethermindEth/masp/utils"
)

// Event types
const (
	EventFeedEntry      = "FEED_ENTRY"
	EventStepCompleted  = "STEP_COMPLETED"
	EventAgentCreated   = "AGENT_CREATED"
	EventAgentRemoved   = "AGENT_REMOVED"
	EventFeedCleared    = "FEED_CLEARED"
	EventChainTx        = "CHAIN_TX"
	EventSimulationRun  = "SIMULATION_STARTED"
	EventSimulationHalt = "SIMULATION_STOPPED"
)

// Event is the envelope written to the feed log, NATS and websocket clients.
type Event struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewEvent encodes payload into an Event.
func NewEvent(eventType string, payload any) (Event, error) {
	ev := Event{Type: eventType, Timestamp: time.Now().UTC()}
	if payload == nil {
		return ev, nil
	}
	bz, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	ev.Payload = bz
	return ev, nil
}

func jsonEvent(ev Event) ([]byte, error) {
	bz, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", ev.Type, err)
	}
	return bz, nil
}

// Subject returns the NATS subject for an event type.
func Subject(prefix, eventType string) string {
	return prefix + "." + strings.ToLower(eventType)
}

// Publisher receives engine events. Publish must not block for long.
type Publisher interface {
	Publish(eventType string, payload any)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(string, any) {}

// Fanout forwards each event to every publisher in order.
type Fanout []Publisher

func (f Fanout) Publish(eventType string, payload any) {
	for _, p := range f {
		p.Publish(eventType, payload)
	}
}

// FeedLog appends events to a JSONL file that WatchFeedLog tails.
type FeedLog struct {
	Path string
	Log  *logger.Logger
}

func (f FeedLog) Publish(eventType string, payload any) {
	ev, err := NewEvent(eventType, payload)
	if err == nil {
		err = utils.AppendJSONLine(f.Path, ev)
	}
	if err != nil && f.Log != nil {
		f.Log.Error("feed log", "%v", err)
	}
}
