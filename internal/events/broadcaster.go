package events

import (
	"encoding/json"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/boomsapp/boomsd/internal/core/pipeline"
	"github.com/boomsapp/boomsd/internal/events/journal"
)

// StreamMessage is the wire shape of one broadcast on one stream.
type StreamMessage struct {
	Type    string                 `json:"type"`
	Stream  Stream                 `json:"stream"`
	Seq     uint64                 `json:"seq,omitempty"`
	UserID  int64                  `json:"user_id,omitempty"`
	BoomID  int64                  `json:"boom_id,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	At      time.Time              `json:"at"`
}

// Broadcaster journals committed pipeline events and fans them out to
// the hub. It is the post-commit sink of the pipeline runner: Publish
// never returns an error to the caller, a committed transaction does
// not care whether its broadcast landed.
type Broadcaster struct {
	hub     *Hub
	journal *journal.Journal
	logger  *log.Logger
}

// NewBroadcaster wires a broadcaster over the hub. A nil journal
// disables persistence; messages then carry no sequence numbers.
func NewBroadcaster(hub *Hub, j *journal.Journal, logger *log.Logger) *Broadcaster {
	if logger == nil {
		logger = log.Default()
	}
	return &Broadcaster{hub: hub, journal: j, logger: logger}
}

// Publish delivers one committed event to every stream it scopes.
func (b *Broadcaster) Publish(event pipeline.Event) {
	streams := streamsFor(event)
	if len(streams) == 0 {
		return
	}

	var g errgroup.Group
	for _, stream := range streams {
		stream := stream
		g.Go(func() error { return b.deliver(stream, event) })
	}
	if err := g.Wait(); err != nil {
		b.logger.Printf("events: broadcast %s: %v", event.Type, err)
	}
}

func (b *Broadcaster) deliver(stream Stream, event pipeline.Event) error {
	msg := StreamMessage{
		Type:    string(event.Type),
		Stream:  stream,
		UserID:  event.UserID,
		BoomID:  event.BoomID,
		Payload: event.Payload,
		At:      event.At,
	}

	if b.journal != nil {
		seq, err := b.journal.Append(string(stream), &journal.Record{
			Type:    string(event.Type),
			UserID:  event.UserID,
			BoomID:  event.BoomID,
			Payload: event.Payload,
			At:      event.At,
		})
		if err != nil {
			return err
		}
		msg.Seq = seq
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	b.hub.BroadcastToStream(stream, data)
	return nil
}

// streamsFor maps an event to the streams it belongs on. Treasury
// updates stay on the admin stream; everything else is scoped by the
// user and BOOM it names.
func streamsFor(event pipeline.Event) []Stream {
	if event.Type == pipeline.EventTreasuryUpdate {
		return []Stream{StreamTreasury}
	}
	var streams []Stream
	if event.UserID != 0 {
		streams = append(streams, UserStream(event.UserID))
	}
	if event.BoomID != 0 {
		streams = append(streams, BoomStream(event.BoomID))
	}
	return streams
}

var _ pipeline.Sink = (*Broadcaster)(nil)
