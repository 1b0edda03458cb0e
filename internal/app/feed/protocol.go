package feed

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Phoenix channel events spoken between the realtime gateway and its clients.
const (
	EventJoin      = "phx_join"
	EventLeave     = "phx_leave"
	EventReply     = "phx_reply"
	EventError     = "phx_error"
	EventClose     = "phx_close"
	EventHeartbeat = "heartbeat"
	EventChanges   = "postgres_changes"

	// HeartbeatTopic is the topic heartbeats are sent on.
	HeartbeatTopic = "phoenix"

	// TopicPrefix prefixes every channel topic on the wire.
	TopicPrefix = "realtime:"

	ReplyOK    = "ok"
	ReplyError = "error"
)

// Frame is the envelope of every message exchanged with the realtime gateway.
type Frame struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref,omitempty"`
}

type JoinPayload struct {
	Config struct {
		PostgresChanges []ChangeFilter `json:"postgres_changes"`
	} `json:"config"`
	AccessToken string `json:"access_token,omitempty"`
}

type ChangeFilter struct {
	Event  string `json:"event"`
	Schema string `json:"schema"`
	Table  string `json:"table"`
	Filter string `json:"filter"`
}

type ReplyPayload struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

type ChangesPayload struct {
	Data Event `json:"data"`
}

// Reply builds the acknowledgement of the frame with ref on topic.
func Reply(topic, ref, status string, response any) (Frame, error) {
	body, err := json.Marshal(response)
	if err != nil {
		return Frame{}, err
	}
	payload, err := json.Marshal(ReplyPayload{Status: status, Response: body})
	if err != nil {
		return Frame{}, err
	}
	return Frame{Topic: topic, Event: EventReply, Payload: payload, Ref: ref}, nil
}

// ParseTopic rebuilds the Topic a client joined from its wire topic and change filter.
// Only INSERT filters of the column=eq.value form are understood.
func ParseTopic(wireTopic string, f ChangeFilter) (Topic, error) {
	name, ok := strings.CutPrefix(wireTopic, TopicPrefix)
	if !ok || name == "" {
		return Topic{}, fmt.Errorf("unexpected topic %q", wireTopic)
	}
	if f.Event != OpInsert {
		return Topic{}, fmt.Errorf("unsupported change event %q", f.Event)
	}

	column, value, ok := strings.Cut(f.Filter, "=eq.")
	if !ok || column == "" || value == "" || f.Table == "" {
		return Topic{}, fmt.Errorf("unsupported filter %q", f.Filter)
	}

	return Topic{Name: name, Table: f.Table, Column: column, Value: value}, nil
}
