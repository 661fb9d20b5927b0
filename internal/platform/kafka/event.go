package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
)

// Metadata keys injected into the payload after decode. Handlers validate
// them like any other payload field; the DLQ envelope carries them along.
const (
	MetaTopic     = "_topic"
	MetaPartition = "_partition"
	MetaOffset    = "_offset"

	EventTypeField = "event_type"
)

// Event is a decoded broker record enriched with its coordinates.
type Event struct {
	Type      string
	Key       string
	Topic     string
	Partition int32
	Offset    int64
	Payload   map[string]any
}

// Coordinates renders the "<topic>:<partition>:<offset>" identity of the event.
func (e Event) Coordinates() string {
	return fmt.Sprintf("%s:%d:%d", e.Topic, e.Partition, e.Offset)
}

// decodeEvent parses a consumer record into an Event. The payload keeps the
// injected coordinate keys so a DLQ'd payload is self-describing. event_type
// defaults to the topic name when the producer omitted it.
func decodeEvent(msg *sarama.ConsumerMessage) (Event, error) {
	var payload map[string]any
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		return Event{}, fmt.Errorf("malformed payload: %w", err)
	}
	if payload == nil {
		payload = map[string]any{}
	}

	payload[MetaTopic] = msg.Topic
	payload[MetaPartition] = msg.Partition
	payload[MetaOffset] = msg.Offset

	eventType, _ := payload[EventTypeField].(string)
	if eventType == "" {
		eventType = msg.Topic
		payload[EventTypeField] = eventType
	}

	return Event{
		Type:      eventType,
		Key:       string(msg.Key),
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Payload:   payload,
	}, nil
}

// StringField returns payload[key] when it is a non-empty string.
func (e Event) StringField(key string) (string, bool) {
	v, ok := e.Payload[key].(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// StringList coerces payload[key] into a string slice. Returns ok=false when
// the field is present but not a list of strings.
func (e Event) StringList(key string) ([]string, bool) {
	raw, present := e.Payload[key]
	if !present || raw == nil {
		return nil, true
	}
	items, ok := raw.([]any)
	if !ok {
		if typed, ok := raw.([]string); ok {
			return typed, true
		}
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}
