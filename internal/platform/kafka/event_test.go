package kafka

import (
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEventInjectsCoordinates(t *testing.T) {
	msg := &sarama.ConsumerMessage{
		Topic:     "crm.customer.created",
		Partition: 3,
		Offset:    120,
		Key:       []byte("tenant-1"),
		Value:     []byte(`{"customer_id":"c-9","name":"Acme"}`),
	}

	evt, err := decodeEvent(msg)
	require.NoError(t, err)

	assert.Equal(t, "crm.customer.created", evt.Topic)
	assert.Equal(t, int32(3), evt.Partition)
	assert.Equal(t, int64(120), evt.Offset)
	assert.Equal(t, "tenant-1", evt.Key)
	assert.Equal(t, "crm.customer.created:3:120", evt.Coordinates())

	assert.Equal(t, "crm.customer.created", evt.Payload[MetaTopic])
	assert.Equal(t, int32(3), evt.Payload[MetaPartition])
	assert.Equal(t, int64(120), evt.Payload[MetaOffset])
}

func TestDecodeEventDefaultsEventTypeToTopic(t *testing.T) {
	msg := &sarama.ConsumerMessage{
		Topic: "identity.tenant.created",
		Value: []byte(`{"tenant_id":"t-1"}`),
	}

	evt, err := decodeEvent(msg)
	require.NoError(t, err)
	assert.Equal(t, "identity.tenant.created", evt.Type)
	assert.Equal(t, "identity.tenant.created", evt.Payload[EventTypeField])
}

func TestDecodeEventKeepsExplicitEventType(t *testing.T) {
	msg := &sarama.ConsumerMessage{
		Topic: "crm.customer.updated",
		Value: []byte(`{"event_type":"customer.address_changed"}`),
	}

	evt, err := decodeEvent(msg)
	require.NoError(t, err)
	assert.Equal(t, "customer.address_changed", evt.Type)
}

func TestDecodeEventMalformed(t *testing.T) {
	for _, body := range []string{"{truncated", "[]", `"a string"`, ""} {
		_, err := decodeEvent(&sarama.ConsumerMessage{Topic: "t", Value: []byte(body)})
		assert.Error(t, err, "body %q", body)
	}
}

func TestEventStringField(t *testing.T) {
	evt := Event{Payload: map[string]any{"name": "Acme", "count": float64(3), "empty": ""}}

	v, ok := evt.StringField("name")
	assert.True(t, ok)
	assert.Equal(t, "Acme", v)

	_, ok = evt.StringField("count")
	assert.False(t, ok)

	_, ok = evt.StringField("empty")
	assert.False(t, ok)

	_, ok = evt.StringField("missing")
	assert.False(t, ok)
}

func TestEventStringList(t *testing.T) {
	evt := Event{Payload: map[string]any{
		"visibility_list": []any{"t-1", "t-2"},
		"mixed":           []any{"t-1", 7},
		"scalar":          "t-1",
	}}

	got, ok := evt.StringList("visibility_list")
	assert.True(t, ok)
	assert.Equal(t, []string{"t-1", "t-2"}, got)

	got, ok = evt.StringList("absent")
	assert.True(t, ok)
	assert.Nil(t, got)

	_, ok = evt.StringList("mixed")
	assert.False(t, ok)

	_, ok = evt.StringList("scalar")
	assert.False(t, ok)
}
