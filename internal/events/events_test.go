package events

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopic(t *testing.T) {
	e := Event{ProjectID: "p1", RehearsalID: "r1"}
	assert.Equal(t, "troupe/projects/p1/rehearsals/r1", Topic(e))
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), Event{}))
}

func TestMQTTPublishRoundTrip(t *testing.T) {
	broker := os.Getenv("MQTT_BROKER_URL")
	if broker == "" {
		t.Skip("MQTT_BROKER_URL not set")
	}

	sub, err := NewMQTTClient(broker, "troupe-test-sub-"+uuid.NewString())
	require.NoError(t, err)
	defer sub.Disconnect(250)

	received := make(chan Event, 1)
	token := sub.Subscribe("troupe/projects/+/rehearsals/#", 1, func(_ mqtt.Client, msg mqtt.Message) {
		var e Event
		if json.Unmarshal(msg.Payload(), &e) == nil {
			received <- e
		}
	})
	require.True(t, token.WaitTimeout(5*time.Second))
	require.NoError(t, token.Error())

	client, err := NewMQTTClient(broker, "troupe-test-pub-"+uuid.NewString())
	require.NoError(t, err)
	pub := NewMQTTPublisher(client)
	defer pub.Close()

	sent := Event{Type: RehearsalBooked, ProjectID: "p1", RehearsalID: uuid.NewString(), Members: []string{"u1"}, Booked: 1}
	require.NoError(t, pub.Publish(context.Background(), sent))

	select {
	case got := <-received:
		assert.Equal(t, sent.RehearsalID, got.RehearsalID)
		assert.Equal(t, RehearsalBooked, got.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("event not received")
	}
}
