package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/manutencao/internal/model"
)

type fakeToken struct {
	mqtt.Token
	done chan struct{}
	err  error
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	mqtt.Client
	sent         []published
	err          error
	hang         bool
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.sent = append(c.sent, published{topic, qos, retained, payload.([]byte)})
	tok := &fakeToken{done: make(chan struct{}), err: c.err}
	if !c.hang {
		close(tok.done)
	}
	return tok
}

func (c *fakeClient) Disconnect(uint) { c.disconnected = true }

func TestPublishStatus(t *testing.T) {
	client := &fakeClient{}
	p := NewMQTTPublisher(client, "planta1/", 1, time.Second)

	updated := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	r := model.Request{
		ID:          "r1",
		Status:      model.StatusDone,
		Machine:     "Forno 01",
		Sector:      "Fundição",
		RequesterID: "1001",
		CreatedAt:   updated.Add(-time.Hour),
		UpdatedAt:   &updated,
	}

	require.NoError(t, p.PublishStatus(context.Background(), EventFor(r)))
	require.Len(t, client.sent, 1)

	msg := client.sent[0]
	assert.Equal(t, "planta1/requests/r1/status", msg.topic)
	assert.Equal(t, byte(1), msg.qos)
	assert.True(t, msg.retained)

	var ev StatusEvent
	require.NoError(t, json.Unmarshal(msg.payload, &ev))
	assert.Equal(t, model.StatusDone, ev.Status)
	assert.Equal(t, "Forno 01", ev.Machine)
	assert.True(t, ev.UpdatedAt.Equal(updated))

	p.Close()
	assert.True(t, client.disconnected)
}

func TestPublishStatusBrokerError(t *testing.T) {
	client := &fakeClient{err: errors.New("not connected")}
	p := NewMQTTPublisher(client, "", 0, time.Second)

	err := p.PublishStatus(context.Background(), StatusEvent{ID: "r1"})
	require.Error(t, err)
	assert.Equal(t, "requests/r1/status", client.sent[0].topic)
}

func TestPublishStatusTimesOut(t *testing.T) {
	client := &fakeClient{hang: true}
	p := NewMQTTPublisher(client, "x", 0, 10*time.Millisecond)

	err := p.PublishStatus(context.Background(), StatusEvent{ID: "r1"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEventForWithoutUpdate(t *testing.T) {
	created := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	ev := EventFor(model.Request{ID: "r1", Status: model.StatusPending, CreatedAt: created})
	assert.True(t, ev.UpdatedAt.Equal(created))
}
