package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

const publishTimeout = 5 * time.Second

// Topic is where devices showing the schedule listen for timeline changes.
func Topic(lookupCode string) string {
	return fmt.Sprintf("signage/schedules/%s/timeline", lookupCode)
}

// TimelineChanged tells devices to refetch their timeline.
type TimelineChanged struct {
	Type       string `json:"type"`
	LookupCode string `json:"lookup_code"`
	ScheduleID int    `json:"schedule_id"`
	ItemID     int    `json:"item_id,omitempty"`
	Adjusted   []int  `json:"adjusted,omitempty"`
	Removed    []int  `json:"removed,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Publisher sends timeline notifications over MQTT. A nil *Publisher drops
// every message.
type Publisher struct {
	client client
}

var connectHandler mqtt.OnConnectHandler = func(client mqtt.Client) {
	log.Info().Msg("connected to MQTT broker")
}

var connectLostHandler mqtt.ConnectionLostHandler = func(client mqtt.Client, err error) {
	log.Warn().Err(err).Msg("MQTT connection lost")
}

// Connect dials the broker and keeps reconnecting in the background.
func Connect(brokerURL, clientID string) (*Publisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.OnConnect = connectHandler
	opts.OnConnectionLost = connectLostHandler

	c := mqtt.NewClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return &Publisher{client: c}, nil
}

func NewPublisher(c mqtt.Client) *Publisher {
	return &Publisher{client: c}
}

// Publish sends msg as a retained QoS 1 message so devices that connect later
// still see the most recent change.
func (p *Publisher) Publish(ctx context.Context, msg TimelineChanged) error {
	if p == nil {
		return nil
	}
	if msg.Type == "" {
		msg.Type = "timeline_changed"
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().Unix()
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	topic := Topic(msg.LookupCode)
	token := p.client.Publish(topic, 1, true, payload)

	timeout := publishTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	log.Debug().Str("topic", topic).Int("schedule_id", msg.ScheduleID).Msg("timeline change published")
	return nil
}

func (p *Publisher) Close() {
	if p == nil {
		return
	}
	p.client.Disconnect(250)
	log.Info().Msg("MQTT client disconnected")
}
