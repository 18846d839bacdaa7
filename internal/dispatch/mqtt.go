package dispatch

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"autopid/internal/config"
)

// mqttSink publishes the JSON snapshot to a broker topic, covering
// both "mqtt_topic" (general telemetry) and "mqtt_wallbox" (the
// wallbox-specific topic shape) destination types. The Dispatcher
// sends both the same raw per-destination snapshot; the only
// wallbox-specific payload shaping is the scheduler's per-parameter
// publish (internal/scheduler).
type mqttSink struct {
	client mqtt.Client
	topic  string
}

func newMQTTSink(dc config.DestinationConfig) (*mqttSink, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(dc.BrokerURL).
		SetClientID(fmt.Sprintf("autopid-%s", dc.Type)).
		SetConnectTimeout(5 * time.Second).
		SetAutoReconnect(true)
	if dc.Auth.User != "" {
		opts.SetUsername(dc.Auth.User)
		opts.SetPassword(dc.Auth.Pass)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("dispatch: mqtt connect: %w", token.Error())
	}

	return &mqttSink{client: client, topic: dc.URLOrTopic}, nil
}

func (s *mqttSink) Send(payload []byte) error {
	token := s.client.Publish(s.topic, 0, false, payload)
	token.Wait()
	return token.Error()
}

func (s *mqttSink) Close() error {
	s.client.Disconnect(250)
	return nil
}
