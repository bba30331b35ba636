package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const publishTimeout = 2 * time.Second

// MQTT publishes retained JSON messages under <prefix>/sensors/<slug> and
// <prefix>/devices/<slug>.
type MQTT struct {
	client mqtt.Client
	prefix string
	log    *zap.SugaredLogger
}

// DialMQTT connects to broker, retrying with exponential backoff until
// ctx is done or the retries run out.
func DialMQTT(ctx context.Context, broker, clientID, prefix string, log *zap.SugaredLogger) (*MQTT, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warnw("mqtt connection lost", "err", err)
	})

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second

	var client mqtt.Client
	err := backoff.Retry(func() error {
		client = mqtt.NewClient(opts)
		token := client.Connect()
		if token.Wait() && token.Error() != nil {
			log.Warnw("failed to connect to mqtt broker", "broker", broker, "err", token.Error())
			return token.Error()
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, 5), ctx))
	if err != nil {
		return nil, errors.Wrapf(err, "could not connect to mqtt broker %s", broker)
	}

	log.Infow("connected to mqtt broker", "broker", broker)
	return &MQTT{client: client, prefix: prefix, log: log}, nil
}

func (m *MQTT) SensorReading(_ context.Context, r Reading) {
	m.publish(fmt.Sprintf("%s/sensors/%s", m.prefix, Slug(r.Sensor)), r)
}

func (m *MQTT) DeviceState(_ context.Context, s DeviceState) {
	m.publish(fmt.Sprintf("%s/devices/%s", m.prefix, Slug(s.Device)), s)
}

func (m *MQTT) publish(topic string, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		m.log.Errorw("encoding mqtt payload", "topic", topic, "err", err)
		return
	}
	token := m.client.Publish(topic, 0, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		m.log.Warnw("mqtt publish timed out", "topic", topic)
		return
	}
	if err := token.Error(); err != nil {
		m.log.Warnw("mqtt publish failed", "topic", topic, "err", err)
	}
}

// Close disconnects from the broker.
func (m *MQTT) Close() {
	if m.client.IsConnected() {
		m.client.Disconnect(250)
	}
}
