package mqtt

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/ericogr/sensehat-weather/pkg/config"
	"github.com/ericogr/sensehat-weather/pkg/output"
	"github.com/ericogr/sensehat-weather/pkg/sensor"
)

const (
	// defaults
	perKindTopicFmt = "sensehat/%s"
	// discovery payload keys/values
	keyName                = "name"
	keyStateTopic          = "state_topic"
	keyUnitOfMeasurement   = "unit_of_measurement"
	keyDeviceClass         = "device_class"
	keyStateClass          = "state_class"
	keyValueTemplate       = "value_template"
	keyJSONAttributesTopic = "json_attributes_topic"
	keyUniqueID            = "unique_id"
	stateClassMeasurement  = "measurement"
	valueTemplate          = "{{ value_json.value }}"
)

// publisher is the part of the paho client the output uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

type MQTTOutput struct {
	client     publisher
	stateTopic string
}

type statePayload struct {
	Value     float64   `json:"value"`
	Unit      string    `json:"unit"`
	Timestamp time.Time `json:"timestamp"`
}

func NewMQTT(cfg config.MQTTConfig) (output.Output, error) {
	opts := mqtt.NewClientOptions().AddBroker(cfg.Server).SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	log.Printf("mqtt: connected to %s", cfg.Server)

	m := &MQTTOutput{client: client, stateTopic: cfg.StateTopic}
	m.publishDiscovery(cfg)
	return m, nil
}

// publishDiscovery sends retained Home Assistant discovery payloads, one per
// reading kind when the discovery topic carries a %s formatter.
func (m *MQTTOutput) publishDiscovery(cfg config.MQTTConfig) {
	if cfg.DiscoveryTopic == "" {
		return
	}
	if !strings.Contains(cfg.DiscoveryTopic, "%s") {
		name := discoveryName(cfg, "")
		payload := baseDiscoveryPayload(name, formatStateTopic(m.stateTopic, sensor.Temperature), discoveryUniqueID(cfg, ""))
		payload[keyDeviceClass] = sensor.Temperature.DeviceClass()
		payload[keyUnitOfMeasurement] = sensor.Temperature.Unit()
		if err := publishJSON(m.client, cfg.DiscoveryTopic, true, payload); err != nil {
			log.Printf("mqtt discovery publish error: %v", err)
		}
		return
	}
	for _, k := range sensor.Kinds {
		dTopic := fmt.Sprintf(cfg.DiscoveryTopic, k)
		payload := baseDiscoveryPayload(discoveryName(cfg, k), formatStateTopic(m.stateTopic, k), discoveryUniqueID(cfg, k))
		payload[keyDeviceClass] = k.DeviceClass()
		payload[keyUnitOfMeasurement] = k.Unit()
		if err := publishJSON(m.client, dTopic, true, payload); err != nil {
			log.Printf("mqtt discovery publish error: %v", err)
		}
	}
}

// Publish sends one state message per reading. Non-finite values have no
// JSON form; that kind is skipped for the cycle.
func (m *MQTTOutput) Publish(readings []sensor.Reading) error {
	for _, r := range readings {
		topic := formatStateTopic(m.stateTopic, r.Kind)
		if !sensor.Finite(r.Value) {
			log.Printf("mqtt: skipping %s, value %v", topic, r.Value)
			continue
		}
		b, err := json.Marshal(statePayload{Value: r.Value, Unit: r.Kind.Unit(), Timestamp: r.Timestamp})
		if err != nil {
			return err
		}
		token := m.client.Publish(topic, 0, false, b)
		token.Wait()
		if token.Error() != nil {
			return fmt.Errorf("mqtt publish %s: %w", topic, token.Error())
		}
	}
	return nil
}

func (m *MQTTOutput) Close() error {
	if m.client != nil {
		m.client.Disconnect(250)
	}
	return nil
}

// helper: format a state topic for a kind using an optional formatter
func formatStateTopic(base string, k sensor.Kind) string {
	if base != "" {
		if strings.Contains(base, "%s") {
			return fmt.Sprintf(base, k)
		}
		return strings.TrimSuffix(base, "/") + "/" + string(k)
	}
	return fmt.Sprintf(perKindTopicFmt, k)
}

// helper: build a human-friendly discovery name; append the kind when set
func discoveryName(cfg config.MQTTConfig, k sensor.Kind) string {
	name := cfg.DiscoveryName
	if name == "" {
		name = fmt.Sprintf("Sense HAT %s", cfg.ClientID)
	}
	if k != "" {
		name = fmt.Sprintf("%s %s", name, k)
	}
	return name
}

// helper: build a unique id for discovery; append the kind when set
func discoveryUniqueID(cfg config.MQTTConfig, k sensor.Kind) string {
	uid := cfg.DiscoveryUniqueID
	if uid == "" {
		uid = cfg.ClientID
	}
	if uid != "" && k != "" {
		uid = fmt.Sprintf("%s_%s", uid, k)
	}
	return uid
}

// helper: base discovery payload map common to all entries
func baseDiscoveryPayload(name, stateTopic, uniqueID string) map[string]interface{} {
	payload := map[string]interface{}{
		keyName:                name,
		keyStateTopic:          stateTopic,
		keyStateClass:          stateClassMeasurement,
		keyValueTemplate:       valueTemplate,
		keyJSONAttributesTopic: stateTopic,
	}
	if uniqueID != "" {
		payload[keyUniqueID] = uniqueID
	}
	return payload
}

// helper: marshal and publish JSON payload
func publishJSON(client publisher, topic string, retained bool, payload map[string]interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	token := client.Publish(topic, 0, retained, b)
	token.Wait()
	return token.Error()
}
