package mqtt

import (
	"fmt"
	"strings"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
)

// Availability payloads published on the availability topic.
const (
	// PayloadOnline is published (retained) once subscriptions are in place.
	PayloadOnline = "online"

	// PayloadOffline is the Last Will and the graceful shutdown payload.
	PayloadOffline = "offline"
)

// maxTopicLength is the MQTT limit on topic length in bytes.
const maxTopicLength = 65535

// Topics holds the node's configured MQTT topics.
//
//	topics := mqtt.NewTopics(cfg.MQTT)
//	topics.State()   // "home/arduino/sensors"
//	topics.Control() // "home/arduino/control"
type Topics struct {
	state        string
	control      string
	availability string
}

// NewTopics builds Topics from configuration.
func NewTopics(cfg config.MQTTConfig) Topics {
	return Topics{
		state:        cfg.Topics.State,
		control:      cfg.Topics.Control,
		availability: cfg.Topics.Availability,
	}
}

// State returns the topic the sensor snapshot is published on.
func (t Topics) State() string { return t.state }

// Control returns the topic inbound actuator commands arrive on.
func (t Topics) Control() string { return t.control }

// Availability returns the retained online/offline topic.
func (t Topics) Availability() string { return t.availability }

// Required returns the subscriptions that must hold whenever the session is connected.
func (t Topics) Required() []string {
	return []string{t.control}
}

// ValidatePublishTopic checks a topic name used for publishing.
//
// Publish topics must be non-empty, within the MQTT length limit, and free
// of wildcards and NUL characters.
func ValidatePublishTopic(topic string) error {
	if err := validateCommon(topic); err != nil {
		return err
	}
	if strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("%w: wildcards not allowed in publish topic %q", ErrInvalidTopic, topic)
	}
	return nil
}

// ValidateFilter checks a subscription topic filter.
//
// '+' must occupy a whole level and '#' must be the final level.
func ValidateFilter(filter string) error {
	if err := validateCommon(filter); err != nil {
		return err
	}

	levels := strings.Split(filter, "/")
	for i, level := range levels {
		if strings.Contains(level, "#") && (level != "#" || i != len(levels)-1) {
			return fmt.Errorf("%w: '#' must be the last level in %q", ErrInvalidTopic, filter)
		}
		if strings.Contains(level, "+") && level != "+" {
			return fmt.Errorf("%w: '+' must occupy a whole level in %q", ErrInvalidTopic, filter)
		}
	}
	return nil
}

func validateCommon(topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: topic cannot be empty", ErrInvalidTopic)
	}
	if len(topic) > maxTopicLength {
		return fmt.Errorf("%w: topic exceeds %d bytes", ErrInvalidTopic, maxTopicLength)
	}
	if strings.ContainsRune(topic, 0) {
		return fmt.Errorf("%w: topic contains NUL", ErrInvalidTopic)
	}
	return nil
}
