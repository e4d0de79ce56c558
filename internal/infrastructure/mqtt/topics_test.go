package mqtt

import (
	"errors"
	"strings"
	"testing"
)

func TestNewTopics(t *testing.T) {
	topics := NewTopics(testConfig())

	if topics.State() != "home/arduino/sensors" {
		t.Errorf("State() = %q", topics.State())
	}
	if topics.Control() != "home/arduino/control" {
		t.Errorf("Control() = %q", topics.Control())
	}
	if topics.Availability() != "home/arduino/status" {
		t.Errorf("Availability() = %q", topics.Availability())
	}

	required := topics.Required()
	if len(required) != 1 || required[0] != "home/arduino/control" {
		t.Errorf("Required() = %v, want [home/arduino/control]", required)
	}
}

func TestValidatePublishTopic(t *testing.T) {
	tests := []struct {
		topic   string
		wantErr bool
	}{
		{topic: "home/arduino/sensors"},
		{topic: "a"},
		{topic: "", wantErr: true},
		{topic: "home/+/sensors", wantErr: true},
		{topic: "home/#", wantErr: true},
		{topic: "home/\x00", wantErr: true},
		{topic: strings.Repeat("a", maxTopicLength+1), wantErr: true},
	}

	for _, tt := range tests {
		err := ValidatePublishTopic(tt.topic)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidatePublishTopic(%.20q) error = %v, wantErr %v", tt.topic, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidTopic) {
			t.Errorf("ValidatePublishTopic(%.20q) error = %v, want ErrInvalidTopic", tt.topic, err)
		}
	}
}

func TestValidateFilter(t *testing.T) {
	tests := []struct {
		filter  string
		wantErr bool
	}{
		{filter: "home/arduino/control"},
		{filter: "home/+/control"},
		{filter: "home/#"},
		{filter: "#"},
		{filter: "+"},
		{filter: "", wantErr: true},
		{filter: "home/#/control", wantErr: true},
		{filter: "home/a#", wantErr: true},
		{filter: "home/a+/control", wantErr: true},
	}

	for _, tt := range tests {
		err := ValidateFilter(tt.filter)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateFilter(%q) error = %v, wantErr %v", tt.filter, err, tt.wantErr)
		}
	}
}
