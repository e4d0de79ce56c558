package node

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/nerrad567/gray-logic-node/internal/publisher"
)

// FileSnapshotSource reads the latest readings from a JSON file written by
// the sensor collaborator:
//
//	{"temperature":23.5,"humidity":41.2,"led":true,"fan":0,"mode":"auto"}
//
// led and fan accept booleans or 0/1.
type FileSnapshotSource struct {
	Path string
}

// fileSnapshot mirrors the sensor file; flags decode via flag.
type fileSnapshot struct {
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	LED         flag     `json:"led"`
	Fan         flag     `json:"fan"`
	Mode        string   `json:"mode"`
}

// Snapshot reads and decodes the file.
func (s FileSnapshotSource) Snapshot(_ context.Context) (publisher.Snapshot, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return publisher.Snapshot{}, fmt.Errorf("reading snapshot file: %w", err)
	}

	var raw fileSnapshot
	if err := json.Unmarshal(data, &raw); err != nil {
		return publisher.Snapshot{}, fmt.Errorf("decoding snapshot file %s: %w", s.Path, err)
	}
	if raw.Temperature == nil || raw.Humidity == nil {
		return publisher.Snapshot{}, fmt.Errorf("snapshot file %s: temperature and humidity are required", s.Path)
	}

	return publisher.Snapshot{
		Temperature: *raw.Temperature,
		Humidity:    *raw.Humidity,
		LED:         bool(raw.LED),
		Fan:         bool(raw.Fan),
		Mode:        raw.Mode,
	}, nil
}

// flag decodes true/false or a number (non-zero is on).
type flag bool

func (f *flag) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flag(b)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("flag must be a boolean or number, got %s", data)
	}
	*f = n != 0
	return nil
}
