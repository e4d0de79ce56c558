package publisher

import (
	"encoding/json"
	"math"
	"strconv"
)

// Snapshot is a point-in-time capture of device state.
type Snapshot struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	LED         bool    `json:"led"`
	Fan         bool    `json:"fan"`
	Mode        string  `json:"mode"`
}

// Encode renders s in the state message format.
//
// Non-finite readings (a failed sensor read) are encoded as 0.0 so the
// message stays valid JSON.
func Encode(s Snapshot) []byte {
	buf := make([]byte, 0, 96)
	buf = append(buf, `{"temperature":`...)
	buf = appendReading(buf, s.Temperature)
	buf = append(buf, `,"humidity":`...)
	buf = appendReading(buf, s.Humidity)
	buf = append(buf, `,"led":`...)
	buf = appendFlag(buf, s.LED)
	buf = append(buf, `,"fan":`...)
	buf = appendFlag(buf, s.Fan)
	buf = append(buf, `,"mode":`...)
	buf = appendString(buf, s.Mode)
	buf = append(buf, '}')
	return buf
}

func appendReading(buf []byte, v float64) []byte {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	return strconv.AppendFloat(buf, v, 'f', 1, 64)
}

func appendFlag(buf []byte, on bool) []byte {
	if on {
		return append(buf, '1')
	}
	return append(buf, '0')
}

// appendString appends v as a JSON string literal.
func appendString(buf []byte, v string) []byte {
	quoted, err := json.Marshal(v)
	if err != nil {
		// json.Marshal cannot fail for a string.
		return append(buf, `""`...)
	}
	return append(buf, quoted...)
}
