// Package ingest decodes overlay payloads delivered by external readers.
//
// A payload looks like
//
//	{"id": "...", "name": "GR run 2", "color": "#aa3300", "samples": {"1200.5": 48.1, ...}}
//
// and may arrive as JSON or MessagePack. Decoding never fails: a payload
// that cannot be read yields an overlay with no samples, and individual
// entries whose depth or value cannot be read are dropped.
package ingest

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// Format identifies the payload encoding
type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// FormatFromContentType picks a format from an HTTP content type
func FormatFromContentType(contentType string) Format {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "msgpack") {
		return FormatMsgpack
	}
	return FormatJSON
}

// Overlay is a decoded overlay trace
type Overlay struct {
	ID     string
	Name   string
	Color  string
	Values map[float64]float64
}

type jsonPayload struct {
	ID      string                 `json:"id"`
	Name    string                 `json:"name"`
	Color   string                 `json:"color"`
	Samples map[string]interface{} `json:"samples"`
}

type msgpackPayload struct {
	ID      string                      `msgpack:"id"`
	Name    string                      `msgpack:"name"`
	Color   string                      `msgpack:"color"`
	Samples map[interface{}]interface{} `msgpack:"samples"`
}

// Decode reads a payload in the given format
func Decode(data []byte, format Format, logger *zap.SugaredLogger) Overlay {
	out := Overlay{Values: map[float64]float64{}}

	switch format {
	case FormatMsgpack:
		var p msgpackPayload
		if err := msgpack.NewDecoder(bytes.NewReader(data)).Decode(&p); err != nil {
			logger.Warnf("malformed msgpack overlay payload, using empty overlay: %v", err)
			return out
		}
		out.ID, out.Name, out.Color = p.ID, p.Name, p.Color
		for k, v := range p.Samples {
			add(out.Values, k, v)
		}
	default:
		var p jsonPayload
		if err := json.Unmarshal(data, &p); err != nil {
			logger.Warnf("malformed JSON overlay payload, using empty overlay: %v", err)
			return out
		}
		out.ID, out.Name, out.Color = p.ID, p.Name, p.Color
		for k, v := range p.Samples {
			add(out.Values, k, v)
		}
	}

	return out
}

func add(values map[float64]float64, key, value interface{}) {
	depth, ok := toFloat(key)
	if !ok {
		return
	}
	v, ok := toFloat(value)
	if !ok {
		return
	}
	values[depth] = v
}

// toFloat accepts numbers of any width and numeric strings
func toFloat(x interface{}) (float64, bool) {
	var f float64
	switch v := x.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int8:
		f = float64(v)
	case int16:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint:
		f = float64(v)
	case uint8:
		f = float64(v)
	case uint16:
		f = float64(v)
	case uint32:
		f = float64(v)
	case uint64:
		f = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
