package feed

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mrcode/glucose-widget/internal/models"
)

// Normalizer errors
var (
	ErrUnsupportedResponseType = errors.New("unsupported response type")
	ErrInvalidTimestamp        = errors.New("invalid measurement timestamp")
)

// Kind tells which endpoint a payload came from
type Kind int

// Payload kinds
const (
	KindUnknown Kind = iota
	KindCurrent
	KindGraph
)

func (k Kind) String() string {
	switch k {
	case KindCurrent:
		return "current"
	case KindGraph:
		return "graph"
	default:
		return "unknown"
	}
}

// Measurement is one glucose sample as served by the upstream API
type Measurement struct {
	Value          float64 `json:"Value"`
	Timestamp      string  `json:"Timestamp"`
	ValueInMgPerDl float64 `json:"ValueInMgPerDl"`
	IsHigh         bool    `json:"isHigh"`
	IsLow          bool    `json:"isLow"`
}

// Payload is a decoded upstream response. Kind selects which variant is set.
type Payload struct {
	Kind    Kind
	Current *Measurement
	Graph   []Measurement
}

// CurrentPayload wraps a single measurement
func CurrentPayload(m Measurement) Payload {
	return Payload{Kind: KindCurrent, Current: &m}
}

// GraphPayload wraps a measurement window
func GraphPayload(ms []Measurement) Payload {
	return Payload{Kind: KindGraph, Graph: ms}
}

// Accepted upstream timestamp layouts; zone-less ones are read as local time
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"1/2/2006 3:04:05 PM",
}

// ParseTimestamp converts an upstream timestamp to Unix milliseconds
func ParseTimestamp(s string) (int64, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		t, err := time.ParseInLocation(layout, s, time.Local)
		if err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
}

// toReading maps a measurement to the canonical reading. The upstream carries
// no direction hint, so Direction stays empty.
func toReading(m Measurement) (models.Reading, error) {
	ts, err := ParseTimestamp(m.Timestamp)
	if err != nil {
		return models.Reading{}, err
	}
	return models.Reading{Value: m.Value, Timestamp: ts}, nil
}

// Normalize maps a payload to readings. A graph payload yields its valid
// measurements newest first, skipping unparseable timestamps; a current
// payload yields exactly one reading.
func Normalize(p Payload) ([]models.Reading, error) {
	switch p.Kind {
	case KindGraph:
		readings := make([]models.Reading, 0, len(p.Graph))
		for _, m := range p.Graph {
			r, err := toReading(m)
			if err != nil {
				continue
			}
			readings = append(readings, r)
		}
		sort.SliceStable(readings, func(i, j int) bool {
			return readings[i].Timestamp > readings[j].Timestamp
		})
		return readings, nil

	case KindCurrent:
		if p.Current == nil {
			return nil, fmt.Errorf("%w: current payload without measurement", ErrUnsupportedResponseType)
		}
		r, err := toReading(*p.Current)
		if err != nil {
			return nil, err
		}
		return []models.Reading{r}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedResponseType, p.Kind)
	}
}
