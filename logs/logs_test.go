package logs

import (
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
)

func TestFilterPattern(t *testing.T) {
	tests := []struct {
		name     string
		event    string
		extra    map[string]string
		expected string
	}{
		{
			name:     "event only",
			event:    "price_update",
			expected: `{ ( $.event = "price_update" ) }`,
		},
		{
			name:     "single extra property",
			event:    "price_update",
			extra:    map[string]string{"body.price_area": "NL"},
			expected: `{ ( $.event = "price_update" ) && ( $.body.price_area = "NL" ) }`,
		},
		{
			name:  "extra properties are ordered",
			event: "price_update",
			extra: map[string]string{
				"body.price_area": "NL",
				"body.currency":   "EUR",
			},
			expected: `{ ( $.event = "price_update" ) && ( $.body.currency = "EUR" ) && ( $.body.price_area = "NL" ) }`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := filterPattern(tt.event, tt.extra)
			if result != tt.expected {
				t.Errorf("filterPattern() = %s, want %s", result, tt.expected)
			}
		})
	}
}

func TestFilterPatternIsDeterministic(t *testing.T) {
	extra := map[string]string{"a": "1", "b": "2", "c": "3", "d": "4"}

	first := filterPattern("event", extra)
	for i := 0; i < 20; i++ {
		if got := filterPattern("event", extra); got != first {
			t.Fatalf("filterPattern() order varies between calls: %s vs %s", got, first)
		}
	}
}

func TestDecodeLogEvent(t *testing.T) {
	timestamp := time.Date(2026, 2, 28, 15, 25, 2, 0, time.UTC)
	ingestion := timestamp.Add(time.Second)

	event := decodeLogEvent(
		aws.String("stream-1"),
		aws.String("e1"),
		aws.Int64(timestamp.UnixMilli()),
		aws.Int64(ingestion.UnixMilli()),
		aws.String(`{"event": "price_update", "body": {"price_area": "NL"}}`),
	)

	if event.LogStreamName != "stream-1" {
		t.Errorf("LogStreamName = %q, want stream-1", event.LogStreamName)
	}
	if event.EventID != "e1" {
		t.Errorf("EventID = %q, want e1", event.EventID)
	}
	if !event.Timestamp.Equal(timestamp) {
		t.Errorf("Timestamp = %v, want %v", event.Timestamp, timestamp)
	}
	if !event.IngestionTime.Equal(ingestion) {
		t.Errorf("IngestionTime = %v, want %v", event.IngestionTime, ingestion)
	}
	if event.Message["event"] != "price_update" {
		t.Errorf("Message = %v, want decoded JSON", event.Message)
	}
}

func TestDecodeLogEventKeepsNonJsonMessage(t *testing.T) {
	event := decodeLogEvent(
		aws.String("stream-1"),
		aws.String("e1"),
		aws.Int64(0),
		aws.Int64(0),
		aws.String("plain text log line"),
	)

	if event.Message != nil {
		t.Errorf("Message = %v, want nil for a non-JSON log line", event.Message)
	}
}
