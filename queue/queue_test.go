package queue

import (
	"testing"

	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

func TestParseMessageCount(t *testing.T) {
	countAttr := string(sqstypes.QueueAttributeNameApproximateNumberOfMessages)

	tests := []struct {
		name     string
		attrs    map[string]string
		expected int
		wantErr  bool
	}{
		{"valid count", map[string]string{countAttr: "42"}, 42, false},
		{"zero count", map[string]string{countAttr: "0"}, 0, false},
		{"missing attribute", map[string]string{}, 0, true},
		{"malformed count", map[string]string{countAttr: "lots"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count, err := parseMessageCount(tt.attrs)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseMessageCount() error = %v, wantErr %v", err, tt.wantErr)
			}
			if count != tt.expected {
				t.Errorf("parseMessageCount() = %d, want %d", count, tt.expected)
			}
		})
	}
}
