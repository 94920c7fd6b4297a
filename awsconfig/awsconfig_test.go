package awsconfig

import "testing"

func TestRegion(t *testing.T) {
	tests := []struct {
		name     string
		region   string
		envValue string
		expected string
	}{
		{"explicit region wins", "us-east-1", "eu-north-1", "us-east-1"},
		{"env region when not explicit", "", "eu-north-1", "eu-north-1"},
		{"default when nothing is set", "", "", DefaultRegion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("AWS_REGION", tt.envValue)

			result := Region(tt.region)
			if result != tt.expected {
				t.Errorf("Region(%q) = %q, want %q", tt.region, result, tt.expected)
			}
		})
	}
}
