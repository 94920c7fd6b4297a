package listener

import (
	"context"
	"testing"
	"time"
)

func TestGetOptionsDefaults(t *testing.T) {
	opts, err := getOptions()
	if err != nil {
		t.Fatalf("getOptions() returned error: %v", err)
	}

	if opts.MaxInFlight != 1 {
		t.Errorf("MaxInFlight = %d, want 1", opts.MaxInFlight)
	}
	if opts.WaitTimeSeconds != defaultWaitTimeSeconds {
		t.Errorf("WaitTimeSeconds = %d, want %d", opts.WaitTimeSeconds, defaultWaitTimeSeconds)
	}
	if opts.MaxRetryCount == nil || *opts.MaxRetryCount != defaultMaxRetryCount {
		t.Errorf("MaxRetryCount = %v, want %d", opts.MaxRetryCount, defaultMaxRetryCount)
	}
	if opts.DrainTimeout != defaultDrainTimeout {
		t.Errorf("DrainTimeout = %v, want %v", opts.DrainTimeout, defaultDrainTimeout)
	}
	if opts.Namespace != defaultNamespace {
		t.Errorf("Namespace = %q, want %q", opts.Namespace, defaultNamespace)
	}
}

func TestGetOptionsMaxInFlightBounds(t *testing.T) {
	tests := []struct {
		name        string
		maxInFlight int
		wantErr     bool
	}{
		{"zero fails", 0, true},
		{"negative fails", -1, true},
		{"lower bound", 1, false},
		{"upper bound", 10, false},
		{"above receive batch limit fails", 11, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := getOptions(Options{MaxInFlight: tt.maxInFlight})
			if (err != nil) != tt.wantErr {
				t.Errorf("getOptions(MaxInFlight: %d) error = %v, wantErr %v", tt.maxInFlight, err, tt.wantErr)
			}
		})
	}
}

func TestGetOptionsMaxRetryCount(t *testing.T) {
	t.Run("unset uses default", func(t *testing.T) {
		opts, err := getOptions(Options{MaxInFlight: 1})
		if err != nil {
			t.Fatalf("getOptions() returned error: %v", err)
		}
		if opts.MaxRetryCount == nil || *opts.MaxRetryCount != defaultMaxRetryCount {
			t.Errorf("MaxRetryCount = %v, want %d", opts.MaxRetryCount, defaultMaxRetryCount)
		}
	})

	t.Run("explicit zero is kept", func(t *testing.T) {
		zero := 0
		opts, err := getOptions(Options{MaxInFlight: 1, MaxRetryCount: &zero})
		if err != nil {
			t.Fatalf("getOptions() returned error: %v", err)
		}
		if opts.MaxRetryCount == nil || *opts.MaxRetryCount != 0 {
			t.Errorf("MaxRetryCount = %v, want 0", opts.MaxRetryCount)
		}
	})

	t.Run("negative fails", func(t *testing.T) {
		negative := -1
		if _, err := getOptions(Options{MaxInFlight: 1, MaxRetryCount: &negative}); err == nil {
			t.Error("getOptions() succeeded with a negative MaxRetryCount, want error")
		}
	})
}

func TestGetOptionsMergesDefaults(t *testing.T) {
	opts, err := getOptions(Options{MaxInFlight: 4, WaitTimeSeconds: 10, DrainTimeout: time.Minute})
	if err != nil {
		t.Fatalf("getOptions() returned error: %v", err)
	}

	if opts.MaxInFlight != 4 {
		t.Errorf("MaxInFlight = %d, want 4", opts.MaxInFlight)
	}
	if opts.WaitTimeSeconds != 10 {
		t.Errorf("WaitTimeSeconds = %d, want 10", opts.WaitTimeSeconds)
	}
	if opts.DrainTimeout != time.Minute {
		t.Errorf("DrainTimeout = %v, want 1m", opts.DrainTimeout)
	}
	if opts.Namespace != defaultNamespace {
		t.Errorf("Namespace = %q, want the default namespace", opts.Namespace)
	}
}

func TestNewRejectsInvalidConfiguration(t *testing.T) {
	handler := func(ctx context.Context, msg Notification) (bool, error) {
		return true, nil
	}

	tests := []struct {
		name       string
		queueURL   string
		dispatcher Dispatcher
		options    []Options
	}{
		{
			name:       "empty queue URL",
			queueURL:   "",
			dispatcher: SingleHandler(handler),
		},
		{
			name:       "no handlers",
			queueURL:   testQueueURL,
			dispatcher: Dispatcher{},
		},
		{
			name:       "zero max in flight",
			queueURL:   testQueueURL,
			dispatcher: SingleHandler(handler),
			options:    []Options{{MaxInFlight: 0}},
		},
		{
			name:       "max in flight above the receive batch limit",
			queueURL:   testQueueURL,
			dispatcher: SingleHandler(handler),
			options:    []Options{{MaxInFlight: 11}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.queueURL, tt.dispatcher, tt.options...); err == nil {
				t.Error("New() succeeded, want error")
			}
		})
	}
}
