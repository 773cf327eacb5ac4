package tracing

import "testing"

func TestDefaultConfigSamplingByEnvironment(t *testing.T) {
	tests := []struct {
		env  string
		rate float64
	}{
		{"development", 1.0},
		{"production", 0.25},
		{"staging", 0.25},
	}
	for _, tt := range tests {
		cfg := DefaultConfig("enrollment-api", tt.env)
		if cfg.SampleRate != tt.rate {
			t.Errorf("%s: SampleRate = %v, want %v", tt.env, cfg.SampleRate, tt.rate)
		}
		if cfg.Environment != tt.env {
			t.Errorf("%s: Environment = %q", tt.env, cfg.Environment)
		}
	}
}
