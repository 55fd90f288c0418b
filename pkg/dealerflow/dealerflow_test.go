package dealerflow

import (
	"testing"
	"time"
)

func TestActionTimeoutSetting(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{name: "default", value: "", want: 30 * time.Second},
		{name: "configured", value: "90s", want: 90 * time.Second},
		{name: "garbage falls back", value: "soon", want: 30 * time.Second},
		{name: "zero falls back", value: "0s", want: 30 * time.Second},
		{name: "negative falls back", value: "-5s", want: 30 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DFLOW_ENGINE_ACTION_TIMEOUT", tt.value)
			if got := actionTimeoutSetting(); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}
