package poller

import (
	"testing"
	"time"
)

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.BatchSize != 10 {
		t.Fatalf("unexpected batch size %d", cfg.BatchSize)
	}
	if cfg.PollInterval != 5*time.Minute {
		t.Fatalf("unexpected poll interval %v", cfg.PollInterval)
	}
	if cfg.MinAge != 10*time.Minute {
		t.Fatalf("unexpected min age %v", cfg.MinAge)
	}

	custom := Config{BatchSize: 3, PollInterval: time.Minute, MinAge: time.Second}.withDefaults()
	if custom.BatchSize != 3 || custom.PollInterval != time.Minute || custom.MinAge != time.Second {
		t.Fatalf("explicit values must be kept, got %+v", custom)
	}
}
