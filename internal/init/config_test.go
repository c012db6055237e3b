package config

import (
	"testing"
	"time"
)

func TestInitDefaultsAndEnv(t *testing.T) {
	t.Setenv("MODE", "worker")
	t.Setenv("KAFKA_READ_TIMEOUT", "3s")
	t.Setenv("CASSANDRA_TIMEOUT", "not-a-duration")

	c := Init()
	if c.Mode != "worker" {
		t.Fatalf("expected MODE from env, got %q", c.Mode)
	}
	if c.KafkaTopic != "edge-events" {
		t.Fatalf("unexpected default topic %q", c.KafkaTopic)
	}
	if c.KafkaReadTO != 3*time.Second {
		t.Fatalf("expected 3s read timeout, got %v", c.KafkaReadTO)
	}
	if c.CassandraTimeout != 10*time.Second {
		t.Fatalf("expected fallback timeout, got %v", c.CassandraTimeout)
	}
	if Get() != c {
		t.Fatalf("Get should return the loaded config")
	}
}

func TestParseDuration(t *testing.T) {
	if d := parseDuration("250ms", time.Second); d != 250*time.Millisecond {
		t.Fatalf("got %v", d)
	}
	if d := parseDuration("", time.Second); d != time.Second {
		t.Fatalf("got %v", d)
	}
}
