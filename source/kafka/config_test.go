package kafka

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/IBM/sarama"
)

func TestLoadConfig_DefaultsApplied(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kafka.yml")
	raw := []byte(`schema_version: v1
brokers: [localhost:9092]
topics: [records]
group_id: scrub
`)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.StartFrom != "newest" {
		t.Fatalf("want start_from newest, got %q", cfg.StartFrom)
	}
	if cfg.CommitInt != 5*time.Second {
		t.Fatalf("want 5s commit interval, got %v", cfg.CommitInt)
	}
	if cfg.Version == "" {
		t.Fatal("version default not applied")
	}
	if _, err := sarama.ParseKafkaVersion(cfg.Version); err != nil {
		t.Fatalf("default version not parseable: %v", err)
	}
}

func TestLoadConfig_InvalidSchema(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kafka.yml")
	if err := os.WriteFile(path, []byte("schema_version: v9\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for unsupported schema_version")
	}
}

func TestRecordKey_FallsBackToTopic(t *testing.T) {
	msg := &sarama.ConsumerMessage{Topic: "records"}
	if got := recordKey(msg); got != "records" {
		t.Fatalf("want topic fallback, got %q", got)
	}
	msg.Key = []byte("a.txt")
	if got := recordKey(msg); got != "a.txt" {
		t.Fatalf("want message key, got %q", got)
	}
}
