// Package config loads the server's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration unmarshals from YAML strings like "30s" or "5m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	// Listen is the HTTP bind address.
	Listen string `yaml:"listen"`

	Journal   JournalConfig  `yaml:"journal"`
	Outbox    OutboxConfig   `yaml:"outbox"`
	Snapshots SnapshotConfig `yaml:"snapshots"`
	Kafka     KafkaConfig    `yaml:"kafka"`
}

type JournalConfig struct {
	Dir         string `yaml:"dir"`
	SegmentSize int64  `yaml:"segment_size"`
}

type OutboxConfig struct {
	Dir string `yaml:"dir"`
}

type SnapshotConfig struct {
	Dir      string   `yaml:"dir"`
	Interval Duration `yaml:"interval"`
}

type KafkaConfig struct {
	// Enabled gates both the broadcaster and the command applier.
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers"`
	EventTopic   string   `yaml:"event_topic"`
	CommandTopic string   `yaml:"command_topic"`
	GroupID      string   `yaml:"group_id"`
}

// Default returns the configuration used when fields are unset.
func Default() Config {
	return Config{
		Listen: ":8080",
		Journal: JournalConfig{
			Dir:         "data/journal",
			SegmentSize: 64 << 20,
		},
		Outbox: OutboxConfig{
			Dir: "data/outbox",
		},
		Snapshots: SnapshotConfig{
			Dir:      "data/snapshots",
			Interval: Duration(30 * time.Second),
		},
		Kafka: KafkaConfig{
			Enabled:      false,
			Brokers:      []string{"localhost:9092"},
			EventTopic:   "audhumla.events",
			CommandTopic: "audhumla.commands",
			GroupID:      "audhumla-server",
		},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Listen == "" {
		return errors.New("config: listen address is empty")
	}
	if c.Journal.Dir == "" || c.Outbox.Dir == "" || c.Snapshots.Dir == "" {
		return errors.New("config: journal, outbox and snapshots dirs are required")
	}
	if c.Journal.SegmentSize <= 0 {
		return errors.New("config: journal segment_size must be positive")
	}
	if c.Snapshots.Interval.Std() <= 0 {
		return errors.New("config: snapshots interval must be positive")
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return errors.New("config: kafka enabled with no brokers")
		}
		if c.Kafka.EventTopic == "" || c.Kafka.CommandTopic == "" {
			return errors.New("config: kafka enabled with empty topics")
		}
	}
	return nil
}
