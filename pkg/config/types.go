package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/papercomputeco/askstream/pkg/ask"
)

// Config represents the persistent askstream configuration stored as
// config.toml in the .askstream/ directory. The TOML layout uses sections
// for logical grouping.
type Config struct {
	Version int           `toml:"version"`
	Client  ClientConfig  `toml:"client"`
	Storage StorageConfig `toml:"storage"`
	Publish PublishConfig `toml:"publish"`
	Replay  ReplayConfig  `toml:"replay"`
	MCP     MCPConfig     `toml:"mcp"`
	UI      UIConfig      `toml:"ui"`
}

// ClientConfig holds settings for commands that talk to the ask service.
type ClientConfig struct {
	// Target is the base URL of the ask service (scheme + host + port).
	Target string `toml:"target,omitempty"`

	// Timeout is a Go duration string bounding a whole request.
	Timeout string `toml:"timeout,omitempty"`

	IncludeSources bool   `toml:"include_sources"`
	Format         string `toml:"format,omitempty"`
}

// StorageConfig holds conversation persistence settings.
type StorageConfig struct {
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// PublishConfig holds settings for publishing stored turns to Kafka.
type PublishConfig struct {
	// KafkaBrokers is a comma separated list of bootstrap brokers.
	// Publishing is disabled while it is empty.
	KafkaBrokers string `toml:"kafka_brokers,omitempty"`
	KafkaTopic   string `toml:"kafka_topic,omitempty"`
}

// ReplayConfig holds replay server settings.
type ReplayConfig struct {
	Listen     string `toml:"listen,omitempty"`
	Transcript string `toml:"transcript,omitempty"`
	ChunkSize  int    `toml:"chunk_size"`
	ChunkDelay string `toml:"chunk_delay,omitempty"`
	Watch      bool   `toml:"watch"`
}

// MCPConfig holds settings for the MCP server.
type MCPConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// UIConfig holds terminal rendering settings.
type UIConfig struct {
	ShowSources bool `toml:"show_sources"`
	Markdown    bool `toml:"markdown"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func boolKey(name string, field func(c *Config) *bool) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = b
			return nil
		},
	}
}

func durationKey(name string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = v
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"client.target": {
		get: func(c *Config) string { return c.Client.Target },
		set: func(c *Config, v string) error { c.Client.Target = v; return nil },
	},
	"client.timeout":         durationKey("client.timeout", func(c *Config) *string { return &c.Client.Timeout }),
	"client.include_sources": boolKey("client.include_sources", func(c *Config) *bool { return &c.Client.IncludeSources }),
	"client.format": {
		get: func(c *Config) string { return c.Client.Format },
		set: func(c *Config, v string) error {
			switch ask.Format(v) {
			case ask.FormatText, ask.FormatJSON:
				c.Client.Format = v
				return nil
			default:
				return fmt.Errorf("invalid value for client.format: %q (expected text or json)", v)
			}
		},
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_dsn": {
		get: func(c *Config) string { return c.Storage.PostgresDSN },
		set: func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil },
	},
	"publish.kafka_brokers": {
		get: func(c *Config) string { return c.Publish.KafkaBrokers },
		set: func(c *Config, v string) error { c.Publish.KafkaBrokers = v; return nil },
	},
	"publish.kafka_topic": {
		get: func(c *Config) string { return c.Publish.KafkaTopic },
		set: func(c *Config, v string) error { c.Publish.KafkaTopic = v; return nil },
	},
	"replay.listen": {
		get: func(c *Config) string { return c.Replay.Listen },
		set: func(c *Config, v string) error { c.Replay.Listen = v; return nil },
	},
	"replay.transcript": {
		get: func(c *Config) string { return c.Replay.Transcript },
		set: func(c *Config, v string) error { c.Replay.Transcript = v; return nil },
	},
	"replay.chunk_size": {
		get: func(c *Config) string { return strconv.Itoa(c.Replay.ChunkSize) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for replay.chunk_size: %w", err)
			}
			if n < 0 {
				return fmt.Errorf("invalid value for replay.chunk_size: %d is negative", n)
			}
			c.Replay.ChunkSize = n
			return nil
		},
	},
	"replay.chunk_delay": durationKey("replay.chunk_delay", func(c *Config) *string { return &c.Replay.ChunkDelay }),
	"replay.watch":       boolKey("replay.watch", func(c *Config) *bool { return &c.Replay.Watch }),
	"mcp.listen": {
		get: func(c *Config) string { return c.MCP.Listen },
		set: func(c *Config, v string) error { c.MCP.Listen = v; return nil },
	},
	"ui.show_sources":    boolKey("ui.show_sources", func(c *Config) *bool { return &c.UI.ShowSources }),
	"ui.markdown":        boolKey("ui.markdown", func(c *Config) *bool { return &c.UI.Markdown }),
}
