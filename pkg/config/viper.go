package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/askstream/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the ASKSTREAM_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (ASKSTREAM_CLIENT_TARGET, ASKSTREAM_REPLAY_LISTEN, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: ASKSTREAM_CLIENT_TARGET, ASKSTREAM_STORAGE_SQLITE_PATH, etc.
	v.SetEnvPrefix("ASKSTREAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Client
	v.SetDefault("client.target", d.Client.Target)
	v.SetDefault("client.timeout", d.Client.Timeout)
	v.SetDefault("client.include_sources", d.Client.IncludeSources)
	v.SetDefault("client.format", d.Client.Format)

	// Storage
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.postgres_dsn", d.Storage.PostgresDSN)

	// Publish
	v.SetDefault("publish.kafka_brokers", d.Publish.KafkaBrokers)
	v.SetDefault("publish.kafka_topic", d.Publish.KafkaTopic)

	// Replay
	v.SetDefault("replay.listen", d.Replay.Listen)
	v.SetDefault("replay.transcript", d.Replay.Transcript)
	v.SetDefault("replay.chunk_size", d.Replay.ChunkSize)
	v.SetDefault("replay.chunk_delay", d.Replay.ChunkDelay)
	v.SetDefault("replay.watch", d.Replay.Watch)

	// MCP
	v.SetDefault("mcp.listen", d.MCP.Listen)

	// UI
	v.SetDefault("ui.show_sources", d.UI.ShowSources)
	v.SetDefault("ui.markdown", d.UI.Markdown)
}
