package config

const (
	defaultClientTarget  = "http://localhost:8000"
	defaultClientTimeout = "5m"
	defaultClientFormat  = "text"

	defaultReplayListen     = ":8000"
	defaultReplayChunkSize  = 16
	defaultReplayChunkDelay = "20ms"

	defaultPublishKafkaTopic = "askstream.turns"

	defaultMCPListen = ":8081"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Client: ClientConfig{
			Target:         defaultClientTarget,
			Timeout:        defaultClientTimeout,
			IncludeSources: true,
			Format:         defaultClientFormat,
		},
		Replay: ReplayConfig{
			Listen:     defaultReplayListen,
			ChunkSize:  defaultReplayChunkSize,
			ChunkDelay: defaultReplayChunkDelay,
		},
		Publish: PublishConfig{
			KafkaTopic: defaultPublishKafkaTopic,
		},
		MCP: MCPConfig{
			Listen: defaultMCPListen,
		},
		UI: UIConfig{
			ShowSources: true,
		},
	}
}
