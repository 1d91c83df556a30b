package config

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --target
// on both "askstream ask" and "askstream chat").
type Flag struct {
	// Name is the long flag name (e.g. "target").
	Name string

	// Shorthand is the one-letter short flag (e.g. "t"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "client.target").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling the Add*Flag helpers
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagTarget     = "target"
	FlagTimeout    = "timeout"
	FlagSources    = "sources"
	FlagFormat     = "format"
	FlagSQLite     = "sqlite"
	FlagListen     = "listen"
	FlagTranscript = "transcript"
	FlagChunkSize  = "chunk-size"
	FlagChunkDelay = "chunk-delay"
	FlagMarkdown   = "markdown"
	FlagPostgres   = "postgres"
	FlagKafka      = "kafka-brokers"
	FlagKafkaTopic = "kafka-topic"
	FlagMCPListen  = "mcp-listen"
	FlagWatch      = "watch"
)

// Flags is the registry shared by every askstream command.
var Flags = FlagSet{
	FlagTarget: {
		Name:        "target",
		Shorthand:   "t",
		ViperKey:    "client.target",
		Description: "Ask service base URL",
	},
	FlagTimeout: {
		Name:        "timeout",
		ViperKey:    "client.timeout",
		Description: "Timeout for a whole ask request",
	},
	FlagSources: {
		Name:        "sources",
		ViperKey:    "client.include_sources",
		Description: "Request retrieved sources with the answer",
	},
	FlagFormat: {
		Name:        "format",
		Shorthand:   "f",
		ViperKey:    "client.format",
		Description: "Non-streaming answer format (text, json)",
	},
	FlagSQLite: {
		Name:        "sqlite",
		Shorthand:   "s",
		ViperKey:    "storage.sqlite_path",
		Description: "Path to SQLite database for conversation history (default: in-memory)",
	},
	FlagPostgres: {
		Name:        "postgres",
		ViperKey:    "storage.postgres_dsn",
		Description: "PostgreSQL connection string for conversation history (takes precedence over --sqlite)",
	},
	FlagKafka: {
		Name:        "kafka-brokers",
		ViperKey:    "publish.kafka_brokers",
		Description: "Comma separated Kafka brokers to publish stored turns to",
	},
	FlagKafkaTopic: {
		Name:        "kafka-topic",
		ViperKey:    "publish.kafka_topic",
		Description: "Kafka topic for stored turns",
	},
	FlagMCPListen: {
		Name:        "listen",
		Shorthand:   "l",
		ViperKey:    "mcp.listen",
		Description: "Address for the MCP server to listen on",
	},
	FlagListen: {
		Name:        "listen",
		Shorthand:   "l",
		ViperKey:    "replay.listen",
		Description: "Address for the replay server to listen on",
	},
	FlagTranscript: {
		Name:        "transcript",
		ViperKey:    "replay.transcript",
		Description: "Path to a recorded event-stream transcript",
	},
	FlagChunkSize: {
		Name:        "chunk-size",
		ViperKey:    "replay.chunk_size",
		Description: "Bytes per replayed chunk (0 sends the transcript at once)",
	},
	FlagChunkDelay: {
		Name:        "chunk-delay",
		ViperKey:    "replay.chunk_delay",
		Description: "Pause between replayed chunks",
	},
	FlagWatch: {
		Name:        "watch",
		ViperKey:    "replay.watch",
		Description: "Reload the transcript whenever the file changes",
	},
	FlagMarkdown: {
		Name:        "markdown",
		ViperKey:    "ui.markdown",
		Description: "Render finished answers as markdown",
	},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaults().GetString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddBoolFlag registers a bool flag on cmd from the given FlagSet.
func AddBoolFlag(cmd *cobra.Command, fs FlagSet, key string, target *bool) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaults().GetBool(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().BoolVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().BoolVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddIntFlag registers an int flag on cmd from the given FlagSet.
func AddIntFlag(cmd *cobra.Command, fs FlagSet, key string, target *int) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaults().GetInt(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().IntVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().IntVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddDurationFlag registers a duration flag on cmd from the given FlagSet.
func AddDurationFlag(cmd *cobra.Command, fs FlagSet, key string, target *time.Duration) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaults().GetDuration(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().DurationVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().DurationVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaults returns a viper instance holding only the values from NewDefaultConfig.
func defaults() *viper.Viper {
	v := viper.New()
	setViperDefaults(v)
	return v
}
