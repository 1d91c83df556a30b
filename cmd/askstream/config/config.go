// Package configcmder provides the config command for managing persistent
// askstream configuration stored in the .askstream/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent askstream configuration.

Configuration is stored as config.toml in the .askstream/ directory and
provides default values for command flags. CLI flags always take precedence
over environment variables (ASKSTREAM_CLIENT_TARGET, ...), which take
precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  client.target, client.timeout, client.include_sources, client.format,
  storage.sqlite_path,
  replay.listen, replay.transcript, replay.chunk_size, replay.chunk_delay,
  ui.show_sources, ui.markdown

Use subcommands to get, set, or list configuration values:
  askstream config set <key> <value>    Set a configuration value
  askstream config get <key>            Get a configuration value
  askstream config list                 List all configuration values

Examples:
  askstream config set client.target http://localhost:9000
  askstream config set storage.sqlite_path ~/.askstream/askstream.db
  askstream config get client.timeout
  askstream config list`

const configShortDesc string = "Manage persistent askstream configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
