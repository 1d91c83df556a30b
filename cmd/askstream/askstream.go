// Package askstreamcmder
package askstreamcmder

import (
	"github.com/spf13/cobra"

	askcmder "github.com/papercomputeco/askstream/cmd/askstream/ask"
	chatcmder "github.com/papercomputeco/askstream/cmd/askstream/chat"
	configcmder "github.com/papercomputeco/askstream/cmd/askstream/config"
	historycmder "github.com/papercomputeco/askstream/cmd/askstream/history"
	mcpcmder "github.com/papercomputeco/askstream/cmd/askstream/mcp"
	replaycmder "github.com/papercomputeco/askstream/cmd/askstream/replay"
	servecmder "github.com/papercomputeco/askstream/cmd/askstream/serve"
	versioncmder "github.com/papercomputeco/askstream/cmd/version"
	"github.com/papercomputeco/askstream/pkg/utils"
)

const askstreamLongDesc string = `askstream is a streaming client for retrieval-augmented ask services.

It posts questions to a service's POST /ask endpoint and renders the
event-stream answer as it arrives:
  askstream ask <question>     Ask a single question
  askstream chat               Start an interactive, persisted conversation
  askstream history            Show persisted conversations
  askstream replay <file>      Decode a recorded event stream locally
  askstream serve              Serve a recorded event stream as POST /ask
  askstream mcp                Serve the ask service as an MCP tool`

const askstreamShortDesc string = "askstream - streaming ask client"

func NewAskstreamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "askstream",
		Short:   askstreamShortDesc,
		Long:    askstreamLongDesc,
		Version: utils.VersionString(),
	}
	cmd.SetVersionTemplate("{{.Version}}\n")

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to the .askstream/ config directory")

	// Add subcommands
	cmd.AddCommand(askcmder.NewAskCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(historycmder.NewHistoryCmd())
	cmd.AddCommand(replaycmder.NewReplayCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(mcpcmder.NewMCPCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
