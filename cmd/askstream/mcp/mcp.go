// Package mcpcmder provides the mcp command, which exposes the ask service
// as an MCP tool over streamable HTTP.
package mcpcmder

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/askstream/pkg/ask"
	"github.com/papercomputeco/askstream/pkg/config"
	"github.com/papercomputeco/askstream/pkg/logger"
	"github.com/papercomputeco/askstream/pkg/mcp"
)

type mcpCommander struct {
	listen  string
	target  string
	timeout time.Duration
	sources bool
	debug   bool

	logger *slog.Logger
}

const mcpLongDesc string = `Serve the ask service as an MCP tool.

Runs an MCP server over streamable HTTP at /mcp with a single "ask" tool.
Every call streams the answer from --target and returns it once complete,
together with its sources. Calls naming the same thread share one
conversation and are answered one at a time. GET /health reports readiness.

Examples:
  askstream mcp
  askstream mcp --listen :8081 --target http://localhost:8000`

const mcpShortDesc string = "Serve the ask service as an MCP tool"

var mcpFlags = []string{
	config.FlagMCPListen,
	config.FlagTarget,
	config.FlagTimeout,
	config.FlagSources,
}

func NewMCPCmd() *cobra.Command {
	cmder := &mcpCommander{}

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: mcpShortDesc,
		Long:  mcpLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, mcpFlags)

			cmder.listen = v.GetString("mcp.listen")
			cmder.target = v.GetString("client.target")
			cmder.timeout = v.GetDuration("client.timeout")
			cmder.sources = v.GetBool("client.include_sources")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmd.SilenceUsage = true
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagMCPListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagTarget, &cmder.target)
	config.AddDurationFlag(cmd, config.Flags, config.FlagTimeout, &cmder.timeout)
	config.AddBoolFlag(cmd, config.Flags, config.FlagSources, &cmder.sources)

	return cmd
}

func (c *mcpCommander) run() error {
	c.logger = logger.NewLogger(c.debug)

	client, err := ask.NewClient(ask.Config{
		Target:         c.target,
		Timeout:        c.timeout,
		IncludeSources: c.sources,
		Logger:         c.logger,
	})
	if err != nil {
		return err
	}

	server, err := mcp.NewServer(mcp.Config{
		Client: client,
		Logger: c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Get("/health", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{"status": "ok"})
	})
	server.Mount(app, "/mcp")

	c.logger.Info("starting MCP server",
		"listen", c.listen,
		"target", c.target,
	)

	// Channel to capture errors from the server goroutine
	errChan := make(chan error, 1)

	go func() {
		if err := app.Listen(c.listen); err != nil {
			errChan <- fmt.Errorf("MCP server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return app.Shutdown()
	}
}
