// Package servecmder provides the serve command, which runs the transcript
// replay server.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/askstream/pkg/config"
	"github.com/papercomputeco/askstream/pkg/logger"
	"github.com/papercomputeco/askstream/pkg/replay"
)

type serveCommander struct {
	listen     string
	transcript string
	chunkSize  int
	chunkDelay time.Duration
	watch      bool
	debug      bool

	logger *slog.Logger
}

const serveLongDesc string = `Serve a recorded event stream as an ask service.

Every POST /ask is answered from the same transcript: streaming requests
receive its raw bytes in --chunk-size pieces separated by --chunk-delay,
and non-streaming requests receive the answer folded from it, as text or
as JSON with sources. GET /health reports readiness. With --watch the
transcript is reloaded whenever the file changes.

Point "askstream ask" or "askstream chat" at the server to exercise a
client without a running retrieval service.

Examples:
  askstream serve --transcript answer.sse
  askstream serve --transcript answer.sse --listen :9000 --chunk-size 1 --chunk-delay 50ms
  askstream serve --transcript answer.sse --watch`

const serveShortDesc string = "Serve a recorded event stream as POST /ask"

var serveFlags = []string{
	config.FlagListen,
	config.FlagTranscript,
	config.FlagChunkSize,
	config.FlagChunkDelay,
	config.FlagWatch,
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, serveFlags)

			cmder.listen = v.GetString("replay.listen")
			cmder.transcript = v.GetString("replay.transcript")
			cmder.chunkSize = v.GetInt("replay.chunk_size")
			cmder.chunkDelay = v.GetDuration("replay.chunk_delay")
			cmder.watch = v.GetBool("replay.watch")

			if cmder.transcript == "" {
				return errors.New("no transcript configured; pass --transcript or set replay.transcript")
			}
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

	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagTranscript, &cmder.transcript)
	config.AddIntFlag(cmd, config.Flags, config.FlagChunkSize, &cmder.chunkSize)
	config.AddDurationFlag(cmd, config.Flags, config.FlagChunkDelay, &cmder.chunkDelay)
	config.AddBoolFlag(cmd, config.Flags, config.FlagWatch, &cmder.watch)

	return cmd
}

func (c *serveCommander) run() error {
	c.logger = logger.NewLogger(c.debug)

	transcript, err := os.ReadFile(c.transcript)
	if err != nil {
		return fmt.Errorf("reading transcript: %w", err)
	}

	server, err := replay.NewServer(replay.Config{
		ListenAddr: c.listen,
		ChunkSize:  c.chunkSize,
		ChunkDelay: c.chunkDelay,
	}, transcript, c.logger)
	if err != nil {
		return fmt.Errorf("creating replay server: %w", err)
	}

	c.logger.Info("serving transcript",
		"path", c.transcript,
		"chunk_size", c.chunkSize,
		"chunk_delay", c.chunkDelay,
	)

	// Channel to capture errors from the server and watcher goroutines
	errChan := make(chan error, 2)

	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("replay server error: %w", err)
		}
	}()

	if c.watch {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go func() {
			if err := server.Watch(ctx, c.transcript); err != nil && !errors.Is(err, context.Canceled) {
				errChan <- err
			}
		}()
	}

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return server.Shutdown()
	}
}
