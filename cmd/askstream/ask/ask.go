// Package askcmder provides the ask command for one-shot questions against
// an ask service.
package askcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/askstream/pkg/ask"
	"github.com/papercomputeco/askstream/pkg/cliui"
	"github.com/papercomputeco/askstream/pkg/config"
	"github.com/papercomputeco/askstream/pkg/logger"
	"github.com/papercomputeco/askstream/pkg/session"
)

type askCommander struct {
	target      string
	timeout     time.Duration
	sources     bool
	format      string
	markdown    bool
	showSources bool
	stream      bool
	record      string
	debug       bool

	out         io.Writer
	errOut      io.Writer
	interactive bool
	logger      *slog.Logger
}

const askLongDesc string = `Ask a single question and print the answer.

By default the answer is streamed: tokens are printed as the service emits
them and a thinking indicator is shown until the first token arrives. Use
--stream=false to wait for the whole answer instead, with --format json to
get the answer and its sources as JSON.

The raw event stream can be recorded with --record and later inspected
with "askstream replay" or served with "askstream serve".

Examples:
  askstream ask "What is retrieval-augmented generation?"
  askstream ask --sources=false "Summarize the design doc"
  askstream ask --stream=false --format json "List the open questions"
  askstream ask --record answer.sse "Explain the failure"`

const askShortDesc string = "Ask a single question"

var askFlags = []string{
	config.FlagTarget,
	config.FlagTimeout,
	config.FlagSources,
	config.FlagFormat,
	config.FlagMarkdown,
}

func NewAskCmd() *cobra.Command {
	cmder := &askCommander{}

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: askShortDesc,
		Long:  askLongDesc,
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, askFlags)

			cmder.target = v.GetString("client.target")
			cmder.timeout = v.GetDuration("client.timeout")
			cmder.sources = v.GetBool("client.include_sources")
			cmder.format = v.GetString("client.format")
			cmder.markdown = v.GetBool("ui.markdown")
			cmder.showSources = v.GetBool("ui.show_sources")
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmd.SilenceUsage = true

			cmder.out = cmd.OutOrStdout()
			cmder.errOut = cmd.ErrOrStderr()
			cmder.interactive = cmder.errOut == os.Stderr && cliui.IsTerminal(os.Stderr)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			return cmder.run(ctx, strings.Join(args, " "))
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagTarget, &cmder.target)
	config.AddDurationFlag(cmd, config.Flags, config.FlagTimeout, &cmder.timeout)
	config.AddBoolFlag(cmd, config.Flags, config.FlagSources, &cmder.sources)
	config.AddStringFlag(cmd, config.Flags, config.FlagFormat, &cmder.format)
	config.AddBoolFlag(cmd, config.Flags, config.FlagMarkdown, &cmder.markdown)
	cmd.Flags().BoolVar(&cmder.stream, "stream", true, "Stream the answer as it is generated")
	cmd.Flags().StringVar(&cmder.record, "record", "", "Write the raw event stream to a file")

	return cmd
}

func (c *askCommander) run(ctx context.Context, question string) error {
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

	if !c.stream {
		return c.runOnce(ctx, client, question)
	}
	return c.runStream(ctx, client, question)
}

func (c *askCommander) runStream(ctx context.Context, client *ask.Client, question string) error {
	var streamOpts []ask.StreamOption
	if c.record != "" {
		f, err := os.Create(c.record)
		if err != nil {
			return fmt.Errorf("creating recording: %w", err)
		}
		defer f.Close()
		streamOpts = append(streamOpts, ask.WithRecorder(f))
	}

	threadOpts := []session.Option{
		session.WithLogger(c.logger),
		session.WithStreamOptions(streamOpts...),
	}
	if c.interactive {
		threadOpts = append(threadOpts, session.WithIndicator(cliui.NewSpinner(c.errOut, "thinking")))
	}

	thread := session.NewThread(uuid.NewString(), client, threadOpts...)
	printer := cliui.NewPrinter(c.out, c.markdown)
	thread.Log().Watch(printer.Watch)

	answer, err := thread.Ask(ctx, question)
	printer.Flush()
	if err != nil {
		return fmt.Errorf("ask failed: %s", session.Describe(err))
	}

	if answer == nil {
		fmt.Fprintf(c.errOut, "  %s\n", cliui.DimStyle.Render("No answer was streamed."))
		return nil
	}

	if c.sources && c.showSources && len(answer.Sources) > 0 {
		fmt.Fprintln(c.out)
		cliui.RenderSources(c.out, answer.Sources, cliui.TerminalWidth(os.Stdout, 80))
	}

	return nil
}

func (c *askCommander) runOnce(ctx context.Context, client *ask.Client, question string) error {
	switch ask.Format(c.format) {
	case ask.FormatJSON:
		var answer *ask.Answer
		err := c.step("Asking", func() error {
			var err error
			answer, err = client.AskJSON(ctx, question)
			return err
		})
		if err != nil {
			return fmt.Errorf("ask failed: %s", session.Describe(err))
		}

		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(answer)

	case ask.FormatText:
		var text string
		err := c.step("Asking", func() error {
			var err error
			text, err = client.AskText(ctx, question)
			return err
		})
		if err != nil {
			return fmt.Errorf("ask failed: %s", session.Describe(err))
		}

		if c.markdown {
			if rendered, err := cliui.RenderMarkdown(text); err == nil {
				text = rendered
			}
		}
		fmt.Fprintln(c.out, strings.TrimRight(text, "\n"))
		return nil

	default:
		return fmt.Errorf("unknown format %q: must be text or json", c.format)
	}
}

// step shows a step spinner on terminals and runs fn silently otherwise.
func (c *askCommander) step(msg string, fn func() error) error {
	if c.interactive {
		return cliui.Step(c.errOut, msg, fn)
	}
	return fn()
}
