// Package replaycmder provides the replay command, which decodes a recorded
// event stream locally and prints what a client would see.
package replaycmder

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/askstream/pkg/ask"
	"github.com/papercomputeco/askstream/pkg/cliui"
	"github.com/papercomputeco/askstream/pkg/config"
	"github.com/papercomputeco/askstream/pkg/conversation"
	"github.com/papercomputeco/askstream/pkg/session"
	"github.com/papercomputeco/askstream/pkg/sse"
	"github.com/papercomputeco/askstream/pkg/utils"
)

type replayCommander struct {
	chunkSize int
	quiet     bool

	out io.Writer
}

const replayLongDesc string = `Decode a recorded event stream.

Reads a transcript (for example one written by "askstream ask --record"),
feeds it through the stream decoder in --chunk-size byte reads and prints
every decoded event, followed by the folded answer and a summary of
fallbacks, ignored frames and any discarded trailing partial frame.

Small chunk sizes split frames and multi-byte characters across reads,
which is useful for checking how a stream decodes under fragmentation.

Examples:
  askstream replay answer.sse
  askstream replay --chunk-size 1 answer.sse
  askstream replay --quiet answer.sse`

const replayShortDesc string = "Decode a recorded event stream"

var replayFlags = []string{
	config.FlagChunkSize,
}

func NewReplayCmd() *cobra.Command {
	cmder := &replayCommander{}

	cmd := &cobra.Command{
		Use:   "replay <transcript>",
		Short: replayShortDesc,
		Long:  replayLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, replayFlags)

			cmder.chunkSize = v.GetInt("replay.chunk_size")
			if cmder.chunkSize < 0 {
				return fmt.Errorf("chunk size must not be negative: %d", cmder.chunkSize)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			cmder.out = cmd.OutOrStdout()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening transcript: %w", err)
			}
			defer f.Close()

			return cmder.run(f)
		},
	}

	config.AddIntFlag(cmd, config.Flags, config.FlagChunkSize, &cmder.chunkSize)
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Only print the folded answer")

	return cmd
}

func (c *replayCommander) run(src io.Reader) error {
	log := conversation.NewLog()
	acc := session.NewAccumulator(log, nil)
	if err := acc.Begin(); err != nil {
		return err
	}

	var summary ask.Summary
	r := sse.NewReader(src, sse.WithChunkSize(c.chunkSize))
	for {
		frame, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			acc.Fail(err)
			return fmt.Errorf("reading transcript: %w", err)
		}

		d := ask.DecodeFrame(frame)
		if d.Event == nil {
			summary.Ignored++
			c.printf("  %s %s\n", cliui.DimStyle.Render("ignored"), cliui.NameStyle.Render(frame.Event))
			continue
		}

		summary.Events++
		if d.Fallback {
			summary.Fallbacks++
		}
		c.printEvent(d)

		if err := acc.Apply(d.Event); err != nil {
			return err
		}
	}
	acc.Finish()

	summary.Chunks = r.Chunks()
	summary.Dropped = r.Dropped()
	summary.Residual = r.Residual()

	var answer conversation.Message
	if id := acc.AssistantID(); id != "" {
		answer, _ = log.Get(id)
	}

	if c.quiet {
		fmt.Fprintln(c.out, answer.Content)
		return nil
	}

	fmt.Fprintf(c.out, "\n  %s\n%s\n\n", cliui.KeyStyle.Render("Answer:"), answer.Content)
	if len(answer.Sources) > 0 {
		cliui.RenderSources(c.out, answer.Sources, cliui.TerminalWidth(os.Stdout, 80))
		fmt.Fprintln(c.out)
	}

	fmt.Fprintf(c.out, "  %s %d chunks, %d events, %d fallbacks, %d ignored, %d dropped\n",
		cliui.StepStyle.Render("summary"),
		summary.Chunks, summary.Events, summary.Fallbacks, summary.Ignored, summary.Dropped,
	)
	if summary.Residual != "" {
		fmt.Fprintf(c.out, "  %s discarded trailing partial frame: %q\n",
			cliui.FailMark, utils.Truncate(summary.Residual, 60))
	}
	return nil
}

func (c *replayCommander) printEvent(d ask.Decoded) {
	note := ""
	if d.Fallback {
		note = " " + cliui.ErrorStyle.Render(fmt.Sprintf("(fallback: %v)", d.Err))
	}

	switch ev := d.Event.(type) {
	case ask.StartEvent:
		c.printf("  %s %s%s\n", cliui.KeyStyle.Render("start"),
			cliui.DimStyle.Render(fmt.Sprintf("%d sources", len(ev.Sources))), note)
	case ask.TokenEvent:
		c.printf("  %s %s%s\n", cliui.KeyStyle.Render("token"),
			cliui.ValueStyle.Render(fmt.Sprintf("%q", ev.Delta)), note)
	case ask.EndEvent:
		c.printf("  %s\n", cliui.KeyStyle.Render("end"))
	}
}

func (c *replayCommander) printf(format string, args ...any) {
	if c.quiet {
		return
	}
	fmt.Fprintf(c.out, format, args...)
}
