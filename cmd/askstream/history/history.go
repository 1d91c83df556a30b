// Package historycmder provides the history command for inspecting
// persisted conversation threads.
package historycmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/askstream/cmd/askstream/sqlitepath"
	"github.com/papercomputeco/askstream/pkg/cliui"
	"github.com/papercomputeco/askstream/pkg/config"
	"github.com/papercomputeco/askstream/pkg/conversation"
	"github.com/papercomputeco/askstream/pkg/conversation/postgres"
	"github.com/papercomputeco/askstream/pkg/conversation/sqlite"
	"github.com/papercomputeco/askstream/pkg/utils"
)

type historyCommander struct {
	sqlitePath  string
	postgresDSN string
	jsonOut    bool
	clear      bool

	out io.Writer
}

const historyLongDesc string = `Show persisted conversation threads.

Without arguments, lists every stored thread with its message count and
first question. With a thread ID, prints the thread's messages in order.

History is read from PostgreSQL when --postgres (or storage.postgres_dsn)
is set. Otherwise the SQLite database is taken from --sqlite,
storage.sqlite_path, ASKSTREAM_SQLITE, or the first askstream.db found in
the usual locations.

Examples:
  askstream history
  askstream history 2b1f6c4e-0c55-4a6e-8f0e-4f1c8b3f9a10
  askstream history --json 2b1f6c4e-0c55-4a6e-8f0e-4f1c8b3f9a10
  askstream history --clear 2b1f6c4e-0c55-4a6e-8f0e-4f1c8b3f9a10`

const historyShortDesc string = "Show persisted conversation threads"

var historyFlags = []string{
	config.FlagSQLite,
	config.FlagPostgres,
}

func NewHistoryCmd() *cobra.Command {
	cmder := &historyCommander{}

	cmd := &cobra.Command{
		Use:   "history [thread]",
		Short: historyShortDesc,
		Long:  historyLongDesc,
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, historyFlags)

			cmder.postgresDSN = v.GetString("storage.postgres_dsn")
			if cmder.postgresDSN != "" {
				return nil
			}

			cmder.sqlitePath, err = sqlitepath.ResolveSQLitePath(v.GetString("storage.sqlite_path"))
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			cmder.out = cmd.OutOrStdout()

			if cmder.clear && len(args) == 0 {
				return fmt.Errorf("--clear requires a thread ID")
			}

			ctx := cmd.Context()
			driver, err := cmder.newDriver(ctx)
			if err != nil {
				return err
			}
			defer driver.Close()

			switch {
			case cmder.clear:
				return cmder.clearThread(ctx, driver, args[0])
			case len(args) == 1:
				return cmder.showThread(ctx, driver, args[0])
			default:
				return cmder.listThreads(ctx, driver)
			}
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.postgresDSN)
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print messages as JSON")
	cmd.Flags().BoolVar(&cmder.clear, "clear", false, "Delete the given thread")

	return cmd
}

func (c *historyCommander) newDriver(ctx context.Context) (conversation.Driver, error) {
	if c.postgresDSN != "" {
		driver, err := postgres.NewDriver(ctx, c.postgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open PostgreSQL driver: %w", err)
		}
		return driver, nil
	}

	driver, err := sqlite.NewDriver(c.sqlitePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite driver: %w", err)
	}
	return driver, nil
}

func (c *historyCommander) listThreads(ctx context.Context, driver conversation.Driver) error {
	threads, err := driver.Threads(ctx)
	if err != nil {
		return err
	}

	if len(threads) == 0 {
		fmt.Fprintf(c.out, "  %s\n", cliui.DimStyle.Render("No conversations stored."))
		return nil
	}

	width := cliui.TerminalWidth(os.Stdout, 80)
	for _, id := range threads {
		msgs, err := driver.List(ctx, id)
		if err != nil {
			return err
		}

		first := ""
		if len(msgs) > 0 {
			first, _, _ = strings.Cut(msgs[0].Content, "\n")
		}
		fmt.Fprintf(c.out, "  %s %s %s\n",
			cliui.NameStyle.Render(id),
			cliui.DimStyle.Render(fmt.Sprintf("(%d messages)", len(msgs))),
			cliui.ValueStyle.Render(utils.Truncate(first, max(width-len(id)-20, 16))),
		)
	}
	return nil
}

func (c *historyCommander) showThread(ctx context.Context, driver conversation.Driver, id string) error {
	msgs, err := driver.List(ctx, id)
	if err != nil {
		return err
	}

	if c.jsonOut {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(msgs)
	}

	for _, m := range msgs {
		prompt := cliui.AnswerPrompt
		if m.Role == conversation.RoleUser {
			prompt = cliui.UserPrompt
		}

		fmt.Fprintf(c.out, "%s%s\n", prompt, m.Content)
		if m.Error != "" && m.Error != m.Content {
			fmt.Fprintf(c.out, "  %s %s\n", cliui.FailMark, cliui.ErrorStyle.Render(m.Error))
		}
		fmt.Fprintln(c.out)
	}
	return nil
}

func (c *historyCommander) clearThread(ctx context.Context, driver conversation.Driver, id string) error {
	if err := driver.Clear(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "  %s Cleared thread %s\n", cliui.SuccessMark, cliui.NameStyle.Render(id))
	return nil
}
