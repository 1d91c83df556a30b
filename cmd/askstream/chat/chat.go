// Package chatcmder provides the chat command for an interactive, persisted
// conversation with an ask service.
package chatcmder

import (
	"bufio"
	"context"
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
	"github.com/papercomputeco/askstream/pkg/conversation"
	"github.com/papercomputeco/askstream/pkg/conversation/inmemory"
	"github.com/papercomputeco/askstream/pkg/conversation/postgres"
	"github.com/papercomputeco/askstream/pkg/conversation/sqlite"
	"github.com/papercomputeco/askstream/pkg/conversation/worker"
	"github.com/papercomputeco/askstream/pkg/dotdir"
	"github.com/papercomputeco/askstream/pkg/eventstream"
	"github.com/papercomputeco/askstream/pkg/eventstream/kafka"
	"github.com/papercomputeco/askstream/pkg/eventstream/nop"
	"github.com/papercomputeco/askstream/pkg/logger"
	"github.com/papercomputeco/askstream/pkg/session"
	"github.com/papercomputeco/askstream/pkg/utils"
)

type chatCommander struct {
	target      string
	timeout     time.Duration
	sources     bool
	markdown    bool
	showSources bool
	sqlitePath  string
	postgresDSN string
	kafka       string
	kafkaTopic  string
	threadID    string
	newThread   bool
	logFile     string
	configDir   string
	debug       bool

	in          io.Reader
	out         io.Writer
	errOut      io.Writer
	interactive bool
	logger      *slog.Logger
}

const chatLongDesc string = `Start an interactive conversation with an ask service.

Every question is streamed into a conversation thread. Finished turns are
persisted in the background to the PostgreSQL database configured with
--postgres (or storage.postgres_dsn) or the SQLite database configured
with --sqlite (or storage.sqlite_path), so "askstream chat" resumes the
last thread and "askstream history" can print it later. Without a database
the conversation lives only as long as the session.

With --kafka-brokers (or publish.kafka_brokers) every stored turn is also
published as an askstream.turn.stored event to --kafka-topic.

Use --thread to resume a specific thread or --new to start a fresh one.
Press Ctrl+C to cancel the answer being streamed.

Examples:
  askstream chat
  askstream chat --sqlite ./askstream.db
  askstream chat --new --target http://localhost:9000`

const chatShortDesc string = "Interactive conversation with an ask service"

var chatFlags = []string{
	config.FlagTarget,
	config.FlagTimeout,
	config.FlagSources,
	config.FlagMarkdown,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagKafka,
	config.FlagKafkaTopic,
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, chatFlags)

			cmder.target = v.GetString("client.target")
			cmder.timeout = v.GetDuration("client.timeout")
			cmder.sources = v.GetBool("client.include_sources")
			cmder.markdown = v.GetBool("ui.markdown")
			cmder.showSources = v.GetBool("ui.show_sources")
			cmder.sqlitePath = v.GetString("storage.sqlite_path")
			cmder.postgresDSN = v.GetString("storage.postgres_dsn")
			cmder.kafka = v.GetString("publish.kafka_brokers")
			cmder.kafkaTopic = v.GetString("publish.kafka_topic")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmd.SilenceUsage = true

			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			cmder.errOut = cmd.ErrOrStderr()
			cmder.interactive = cmder.errOut == os.Stderr && cliui.IsTerminal(os.Stderr)

			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagTarget, &cmder.target)
	config.AddDurationFlag(cmd, config.Flags, config.FlagTimeout, &cmder.timeout)
	config.AddBoolFlag(cmd, config.Flags, config.FlagSources, &cmder.sources)
	config.AddBoolFlag(cmd, config.Flags, config.FlagMarkdown, &cmder.markdown)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafka, &cmder.kafka)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &cmder.kafkaTopic)
	cmd.Flags().StringVar(&cmder.threadID, "thread", "", "Thread ID to resume (default: the last chat thread)")
	cmd.Flags().BoolVar(&cmder.newThread, "new", false, "Start a new thread instead of resuming")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write JSON logs to this file")

	return cmd
}

func (c *chatCommander) run(ctx context.Context) error {
	closeLog, err := c.setupLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	client, err := ask.NewClient(ask.Config{
		Target:         c.target,
		Timeout:        c.timeout,
		IncludeSources: c.sources,
		Logger:         c.logger,
	})
	if err != nil {
		return err
	}

	driver, err := c.newDriver(ctx)
	if err != nil {
		return err
	}
	defer driver.Close()

	publisher, err := c.newPublisher()
	if err != nil {
		return err
	}
	defer publisher.Close()

	pool, err := worker.NewPool(&worker.Config{
		Driver:    driver,
		Publisher: publisher,
		Logger:    c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating persistence pool: %w", err)
	}
	// Drains pending turns before the driver closes.
	defer pool.Close()

	ddm := dotdir.NewManager()
	threadID, err := c.resolveThread(ddm)
	if err != nil {
		return err
	}

	opts := []session.Option{
		session.WithPool(pool),
		session.WithLogger(c.logger),
	}
	if c.interactive {
		opts = append(opts, session.WithIndicator(cliui.NewSpinner(c.errOut, "thinking")))
	}
	thread := session.NewThread(threadID, client, opts...)

	restored, err := thread.Load(ctx, driver)
	if err != nil {
		return err
	}

	fmt.Fprintln(c.out)
	if restored > 0 {
		fmt.Fprintf(c.out, "  %s Resuming thread %s %s\n",
			cliui.SuccessMark,
			cliui.NameStyle.Render(utils.Truncate(threadID, 8)),
			cliui.DimStyle.Render(fmt.Sprintf("(%d messages)", restored)),
		)
	} else {
		fmt.Fprintf(c.out, "  %s New conversation %s\n",
			cliui.DimStyle.Render("●"),
			cliui.NameStyle.Render(utils.Truncate(threadID, 8)),
		)
	}
	fmt.Fprintf(c.out, "  %s %s\n\n",
		cliui.KeyStyle.Render("Target:"),
		cliui.ValueStyle.Render(c.target),
	)
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Type your question and press Enter. /exit or Ctrl+D to quit."))

	// Registered after Load so restored messages are not printed again.
	printer := cliui.NewPrinter(c.out, c.markdown)
	thread.Log().Watch(printer.Watch)

	scanner := bufio.NewScanner(c.in)
	for {
		fmt.Fprint(c.out, cliui.UserPrompt)
		if !scanner.Scan() {
			// EOF or error
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}

		fmt.Fprint(c.out, cliui.AnswerPrompt)
		answer, err := c.ask(ctx, thread, input)
		printer.Flush()

		switch {
		case err != nil:
			fmt.Fprintf(c.errOut, "  %s %s\n", cliui.FailMark, session.Describe(err))
		case answer == nil:
			fmt.Fprintf(c.out, "%s\n", cliui.DimStyle.Render("(no answer)"))
		default:
			if c.sources && c.showSources && len(answer.Sources) > 0 {
				cliui.RenderSources(c.out, answer.Sources, cliui.TerminalWidth(os.Stdout, 80))
			}
		}
		fmt.Fprintln(c.out)

		state := &dotdir.ThreadState{ID: threadID, UpdatedAt: time.Now().UTC()}
		if err := ddm.SaveThreadState(state, c.configDir); err != nil {
			c.logger.Warn("could not save thread state", "error", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(c.out)
	return nil
}

// ask runs one question, cancelling it on Ctrl+C without ending the chat.
func (c *chatCommander) ask(ctx context.Context, thread *session.Thread, question string) (*conversation.Message, error) {
	askCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	return thread.Ask(askCtx, question)
}

func (c *chatCommander) resolveThread(ddm *dotdir.Manager) (string, error) {
	if c.threadID != "" {
		return c.threadID, nil
	}
	if c.newThread {
		return uuid.NewString(), nil
	}

	state, err := ddm.LoadThreadState(c.configDir)
	if err != nil {
		return "", fmt.Errorf("loading thread state: %w", err)
	}
	if state != nil && state.ID != "" {
		return state.ID, nil
	}
	return uuid.NewString(), nil
}

func (c *chatCommander) newDriver(ctx context.Context) (conversation.Driver, error) {
	if c.postgresDSN != "" {
		driver, err := postgres.NewDriver(ctx, c.postgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL driver: %w", err)
		}
		c.logger.Debug("using PostgreSQL storage")
		return driver, nil
	}

	if c.sqlitePath != "" {
		driver, err := sqlite.NewDriver(c.sqlitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite driver: %w", err)
		}
		c.logger.Debug("using SQLite storage", "path", c.sqlitePath)
		return driver, nil
	}

	c.logger.Debug("using in-memory storage")
	return inmemory.NewDriver(), nil
}

func (c *chatCommander) newPublisher() (eventstream.Publisher, error) {
	brokers := splitBrokers(c.kafka)
	if len(brokers) == 0 {
		return nop.NewPublisher(), nil
	}

	publisher, err := kafka.NewPublisher(kafka.Config{
		Brokers: brokers,
		Topic:   c.kafkaTopic,
		Logger:  c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka publisher: %w", err)
	}
	c.logger.Debug("publishing stored turns", "brokers", brokers, "topic", c.kafkaTopic)
	return publisher, nil
}

func splitBrokers(s string) []string {
	var brokers []string
	for b := range strings.SplitSeq(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func (c *chatCommander) setupLogger() (func(), error) {
	base := logger.NewLogger(c.debug)
	if c.logFile == "" {
		c.logger = base
		return func() {}, nil
	}

	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	c.logger = logger.Multi(base, logger.New(
		logger.WithJSON(true),
		logger.WithDebug(true),
		logger.WithWriter(f),
	))
	return func() { _ = f.Close() }, nil
}
