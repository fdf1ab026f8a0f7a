package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/phrazzld/triage/internal/config"
	"github.com/phrazzld/triage/internal/platform/postgres"
	"github.com/phrazzld/triage/internal/shell"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// cli holds state shared by all subcommands.
type cli struct {
	configPath string
	noColor    bool

	stdout io.Writer
	stderr io.Writer
}

// isTTY reports whether stdin and stdout are attached to a terminal.
func isTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func newRootCommand() *cobra.Command {
	c := &cli{stdout: os.Stdout, stderr: os.Stderr}

	root := &cobra.Command{
		Use:           "triage",
		Short:         "Task triage assistant backed by two language models",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "path to a config file (default ./config.yaml)")
	root.PersistentFlags().BoolVar(&c.noColor, "no-color", false, "disable colored output")

	root.AddCommand(newServeCommand(c))
	root.AddCommand(newTasksCommand(c))
	root.AddCommand(newAskCommand(c))
	root.AddCommand(newMigrateCommand(c))

	return root
}

// load reads configuration and builds the application logger.
func (c *cli) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadFile(c.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log, err := setupAppLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func (c *cli) presenter() *shell.Presenter {
	return shell.NewPresenter(c.stdout, !c.noColor && isTTY())
}

func newServeCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := c.load()
			if err != nil {
				return err
			}
			app, err := newApplication(cmd.Context(), cfg, log, logPresenter{logger: log})
			if err != nil {
				return err
			}
			return app.startHTTPServer(cmd.Context())
		},
	}
}

func newTasksCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "Summarize the backlog and review tasks interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSession(cmd.Context(), func(ctx context.Context, s *shell.Session) error {
				return s.RunTasks(ctx)
			})
		},
	}
}

func newAskCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <text>",
		Short: "Answer one free-form input",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := strings.Join(args, " ")
			return c.withSession(cmd.Context(), func(ctx context.Context, s *shell.Session) error {
				return s.Ask(ctx, input)
			})
		},
	}
}

// withSession builds the application around a terminal presenter and
// console, runs fn and releases everything afterwards.
func (c *cli) withSession(ctx context.Context, fn func(context.Context, *shell.Session) error) error {
	cfg, log, err := c.load()
	if err != nil {
		return err
	}

	out := c.presenter()
	app, err := newApplication(ctx, cfg, log, out)
	if err != nil {
		return err
	}
	defer app.cleanup()

	console, err := shell.NewConsole(shell.ConsoleConfig{Stdout: c.stdout, Stderr: c.stderr})
	if err != nil {
		return err
	}
	defer console.Close()

	return fn(ctx, shell.NewSession(app.orchestrator, console, out, log))
}

func newMigrateCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate <" + strings.Join(postgres.MigrationCommands(), "|") + ">",
		Short:     "Apply or inspect database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: postgres.MigrationCommands(),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := c.load()
			if err != nil {
				return err
			}

			db, err := postgres.Open(cmd.Context(), cfg.Database, log)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := db.Close(); cerr != nil {
					log.Error("failed to close database connection", slog.String("error", cerr.Error()))
				}
			}()

			return postgres.Migrate(cmd.Context(), db, args[0], log)
		},
	}
}
