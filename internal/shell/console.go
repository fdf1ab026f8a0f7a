// Package shell is the interactive terminal front end: a readline console
// that supplies operator decisions and a colorized presenter.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/phrazzld/triage/internal/domain"
)

// HistoryFileName is the readline history file kept in the home directory.
const HistoryFileName = ".triage_history"

// lineReader is the part of *readline.Instance the console uses.
type lineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
	Close() error
}

// Console reads operator input line by line.
type Console struct {
	mu sync.Mutex
	rl lineReader
}

// ConsoleConfig configures NewConsole. Zero values use the process's
// standard streams and a history file in the home directory.
type ConsoleConfig struct {
	Stdin       io.ReadCloser
	Stdout      io.Writer
	Stderr      io.Writer
	HistoryFile string
}

// NewConsole creates a readline-backed console.
func NewConsole(cfg ConsoleConfig) (*Console, error) {
	if cfg.Stdin == nil {
		cfg.Stdin = readline.NewCancelableStdin(os.Stdin)
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	if cfg.HistoryFile == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.HistoryFile = filepath.Join(home, HistoryFileName)
		}
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "> ",
		HistoryFile:       cfg.HistoryFile,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		UniqueEditLine:    true,
		Stdin:             cfg.Stdin,
		Stdout:            cfg.Stdout,
		Stderr:            cfg.Stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize readline: %w", err)
	}

	return &Console{rl: rl}, nil
}

// ReadLine prompts and returns one trimmed line. Ctrl+C on an empty line
// and Ctrl+D return io.EOF; Ctrl+C with pending input discards it and
// prompts again.
func (c *Console) ReadLine(ctx context.Context, prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rl.SetPrompt(prompt)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		line, err := c.rl.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			if line == "" {
				return "", io.EOF
			}
			continue
		case err != nil:
			return "", err
		}
		return strings.TrimSpace(line), nil
	}
}

// ReadDecision implements lifecycle.DecisionReader.
func (c *Console) ReadDecision(ctx context.Context) (string, error) {
	return c.ReadLine(ctx, decisionPrompt())
}

// Close releases the terminal.
func (c *Console) Close() error {
	return c.rl.Close()
}

func decisionPrompt() string {
	names := make([]string, 0, len(domain.Decisions()))
	for _, d := range domain.Decisions() {
		names = append(names, string(d))
	}
	return "[" + strings.Join(names, "/") + "]> "
}
