// Package cli provides the command-line interface for inkstone.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kriswu/inkstone/internal/auth"
	"github.com/kriswu/inkstone/internal/channel"
	"github.com/kriswu/inkstone/internal/config"
	"github.com/kriswu/inkstone/internal/novelstore"
	"github.com/kriswu/inkstone/internal/session"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config, logger and store, resolved in PersistentPreRunE
	cfg        config.Config
	logger     *slog.Logger
	logCleanup func() error
	store      *novelstore.Store
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "inkstone",
	Short: "Turn novels into comics from your terminal",
	Long: `Inkstone is a client for the novel-to-comic generation backend.

Import a novel, let the backend recognize a storyboard for a chapter,
then generate comic images scene by scene with live progress. Results
are stored locally as JSON so nothing is lost between runs.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}
		logger, logCleanup = config.SetupLogger(cfg.LogFile, cfg.LogLevel)

		store, err = novelstore.Open(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("open novel store: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCleanup != nil {
			if err := logCleanup(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	},
}

// newSession builds an authenticated session from the stored token.
func newSession(ctx context.Context) (*session.Session, error) {
	token, err := auth.LoadToken()
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, fmt.Errorf("not logged in, run 'inkstone login' first")
	}

	ch := channel.New(channel.Config{URL: cfg.BackendWSURL}, logger)
	s := session.New(ch, session.Config{
		AuthTimeout:       cfg.AuthTimeout,
		GenerationTimeout: cfg.GenerationTimeout,
		Reconnect: session.ReconnectPolicy{
			MaxRetries: cfg.ReconnectRetries,
			Backoff:    cfg.ReconnectBackoff,
		},
	}, logger)

	if err := s.Start(ctx); err != nil {
		return nil, fmt.Errorf("connect to backend: %w", err)
	}
	if err := s.Authenticate(ctx, token); err != nil {
		s.Close()
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	return s, nil
}

// findChapter resolves a novel (by id or unique title prefix) and a
// chapter (by id or 1-based index) from command arguments.
func findChapter(novelRef, chapterRef string) (*novelstore.Novel, int, error) {
	novels, err := store.List()
	if err != nil {
		return nil, 0, fmt.Errorf("list novels: %w", err)
	}
	var novel *novelstore.Novel
	for _, n := range novels {
		if n.ID == novelRef || n.Title == novelRef {
			novel = n
			break
		}
	}
	if novel == nil {
		return nil, 0, fmt.Errorf("novel %q not found, see 'inkstone list'", novelRef)
	}

	for i, ch := range novel.Chapters {
		if ch.ID == chapterRef || fmt.Sprintf("%d", i+1) == chapterRef {
			return novel, i, nil
		}
	}
	return nil, 0, fmt.Errorf("chapter %q not found in %q", chapterRef, novel.Title)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(recognizeCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(devserverCmd)
}
