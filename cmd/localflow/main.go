// Package main provides the localflow binary entry point.
// LocalFlow plans a single day in a city around the user's fixed
// commitments and replans it on demand as the day goes.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/aaileenssyed/LocalFlow/config"
	"github.com/spf13/cobra"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "localflow"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globals are the persistent flags shared by every subcommand.
type globals struct {
	configPath string
	logLevel   string
	jsonOut    bool
}

func rootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Single-day itinerary planner",
		Long: `LocalFlow plans a day in a city from your vibe, budget and dietary
preferences, keeps your fixed commitments where you put them, and replans
the rest when you run late, change your mind or want a stop swapped.

Configuration is layered: defaults, ~/.config/localflow/config.yaml,
localflow.yaml in the working tree, --config, then LOCALFLOW_* variables.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&g.jsonOut, "json", false, "Print results as JSON")

	cmd.AddCommand(
		planCmd(g),
		recalcCmd(g),
		showCmd(g),
		linksCmd(g),
		exportCmd(g),
		resetCmd(g),
		commitmentsCmd(g),
		resolveCmd(g),
		serveCmd(g),
		configCmd(g),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)

	return cmd
}

func newLogger(level string, w io.Writer) *slog.Logger {
	lvl := slog.LevelWarn
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// setup loads configuration and builds the App for a subcommand.
func (g *globals) setup(ctx context.Context, cmd *cobra.Command) (*App, error) {
	logger := newLogger(g.logLevel, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	cfg, err := config.NewLoader(logger).Load(g.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewApp(ctx, cfg, logger)
}
