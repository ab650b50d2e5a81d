package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aaileenssyed/LocalFlow/config"
	"github.com/aaileenssyed/LocalFlow/itinerary"
	"github.com/aaileenssyed/LocalFlow/session"
	"github.com/aaileenssyed/LocalFlow/watch"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// userError puts the user-facing message first and keeps the cause.
func userError(err error) error {
	msg := itinerary.UserMessage(err)
	if msg == err.Error() {
		return err
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func planCmd(g *globals) *cobra.Command {
	var (
		prefsPath string
		watchFile bool
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Generate a new itinerary",
		Long: `Generate a new itinerary from the session's preferences and commitments.

With --preferences the file replaces the session's preferences first. With
--watch the command keeps running and regenerates whenever the file changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if watchFile && prefsPath == "" {
				return errors.New("--watch needs --preferences")
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			app, err := g.setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if prefsPath != "" {
				prefs, err := config.LoadPreferences(prefsPath)
				if err != nil {
					return err
				}
				if err := app.engine.SetPreferences(ctx, prefs); err != nil {
					return err
				}
			}
			if err := app.generate(ctx, cmd, g.jsonOut); err != nil {
				if !watchFile {
					return err
				}
				app.logger.Error("Generation failed", "error", err)
			}
			if !watchFile {
				return nil
			}
			return app.watchPreferences(ctx, cmd, prefsPath, g.jsonOut)
		},
	}

	cmd.Flags().StringVarP(&prefsPath, "preferences", "p", "", "Preferences file (YAML)")
	cmd.Flags().BoolVarP(&watchFile, "watch", "w", false, "Regenerate when the preferences file changes")
	return cmd
}

func (a *App) generate(ctx context.Context, cmd *cobra.Command, jsonOut bool) error {
	it, err := a.engine.Generate(ctx)
	if err != nil {
		return userError(err)
	}
	return a.printItinerary(cmd, it, jsonOut)
}

func (a *App) printItinerary(cmd *cobra.Command, it *itinerary.Itinerary, jsonOut bool) error {
	if jsonOut {
		return printJSON(cmd.OutOrStdout(), it)
	}
	renderItinerary(cmd.OutOrStdout(), it, a.engine.Status())
	return nil
}

// watchPreferences regenerates on every valid change to path until ctx ends.
func (a *App) watchPreferences(ctx context.Context, cmd *cobra.Command, path string, jsonOut bool) error {
	w, err := watch.New(path, watch.WithLogger(a.logger))
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	a.logger.Info("Watching preferences", "path", path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-w.Updates():
			if !ok {
				return nil
			}
			if u.Err != nil {
				a.logger.Warn("Ignoring invalid preferences", "path", path, "error", u.Err)
				continue
			}
			if err := a.engine.SetPreferences(ctx, u.Preferences); err != nil {
				a.logger.Warn("Preferences rejected", "path", path, "error", err)
				continue
			}
			if err := a.generate(ctx, cmd, jsonOut); err != nil {
				a.logger.Error("Generation failed", "error", err)
			}
		}
	}
}

func recalcCmd(g *globals) *cobra.Command {
	var lat, lng float64

	cmd := &cobra.Command{
		Use:   `recalc "<reason>"`,
		Short: "Replan the rest of the day",
		Long: `Replan the installed itinerary. The reason is free text:

  localflow recalc "I'm running 30 minutes late"
  localflow recalc "Swap Joe's Pizza"

Pass --lat and --lng to plan from where you are now.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			latSet, lngSet := cmd.Flags().Changed("lat"), cmd.Flags().Changed("lng")
			if latSet != lngSet {
				return errors.New("--lat and --lng go together")
			}

			ctx := cmd.Context()
			app, err := g.setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			var opts []session.RecalcOption
			if latSet {
				opts = append(opts, session.At(itinerary.Coordinates{Lat: lat, Lng: lng}))
			}
			it, err := app.engine.Recalculate(ctx, strings.Join(args, " "), opts...)
			if err != nil {
				return userError(err)
			}
			return app.printItinerary(cmd, it, g.jsonOut)
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "Current latitude")
	cmd.Flags().Float64Var(&lng, "lng", 0, "Current longitude")
	return cmd
}

func showCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the installed itinerary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := g.setup(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			it := app.engine.Current()
			if it == nil {
				return errors.New("no itinerary yet, run `localflow plan`")
			}
			return app.printItinerary(cmd, it, g.jsonOut)
		},
	}
}

func linksCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "links",
		Short: "Print a maps link for every stop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := g.setup(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			it := app.engine.Current()
			if it == nil {
				return errors.New("no itinerary yet, run `localflow plan`")
			}
			links := itinerary.Links(it)
			if g.jsonOut {
				return printJSON(cmd.OutOrStdout(), links)
			}
			renderLinks(cmd.OutOrStdout(), links)
			return nil
		},
	}
}

func resetCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Discard the installed itinerary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := g.setup(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			app.engine.Reset(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Itinerary discarded.")
			return nil
		},
	}
}

func commitmentsCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "commitments",
		Aliases: []string{"commitment", "fixed"},
		Short:   "Manage fixed commitments",
	}

	var (
		end, description string
		resolve          bool
	)
	add := &cobra.Command{
		Use:   "add <start> <location>",
		Short: "Add a commitment, e.g. add 19:30 \"Carbone\" --end 21:00",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := g.setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			fc, err := app.engine.AddCommitment(ctx, session.CommitmentInput{
				StartTime:   args[0],
				EndTime:     end,
				Location:    strings.Join(args[1:], " "),
				Description: description,
			}, resolve)
			if err != nil {
				return err
			}
			if g.jsonOut {
				return printJSON(cmd.OutOrStdout(), fc)
			}
			renderCommitments(cmd.OutOrStdout(), []itinerary.FixedCommitment{fc})
			return nil
		},
	}
	add.Flags().StringVar(&end, "end", "", "End time (HH:MM); defaults to the start time")
	add.Flags().StringVarP(&description, "description", "d", "", "Description")
	add.Flags().BoolVar(&resolve, "resolve", false, "Look the location up and store its coordinates")

	rm := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove"},
		Short:   "Remove a commitment",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := g.setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.engine.RemoveCommitment(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s.\n", args[0])
			return nil
		},
	}

	ls := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List commitments in start-time order",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := g.setup(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			list := app.engine.Commitments()
			if g.jsonOut {
				return printJSON(cmd.OutOrStdout(), list)
			}
			renderCommitments(cmd.OutOrStdout(), list)
			return nil
		},
	}

	cmd.AddCommand(add, rm, ls)
	return cmd
}

func resolveCmd(g *globals) *cobra.Command {
	var hint string

	cmd := &cobra.Command{
		Use:   "resolve <place>",
		Short: "Look up a place's address and coordinates",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := g.setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if hint == "" {
				hint = app.engine.Preferences().Location
			}
			place := app.resolver.Resolve(ctx, strings.Join(args, " "), hint)
			slog.Debug("Resolved place", "query", strings.Join(args, " "), "hint", hint, "sentinel", place.IsSentinel())
			if g.jsonOut {
				return printJSON(cmd.OutOrStdout(), place)
			}
			renderPlace(cmd.OutOrStdout(), place)
			return nil
		},
	}

	cmd.Flags().StringVar(&hint, "hint", "", "Geographic context; defaults to the preferred location")
	return cmd
}

func configCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or initialize configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the default user config if none exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(g.logLevel, cmd.ErrOrStderr())
			path, err := config.NewLoader(logger).EnsureUserConfig()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(g.logLevel, cmd.ErrOrStderr())
			cfg, err := config.NewLoader(logger).Load(g.configPath)
			if err != nil {
				return err
			}
			masked := *cfg
			masked.Providers.Gemini.APIKey = mask(cfg.Providers.Gemini.APIKey)
			masked.Providers.OpenAI.APIKey = mask(cfg.Providers.OpenAI.APIKey)
			masked.Session.Redis.Password = mask(cfg.Session.Redis.Password)
			if masked.Models == nil {
				masked.Models = cfg.Registry().ToConfig()
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(&masked)
		},
	})

	return cmd
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}
