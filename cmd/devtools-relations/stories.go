package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/scrypster/storyblok-devtools/internal/engine"
	"github.com/scrypster/storyblok-devtools/internal/notify"
)

func newStoriesCmd(c *cli) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "stories",
		Short: "List the stories of the space",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer closeApp(a, cmd)

			ctx := cmd.Context()
			token, version := a.Analyzer.Credentials()
			if token == "" {
				return engine.ErrMissingToken
			}

			stories, _, ok := a.StoryList.Get(ctx, token, version)
			if force || !ok {
				stories, err = a.Client.ListStorySummaries(ctx, token, version)
				if err != nil {
					_ = a.StoryList.Invalidate(ctx)
					return err
				}
				if _, err := a.StoryList.Set(ctx, token, version, stories); err != nil {
					a.Logger.Warn("failed to cache story list", "error", err)
				}
			}

			if c.jsonOut {
				return writeJSON(cmd.OutOrStdout(), stories)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSLUG\tUUID")
			for _, s := range stories {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Name, s.FullSlug, s.UUID)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "bypass the cached story list")
	return cmd
}

func newLocalesCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "locales",
		Short: "List the languages configured for the space",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer closeApp(a, cmd)

			token, _ := a.Analyzer.Credentials()
			if token == "" {
				return engine.ErrMissingToken
			}
			locales, err := a.Client.FetchLocales(cmd.Context(), token)
			if err != nil {
				return err
			}
			if c.jsonOut {
				return writeJSON(cmd.OutOrStdout(), locales)
			}
			for _, l := range locales {
				fmt.Fprintln(cmd.OutOrStdout(), l)
			}
			return nil
		},
	}
}

func newCacheCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage cached results",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove cached relations and the cached story list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer closeApp(a, cmd)

			if err := a.Analyzer.ClearCache(cmd.Context()); err != nil {
				return err
			}
			if err := a.StoryList.Invalidate(cmd.Context()); err != nil {
				return err
			}
			notifyBackend(a, notify.EventCacheCleared, "")
			fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
			return nil
		},
	})
	cmd.AddCommand(newBackupCmd(c), newRestoreCmd(c))
	return cmd
}
